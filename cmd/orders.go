package main

import (
	"fmt"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"bistro/internal/apperrors"
	"bistro/internal/models"
	"bistro/internal/reconcile"

	"github.com/spf13/cobra"
)

func ordersCmd(open appOpener) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "orders",
		Short: "Staff view of submitted orders",
	}
	cmd.AddCommand(ordersListCmd(open), ordersStatusCmd(open), ordersUpdateCmd(open), ordersDeleteCmd(open), ordersWatchCmd(open))
	return cmd
}

func loadBook(cmd *cobra.Command, a *app) (*reconcile.OrderBook, error) {
	book := a.book()
	if err := book.Load(cmd.Context()); err != nil {
		return nil, fmt.Errorf("failed to load orders: %s", apperrors.UserMessage(err))
	}
	return book, nil
}

func ordersListCmd(open appOpener) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List orders",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			book, err := loadBook(cmd, a)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNUMBER\tSTATUS\tCUSTOMER\tTOTAL\tUPDATED")
			for _, o := range book.List() {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n", o.ID, o.OrderNumber, o.Status, o.CustomerName, o.Total.StringFixed(2), o.UpdatedAt.Format("15:04:05"))
			}
			return w.Flush()
		},
	}
}

func ordersStatusCmd(open appOpener) *cobra.Command {
	return &cobra.Command{
		Use:   "status <order-id> <status>",
		Short: "Move an order to a new status",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			status, err := models.ParseOrderStatus(args[1])
			if err != nil {
				return err
			}
			a, err := open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			book, err := loadBook(cmd, a)
			if err != nil {
				return err
			}
			order, err := book.Transition(cmd.Context(), args[0], status)
			if err != nil {
				return fmt.Errorf("status update failed: %s", apperrors.UserMessage(err))
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Order %s is now %s\n", order.ID, order.Status)
			return nil
		},
	}
}

func ordersUpdateCmd(open appOpener) *cobra.Command {
	var name, note string

	cmd := &cobra.Command{
		Use:   "update <order-id>",
		Short: "Edit an order's customer name or instructions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			patch := reconcile.OrderPatch{CustomerName: name, SpecialInstructions: note}
			if patch == (reconcile.OrderPatch{}) {
				return fmt.Errorf("nothing to update; pass --name or --note")
			}

			a, err := open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			book, err := loadBook(cmd, a)
			if err != nil {
				return err
			}
			order, err := book.Update(cmd.Context(), args[0], patch)
			if err != nil {
				return fmt.Errorf("update failed: %s", apperrors.UserMessage(err))
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Order %s updated\n", order.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "Customer name")
	cmd.Flags().StringVar(&note, "note", "", "Special instructions")
	return cmd
}

func ordersDeleteCmd(open appOpener) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <order-id>",
		Short: "Delete an order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			book, err := loadBook(cmd, a)
			if err != nil {
				return err
			}
			if err := book.Delete(cmd.Context(), args[0]); err != nil {
				return fmt.Errorf("delete failed: %s", apperrors.UserMessage(err))
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Order %s deleted\n", args[0])
			return nil
		},
	}
}

func ordersWatchCmd(open appOpener) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Follow live order status changes",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			if a.cfg.Metrics.Enabled {
				srv := startMetricsServer(a.cfg.Metrics.Port, a.cfg.Metrics.Path, a.monitor, a.log)
				defer shutdownServer(srv, a.log)
			}

			book, err := loadBook(cmd, a)
			if err != nil {
				return err
			}
			feed, err := reconcile.NewFeed(a.cfg.API.BaseURL, book, a.guard.Session(), a.log)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Watching %d order(s), Ctrl-C to stop\n", len(book.List()))
			return feed.Run(ctx, func(ev reconcile.StatusEvent, applied bool) {
				if !applied {
					return
				}
				fmt.Fprintf(out, "%s  order %s -> %s\n", ev.At.Format("15:04:05"), ev.OrderID, ev.Status)
			})
		},
	}
}

func attemptsCmd(open appOpener) *cobra.Command {
	return &cobra.Command{
		Use:   "attempts",
		Short: "Show the most recent order submission attempts",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			attempts, err := a.attempts().Recent(cmd.Context())
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "AT\tOUTCOME\tORDER\tITEMS\tTOTAL\tSTATUS\tERROR")
			for _, at := range attempts {
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%d\t%s\n", at.At.Format("2006-01-02 15:04:05"), at.Outcome, at.OrderID, at.ItemCount, at.Total, at.Status, at.Error)
			}
			return w.Flush()
		},
	}
}
