package main

import (
	"fmt"
	"strconv"
	"text/tabwriter"

	"bistro/internal/models"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

func cartCmd(open appOpener) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cart",
		Short: "Manage the persisted cart",
	}
	cmd.AddCommand(cartAddCmd(open), cartSetCmd(open), cartRemoveCmd(open), cartListCmd(open), cartClearCmd(open), cartNoteCmd(open))
	return cmd
}

func cartAddCmd(open appOpener) *cobra.Command {
	var name, price string
	var qty int

	cmd := &cobra.Command{
		Use:   "add <item-id>",
		Short: "Add an item to the cart",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := decimal.NewFromString(price)
			if err != nil {
				return fmt.Errorf("invalid price %q: %w", price, err)
			}
			a, err := open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			if name == "" {
				name = args[0]
			}
			a.cart.Add(models.CartItem{ItemID: args[0], Name: name, Price: p, Quantity: qty})
			fmt.Fprintf(cmd.OutOrStdout(), "%d item(s) in cart, subtotal %s\n", a.cart.Count(), a.cart.Subtotal().StringFixed(2))
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "Display name")
	cmd.Flags().StringVar(&price, "price", "0", "Unit price")
	cmd.Flags().IntVarP(&qty, "quantity", "q", 1, "Quantity")
	return cmd
}

func cartSetCmd(open appOpener) *cobra.Command {
	return &cobra.Command{
		Use:   "set <item-id> <quantity>",
		Short: "Set the quantity of a cart line; zero removes it",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid quantity %q", args[1])
			}
			a, err := open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			a.cart.SetQuantity(args[0], n)
			return printCart(cmd, a)
		},
	}
}

func cartRemoveCmd(open appOpener) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <item-id>",
		Short: "Remove a cart line",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			a.cart.Remove(args[0])
			return printCart(cmd, a)
		},
	}
}

func cartListCmd(open appOpener) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Show the cart",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()
			return printCart(cmd, a)
		},
	}
}

func cartClearCmd(open appOpener) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Empty the cart",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			a.cart.Clear()
			fmt.Fprintln(cmd.OutOrStdout(), "Cart cleared")
			return nil
		},
	}
}

func cartNoteCmd(open appOpener) *cobra.Command {
	return &cobra.Command{
		Use:   "note [text]",
		Short: "Set special instructions for the next order",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			if len(args) == 1 {
				a.cart.SetInstructions(args[0])
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Instructions: %q\n", a.cart.Instructions())
			return nil
		},
	}
}

func printCart(cmd *cobra.Command, a *app) error {
	items := a.cart.Items()
	if len(items) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "Cart is empty")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ITEM\tNAME\tQTY\tPRICE\tLINE")
	for _, item := range items {
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n", item.ItemID, item.Name, item.Quantity, item.Price.StringFixed(2), item.LineTotal().StringFixed(2))
	}
	fmt.Fprintf(w, "\t\t%d\t\t%s\n", a.cart.Count(), a.cart.Subtotal().StringFixed(2))
	if note := a.cart.Instructions(); note != "" {
		fmt.Fprintf(w, "note: %s\n", note)
	}
	return w.Flush()
}
