package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"bistro/internal/apperrors"
	"bistro/internal/checkout"
	"bistro/internal/models"

	"github.com/spf13/cobra"
)

func checkoutCmd(open appOpener) *cobra.Command {
	var form checkout.ContactForm
	var method, cardNumber, expiry, cvc, holder string

	cmd := &cobra.Command{
		Use:   "checkout",
		Short: "Submit the cart as an order and pay for it",
		RunE: func(cmd *cobra.Command, args []string) error {
			form.PaymentMethod = models.PaymentMethod(method)

			var card *models.CardDetails
			if form.PaymentMethod == models.PaymentMethodCreditCard {
				month, year, err := parseExpiry(expiry)
				if err != nil {
					return err
				}
				card = &models.CardDetails{Number: cardNumber, ExpMonth: month, ExpYear: year, CVC: cvc, HolderName: holder}
			}

			a, err := open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			out := cmd.OutOrStdout()
			nav := checkout.NavigatorFunc(func(ctx context.Context, order models.SubmittedOrder) error {
				fmt.Fprintf(out, "Confirmation: /order-confirmation/%s\n", order.ID)
				return nil
			})

			result, err := a.flow(nav).Checkout(cmd.Context(), form, card)
			if result != nil && result.Order != nil {
				order := result.Order
				fmt.Fprintf(out, "Order %s (%s) status %s total %s\n", order.ID, order.OrderNumber, order.Status, order.Total.StringFixed(2))
				if order.IsFallback() {
					fmt.Fprintln(out, "Warning: the server did not confirm this order id; check `bistro orders list`")
				}
			}
			if err != nil {
				return fmt.Errorf("checkout failed: %s", apperrors.UserMessage(err))
			}

			fmt.Fprintf(out, "Payment %s accepted\n", result.Payment.TransactionID)
			if result.Payment.Simulated {
				fmt.Fprintln(out, "Warning: payment success was assumed, not confirmed by the server")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&form.CustomerName, "name", "", "Customer name")
	cmd.Flags().StringVar(&form.ContactPhone, "phone", "", "Contact phone")
	cmd.Flags().StringVar(&form.Email, "email", "", "Contact email")
	cmd.Flags().BoolVar(&form.IsDelivery, "delivery", false, "Deliver instead of serving at a table")
	cmd.Flags().StringVar(&form.DeliveryAddress, "address", "", "Delivery address")
	cmd.Flags().StringVar(&form.TableNumber, "table", "", "Table number")
	cmd.Flags().StringVar(&method, "method", string(models.PaymentMethodCash), "Payment method: cash or credit_card")
	cmd.Flags().StringVar(&cardNumber, "card", "", "Card number")
	cmd.Flags().StringVar(&expiry, "expiry", "", "Card expiry as MM/YY or MM/YYYY")
	cmd.Flags().StringVar(&cvc, "cvc", "", "Card security code")
	cmd.Flags().StringVar(&holder, "holder", "", "Cardholder name")
	return cmd
}

func parseExpiry(s string) (month, year int, err error) {
	parts := strings.Split(strings.TrimSpace(s), "/")
	if len(parts) != 2 {
		return 0, 0, apperrors.Invalid("expiry", "Expiry must look like MM/YY")
	}
	if month, err = strconv.Atoi(parts[0]); err != nil {
		return 0, 0, apperrors.Invalid("expMonth", "Expiry month must be a number")
	}
	if year, err = strconv.Atoi(parts[1]); err != nil {
		return 0, 0, apperrors.Invalid("expiry", "Expiry year must be a number")
	}
	return month, year, nil
}
