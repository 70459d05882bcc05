package notifier

import (
	"fmt"
	"strings"

	"github.com/tair/purchase-ingest/kafka"
)

const noItemsLine = "Purchased items: no items"

// FormatSummary renders the operator email body for a purchase. The output
// depends only on the event.
func FormatSummary(event kafka.PurchaseEvent) string {
	var b strings.Builder

	b.WriteString("New purchase received!\n\n")
	fmt.Fprintf(&b, "Customer: %s %s\n", event.FirstName, event.LastName)
	fmt.Fprintf(&b, "Email: %s\n", event.Email)
	fmt.Fprintf(&b, "Phone: %s\n", event.Phone)
	fmt.Fprintf(&b, "Address: %s, %s - %s, %s - %s, Postal code: %s\n\n",
		event.Street, event.Number, event.District, event.City, event.Region, event.PostalCode)
	fmt.Fprintf(&b, "Delivery method: %s\n", event.Delivery)
	fmt.Fprintf(&b, "Payment method: %s\n", event.Payment)
	fmt.Fprintf(&b, "Total amount: R$ %s\n", event.Total.StringFixed(2))
	fmt.Fprintf(&b, "Note: %s\n\n", event.Note)

	if len(event.CartItems) == 0 {
		b.WriteString(noItemsLine + "\n")
		return b.String()
	}

	b.WriteString("Purchased items:\n")
	for _, item := range event.CartItems {
		fmt.Fprintf(&b, "- %s (Qty: %d)\n", item.ID, item.Quantity)
	}
	return b.String()
}
