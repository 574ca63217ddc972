package mailer

import (
	"bytes"
	"fmt"
	"html/template"

	"github.com/cartloom/payment-relay/internal/models"
)

var confirmationTmpl = template.Must(template.New("confirmation").Parse(`<html>
<body>
  <h2>Thanks for your order, {{.Order.ShippingInfo.Name}}!</h2>
  <p>Your payment was received and order <strong>{{.Order.OrderID}}</strong> is now being processed.</p>
  <table border="0" cellpadding="4">
    <tr><th align="left">Item</th><th align="right">Qty</th><th align="right">Price</th></tr>
    {{range .Order.Items}}
    <tr><td>{{.Name}}</td><td align="right">{{.Quantity}}</td><td align="right">{{printf "%.2f" .Price}}</td></tr>
    {{end}}
  </table>
  <p><strong>Total: {{printf "%.2f" .Order.TotalPrice}}</strong></p>
  <p>Shipping to: {{.Order.ShippingInfo.Address}}{{if .Order.ShippingInfo.City}}, {{.Order.ShippingInfo.City}}{{end}}{{if .Order.ShippingInfo.Zip}} {{.Order.ShippingInfo.Zip}}{{end}}</p>
  <p>Payment reference: {{.Order.PaymentReference}}</p>
</body>
</html>`))

// ConfirmationSubject builds the subject line for an order confirmation
func ConfirmationSubject(order *models.Order) string {
	return fmt.Sprintf("Order %s confirmed", order.OrderID)
}

// ConfirmationBody renders the order confirmation email
func ConfirmationBody(order *models.Order) (string, error) {
	var buf bytes.Buffer
	err := confirmationTmpl.Execute(&buf, struct{ Order *models.Order }{Order: order})
	if err != nil {
		return "", fmt.Errorf("render confirmation email: %w", err)
	}
	return buf.String(), nil
}
