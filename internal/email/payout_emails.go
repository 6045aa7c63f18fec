// payout_emails.go - payout outcome emails sent to creators.
package email

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
)

// PayoutNotice carries what a payout outcome email shows.
type PayoutNotice struct {
	To          string
	DisplayName string
	AmountCents int64
	Method      string
	Destination string
	Notes       string
}

type payoutView struct {
	DisplayName string
	Amount      string
	Method      string
	Destination string
	Notes       string
}

var completedTmpl = template.Must(template.New("completed").Parse(`<!DOCTYPE html>
<html><body style="font-family:sans-serif;color:#111">
<h2>Your payout is on its way</h2>
<p>Hi {{.DisplayName}},</p>
<p>We've processed your payout of <strong>{{.Amount}}</strong>.</p>
<table cellpadding="4">
<tr><td>Method</td><td>{{.Method}}</td></tr>
{{if .Destination}}<tr><td>Sent to</td><td>{{.Destination}}</td></tr>{{end}}
</table>
{{if .Notes}}<p><strong>Notes:</strong> {{.Notes}}</p>{{end}}
<p>Funds usually arrive within a few business days.</p>
<p>Thanks for creating on Dump.</p>
</body></html>`))

var failedTmpl = template.Must(template.New("failed").Parse(`<!DOCTYPE html>
<html><body style="font-family:sans-serif;color:#111">
<h2>We couldn't complete your payout</h2>
<p>Hi {{.DisplayName}},</p>
<p>Your payout request of <strong>{{.Amount}}</strong> via {{.Method}} could not be processed.</p>
{{if .Notes}}<p><strong>Reason:</strong> {{.Notes}}</p>{{end}}
<p>The amount is back in your available balance. Check your payout details and submit a new request.</p>
<p>Reply to this email if you have questions.</p>
</body></html>`))

// PayoutCompleted renders the completed-payout message.
func PayoutCompleted(n PayoutNotice) (Message, error) {
	subject := fmt.Sprintf("Your payout of %s has been processed!", FormatUSD(n.AmountCents))
	return render(completedTmpl, n, subject)
}

// PayoutFailed renders the failed-payout message.
func PayoutFailed(n PayoutNotice) (Message, error) {
	return render(failedTmpl, n, "Payout request update - Action may be required")
}

func render(t *template.Template, n PayoutNotice, subject string) (Message, error) {
	var buf bytes.Buffer
	err := t.Execute(&buf, payoutView{
		DisplayName: n.DisplayName,
		Amount:      FormatUSD(n.AmountCents),
		Method:      strings.ReplaceAll(n.Method, "_", " "),
		Destination: n.Destination,
		Notes:       n.Notes,
	})
	if err != nil {
		return Message{}, fmt.Errorf("email: render %s: %w", t.Name(), err)
	}
	return Message{To: n.To, Subject: subject, HTML: buf.String()}, nil
}

// FormatUSD renders cents as "$12.34".
func FormatUSD(cents int64) string {
	sign := ""
	if cents < 0 {
		sign, cents = "-", -cents
	}
	return fmt.Sprintf("%s$%d.%02d", sign, cents/100, cents%100)
}
