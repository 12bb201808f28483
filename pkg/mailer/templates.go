package mailer

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
)

const logoURL = "https://files.neriyabudraham.co.il/files/save_IMG_0392_20250916_xhwpe.jpg"

var voucherEmailTemplate = template.Must(template.New("voucher_email").Parse(`<!DOCTYPE html>
<html lang="he" dir="rtl">
<head>
<meta charset="UTF-8">
<style>
body { font-family: Arial, sans-serif; background: #f5f5f5; margin: 0; padding: 20px; }
.container { max-width: 600px; margin: 0 auto; background: white; border-radius: 15px; padding: 30px; }
.header { text-align: center; margin-bottom: 30px; }
.logo { width: 80px; height: 80px; border-radius: 50%; }
h1 { color: #6B7D4F; margin: 0; }
.voucher-info { background: #f8f9fa; border-radius: 10px; padding: 20px; margin: 20px 0; border-right: 4px solid #8B9D6F; }
.greeting { background: #fdfaf3; border-radius: 10px; padding: 15px 20px; font-style: italic; }
.voucher-image img { max-width: 100%; border-radius: 10px; }
.footer { text-align: center; margin-top: 30px; color: #666; font-size: 0.9rem; }
</style>
</head>
<body>
<div class="container">
  <div class="header">
    <img src="{{.LogoURL}}" alt="שפת המדבר" class="logo">
    <h1>שובר המתנה שלך מוכן!</h1>
  </div>
  <div class="content">
    <p>שלום {{.BuyerName}},</p>
    <p>תודה על רכישת שובר המתנה שלנו. מצורף השובר שלך:</p>
    <div class="voucher-info">
      <p><strong>מספר שובר:</strong> {{.VoucherNumber}}</p>
      <p><strong>{{if .IsProduct}}מוצר{{else}}סכום{{end}}:</strong> {{.DisplayAmount}}</p>
      {{if .RecipientName}}<p><strong>עבור:</strong> {{.RecipientName}}</p>{{end}}
      <p><strong>תוקף עד:</strong> {{.ExpiryDate}}</p>
    </div>
    {{if .GreetingLines}}<div class="greeting"><p><strong>הברכה שלך:</strong><br>{{range $i, $line := .GreetingLines}}{{if $i}}<br>{{end}}{{$line}}{{end}}</p></div>{{end}}
    {{if .HasImage}}<div class="voucher-image"><img src="cid:voucher" alt="שובר מתנה"></div>
    <p>השובר מצורף גם כקובץ תמונה להורדה.</p>{{end}}
    <p>בברכה,<br>צוות שפת המדבר</p>
  </div>
  <div class="footer"><p>שפת המדבר - חוויה של יופי וטבע</p></div>
</div>
</body>
</html>
`))

var adminAlertTemplate = template.Must(template.New("admin_alert").Parse(`<!DOCTYPE html>
<html lang="he" dir="rtl">
<head><meta charset="UTF-8"></head>
<body style="font-family: Arial, sans-serif;">
<h2>{{.Title}}</h2>
<p>{{.Message}}</p>
{{if .Fields}}<table cellpadding="4">
{{range .Fields}}<tr><td><strong>{{.Key}}</strong></td><td>{{.Value}}</td></tr>
{{end}}</table>{{end}}
</body>
</html>
`))

type voucherEmailData struct {
	LogoURL       string
	BuyerName     string
	VoucherNumber string
	IsProduct     bool
	DisplayAmount string
	RecipientName string
	GreetingLines []string
	ExpiryDate    string
	HasImage      bool
}

func greetingLines(greeting string) []string {
	greeting = strings.TrimSpace(strings.ReplaceAll(greeting, "\r\n", "\n"))
	if greeting == "" {
		return nil
	}
	return strings.Split(greeting, "\n")
}

type alertField struct {
	Key   string
	Value string
}

type adminAlertData struct {
	Title   string
	Message string
	Fields  []alertField
}

func execute(t *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("execute %s template: %w", t.Name(), err)
	}
	return buf.String(), nil
}
