package renderer

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
)

// ExpiryLayout formats expiry dates the way printed vouchers show them.
const ExpiryLayout = "2.1.2006"

var voucherTemplate = template.Must(template.New("voucher").Funcs(template.FuncMap{
	"lines": func(s string) []string {
		return strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n")
	},
}).Parse(voucherHTML))

type templateData struct {
	VoucherNumber string
	Headline      string
	Greeting      string
	ExpiryDate    string
}

// RenderHTML builds the standalone voucher page sent to the rasterizer.
func RenderHTML(in VoucherImage) (string, error) {
	if err := in.validate(); err != nil {
		return "", err
	}
	data := templateData{
		VoucherNumber: in.VoucherNumber,
		Headline:      in.headline(),
		Greeting:      strings.TrimSpace(in.Greeting),
		ExpiryDate:    in.ExpiryDate.Format(ExpiryLayout),
	}
	if data.Greeting == "" {
		data.Greeting = fmt.Sprintf("שובר מתנה עבור %s", strings.TrimSpace(in.RecipientName))
	}

	var buf bytes.Buffer
	if err := voucherTemplate.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("execute voucher template: %w", err)
	}
	return buf.String(), nil
}

const voucherHTML = `<!DOCTYPE html>
<html lang="he" dir="rtl">
<head>
<meta charset="UTF-8">
<title>שובר מתנה - שפת המדבר</title>
<style>
@import url('https://fonts.googleapis.com/css2?family=Varela+Round&family=Assistant:wght@300;400;600;700&display=swap');
* { margin: 0; padding: 0; box-sizing: border-box; }
body { font-family: 'Assistant', Arial, sans-serif; background: white; display: flex; align-items: center; justify-content: center; min-height: 100vh; padding: 20px; }
.voucher { width: 1000px; height: 300px; display: flex; border-radius: 25px; overflow: hidden; border: 2px solid #f0f2f5; box-shadow: 0 20px 40px rgba(0,0,0,0.1); }
.voucher-left { flex: 1; display: flex; flex-direction: column; align-items: center; justify-content: center; color: white; background: #6B7D4F; padding: 30px 25px; }
.voucher-title { font-family: 'Varela Round', sans-serif; font-size: 1.8rem; margin-bottom: 8px; }
.voucher-amount { font-size: 2.8rem; font-weight: 700; color: #FFD700; margin-bottom: 8px; }
.voucher-subtitle { font-size: 0.9rem; opacity: 0.9; text-align: center; }
.greeting-section { flex: 1; padding: 20px 25px; border-left: 1px dashed #e0e6ed; display: flex; flex-direction: column; justify-content: center; }
.greeting-header, .details-header { font-family: 'Varela Round', sans-serif; color: #6B7D4F; margin-bottom: 15px; }
.personal-greeting { color: #444; font-size: 18px; line-height: 1.5; }
.details-section { flex: 1; padding: 25px 30px; background: linear-gradient(135deg, #f8f9fa 0%, #e9ecef 100%); display: flex; flex-direction: column; justify-content: center; gap: 12px; }
.info-label { font-size: 0.8rem; color: #6B7D4F; }
.info-value { font-size: 1.1rem; font-weight: 600; color: #333; direction: ltr; text-align: right; }
</style>
</head>
<body>
<div class="voucher">
  <div class="voucher-left">
    <div class="voucher-title">שובר מתנה</div>
    <div class="voucher-amount">{{.Headline}}</div>
    <div class="voucher-subtitle">שפת המדבר<br>חוויה של יופי וטבע</div>
  </div>
  <div class="greeting-section">
    <div class="greeting-header">ברכה אישית</div>
    <div class="personal-greeting">{{range $i, $line := lines .Greeting}}{{if $i}}<br>{{end}}{{$line}}{{end}}</div>
  </div>
  <div class="details-section">
    <div class="details-header">פרטי השובר</div>
    <div class="info-item"><div class="info-label">תוקף עד</div><div class="info-value">{{.ExpiryDate}}</div></div>
    <div class="info-item"><div class="info-label">מספר שובר</div><div class="info-value">{{.VoucherNumber}}</div></div>
  </div>
</div>
</body>
</html>
`
