package reconciler

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/giftvouchers-backend/internal/purchases"
	pkgerrors "github.com/angelmondragon/giftvouchers-backend/pkg/errors"
)

// Notification sources, also used as metric labels.
const (
	SourceArray  = "array"
	SourceText   = "text"
	SourceFlat   = "flat"
	SourceManual = "manual"
)

// Signals are the payer details a notification carries.
type Signals struct {
	Phone     string
	Email     string
	Name      string
	Amount    decimal.Decimal
	HasAmount bool
	Reference string
}

// PhoneKey is the trailing-nine-digit match key of Phone.
func (s Signals) PhoneKey() string {
	return purchases.PhoneKey(s.Phone)
}

// Identified reports whether a purchase can be matched at all.
func (s Signals) Identified() bool {
	return s.PhoneKey() != "" || s.Email != ""
}

// Notification is one payment notification shape.
type Notification interface {
	Source() string
	Signals() Signals
}

// ArrayNotification is a list of parsed emails forwarded by an automation
// platform. Only the first entry is read.
type ArrayNotification struct {
	Items []EmailItem
}

// EmailItem is one forwarded email.
type EmailItem struct {
	Text     string `json:"text"`
	TextHTML string `json:"textHtml"`
	HTML     string `json:"html"`
}

func (n ArrayNotification) Source() string { return SourceArray }

func (n ArrayNotification) Signals() Signals {
	if len(n.Items) == 0 {
		return Signals{}
	}
	item := n.Items[0]
	return ExtractSignals(firstNonEmpty(item.Text, item.TextHTML, item.HTML))
}

// TextNotification is a single email body.
type TextNotification struct {
	Text string
}

func (n TextNotification) Source() string { return SourceText }

func (n TextNotification) Signals() Signals {
	return ExtractSignals(n.Text)
}

// FlatNotification carries structured fields, optionally alongside an email
// body. Explicit fields win; blanks are filled from the body.
type FlatNotification struct {
	Phone     string
	Email     string
	Name      string
	Amount    string
	Reference string
	HTML      string
	TextHTML  string
}

func (n FlatNotification) Source() string { return SourceFlat }

func (n FlatNotification) Signals() Signals {
	var body Signals
	if text := firstNonEmpty(n.HTML, n.TextHTML); text != "" {
		body = ExtractSignals(text)
	}

	out := Signals{
		Phone:     purchases.NormalizePhone(n.Phone),
		Email:     strings.TrimSpace(n.Email),
		Name:      strings.TrimSpace(n.Name),
		Reference: strings.TrimSpace(n.Reference),
	}
	if amount, ok := parseNotifiedAmount(n.Amount); ok {
		out.Amount, out.HasAmount = amount, true
	}

	if out.Phone == "" {
		out.Phone = body.Phone
	}
	if out.Email == "" {
		out.Email = body.Email
	}
	if out.Name == "" {
		out.Name = body.Name
	}
	if out.Reference == "" {
		out.Reference = body.Reference
	}
	if !out.HasAmount && body.HasAmount {
		out.Amount, out.HasAmount = body.Amount, true
	}
	return out
}

// flexString accepts a JSON string or number.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}

type objectBody struct {
	Text      string     `json:"text"`
	HTML      string     `json:"html"`
	TextHTML  string     `json:"textHtml"`
	Phone     flexString `json:"phone"`
	Email     string     `json:"email"`
	Name      string     `json:"name"`
	Amount    flexString `json:"amount"`
	Reference flexString `json:"reference"`
}

// ParseNotification picks the variant once, from the shape of the body: a
// JSON array is a forwarded email list, an object with a non-empty text is a
// single email, any other object is a structured notification.
func ParseNotification(body []byte) (Notification, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "notification body is empty")
	}

	switch trimmed[0] {
	case '[':
		var items []EmailItem
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode notification list")
		}
		return ArrayNotification{Items: items}, nil
	case '{':
		var obj objectBody
		if err := json.Unmarshal(trimmed, &obj); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode notification")
		}
		if strings.TrimSpace(obj.Text) != "" {
			return TextNotification{Text: obj.Text}, nil
		}
		return FlatNotification{
			Phone:     string(obj.Phone),
			Email:     obj.Email,
			Name:      obj.Name,
			Amount:    string(obj.Amount),
			Reference: string(obj.Reference),
			HTML:      obj.HTML,
			TextHTML:  obj.TextHTML,
		}, nil
	default:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "notification must be a JSON object or array")
	}
}

func parseNotifiedAmount(raw string) (decimal.Decimal, bool) {
	cleaned := strings.NewReplacer("₪", "", ",", "", " ", "").Replace(strings.TrimSpace(raw))
	if cleaned == "" {
		return decimal.Zero, false
	}
	amount, err := decimal.NewFromString(cleaned)
	if err != nil || !amount.IsPositive() {
		return decimal.Zero, false
	}
	return amount, true
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
