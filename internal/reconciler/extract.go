package reconciler

import (
	"regexp"
	"strings"

	"golang.org/x/net/html"

	"github.com/angelmondragon/giftvouchers-backend/internal/purchases"
)

// Labels as they appear in the payment provider's receipt email.
var (
	phonePattern     = regexp.MustCompile(`טלפון:?\s*(\+?972[\- ]?\d{1,2}[\- ]?\d{3}[\- ]?\d{4}|0\d{1,2}[\- ]?\d{3}[\- ]?\d{4})`)
	emailPattern     = regexp.MustCompile(`מייל:?\s*([a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,})`)
	amountPattern    = regexp.MustCompile(`תשלום\s+(?:של\s+)?(\d[\d,]*(?:\.\d{1,2})?)\s*ש["״]ח`)
	namePattern      = regexp.MustCompile(`(?m)(?:^|[^\p{L}])שם:?[ \t]*\n?[ \t]*([^\n]+?)(?:\s+טלפון|[ \t]*$)`)
	referencePattern = regexp.MustCompile(`אסמכתא:?\s*(\d+)`)
	blankLines       = regexp.MustCompile(`\n[ \t]*\n+`)
)

// blockTags end a line when reduced to text.
var blockTags = map[string]bool{
	"br": true, "p": true, "div": true, "tr": true, "li": true, "table": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
}

// ExtractSignals reads payer details from a receipt email body, plain text
// or HTML. Missing labels leave their field empty.
func ExtractSignals(body string) Signals {
	text := HTMLToText(body)

	var out Signals
	if m := phonePattern.FindStringSubmatch(text); m != nil {
		if phone := purchases.NormalizePhone(m[1]); purchases.PhoneKey(phone) != "" {
			out.Phone = phone
		}
	}
	if m := emailPattern.FindStringSubmatch(text); m != nil {
		out.Email = m[1]
	}
	if m := amountPattern.FindStringSubmatch(text); m != nil {
		if amount, ok := parseNotifiedAmount(m[1]); ok {
			out.Amount, out.HasAmount = amount, true
		}
	}
	if m := namePattern.FindStringSubmatch(text); m != nil {
		out.Name = strings.TrimSpace(m[1])
	}
	if m := referencePattern.FindStringSubmatch(text); m != nil {
		out.Reference = m[1]
	}
	return out
}

// HTMLToText turns block-level tags into newlines, drops the rest of the
// markup and unescapes entities. Plain text passes through unchanged apart
// from entity unescaping.
func HTMLToText(body string) string {
	if !strings.Contains(body, "<") {
		return normalizeText(html.UnescapeString(body))
	}

	var b strings.Builder
	z := html.NewTokenizer(strings.NewReader(body))
	skip := 0
	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			// io.EOF or a malformed tail; keep what was read.
			return normalizeText(b.String())
		case html.TextToken:
			if skip == 0 {
				b.Write(z.Text())
			}
		case html.StartTagToken, html.SelfClosingTagToken:
			name, _ := z.TagName()
			tag := string(name)
			if tag == "script" || tag == "style" {
				if tt == html.StartTagToken {
					skip++
				}
				continue
			}
			switch {
			case blockTags[tag]:
				b.WriteByte('\n')
			case tag == "td" || tag == "th":
				b.WriteByte(' ')
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			tag := string(name)
			if (tag == "script" || tag == "style") && skip > 0 {
				skip--
				continue
			}
			if blockTags[tag] {
				b.WriteByte('\n')
			}
		}
	}
}

func normalizeText(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, " ", " ")
	s = blankLines.ReplaceAllString(s, "\n")
	return strings.TrimSpace(s)
}
