package purchases

import (
	"strings"

	"github.com/shopspring/decimal"
)

// PaymentLinks maps an exact amount string to a hosted payment page.
type PaymentLinks struct {
	links      map[string]string
	defaultKey string
}

// DefaultPaymentLinks are the storefront's quick-payment pages.
func DefaultPaymentLinks(defaultKey string) PaymentLinks {
	return NewPaymentLinks(map[string]string{
		"95":  "https://meshulam.co.il/quick_payment?b=94d3052b31acdf125df594d1b61d9d06",
		"188": "https://meshulam.co.il/quick_payment?b=94f3afb628451a34b6868895f1cef522",
		"100": "https://meshulam.co.il/quick_payment?b=e5cbd287b0610688a5dc413649649a40",
		"300": "https://meshulam.co.il/quick_payment?b=bb441e5bf72a76ecb2be8498f7c43149",
		"600": "https://meshulam.co.il/quick_payment?b=7b3fdae2f87845522fd06fdd5a9c47e6",
	}, defaultKey)
}

func NewPaymentLinks(links map[string]string, defaultKey string) PaymentLinks {
	copied := make(map[string]string, len(links))
	for k, v := range links {
		copied[k] = v
	}
	return PaymentLinks{links: copied, defaultKey: defaultKey}
}

// Resolve picks the caller's URL, then the entry for the amount, then the default entry.
func (p PaymentLinks) Resolve(requested, amount string) string {
	if u := strings.TrimSpace(requested); u != "" {
		return u
	}
	key := strings.TrimSpace(amount)
	if link, ok := p.links[key]; ok {
		return link
	}
	if d, err := decimal.NewFromString(key); err == nil {
		if link, ok := p.links[d.String()]; ok {
			return link
		}
	}
	return p.links[p.defaultKey]
}
