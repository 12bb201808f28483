package purchases

import "strings"

// phoneKeyDigits is how many trailing digits identify a phone number.
// It absorbs the difference between 05x and +9725x forms.
const phoneKeyDigits = 9

// NormalizePhone keeps digits only and rewrites the 972 country prefix to a
// leading zero.
func NormalizePhone(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if strings.HasPrefix(digits, "972") && len(digits) > 3 {
		digits = "0" + strings.TrimPrefix(digits[3:], "0")
	}
	return digits
}

// PhoneKey returns the trailing digits used to match payers to buyers.
// Numbers too short to be a phone yield "".
func PhoneKey(raw string) string {
	digits := NormalizePhone(raw)
	if len(digits) < phoneKeyDigits {
		return ""
	}
	return digits[len(digits)-phoneKeyDigits:]
}
