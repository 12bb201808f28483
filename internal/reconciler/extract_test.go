package reconciler

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func readFixture(t *testing.T, name string) string {
	t.Helper()
	raw, err := os.ReadFile(filepath.Join("testdata", name))
	require.NoError(t, err)
	return string(raw)
}

func TestExtractSignalsFixtures(t *testing.T) {
	cases := []struct {
		fixture   string
		phone     string
		email     string
		name      string
		amount    string
		reference string
	}{
		{
			fixture:   "receipt_multiline.txt",
			phone:     "0584254229",
			email:     "neriy.test@example.com",
			name:      "נריה אבודרהם",
			amount:    "100",
			reference: "467413334",
		},
		{
			fixture:   "receipt_inline.txt",
			phone:     "0527654321",
			email:     "dana@example.com",
			name:      "דנה לוי",
			amount:    "188",
			reference: "55501",
		},
		{
			fixture:   "receipt_table.html",
			phone:     "0501234567",
			email:     "yael@example.com",
			name:      "יעל כהן",
			amount:    "300",
			reference: "99887766",
		},
		{
			fixture: "receipt_email_only.txt",
			email:   "group.order@example.co.il",
			amount:  "1200",
		},
		{
			fixture: "receipt_unlabeled.txt",
		},
	}

	for _, tc := range cases {
		t.Run(tc.fixture, func(t *testing.T) {
			got := ExtractSignals(readFixture(t, tc.fixture))
			require.Equal(t, tc.phone, got.Phone)
			require.Equal(t, tc.email, got.Email)
			require.Equal(t, tc.name, got.Name)
			require.Equal(t, tc.reference, got.Reference)
			if tc.amount == "" {
				require.False(t, got.HasAmount)
			} else {
				require.True(t, got.HasAmount)
				require.Equal(t, tc.amount, got.Amount.String())
			}
		})
	}
}

func TestExtractSignalsIdentified(t *testing.T) {
	require.True(t, ExtractSignals(readFixture(t, "receipt_email_only.txt")).Identified())
	require.False(t, ExtractSignals(readFixture(t, "receipt_unlabeled.txt")).Identified())
}

func TestHTMLToText(t *testing.T) {
	in := `<div>שורה&nbsp;ראשונה<br>שורה &amp; שנייה</div><script>alert("x")</script><p>סוף</p>`
	require.Equal(t, "שורה ראשונה\nשורה & שנייה\nסוף", HTMLToText(in))

	require.Equal(t, "plain & simple", HTMLToText("  plain &amp; simple \r\n"))
}

func TestPhoneLabelRejectsShortNumbers(t *testing.T) {
	got := ExtractSignals("טלפון: 12345\nמייל: a@example.com")
	require.Empty(t, got.Phone)
	require.Equal(t, "a@example.com", got.Email)
}
