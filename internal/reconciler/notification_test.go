package reconciler

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	pkgerrors "github.com/angelmondragon/giftvouchers-backend/pkg/errors"
)

func mustJSON(t *testing.T, v any) []byte {
	t.Helper()
	raw, err := json.Marshal(v)
	require.NoError(t, err)
	return raw
}

func TestParseNotificationSelectsVariant(t *testing.T) {
	receipt := readFixture(t, "receipt_multiline.txt")

	cases := []struct {
		name   string
		body   []byte
		source string
	}{
		{name: "array", body: mustJSON(t, []map[string]string{{"text": receipt}}), source: SourceArray},
		{name: "array with html only", body: mustJSON(t, []map[string]string{{"html": "<p>" + receipt + "</p>"}}), source: SourceArray},
		{name: "text object", body: mustJSON(t, map[string]string{"text": receipt}), source: SourceText},
		{name: "flat", body: []byte(`{"phone":"0584254229","amount":100,"reference":467413334}`), source: SourceFlat},
		{name: "blank text falls back to flat", body: []byte(`{"text":"  ","email":"a@example.com"}`), source: SourceFlat},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			n, err := ParseNotification(tc.body)
			require.NoError(t, err)
			require.Equal(t, tc.source, n.Source())
		})
	}
}

func TestParseNotificationRejectsNonJSONShapes(t *testing.T) {
	for _, body := range []string{"", "   ", `"text"`, `42`, `{"phone":`} {
		_, err := ParseNotification([]byte(body))
		require.Error(t, err, body)
		require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), body)
	}
}

func TestArrayAndTextVariantsExtractFromBody(t *testing.T) {
	receipt := readFixture(t, "receipt_multiline.txt")

	arr, err := ParseNotification(mustJSON(t, []map[string]string{{"text": receipt}, {"text": "ignored"}}))
	require.NoError(t, err)
	text, err := ParseNotification(mustJSON(t, map[string]string{"text": receipt}))
	require.NoError(t, err)

	for _, n := range []Notification{arr, text} {
		s := n.Signals()
		require.Equal(t, "0584254229", s.Phone)
		require.Equal(t, "584254229", s.PhoneKey())
		require.Equal(t, "100", s.Amount.String())
		require.Equal(t, "467413334", s.Reference)
	}

	empty, err := ParseNotification([]byte(`[]`))
	require.NoError(t, err)
	require.False(t, empty.Signals().Identified())
}

func TestFlatVariantPrefersExplicitFields(t *testing.T) {
	body := mustJSON(t, map[string]any{
		"phone":     "+972-50-123-4567",
		"amount":    "₪1,000",
		"reference": "REF1",
		"html":      readFixture(t, "receipt_table.html"),
	})
	n, err := ParseNotification(body)
	require.NoError(t, err)

	s := n.Signals()
	require.Equal(t, "0501234567", s.Phone)
	require.True(t, s.HasAmount)
	require.Equal(t, "1000", s.Amount.String())
	require.Equal(t, "REF1", s.Reference)
	require.Equal(t, "yael@example.com", s.Email, "blank fields come from the body")
	require.Equal(t, "יעל כהן", s.Name)
}

func TestFlatVariantNumericFields(t *testing.T) {
	n, err := ParseNotification([]byte(`{"phone":"0501234567","amount":99.5,"reference":12345,"email":null}`))
	require.NoError(t, err)

	s := n.Signals()
	require.Equal(t, "99.5", s.Amount.String())
	require.Equal(t, "12345", s.Reference)
	require.Empty(t, s.Email)
	require.True(t, s.Identified())
}

func TestFlatVariantWithoutIdentifiers(t *testing.T) {
	n, err := ParseNotification([]byte(`{"amount":"100","reference":"R"}`))
	require.NoError(t, err)
	require.False(t, n.Signals().Identified())
}
