package renderer

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/giftvouchers-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/giftvouchers-backend/pkg/errors"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func testConfig() config.RendererConfig {
	return config.RendererConfig{
		URL:          "http://render.test/html2png/coordinates",
		ScreenWidth:  1200,
		ScreenHeight: 800,
		StartRightX:  100,
		StartRightY:  250,
		EndLeftX:     1100,
		EndLeftY:     550,
	}
}

func sampleVoucher() VoucherImage {
	return VoucherImage{
		VoucherNumber: "1234567890123",
		Amount:        decimal.RequireFromString("100.00"),
		RecipientName: "דנה לוי",
		Greeting:      "מזל טוב\n<b>באהבה</b>",
		ExpiryDate:    time.Date(2027, 10, 19, 0, 0, 0, 0, time.UTC),
	}
}

func TestRenderPostsHTMLWithCoordinates(t *testing.T) {
	var captured *http.Request
	var body string
	rt := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		captured = req
		raw, err := io.ReadAll(req.Body)
		require.NoError(t, err)
		body = string(raw)
		return &http.Response{
			StatusCode: http.StatusOK,
			Body:       io.NopCloser(strings.NewReader("\x89PNG")),
			Header:     http.Header{},
		}, nil
	})

	client, err := NewClient(testConfig(), WithHTTPClient(&http.Client{Transport: rt}))
	require.NoError(t, err)

	png, err := client.Render(context.Background(), sampleVoucher())
	require.NoError(t, err)
	require.Equal(t, []byte("\x89PNG"), png)

	require.Equal(t, http.MethodPost, captured.Method)
	require.Equal(t, "text/html", captured.Header.Get("Content-Type"))
	require.Equal(t, "1200", captured.Header.Get("X-Screen-Width"))
	require.Equal(t, "550", captured.Header.Get("X-End-Left-Y"))
	require.Contains(t, body, "₪100")
	require.Contains(t, body, "1234567890123")
	require.Contains(t, body, "19.10.2027")
	require.Contains(t, body, "מזל טוב<br>")
	require.NotContains(t, body, "<b>באהבה</b>")
}

func TestRenderFailsOnUpstreamError(t *testing.T) {
	rt := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		return &http.Response{
			StatusCode: http.StatusBadGateway,
			Body:       io.NopCloser(strings.NewReader("boom")),
			Header:     http.Header{},
		}, nil
	})
	client, err := NewClient(testConfig(), WithHTTPClient(&http.Client{Transport: rt}))
	require.NoError(t, err)

	_, err = client.Render(context.Background(), sampleVoucher())
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeRenderFailure))
}

func TestRenderHTMLProductAndDefaultGreeting(t *testing.T) {
	in := sampleVoucher()
	in.ProductName = "טיפול פנים"
	in.Greeting = "   "

	html, err := RenderHTML(in)
	require.NoError(t, err)
	require.Contains(t, html, "טיפול פנים")
	require.NotContains(t, html, "₪")
	require.Contains(t, html, "שובר מתנה עבור דנה לוי")
}

func TestDisplayAmount(t *testing.T) {
	require.Equal(t, "100", DisplayAmount(decimal.RequireFromString("100.00")))
	require.Equal(t, "99.5", DisplayAmount(decimal.RequireFromString("99.50")))
}

func TestNewClientRequiresURL(t *testing.T) {
	_, err := NewClient(config.RendererConfig{})
	require.Error(t, err)
}
