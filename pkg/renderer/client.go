package renderer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/angelmondragon/giftvouchers-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/giftvouchers-backend/pkg/errors"
	"github.com/shopspring/decimal"
)

const (
	errorBodyReadLimit int64 = 1024
	maxImageBytes      int64 = 10 << 20
)

var errURLRequired = errors.New("html2png url is required")

// VoucherImage is the data printed on a voucher.
type VoucherImage struct {
	VoucherNumber string
	// Amount is the face value; ignored when ProductName is set.
	Amount        decimal.Decimal
	ProductName   string
	RecipientName string
	Greeting      string
	ExpiryDate    time.Time
}

func (v VoucherImage) validate() error {
	if strings.TrimSpace(v.VoucherNumber) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "voucher number is required")
	}
	if v.ExpiryDate.IsZero() {
		return pkgerrors.New(pkgerrors.CodeValidation, "expiry date is required")
	}
	return nil
}

func (v VoucherImage) headline() string {
	if p := strings.TrimSpace(v.ProductName); p != "" {
		return p
	}
	return "₪" + DisplayAmount(v.Amount)
}

// DisplayAmount drops trailing zero decimals: 100.00 -> "100", 99.50 -> "99.5".
func DisplayAmount(d decimal.Decimal) string {
	return d.String()
}

// Client posts voucher HTML to an HTML-to-PNG service and returns the image.
type Client struct {
	httpClient *http.Client
	cfg        config.RendererConfig
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// NewClient builds the renderer client from config.
func NewClient(cfg config.RendererConfig, opts ...Option) (*Client, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, errURLRequired
	}
	client := &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client, nil
}

// Render produces the PNG bytes for a voucher. Callers bound it with ctx.
func (c *Client) Render(ctx context.Context, in VoucherImage) ([]byte, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeRenderFailure, "renderer not configured")
	}
	html, err := RenderHTML(in)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.URL, strings.NewReader(html))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeRenderFailure, err, "build render request")
	}
	req.Header.Set("Content-Type", "text/html")
	req.Header.Set("X-Screen-Width", strconv.Itoa(c.cfg.ScreenWidth))
	req.Header.Set("X-Screen-Height", strconv.Itoa(c.cfg.ScreenHeight))
	req.Header.Set("X-Start-Right-X", strconv.Itoa(c.cfg.StartRightX))
	req.Header.Set("X-Start-Right-Y", strconv.Itoa(c.cfg.StartRightY))
	req.Header.Set("X-End-Left-X", strconv.Itoa(c.cfg.EndLeftX))
	req.Header.Set("X-End-Left-Y", strconv.Itoa(c.cfg.EndLeftY))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeRenderFailure, err, "execute render request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyReadLimit))
		return nil, pkgerrors.Wrap(pkgerrors.CodeRenderFailure, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))), "render request failed")
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeRenderFailure, err, "read render response")
	}
	if len(body) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeRenderFailure, "renderer returned an empty image")
	}
	return body, nil
}
