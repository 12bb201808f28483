package mailer

import (
	"context"
	"encoding/base64"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/giftvouchers-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/giftvouchers-backend/pkg/errors"
	"github.com/angelmondragon/giftvouchers-backend/pkg/logger"
	"github.com/angelmondragon/giftvouchers-backend/pkg/renderer"
)

const brandName = "שפת המדבר"

type sender interface {
	SendWithContext(ctx context.Context, email *mail.SGMailV3) (*rest.Response, error)
}

// VoucherEmail carries the content of the buyer-facing voucher email.
type VoucherEmail struct {
	To            string
	BuyerName     string
	VoucherNumber string
	Amount        decimal.Decimal
	ProductName   string
	RecipientName string
	Greeting      string
	ExpiryDate    time.Time
	// Image is attached inline when present.
	Image []byte
}

// AdminAlert describes an operational event that needs human follow-up.
type AdminAlert struct {
	Subject string
	Message string
	Fields  map[string]string
}

// Client delivers voucher and alert emails through SendGrid.
// With no API key configured every send is logged and skipped.
type Client struct {
	sender sender
	cfg    config.SendgridConfig
	logg   *logger.Logger
}

// New constructs the mail client from config.
func New(cfg config.SendgridConfig, logg *logger.Logger) *Client {
	c := &Client{cfg: cfg, logg: logg}
	if cfg.Enabled() {
		c.sender = sendgrid.NewSendClient(cfg.APIKey)
	}
	return c
}

// SendVoucherEmail sends the voucher to the buyer.
func (c *Client) SendVoucherEmail(ctx context.Context, msg VoucherEmail) error {
	to := strings.TrimSpace(msg.To)
	if to == "" {
		return pkgerrors.New(pkgerrors.CodeNotifyFailure, "voucher email recipient is required")
	}

	display := "₪" + renderer.DisplayAmount(msg.Amount)
	isProduct := strings.TrimSpace(msg.ProductName) != ""
	if isProduct {
		display = strings.TrimSpace(msg.ProductName)
	}

	html, err := execute(voucherEmailTemplate, voucherEmailData{
		LogoURL:       logoURL,
		BuyerName:     msg.BuyerName,
		VoucherNumber: msg.VoucherNumber,
		IsProduct:     isProduct,
		DisplayAmount: display,
		RecipientName: msg.RecipientName,
		GreetingLines: greetingLines(msg.Greeting),
		ExpiryDate:    msg.ExpiryDate.Format(renderer.ExpiryLayout),
		HasImage:      len(msg.Image) > 0,
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeNotifyFailure, err, "build voucher email")
	}

	subject := fmt.Sprintf("שובר המתנה שלך - %s | %s", display, brandName)
	m := mail.NewSingleEmail(c.from(), subject, mail.NewEmail(msg.BuyerName, to), "", html)
	if len(msg.Image) > 0 {
		a := mail.NewAttachment()
		a.SetContent(base64.StdEncoding.EncodeToString(msg.Image))
		a.SetType("image/png")
		a.SetFilename(fmt.Sprintf("voucher-%s.png", msg.VoucherNumber))
		a.SetDisposition("inline")
		a.SetContentID("voucher")
		m.AddAttachment(a)
	}

	return c.send(ctx, m, "voucher")
}

// SendAdminAlert notifies the configured admin address.
func (c *Client) SendAdminAlert(ctx context.Context, alert AdminAlert) error {
	to := strings.TrimSpace(c.cfg.AdminEmail)
	if to == "" {
		if c.logg != nil {
			c.logg.Warn(c.logg.WithField(ctx, "subject", alert.Subject), "mailer.admin_alert_skipped")
		}
		return nil
	}

	keys := make([]string, 0, len(alert.Fields))
	for k := range alert.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	fields := make([]alertField, 0, len(keys))
	for _, k := range keys {
		fields = append(fields, alertField{Key: k, Value: alert.Fields[k]})
	}

	html, err := execute(adminAlertTemplate, adminAlertData{Title: alert.Subject, Message: alert.Message, Fields: fields})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeNotifyFailure, err, "build admin alert")
	}

	m := mail.NewSingleEmail(c.from(), alert.Subject, mail.NewEmail("", to), alert.Message, html)
	return c.send(ctx, m, "admin_alert")
}

func (c *Client) from() *mail.Email {
	name := c.cfg.FromName
	if strings.TrimSpace(name) == "" {
		name = brandName
	}
	return mail.NewEmail(name, c.cfg.DefaultFrom)
}

func (c *Client) send(ctx context.Context, m *mail.SGMailV3, kind string) error {
	if c.sender == nil {
		if c.logg != nil {
			c.logg.Warn(c.logg.WithField(ctx, "kind", kind), "mailer.disabled")
		}
		return nil
	}

	resp, err := c.sender.SendWithContext(ctx, m)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeNotifyFailure, err, "sendgrid request failed")
	}
	if resp == nil || resp.StatusCode >= 300 {
		status, body := 0, ""
		if resp != nil {
			status, body = resp.StatusCode, resp.Body
		}
		return pkgerrors.Wrap(pkgerrors.CodeNotifyFailure, fmt.Errorf("status %d: %s", status, strings.TrimSpace(body)), "sendgrid rejected message")
	}

	if c.logg != nil {
		c.logg.Info(c.logg.WithFields(ctx, map[string]any{"kind": kind, "status": resp.StatusCode}), "mailer.sent")
	}
	return nil
}
