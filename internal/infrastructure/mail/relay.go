package mail

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"time"

	grievanceapp "github.com/grievancenet/backend/internal/application/grievance"
	"github.com/grievancenet/backend/internal/infrastructure/config"
	gomail "github.com/wneessen/go-mail"
	"go.uber.org/zap"
)

// AttachmentContentType is used for every attachment regardless of what the
// client declared
const AttachmentContentType = "application/octet-stream"

// sender is the part of *gomail.Client the relay uses
type sender interface {
	DialAndSendWithContext(ctx context.Context, messages ...*gomail.Msg) error
}

// SMTPRelay sends grievance reports through an SMTP server
type SMTPRelay struct {
	client    sender
	from      string
	recipient string
	subject   string
	timeout   time.Duration
	logger    *zap.Logger
}

var _ grievanceapp.MailRelay = (*SMTPRelay)(nil)

// NewSMTPRelay builds the SMTP client once from configuration. Credentials
// are not re-read afterwards.
func NewSMTPRelay(cfg config.MailConfig, logger *zap.Logger) (*SMTPRelay, error) {
	if !cfg.Enabled() {
		return nil, errors.New("mail username and password are required")
	}

	opts := []gomail.Option{
		gomail.WithPort(cfg.Port),
		gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
		gomail.WithUsername(cfg.Username),
		gomail.WithPassword(cfg.Password),
	}
	if cfg.UseSSL {
		opts = append(opts, gomail.WithSSL())
	} else {
		opts = append(opts, gomail.WithTLSPolicy(gomail.TLSOpportunistic))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, gomail.WithTimeout(cfg.Timeout))
	}

	client, err := gomail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, err
	}
	return newSMTPRelay(client, cfg, logger), nil
}

func newSMTPRelay(client sender, cfg config.MailConfig, logger *zap.Logger) *SMTPRelay {
	if logger == nil {
		logger = zap.NewNop()
	}
	from := cfg.From
	if from == "" {
		from = cfg.Username
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &SMTPRelay{
		client:    client,
		from:      from,
		recipient: cfg.Recipient,
		subject:   cfg.Subject,
		timeout:   timeout,
		logger:    logger.Named("mail"),
	}
}

// Relay composes and sends one report. A blank body is rejected before any
// network traffic; every other failure is returned as a DeliveryError.
func (r *SMTPRelay) Relay(ctx context.Context, msg grievanceapp.MailMessage) error {
	if strings.TrimSpace(msg.Body) == "" {
		return grievanceapp.ErrBodyMissing
	}

	m, err := r.build(msg)
	if err != nil {
		r.logger.Error("Failed to build grievance mail", zap.Error(err))
		return grievanceapp.NewDeliveryError(err)
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	start := time.Now()
	if err := r.client.DialAndSendWithContext(ctx, m); err != nil {
		r.logger.Error("Failed to relay grievance mail",
			zap.String("recipient", r.recipient),
			zap.Int("attachments", len(msg.Attachments)),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err),
		)
		return grievanceapp.NewDeliveryError(err)
	}

	r.logger.Info("Grievance mail relayed",
		zap.String("recipient", r.recipient),
		zap.Int("attachments", len(msg.Attachments)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return nil
}

func (r *SMTPRelay) build(msg grievanceapp.MailMessage) (*gomail.Msg, error) {
	m := gomail.NewMsg()
	if err := m.From(r.from); err != nil {
		return nil, err
	}
	if err := m.To(r.recipient); err != nil {
		return nil, err
	}
	m.Subject(r.subject)
	m.SetBodyString(gomail.TypeTextPlain, Compose(msg))

	for _, a := range msg.Attachments {
		if a.FileName == "" {
			continue
		}
		err := m.AttachReader(a.FileName, bytes.NewReader(a.Data),
			gomail.WithFileContentType(gomail.ContentType(AttachmentContentType)))
		if err != nil {
			return nil, err
		}
	}
	return m, nil
}

// DryRunRelay logs reports instead of sending them. It is used outside
// production when no SMTP credentials are configured.
type DryRunRelay struct {
	logger *zap.Logger
}

var _ grievanceapp.MailRelay = (*DryRunRelay)(nil)

// NewDryRunRelay creates a DryRunRelay
func NewDryRunRelay(logger *zap.Logger) *DryRunRelay {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DryRunRelay{logger: logger.Named("mail")}
}

// Relay validates msg and logs the composed report
func (r *DryRunRelay) Relay(_ context.Context, msg grievanceapp.MailMessage) error {
	if strings.TrimSpace(msg.Body) == "" {
		return grievanceapp.ErrBodyMissing
	}
	r.logger.Warn("SMTP not configured, grievance mail not sent",
		zap.String("report", Compose(msg)),
		zap.Int("attachments", len(msg.Attachments)),
	)
	return nil
}
