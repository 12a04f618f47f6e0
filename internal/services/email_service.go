package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
	gomail "gopkg.in/gomail.v2"

	"github.com/daylinehq/dayline/internal/config"
	pkglogger "github.com/daylinehq/dayline/pkg/logger"
)

// EmailService delivers one-time codes. Implementations must be safe
// for concurrent use; callers dispatch sends asynchronously and never
// block the HTTP response on delivery.
type EmailService interface {
	SendUnlockCode(ctx context.Context, email, code string, validFor time.Duration) error
	SendPasswordResetCode(ctx context.Context, email, code string) error
}

// NewEmailService selects the mailer by config: SES in production-like
// environments, SMTP for local development.
func NewEmailService(cfg *config.EmailConfig, logger *slog.Logger) (EmailService, error) {
	switch cfg.Provider {
	case "ses":
		return NewSESEmailService(cfg.AWSRegion, cfg.FromAddress, logger)
	case "smtp":
		return NewSMTPEmailService(cfg, logger), nil
	default:
		return nil, fmt.Errorf("unknown email provider %q", cfg.Provider)
	}
}

// SESEmailService sends mail through AWS SES.
type SESEmailService struct {
	client      *ses.Client
	fromAddress string
	logger      *slog.Logger
}

func NewSESEmailService(region, fromAddress string, logger *slog.Logger) (*SESEmailService, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &SESEmailService{
		client:      ses.NewFromConfig(awsCfg),
		fromAddress: fromAddress,
		logger:      logger,
	}, nil
}

func (s *SESEmailService) SendUnlockCode(ctx context.Context, email, code string, validFor time.Duration) error {
	subject := "Your account unlock code"
	body := unlockCodeBody(code, validFor)
	return s.send(ctx, email, subject, body)
}

func (s *SESEmailService) SendPasswordResetCode(ctx context.Context, email, code string) error {
	subject := "Your password reset code"
	body := resetCodeBody(code)
	return s.send(ctx, email, subject, body)
}

func (s *SESEmailService) send(ctx context.Context, email, subject, body string) error {
	input := &ses.SendEmailInput{
		Source: aws.String(s.fromAddress),
		Destination: &types.Destination{
			ToAddresses: []string{email},
		},
		Message: &types.Message{
			Subject: &types.Content{
				Data: aws.String(subject),
			},
			Body: &types.Body{
				Text: &types.Content{
					Data: aws.String(body),
				},
			},
		},
	}

	result, err := s.client.SendEmail(ctx, input)
	if err != nil {
		s.logger.Error("failed to send email via SES",
			slog.String("email", pkglogger.SanitizedEmail(email)),
			slog.Any("error", err))
		return fmt.Errorf("failed to send email: %w", err)
	}

	s.logger.Info("email sent",
		slog.String("email", pkglogger.SanitizedEmail(email)),
		slog.String("message_id", *result.MessageId))

	return nil
}

// SMTPEmailService sends mail through a plain SMTP relay. Used for
// local development, typically against a capture server.
type SMTPEmailService struct {
	dialer      *gomail.Dialer
	fromAddress string
	logger      *slog.Logger
}

func NewSMTPEmailService(cfg *config.EmailConfig, logger *slog.Logger) *SMTPEmailService {
	return &SMTPEmailService{
		dialer:      gomail.NewDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword),
		fromAddress: cfg.FromAddress,
		logger:      logger,
	}
}

func (s *SMTPEmailService) SendUnlockCode(ctx context.Context, email, code string, validFor time.Duration) error {
	return s.send(email, "Your account unlock code", unlockCodeBody(code, validFor))
}

func (s *SMTPEmailService) SendPasswordResetCode(ctx context.Context, email, code string) error {
	return s.send(email, "Your password reset code", resetCodeBody(code))
}

func (s *SMTPEmailService) send(email, subject, body string) error {
	m := gomail.NewMessage()
	m.SetHeader("From", s.fromAddress)
	m.SetHeader("To", email)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", body)

	if err := s.dialer.DialAndSend(m); err != nil {
		s.logger.Error("failed to send email via SMTP",
			slog.String("email", pkglogger.SanitizedEmail(email)),
			slog.Any("error", err))
		return fmt.Errorf("failed to send email: %w", err)
	}

	s.logger.Info("email sent", slog.String("email", pkglogger.SanitizedEmail(email)))
	return nil
}

func unlockCodeBody(code string, validFor time.Duration) string {
	return fmt.Sprintf(`Your account was temporarily locked after repeated failed login attempts.

Enter this code to unlock it:

    %s

The code expires in %d minutes. If you did not try to log in, we
recommend changing your password once your account is unlocked.
`, code, int(validFor.Minutes()))
}

func resetCodeBody(code string) string {
	return fmt.Sprintf(`Enter this code to continue resetting your password:

    %s

If you did not request a password reset, you can ignore this email.
`, code)
}
