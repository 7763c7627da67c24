package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/BradenHooton/authguard/pkg/logger"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
)

// EmailService sends the local provider's account emails
type EmailService interface {
	SendPasswordResetEmail(ctx context.Context, email, link string) error
	SendVerificationEmail(ctx context.Context, email, link string) error
}

// sesAPI is the subset of the SES client used here
type sesAPI interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

// AWSSESEmailService sends emails using AWS SES
type AWSSESEmailService struct {
	client      sesAPI
	fromAddress string
	logger      *slog.Logger
}

// NewAWSSESEmailService creates a new AWS SES email service
func NewAWSSESEmailService(ctx context.Context, region, fromAddress string, logger *slog.Logger) (*AWSSESEmailService, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &AWSSESEmailService{
		client:      ses.NewFromConfig(cfg),
		fromAddress: fromAddress,
		logger:      logger,
	}, nil
}

// SendPasswordResetEmail sends a password reset link
func (s *AWSSESEmailService) SendPasswordResetEmail(ctx context.Context, email, link string) error {
	text := fmt.Sprintf(`Reset your password

We received a request to reset the password for your account. Open the link below to choose a new password:

%s

This link expires soon. If you did not request a reset you can ignore this email.
`, link)
	html := fmt.Sprintf(`<p>We received a request to reset the password for your account.</p>
<p><a href="%s">Choose a new password</a></p>
<p>This link expires soon. If you did not request a reset you can ignore this email.</p>`, link)

	return s.send(ctx, email, "Reset your password", html, text, "password_reset")
}

// SendVerificationEmail sends an email address confirmation link
func (s *AWSSESEmailService) SendVerificationEmail(ctx context.Context, email, link string) error {
	text := fmt.Sprintf(`Verify your email address

Thanks for signing up. Confirm your email address by opening the link below:

%s

If you did not create this account you can ignore this email.
`, link)
	html := fmt.Sprintf(`<p>Thanks for signing up.</p>
<p><a href="%s">Verify email address</a></p>
<p>If you did not create this account you can ignore this email.</p>`, link)

	return s.send(ctx, email, "Verify your email address", html, text, "verification")
}

func (s *AWSSESEmailService) send(ctx context.Context, to, subject, html, text, kind string) error {
	input := &ses.SendEmailInput{
		Source: aws.String(s.fromAddress),
		Destination: &types.Destination{
			ToAddresses: []string{to},
		},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(subject)},
			Body: &types.Body{
				Html: &types.Content{Data: aws.String(html)},
				Text: &types.Content{Data: aws.String(text)},
			},
		},
	}

	result, err := s.client.SendEmail(ctx, input)
	if err != nil {
		s.logger.Error("failed to send email via SES",
			slog.String("kind", kind),
			slog.String("email", logger.SanitizedEmail(to)),
			slog.Any("error", err))
		return fmt.Errorf("failed to send %s email: %w", kind, err)
	}

	s.logger.Info("email sent",
		slog.String("kind", kind),
		slog.String("email", logger.SanitizedEmail(to)),
		slog.String("message_id", aws.ToString(result.MessageId)))

	return nil
}

// LogEmailService writes emails to the log instead of sending them. Used in
// development when no SES sender is configured. Links are redacted in production.
type LogEmailService struct {
	logger *slog.Logger
	env    string
}

// NewLogEmailService creates a new LogEmailService
func NewLogEmailService(logger *slog.Logger, env string) *LogEmailService {
	return &LogEmailService{logger: logger, env: env}
}

func (s *LogEmailService) SendPasswordResetEmail(ctx context.Context, email, link string) error {
	s.logger.InfoContext(ctx, "password reset email (not sent)",
		slog.String("email", logger.SanitizedEmail(email)),
		logger.RedactedAttr("link", link, s.env))
	return nil
}

func (s *LogEmailService) SendVerificationEmail(ctx context.Context, email, link string) error {
	s.logger.InfoContext(ctx, "verification email (not sent)",
		slog.String("email", logger.SanitizedEmail(email)),
		logger.RedactedAttr("link", link, s.env))
	return nil
}
