package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/BradenHooton/lumen/internal/models"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
)

// LockoutNotifier tells a user their account was locked
type LockoutNotifier interface {
	NotifyLocked(ctx context.Context, user *models.User, until time.Time) error
}

// SESSender is the subset of the SES client used for sending mail
type SESSender interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

// AWSSESLockoutNotifier sends lockout notices using AWS SES
type AWSSESLockoutNotifier struct {
	client      SESSender
	fromAddress string
	logger      *slog.Logger
}

// NewAWSSESLockoutNotifier creates a notifier from the default AWS credential chain
func NewAWSSESLockoutNotifier(ctx context.Context, region, fromAddress string, logger *slog.Logger) (*AWSSESLockoutNotifier, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return NewAWSSESLockoutNotifierWithClient(ses.NewFromConfig(cfg), fromAddress, logger), nil
}

func NewAWSSESLockoutNotifierWithClient(client SESSender, fromAddress string, logger *slog.Logger) *AWSSESLockoutNotifier {
	return &AWSSESLockoutNotifier{
		client:      client,
		fromAddress: fromAddress,
		logger:      logger,
	}
}

// NotifyLocked emails the user. Users without an email address are skipped.
func (n *AWSSESLockoutNotifier) NotifyLocked(ctx context.Context, user *models.User, until time.Time) error {
	if user == nil || user.Email == "" {
		return nil
	}

	unlockAt := until.UTC().Format("15:04 MST on Jan 2")

	htmlBody := fmt.Sprintf(`
<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <style>
        body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; }
        .container { max-width: 600px; margin: 0 auto; padding: 20px; }
        .warning { background-color: #fff3cd; padding: 10px; border-left: 4px solid #ffc107; margin: 10px 0; }
        .footer { color: #666; font-size: 12px; margin-top: 20px; padding-top: 20px; border-top: 1px solid #eee; }
    </style>
</head>
<body>
    <div class="container">
        <h1>Your learning account was locked</h1>
        <p>Hello %s,</p>
        <div class="warning">
            We saw several failed sign-in attempts for <strong>%s</strong>. Sign-in is paused until %s.
        </div>
        <p>If these attempts were not yours, contact your administrator.</p>
        <div class="footer">
            <p>This is an automated message. Please do not reply to this email.</p>
        </div>
    </div>
</body>
</html>
`, user.Name, user.Username, unlockAt)

	textBody := fmt.Sprintf(`Your learning account was locked

Hello %s,

We saw several failed sign-in attempts for %s. Sign-in is paused until %s.

If these attempts were not yours, contact your administrator.

This is an automated message. Please do not reply to this email.
`, user.Name, user.Username, unlockAt)

	input := &ses.SendEmailInput{
		Source: aws.String(n.fromAddress),
		Destination: &types.Destination{
			ToAddresses: []string{user.Email},
		},
		Message: &types.Message{
			Subject: &types.Content{
				Data: aws.String("Your account has been temporarily locked"),
			},
			Body: &types.Body{
				Html: &types.Content{
					Data: aws.String(htmlBody),
				},
				Text: &types.Content{
					Data: aws.String(textBody),
				},
			},
		},
	}

	result, err := n.client.SendEmail(ctx, input)
	if err != nil {
		n.logger.Error("failed to send lockout email via SES",
			slog.String("user_id", user.ID),
			slog.Any("error", err))
		return fmt.Errorf("failed to send email: %w", err)
	}

	messageID := ""
	if result != nil && result.MessageId != nil {
		messageID = *result.MessageId
	}
	n.logger.Info("lockout email sent",
		slog.String("user_id", user.ID),
		slog.String("message_id", messageID))

	return nil
}

// LogLockoutNotifier records lockouts in the log when email is disabled
type LogLockoutNotifier struct {
	logger *slog.Logger
}

func NewLogLockoutNotifier(logger *slog.Logger) *LogLockoutNotifier {
	return &LogLockoutNotifier{logger: logger}
}

func (n *LogLockoutNotifier) NotifyLocked(ctx context.Context, user *models.User, until time.Time) error {
	if user == nil {
		return nil
	}
	n.logger.Info("lockout notice suppressed: email disabled",
		slog.String("user_id", user.ID),
		slog.Time("locked_until", until))
	return nil
}
