// internal/notify/notify.go
package notify

import (
	"context"
	"fmt"
	"time"

	apperrors "carepulse/internal/common/errors"
	"carepulse/internal/common/logger"
	"carepulse/internal/common/metrics"
	"carepulse/internal/models"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/google/uuid"
)

// Statuses
const (
	StatusSent     = "sent"
	StatusFailed   = "failed"
	StatusDisabled = "disabled"
)

const (
	channelEmail = "email"
	channelSMS   = "sms"
)

// DateTimeLayout is how appointment times read in messages.
const DateTimeLayout = "Jan 2, 2006, 3:04 PM"

type SESService interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

type SNSService interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

type Config struct {
	EmailEnabled bool
	SMSEnabled   bool
	FromEmail    string
}

type Recipient struct {
	Name  string
	Email string
	Phone string
}

type Message struct {
	Subject string
	Body    string
}

type Result struct {
	NotificationID string `json:"notificationId"`
	Status         string `json:"status"` // "sent", "failed", "disabled"
	SentAt         string `json:"sentAt"`
	EmailSent      bool   `json:"emailSent"`
	SMSSent        bool   `json:"smsSent"`
}

// Notifier delivers patient messages over email and SMS. A channel is used
// only when enabled, wired and the recipient has an address for it.
type Notifier struct {
	config    Config
	logger    logger.Logger
	sesClient SESService
	snsClient SNSService
}

func New(config Config, sesClient SESService, snsClient SNSService, log logger.Logger) *Notifier {
	return &Notifier{
		config:    config,
		logger:    log.WithFields(map[string]interface{}{"component": "notify"}),
		sesClient: sesClient,
		snsClient: snsClient,
	}
}

// Send never fails the caller. Delivery errors are logged and reported in
// the result status.
func (n *Notifier) Send(ctx context.Context, to Recipient, msg Message) *Result {
	result := &Result{
		NotificationID: uuid.New().String(),
		Status:         StatusDisabled,
		SentAt:         time.Now().UTC().Format(time.RFC3339),
	}
	failed := false

	if n.config.EmailEnabled && n.sesClient != nil && to.Email != "" {
		if err := n.sendEmail(ctx, to.Email, msg); err != nil {
			n.logFailure(channelEmail, err, map[string]interface{}{"email": to.Email})
			failed = true
		} else {
			result.EmailSent = true
			metrics.NotificationsSent.WithLabelValues(channelEmail, StatusSent).Inc()
		}
	}

	if n.config.SMSEnabled && n.snsClient != nil && to.Phone != "" {
		if err := n.sendSMS(ctx, to.Phone, msg.Body); err != nil {
			n.logFailure(channelSMS, err, map[string]interface{}{"phone": to.Phone})
			failed = true
		} else {
			result.SMSSent = true
			metrics.NotificationsSent.WithLabelValues(channelSMS, StatusSent).Inc()
		}
	}

	switch {
	case failed:
		result.Status = StatusFailed
	case result.EmailSent || result.SMSSent:
		result.Status = StatusSent
	}
	return result
}

func (n *Notifier) logFailure(channel string, err error, fields map[string]interface{}) {
	metrics.NotificationsSent.WithLabelValues(channel, StatusFailed).Inc()
	stdErr := apperrors.NewNotificationSendFailedError(channel, err)
	entry := map[string]interface{}{
		"errorCode": string(stdErr.Code),
		"channel":   channel,
		"error":     err,
	}
	for k, v := range fields {
		entry[k] = v
	}
	n.logger.Error("notification send failed", entry)
}

func (n *Notifier) sendEmail(ctx context.Context, to string, msg Message) error {
	_, err := n.sesClient.SendEmail(ctx, &ses.SendEmailInput{
		Destination: &types.Destination{
			ToAddresses: []string{to},
		},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(msg.Subject)},
			Body: &types.Body{
				Text: &types.Content{Data: aws.String(msg.Body)},
			},
		},
		Source: aws.String(n.config.FromEmail),
	})
	return err
}

func (n *Notifier) sendSMS(ctx context.Context, to, message string) error {
	_, err := n.snsClient.Publish(ctx, &sns.PublishInput{
		PhoneNumber: aws.String(to),
		Message:     aws.String(message),
	})
	return err
}

// AppointmentMessage is the text a patient receives when an appointment is
// scheduled or cancelled. Times are shown in loc, or UTC when nil.
func AppointmentMessage(purpose models.Purpose, a models.Appointment, loc *time.Location) Message {
	if loc == nil {
		loc = time.UTC
	}
	when := a.Schedule.In(loc).Format(DateTimeLayout)

	if purpose == models.PurposeCancel {
		return Message{
			Subject: "Your CarePulse appointment was cancelled",
			Body: fmt.Sprintf("Greetings from CarePulse. We regret to inform that your appointment for %s is cancelled. Reason: %s.",
				when, a.CancellationReason),
		}
	}
	return Message{
		Subject: "Your CarePulse appointment is confirmed",
		Body: fmt.Sprintf("Greetings from CarePulse. Your appointment is confirmed for %s with Dr. %s.",
			when, a.PrimaryPhysician),
	}
}
