package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	awspkg "github.com/yashrajoria/vm-marketplace/pkg/aws"
	"github.com/yashrajoria/vm-marketplace/pkg/events"
	"github.com/yashrajoria/vm-marketplace/services/notification-service/models"
	"github.com/yashrajoria/vm-marketplace/services/notification-service/repository"
	"github.com/yashrajoria/vm-marketplace/services/notification-service/sender"
	"github.com/yashrajoria/vm-marketplace/services/notification-service/templates"
)

type eventConfig struct {
	tmplFile string
	subject  string
}

var eventConfigs = map[string]eventConfig{
	events.UserRegistered:   {tmplFile: "welcome.html", subject: "Welcome to VM Marketplace"},
	events.ProviderApproved: {tmplFile: "provider_approved.html", subject: "Your provider application was approved"},
	events.PaymentSucceeded: {tmplFile: "payment_succeeded.html", subject: "Payment received"},
	events.PaymentFailed:    {tmplFile: "payment_failed.html", subject: "Payment failed"},
	events.InstanceDeployed: {tmplFile: "instance_deployed.html", subject: "Your VM is ready"},
	events.InstanceFailed:   {tmplFile: "instance_failed.html", subject: "VM deployment failed"},
}

var (
	errMalformed = errors.New("malformed payload")
	errNoContact = errors.New("no contact for user")
)

// templateData is shared by every template; each uses the fields it needs.
type templateData struct {
	AppURL      string
	Name        string
	CompanyName string
	Amount      string
	PaymentID   string
	OrderID     string
	InstanceID  string
	IPAddress   string
	Reason      string
}

type message struct {
	userID    string
	recipient string
	data      templateData
}

type Options struct {
	AppURL   string
	Attempts int
	Backoff  time.Duration
}

type NotificationService struct {
	repo      repository.NotificationRepository
	email     sender.EmailSender
	templates map[string]*template.Template
	metrics   *awspkg.MetricsClient
	logger    *zap.Logger
	opts      Options
}

func NewNotificationService(
	repo repository.NotificationRepository,
	email sender.EmailSender,
	metrics *awspkg.MetricsClient,
	logger *zap.Logger,
	opts Options,
) (*NotificationService, error) {
	tmpls := make(map[string]*template.Template, len(eventConfigs))
	for eventType, cfg := range eventConfigs {
		tmpl, err := template.ParseFS(templates.FS, "layout.html", cfg.tmplFile)
		if err != nil {
			return nil, fmt.Errorf("failed to parse template for %s: %w", eventType, err)
		}
		tmpls[eventType] = tmpl
	}
	if opts.Attempts < 1 {
		opts.Attempts = 1
	}
	opts.AppURL = strings.TrimRight(opts.AppURL, "/")
	return &NotificationService{
		repo:      repo,
		email:     email,
		templates: tmpls,
		metrics:   metrics,
		logger:    logger,
		opts:      opts,
	}, nil
}

// Handle is an events.Handler. Unknown and malformed events are dropped;
// storage errors are returned so the event is redelivered.
func (s *NotificationService) Handle(ctx context.Context, env events.Envelope) error {
	cfg, ok := eventConfigs[env.Type]
	if !ok {
		return nil
	}
	log := s.logger.With(zap.String("event_id", env.ID), zap.String("event_type", env.Type))

	if env.ID != "" {
		done, err := s.repo.Delivered(ctx, env.ID)
		if err != nil {
			return fmt.Errorf("check delivery: %w", err)
		}
		if done {
			log.Debug("notification already sent")
			return nil
		}
	}

	msg, err := s.compose(ctx, env)
	switch {
	case errors.Is(err, errMalformed):
		log.Error("dropping malformed event", zap.Error(err))
		return nil
	case errors.Is(err, errNoContact):
		log.Warn("no contact for user, skipping notification", zap.String("user_id", msg.userID))
		s.save(ctx, &models.NotificationLog{
			EventID: env.ID,
			UserID:  msg.userID,
			Type:    env.Type,
			Channel: models.ChannelEmail,
			Subject: cfg.subject,
			Status:  models.StatusSkipped,
			Error:   err.Error(),
		})
		return nil
	case err != nil:
		return err
	}

	var body bytes.Buffer
	if err := s.templates[env.Type].ExecuteTemplate(&body, "layout", msg.data); err != nil {
		log.Error("template render failed", zap.Error(err))
		return nil
	}

	entry, err := s.sendWithRetry(ctx, msg.recipient, cfg.subject, body.String(), log)
	if err != nil {
		return err
	}
	entry.EventID = env.ID
	entry.UserID = msg.userID
	entry.Type = env.Type
	s.save(ctx, entry)
	return nil
}

func (s *NotificationService) compose(ctx context.Context, env events.Envelope) (message, error) {
	msg := message{data: templateData{AppURL: s.opts.AppURL}}

	switch env.Type {
	case events.UserRegistered:
		var ev models.UserRegisteredEvent
		if err := env.Bind(&ev); err != nil {
			return msg, fmt.Errorf("%w: %v", errMalformed, err)
		}
		if ev.UserID == "" || ev.Email == "" {
			return msg, fmt.Errorf("%w: user_id and email are required", errMalformed)
		}
		contact := &models.Contact{UserID: ev.UserID, Email: ev.Email, Name: ev.Name}
		if err := s.repo.UpsertContact(ctx, contact); err != nil {
			return msg, fmt.Errorf("save contact: %w", err)
		}
		msg.userID, msg.recipient, msg.data.Name = ev.UserID, ev.Email, ev.Name
		return msg, nil

	case events.ProviderApproved:
		var ev models.ProviderApprovedEvent
		if err := env.Bind(&ev); err != nil {
			return msg, fmt.Errorf("%w: %v", errMalformed, err)
		}
		msg.userID, msg.data.CompanyName = ev.UserID, ev.CompanyName
		if ev.Email != "" {
			msg.recipient = ev.Email
			return msg, nil
		}
		return s.withContact(ctx, msg)

	case events.PaymentSucceeded, events.PaymentFailed:
		var ev models.PaymentEvent
		if err := env.Bind(&ev); err != nil {
			return msg, fmt.Errorf("%w: %v", errMalformed, err)
		}
		msg.userID = ev.UserID
		msg.data.PaymentID = ev.PaymentID
		msg.data.Amount = FormatAmount(ev.Amount, ev.Currency)
		if ev.OrderID != nil {
			msg.data.OrderID = *ev.OrderID
		}
		return s.withContact(ctx, msg)

	case events.InstanceDeployed, events.InstanceFailed:
		var ev models.InstanceEvent
		if err := env.Bind(&ev); err != nil {
			return msg, fmt.Errorf("%w: %v", errMalformed, err)
		}
		msg.userID = ev.UserID
		msg.data.InstanceID = ev.InstanceID
		msg.data.OrderID = ev.OrderID
		msg.data.IPAddress = ev.IPAddress
		msg.data.Reason = ev.Reason
		return s.withContact(ctx, msg)
	}
	return msg, fmt.Errorf("%w: unsupported event type %s", errMalformed, env.Type)
}

func (s *NotificationService) withContact(ctx context.Context, msg message) (message, error) {
	if msg.userID == "" {
		return msg, fmt.Errorf("%w: user_id is required", errMalformed)
	}
	contact, err := s.repo.FindContact(ctx, msg.userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return msg, errNoContact
	}
	if err != nil {
		return msg, fmt.Errorf("find contact: %w", err)
	}
	msg.recipient = contact.Email
	if msg.data.Name == "" {
		msg.data.Name = contact.Name
	}
	return msg, nil
}

// sendWithRetry returns the outcome to log. A context ended before a send
// succeeded is returned as an error instead, so the event is redelivered.
func (s *NotificationService) sendWithRetry(ctx context.Context, to, subject, body string, log *zap.Logger) (*models.NotificationLog, error) {
	var lastErr error
	var result sender.SendResult
	attempts := 0

	for attempts < s.opts.Attempts {
		if attempts > 0 {
			select {
			case <-ctx.Done():
				lastErr = ctx.Err()
			case <-time.After(time.Duration(attempts) * s.opts.Backoff):
			}
			if ctx.Err() != nil {
				break
			}
		}
		attempts++

		result, lastErr = s.email.SendEmail(ctx, to, subject, body)
		if lastErr == nil {
			break
		}
		log.Warn("send attempt failed", zap.Int("attempt", attempts), zap.Error(lastErr))
	}
	if lastErr != nil && ctx.Err() != nil {
		log.Info("notification interrupted", zap.Int("attempts", attempts), zap.Error(lastErr))
		return nil, fmt.Errorf("send notification: %w", ctx.Err())
	}

	entry := &models.NotificationLog{
		Recipient: to,
		Channel:   models.ChannelEmail,
		Subject:   subject,
		Status:    models.StatusSent,
		Attempts:  attempts,
	}
	if lastErr != nil {
		entry.Status = models.StatusFailed
		entry.Error = lastErr.Error()
		_ = s.metrics.RecordCount(ctx, awspkg.MetricNotificationFailed, nil)
	} else {
		_ = s.metrics.RecordCount(ctx, awspkg.MetricNotificationsSent, nil)
	}

	log.Info("notification processed",
		zap.String("status", entry.Status),
		zap.Int("attempts", attempts),
		zap.String("message_id", result.MessageID),
	)
	return entry, nil
}

func (s *NotificationService) save(ctx context.Context, entry *models.NotificationLog) {
	if err := s.repo.SaveLog(ctx, entry); err != nil {
		s.logger.Error("failed to save notification log", zap.Error(err))
	}
}

func (s *NotificationService) GetLogs(ctx context.Context, filter models.NotificationFilter) ([]models.NotificationLog, int64, error) {
	return s.repo.GetLogs(ctx, filter)
}

// FormatAmount renders minor units as "159.98 USD".
func FormatAmount(minor int64, currency string) string {
	sign := ""
	if minor < 0 {
		sign, minor = "-", -minor
	}
	cur := strings.ToUpper(currency)
	if cur == "" {
		cur = "USD"
	}
	return fmt.Sprintf("%s%d.%02d %s", sign, minor/100, minor%100, cur)
}

// Run consumes until ctx is cancelled.
func (s *NotificationService) Run(ctx context.Context, sub events.Subscriber) {
	if err := sub.Run(ctx, s.Handle); err != nil {
		s.logger.Error("notification consumer stopped", zap.Error(err))
	}
}
