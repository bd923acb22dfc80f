package consumers

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/yashrajoria/vm-marketplace/pkg/events"
	"github.com/yashrajoria/vm-marketplace/services/auth-service/repository"
)

type providerApproved struct {
	ApplicationID string `json:"application_id"`
	UserID        string `json:"user_id"`
	Email         string `json:"email"`
	CompanyName   string `json:"company_name"`
}

// ProviderConsumer promotes accounts whose provider application was approved.
type ProviderConsumer struct {
	repo   repository.UserRepository
	logger *zap.Logger
}

func NewProviderConsumer(repo repository.UserRepository, logger *zap.Logger) *ProviderConsumer {
	return &ProviderConsumer{repo: repo, logger: logger}
}

// Handle is an events.Handler. Events of other types are acknowledged and
// ignored, as are approvals that match no plain user.
func (pc *ProviderConsumer) Handle(ctx context.Context, env events.Envelope) error {
	if env.Type != events.ProviderApproved {
		return nil
	}

	var msg providerApproved
	if err := env.Bind(&msg); err != nil {
		pc.logger.Error("dropping malformed provider approval", zap.Error(err))
		return nil
	}

	userID, _ := uuid.Parse(msg.UserID)
	email := strings.ToLower(strings.TrimSpace(msg.Email))
	if userID == uuid.Nil && email == "" {
		pc.logger.Warn("provider approval without user reference", zap.String("application_id", msg.ApplicationID))
		return nil
	}

	n, err := pc.repo.PromoteToProvider(ctx, userID, email)
	if err != nil {
		return err
	}
	if n == 0 {
		pc.logger.Info("no user promoted for provider approval",
			zap.String("application_id", msg.ApplicationID),
			zap.String("email", email),
		)
		return nil
	}
	pc.logger.Info("user promoted to provider",
		zap.String("application_id", msg.ApplicationID),
		zap.String("company", msg.CompanyName),
	)
	return nil
}

// Run consumes until ctx is cancelled.
func (pc *ProviderConsumer) Run(ctx context.Context, sub events.Subscriber) {
	if err := sub.Run(ctx, pc.Handle); err != nil {
		pc.logger.Error("provider approval consumer stopped", zap.Error(err))
	}
}
