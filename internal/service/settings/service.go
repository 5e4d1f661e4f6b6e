package settings

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/wayneindustries/resourcemgmt/internal/domain"
	"github.com/wayneindustries/resourcemgmt/internal/repository"
	"github.com/wayneindustries/resourcemgmt/internal/service/changefeed"
	"github.com/wayneindustries/resourcemgmt/internal/validate"
)

// Publisher announces row changes to realtime subscribers.
type Publisher interface {
	Publish(ctx context.Context, change domain.Change) error
}

// Service reads and stores per-user preferences.
type Service struct {
	repo      repository.SettingsRepository
	publisher Publisher
	logger    *slog.Logger
	now       func() time.Time
}

// New constructs a settings service.
func New(repo repository.SettingsRepository, publisher Publisher, logger *slog.Logger) Service {
	return Service{repo: repo, publisher: publisher, logger: logger, now: func() time.Time { return time.Now().UTC() }}
}

// Patch is a partial settings update. Nil fields keep their current value.
type Patch struct {
	Theme              *string `json:"theme" validate:"omitempty,theme"`
	Language           *string `json:"language" validate:"omitempty,min=2,max=8,alpha"`
	EmailNotifications *bool   `json:"email_notifications"`
	PushNotifications  *bool   `json:"push_notifications"`
	AlertThreshold     *string `json:"alert_threshold" validate:"omitempty,severity"`
}

// Get returns the stored settings for userID, or the defaults when none were saved.
func (s Service) Get(ctx context.Context, userID string) (domain.UserSettings, error) {
	stored, err := s.repo.GetSettings(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return domain.DefaultSettings(userID), nil
	}
	if err != nil {
		return domain.UserSettings{}, err
	}
	return *stored, nil
}

// Update applies patch on top of the current settings and stores the result.
func (s Service) Update(ctx context.Context, userID string, patch Patch) (domain.UserSettings, error) {
	if patch.Language != nil {
		lang := strings.ToLower(strings.TrimSpace(*patch.Language))
		patch.Language = &lang
	}
	if err := validate.Struct(patch); err != nil {
		return domain.UserSettings{}, err
	}
	current, err := s.Get(ctx, userID)
	if err != nil {
		return domain.UserSettings{}, err
	}
	if patch.Theme != nil {
		current.Theme = *patch.Theme
	}
	if patch.Language != nil {
		current.Language = *patch.Language
	}
	if patch.EmailNotifications != nil {
		current.EmailNotifications = *patch.EmailNotifications
	}
	if patch.PushNotifications != nil {
		current.PushNotifications = *patch.PushNotifications
	}
	if patch.AlertThreshold != nil {
		current.AlertThreshold = *patch.AlertThreshold
	}
	current.UpdatedAt = s.now()
	if err := s.repo.UpsertSettings(ctx, &current); err != nil {
		return domain.UserSettings{}, err
	}
	if s.publisher != nil {
		if err := s.publisher.Publish(ctx, changefeed.NewChange(domain.TableSettings, domain.ChangeUpdate, userID, current)); err != nil {
			s.logger.Warn("settings publish failed", "user_id", userID, "error", err)
		}
	}
	return current, nil
}
