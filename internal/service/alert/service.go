package alert

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/wayneindustries/resourcemgmt/internal/domain"
	"github.com/wayneindustries/resourcemgmt/internal/repository"
	"github.com/wayneindustries/resourcemgmt/internal/service/changefeed"
	"github.com/wayneindustries/resourcemgmt/internal/validate"
)

// ErrInvalidTransition is returned when an alert cannot move to the requested status.
var ErrInvalidTransition = errors.New("invalid alert status transition")

// Publisher announces row changes to realtime subscribers.
type Publisher interface {
	Publish(ctx context.Context, change domain.Change) error
}

// Service manages alerts. Every change is published on the alerts table, which is the
// notification feed of the dashboard.
type Service struct {
	repo      repository.AlertRepository
	publisher Publisher
	logger    *slog.Logger
	now       func() time.Time
}

// New constructs an alert service.
func New(repo repository.AlertRepository, publisher Publisher, logger *slog.Logger) Service {
	return Service{repo: repo, publisher: publisher, logger: logger, now: func() time.Time { return time.Now().UTC() }}
}

// CreateInput describes a new alert.
type CreateInput struct {
	Title      string  `json:"title" validate:"required,max=200"`
	Message    string  `json:"message" validate:"max=4000"`
	Severity   string  `json:"severity" validate:"required,severity"`
	ResourceID *string `json:"resource_id" validate:"omitempty,uuid"`
}

// Create opens an alert. Any signed-in user may report one.
func (s Service) Create(ctx context.Context, actor domain.Actor, input CreateInput) (*domain.Alert, error) {
	input.Title = validate.Text(input.Title)
	input.Message = validate.RichText(input.Message)
	if input.ResourceID != nil && *input.ResourceID == "" {
		input.ResourceID = nil
	}
	if err := validate.Struct(input); err != nil {
		return nil, err
	}
	alert := &domain.Alert{
		ID:         uuid.NewString(),
		Title:      input.Title,
		Message:    input.Message,
		Severity:   input.Severity,
		Status:     domain.AlertOpen,
		ResourceID: input.ResourceID,
	}
	if actor.UserID != "" {
		createdBy := actor.UserID
		alert.CreatedBy = &createdBy
	}
	if err := s.repo.CreateAlert(ctx, alert); err != nil {
		return nil, err
	}
	s.logger.Info("alert opened", "alert_id", alert.ID, "severity", alert.Severity)
	s.publish(ctx, domain.ChangeInsert, alert)
	return alert, nil
}

// RaiseForResource opens a system alert about resource on behalf of actor.
func (s Service) RaiseForResource(ctx context.Context, actor domain.Actor, resource domain.Resource, severity, title, message string) error {
	resourceID := resource.ID
	_, err := s.Create(ctx, actor, CreateInput{Title: title, Message: message, Severity: severity, ResourceID: &resourceID})
	return err
}

// Get returns an alert by id.
func (s Service) Get(ctx context.Context, id string) (*domain.Alert, error) {
	return s.repo.GetAlert(ctx, id)
}

// List returns alerts matching filter.
func (s Service) List(ctx context.Context, filter domain.AlertFilter) ([]domain.Alert, error) {
	if filter.Severity != "" {
		if err := validate.Var("severity", filter.Severity, "severity"); err != nil {
			return nil, err
		}
	}
	if filter.Status != "" {
		if err := validate.Var("status", filter.Status, "oneof=open acknowledged resolved"); err != nil {
			return nil, err
		}
	}
	return s.repo.ListAlerts(ctx, filter)
}

// Acknowledge moves an open alert to acknowledged.
func (s Service) Acknowledge(ctx context.Context, actor domain.Actor, id string) (*domain.Alert, error) {
	if !domain.CanManageResources(actor.Role) {
		return nil, domain.ErrForbidden
	}
	alert, err := s.repo.GetAlert(ctx, id)
	if err != nil {
		return nil, err
	}
	if alert.Status != domain.AlertOpen {
		return nil, ErrInvalidTransition
	}
	now := s.now()
	ackBy := actor.UserID
	alert.Status = domain.AlertAcknowledged
	alert.AcknowledgedBy = &ackBy
	alert.AcknowledgedAt = &now
	if err := s.transition(ctx, alert, domain.AlertOpen); err != nil {
		return nil, err
	}
	s.publish(ctx, domain.ChangeUpdate, alert)
	return alert, nil
}

// Resolve closes an open or acknowledged alert.
func (s Service) Resolve(ctx context.Context, actor domain.Actor, id string) (*domain.Alert, error) {
	if !domain.CanManageResources(actor.Role) {
		return nil, domain.ErrForbidden
	}
	alert, err := s.repo.GetAlert(ctx, id)
	if err != nil {
		return nil, err
	}
	if alert.Status == domain.AlertResolved {
		return nil, ErrInvalidTransition
	}
	from := alert.Status
	now := s.now()
	alert.Status = domain.AlertResolved
	alert.ResolvedAt = &now
	if err := s.transition(ctx, alert, from); err != nil {
		return nil, err
	}
	s.logger.Info("alert resolved", "alert_id", alert.ID, "actor_id", actor.UserID)
	s.publish(ctx, domain.ChangeUpdate, alert)
	return alert, nil
}

func (s Service) transition(ctx context.Context, alert *domain.Alert, from string) error {
	err := s.repo.UpdateAlert(ctx, alert, from)
	if errors.Is(err, repository.ErrStale) {
		return ErrInvalidTransition
	}
	return err
}

// Delete removes an alert. Admin only.
func (s Service) Delete(ctx context.Context, actor domain.Actor, id string) error {
	if !actor.IsAdmin() {
		return domain.ErrForbidden
	}
	if err := s.repo.DeleteAlert(ctx, id); err != nil {
		return err
	}
	s.publish(ctx, domain.ChangeDelete, &domain.Alert{ID: id})
	return nil
}

func (s Service) publish(ctx context.Context, changeType string, alert *domain.Alert) {
	if s.publisher == nil {
		return
	}
	var record any = alert
	if changeType == domain.ChangeDelete {
		record = nil
	}
	if err := s.publisher.Publish(ctx, changefeed.NewChange(domain.TableAlerts, changeType, alert.ID, record)); err != nil {
		s.logger.Warn("alert publish failed", "alert_id", alert.ID, "error", err)
	}
}
