package resource

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/wayneindustries/resourcemgmt/internal/domain"
	"github.com/wayneindustries/resourcemgmt/internal/repository"
	"github.com/wayneindustries/resourcemgmt/internal/service/changefeed"
	"github.com/wayneindustries/resourcemgmt/internal/validate"
)

var (
	// ErrDuplicateSerial is returned when another resource already uses the serial number.
	ErrDuplicateSerial = errors.New("serial number already in use")
	// ErrUnknownAssignee is returned when assigning to a profile that does not exist.
	ErrUnknownAssignee = errors.New("assignee not found")
)

// Publisher announces row changes to realtime subscribers.
type Publisher interface {
	Publish(ctx context.Context, change domain.Change) error
}

// AccessRecorder writes access log entries.
type AccessRecorder interface {
	Record(ctx context.Context, entry domain.AccessLog)
}

// AlertRaiser opens alerts about resources.
type AlertRaiser interface {
	RaiseForResource(ctx context.Context, actor domain.Actor, resource domain.Resource, severity, title, message string) error
}

// Service manages tracked resources.
type Service struct {
	repo      repository.ResourceRepository
	profiles  repository.ProfileRepository
	publisher Publisher
	audit     AccessRecorder
	alerts    AlertRaiser
	logger    *slog.Logger
}

// New constructs a resource service.
func New(repo repository.ResourceRepository, profiles repository.ProfileRepository, publisher Publisher, audit AccessRecorder, alerts AlertRaiser, logger *slog.Logger) Service {
	return Service{repo: repo, profiles: profiles, publisher: publisher, audit: audit, alerts: alerts, logger: logger}
}

// CreateInput describes a new resource.
type CreateInput struct {
	Name         string     `json:"name" validate:"required,max=120"`
	Type         string     `json:"type" validate:"required,resource_type"`
	Status       string     `json:"status" validate:"omitempty,resource_status"`
	Location     string     `json:"location" validate:"max=200"`
	SerialNumber string     `json:"serial_number" validate:"omitempty,max=64,serial"`
	Description  string     `json:"description" validate:"max=4000"`
	AssignedTo   *string    `json:"assigned_to" validate:"omitempty,uuid"`
	PurchaseDate *time.Time `json:"purchase_date"`
	ValueCents   *int64     `json:"value_cents" validate:"omitempty,gte=0"`
}

// UpdateInput is a partial update. Nil fields are left unchanged.
type UpdateInput struct {
	Name         *string    `json:"name" validate:"omitempty,min=1,max=120"`
	Type         *string    `json:"type" validate:"omitempty,resource_type"`
	Status       *string    `json:"status" validate:"omitempty,resource_status"`
	Location     *string    `json:"location" validate:"omitempty,max=200"`
	SerialNumber *string    `json:"serial_number" validate:"omitempty,max=64"`
	Description  *string    `json:"description" validate:"omitempty,max=4000"`
	PurchaseDate *time.Time `json:"purchase_date"`
	ValueCents   *int64     `json:"value_cents" validate:"omitempty,gte=0"`
}

// Create stores a new resource.
func (s Service) Create(ctx context.Context, actor domain.Actor, input CreateInput) (*domain.Resource, error) {
	if err := s.authorize(ctx, actor, "resource_create", nil); err != nil {
		return nil, err
	}
	input.Name = validate.Text(input.Name)
	input.Location = validate.Text(input.Location)
	input.SerialNumber = validate.Text(input.SerialNumber)
	input.Description = validate.RichText(input.Description)
	if err := validate.Struct(input); err != nil {
		return nil, err
	}
	if input.Status == "" {
		input.Status = domain.StatusAvailable
	}
	if err := s.checkAssignee(ctx, input.AssignedTo); err != nil {
		return nil, err
	}
	res := &domain.Resource{
		ID:           uuid.NewString(),
		Name:         input.Name,
		Type:         input.Type,
		Status:       input.Status,
		Location:     input.Location,
		SerialNumber: input.SerialNumber,
		Description:  input.Description,
		AssignedTo:   input.AssignedTo,
		PurchaseDate: input.PurchaseDate,
		ValueCents:   input.ValueCents,
		CreatedBy:    &actor.UserID,
	}
	if err := s.repo.CreateResource(ctx, res); err != nil {
		return nil, mapError(err)
	}
	s.afterMutation(ctx, actor, "resource_create", domain.ChangeInsert, res)
	if res.Status == domain.StatusMaintenance {
		s.raiseMaintenance(ctx, actor, *res)
	}
	return res, nil
}

// Get returns a resource by id.
func (s Service) Get(ctx context.Context, id string) (*domain.Resource, error) {
	return s.repo.GetResource(ctx, id)
}

// List returns resources matching filter.
func (s Service) List(ctx context.Context, filter domain.ResourceFilter) ([]domain.Resource, error) {
	if filter.Type != "" {
		if err := validate.Var("type", filter.Type, "resource_type"); err != nil {
			return nil, err
		}
	}
	if filter.Status != "" {
		if err := validate.Var("status", filter.Status, "resource_status"); err != nil {
			return nil, err
		}
	}
	if filter.AssignedTo != "" {
		if err := validate.Var("assigned_to", filter.AssignedTo, "uuid"); err != nil {
			return nil, err
		}
	}
	filter.Search = validate.LikePattern(validate.Text(filter.Search))
	return s.repo.ListResources(ctx, filter)
}

// Update applies a partial update.
func (s Service) Update(ctx context.Context, actor domain.Actor, id string, input UpdateInput) (*domain.Resource, error) {
	if err := s.authorize(ctx, actor, "resource_update", &id); err != nil {
		return nil, err
	}
	sanitize(&input)
	if err := validate.Struct(input); err != nil {
		return nil, err
	}
	if input.SerialNumber != nil && *input.SerialNumber != "" {
		if err := validate.Var("serial_number", *input.SerialNumber, "serial"); err != nil {
			return nil, err
		}
	}
	res, err := s.repo.GetResource(ctx, id)
	if err != nil {
		return nil, err
	}
	previousStatus := res.Status
	if input.Name != nil {
		res.Name = *input.Name
	}
	if input.Type != nil {
		res.Type = *input.Type
	}
	if input.Status != nil {
		res.Status = *input.Status
	}
	if input.Location != nil {
		res.Location = *input.Location
	}
	if input.SerialNumber != nil {
		res.SerialNumber = *input.SerialNumber
	}
	if input.Description != nil {
		res.Description = *input.Description
	}
	if input.PurchaseDate != nil {
		res.PurchaseDate = input.PurchaseDate
	}
	if input.ValueCents != nil {
		res.ValueCents = input.ValueCents
	}
	if err := s.repo.UpdateResource(ctx, res); err != nil {
		return nil, mapError(err)
	}
	s.afterMutation(ctx, actor, "resource_update", domain.ChangeUpdate, res)
	if previousStatus != domain.StatusMaintenance && res.Status == domain.StatusMaintenance {
		s.raiseMaintenance(ctx, actor, *res)
	}
	return res, nil
}

// Delete removes a resource.
func (s Service) Delete(ctx context.Context, actor domain.Actor, id string) error {
	if err := s.authorize(ctx, actor, "resource_delete", &id); err != nil {
		return err
	}
	res, err := s.repo.GetResource(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteResource(ctx, id); err != nil {
		return err
	}
	details, _ := json.Marshal(map[string]string{"resource_id": res.ID, "name": res.Name})
	s.audit.Record(ctx, domain.AccessLog{UserID: &actor.UserID, Action: "resource_delete", Outcome: domain.OutcomeGranted, Details: details})
	s.publish(ctx, changefeed.NewChange(domain.TableResources, domain.ChangeDelete, res.ID, nil))
	s.logger.Info("resource deleted", "resource_id", res.ID, "actor_id", actor.UserID)
	return nil
}

// Assign hands the resource to profileID, or returns it to the pool when profileID is nil.
// Available resources become in use on assignment and in-use resources become available
// when unassigned.
func (s Service) Assign(ctx context.Context, actor domain.Actor, id string, profileID *string) (*domain.Resource, error) {
	if err := s.authorize(ctx, actor, "resource_assign", &id); err != nil {
		return nil, err
	}
	if profileID != nil && *profileID == "" {
		profileID = nil
	}
	if err := s.checkAssignee(ctx, profileID); err != nil {
		return nil, err
	}
	res, err := s.repo.GetResource(ctx, id)
	if err != nil {
		return nil, err
	}
	res.AssignedTo = profileID
	switch {
	case profileID != nil && res.Status == domain.StatusAvailable:
		res.Status = domain.StatusInUse
	case profileID == nil && res.Status == domain.StatusInUse:
		res.Status = domain.StatusAvailable
	}
	if err := s.repo.UpdateResource(ctx, res); err != nil {
		return nil, mapError(err)
	}
	s.afterMutation(ctx, actor, "resource_assign", domain.ChangeUpdate, res)
	return res, nil
}

// SetImage points the resource at an uploaded image object.
func (s Service) SetImage(ctx context.Context, actor domain.Actor, id, objectKey string) (*domain.Resource, error) {
	if err := s.authorize(ctx, actor, "resource_image", &id); err != nil {
		return nil, err
	}
	res, err := s.repo.GetResource(ctx, id)
	if err != nil {
		return nil, err
	}
	res.ImagePath = objectKey
	if err := s.repo.UpdateResource(ctx, res); err != nil {
		return nil, mapError(err)
	}
	s.afterMutation(ctx, actor, "resource_image", domain.ChangeUpdate, res)
	return res, nil
}

func (s Service) authorize(ctx context.Context, actor domain.Actor, action string, resourceID *string) error {
	if domain.CanManageResources(actor.Role) {
		return nil
	}
	var userID *string
	if actor.UserID != "" {
		userID = &actor.UserID
	}
	details, _ := json.Marshal(map[string]string{"role": actor.Role})
	entry := domain.AccessLog{UserID: userID, Action: action, Outcome: domain.OutcomeDenied, Details: details}
	if resourceID != nil {
		if _, err := uuid.Parse(*resourceID); err == nil {
			entry.ResourceID = resourceID
		}
	}
	s.audit.Record(ctx, entry)
	return domain.ErrForbidden
}

func (s Service) checkAssignee(ctx context.Context, profileID *string) error {
	if profileID == nil {
		return nil
	}
	if err := validate.Var("assigned_to", *profileID, "uuid"); err != nil {
		return err
	}
	if _, err := s.profiles.GetProfile(ctx, *profileID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUnknownAssignee
		}
		return err
	}
	return nil
}

func (s Service) afterMutation(ctx context.Context, actor domain.Actor, action, changeType string, res *domain.Resource) {
	resourceID := res.ID
	s.audit.Record(ctx, domain.AccessLog{UserID: &actor.UserID, ResourceID: &resourceID, Action: action, Outcome: domain.OutcomeGranted})
	s.publish(ctx, changefeed.NewChange(domain.TableResources, changeType, res.ID, res))
}

func (s Service) publish(ctx context.Context, change domain.Change) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, change); err != nil {
		s.logger.Warn("resource publish failed", "resource_id", change.RecordID, "error", err)
	}
}

func (s Service) raiseMaintenance(ctx context.Context, actor domain.Actor, res domain.Resource) {
	if s.alerts == nil {
		return
	}
	title := fmt.Sprintf("%s moved to maintenance", res.Name)
	message := fmt.Sprintf("Resource %s (%s) is under maintenance and unavailable.", res.Name, res.Type)
	if err := s.alerts.RaiseForResource(ctx, actor, res, domain.SeverityMedium, title, message); err != nil {
		s.logger.Warn("maintenance alert failed", "resource_id", res.ID, "error", err)
	}
}

func sanitize(input *UpdateInput) {
	clean := func(v *string, fn func(string) string) *string {
		if v == nil {
			return nil
		}
		out := fn(*v)
		return &out
	}
	input.Name = clean(input.Name, validate.Text)
	input.Location = clean(input.Location, validate.Text)
	input.SerialNumber = clean(input.SerialNumber, validate.Text)
	input.Description = clean(input.Description, validate.RichText)
}

func mapError(err error) error {
	if errors.Is(err, repository.ErrConflict) {
		return ErrDuplicateSerial
	}
	return err
}
