package profile

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/wayneindustries/resourcemgmt/internal/domain"
	"github.com/wayneindustries/resourcemgmt/internal/repository"
	"github.com/wayneindustries/resourcemgmt/internal/service/changefeed"
	"github.com/wayneindustries/resourcemgmt/internal/validate"
)

// ErrSelfDemotion prevents an admin from removing their own admin role.
var ErrSelfDemotion = errors.New("admins cannot change their own role")

// Publisher announces row changes to realtime subscribers.
type Publisher interface {
	Publish(ctx context.Context, change domain.Change) error
}

// AccessRecorder writes access log entries.
type AccessRecorder interface {
	Record(ctx context.Context, entry domain.AccessLog)
}

// Service manages profiles.
type Service struct {
	repo      repository.ProfileRepository
	publisher Publisher
	audit     AccessRecorder
	logger    *slog.Logger
}

// New constructs a profile service.
func New(repo repository.ProfileRepository, publisher Publisher, audit AccessRecorder, logger *slog.Logger) Service {
	return Service{repo: repo, publisher: publisher, audit: audit, logger: logger}
}

// UpdateInput lists the fields a user may change on their own profile. Nil fields are kept.
type UpdateInput struct {
	FullName   *string `json:"full_name" validate:"omitempty,min=1,max=120"`
	Department *string `json:"department" validate:"omitempty,max=120"`
}

// Get returns a profile by id.
func (s Service) Get(ctx context.Context, id string) (*domain.Profile, error) {
	return s.repo.GetProfile(ctx, id)
}

// List returns profiles matching filter.
func (s Service) List(ctx context.Context, filter domain.ProfileFilter) ([]domain.Profile, error) {
	if filter.Role != "" {
		if err := validate.Var("role", filter.Role, "role"); err != nil {
			return nil, err
		}
	}
	filter.Search = validate.LikePattern(validate.Text(filter.Search))
	return s.repo.ListProfiles(ctx, filter)
}

// UpdateOwn applies input to the caller's own profile.
func (s Service) UpdateOwn(ctx context.Context, userID string, input UpdateInput) (*domain.Profile, error) {
	if input.FullName != nil {
		cleaned := validate.Text(*input.FullName)
		input.FullName = &cleaned
	}
	if input.Department != nil {
		cleaned := validate.Text(*input.Department)
		input.Department = &cleaned
	}
	if err := validate.Struct(input); err != nil {
		return nil, err
	}
	profile, err := s.repo.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	if input.FullName != nil {
		profile.FullName = *input.FullName
	}
	if input.Department != nil {
		profile.Department = *input.Department
	}
	if err := s.repo.UpdateProfile(ctx, profile); err != nil {
		return nil, err
	}
	s.publish(ctx, profile)
	return profile, nil
}

// SetRole changes target's role. Only admins may do this and never to themselves.
func (s Service) SetRole(ctx context.Context, actor domain.Actor, targetID, role string) (*domain.Profile, error) {
	if !actor.IsAdmin() {
		s.audit.Record(ctx, domain.AccessLog{UserID: &actor.UserID, Action: "role_change", Outcome: domain.OutcomeDenied})
		return nil, domain.ErrForbidden
	}
	if err := validate.Var("role", role, "required,role"); err != nil {
		return nil, err
	}
	if actor.UserID == targetID && role != domain.RoleAdmin {
		return nil, ErrSelfDemotion
	}
	if err := s.repo.SetProfileRole(ctx, targetID, role, time.Now().UTC()); err != nil {
		return nil, err
	}
	profile, err := s.repo.GetProfile(ctx, targetID)
	if err != nil {
		return nil, err
	}
	details, _ := json.Marshal(map[string]string{"target_id": targetID, "role": role})
	s.audit.Record(ctx, domain.AccessLog{UserID: &actor.UserID, Action: "role_change", Outcome: domain.OutcomeGranted, Details: details})
	s.logger.Info("profile role changed", "actor_id", actor.UserID, "target_id", targetID, "role", role)
	s.publish(ctx, profile)
	return profile, nil
}

// SetAvatar points the profile at an uploaded avatar object.
func (s Service) SetAvatar(ctx context.Context, userID, objectKey string) (*domain.Profile, error) {
	if err := s.repo.SetProfileAvatar(ctx, userID, objectKey, time.Now().UTC()); err != nil {
		return nil, err
	}
	profile, err := s.repo.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, profile)
	return profile, nil
}

func (s Service) publish(ctx context.Context, profile *domain.Profile) {
	if s.publisher == nil {
		return
	}
	change := changefeed.NewChange(domain.TableProfiles, domain.ChangeUpdate, profile.ID, profile)
	if err := s.publisher.Publish(ctx, change); err != nil {
		s.logger.Warn("profile publish failed", "profile_id", profile.ID, "error", err)
	}
}
