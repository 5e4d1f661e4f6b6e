// Package demo provisions one demonstration account per role, optionally with sample data.
package demo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/wayneindustries/resourcemgmt/internal/domain"
	"github.com/wayneindustries/resourcemgmt/internal/repository"
	"github.com/wayneindustries/resourcemgmt/internal/service/alert"
	"github.com/wayneindustries/resourcemgmt/internal/service/auth"
	"github.com/wayneindustries/resourcemgmt/internal/service/resource"
	"github.com/wayneindustries/resourcemgmt/internal/validate"
)

// Account statuses reported by Provision.
const (
	StatusCreated  = "created"
	StatusExisting = "existing"
	// StatusConflict marks a demo address already held by a regular account.
	StatusConflict = "conflict"
)

// Accounts lists the demo account for each role.
var Accounts = []struct {
	Email    string
	FullName string
	Role     string
}{
	{"demo.admin@wayne.test", "Demo Administrator", domain.RoleAdmin},
	{"demo.manager@wayne.test", "Demo Manager", domain.RoleManager},
	{"demo.employee@wayne.test", "Demo Employee", domain.RoleEmployee},
}

// AccountCreator creates accounts with a chosen role.
type AccountCreator interface {
	CreateAccount(ctx context.Context, input auth.AccountInput) (*domain.Profile, error)
}

// AccountLookup finds existing accounts and their profiles.
type AccountLookup interface {
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)
	GetProfile(ctx context.Context, id string) (*domain.Profile, error)
}

// ResourceCreator creates resources.
type ResourceCreator interface {
	Create(ctx context.Context, actor domain.Actor, input resource.CreateInput) (*domain.Resource, error)
}

// AlertCreator opens alerts.
type AlertCreator interface {
	Create(ctx context.Context, actor domain.Actor, input alert.CreateInput) (*domain.Alert, error)
}

// Service provisions demo accounts.
type Service struct {
	accounts  AccountCreator
	users     AccountLookup
	resources ResourceCreator
	alerts    AlertCreator
	logger    *slog.Logger
}

// New constructs a demo provisioning service.
func New(accounts AccountCreator, users AccountLookup, resources ResourceCreator, alerts AlertCreator, logger *slog.Logger) Service {
	return Service{accounts: accounts, users: users, resources: resources, alerts: alerts, logger: logger}
}

// Input configures a provisioning run.
type Input struct {
	Password        string `json:"password" validate:"required,password"`
	IncludeSeedData bool   `json:"include_seed_data"`
}

// AccountResult reports what happened to one demo account.
type AccountResult struct {
	Email  string `json:"email"`
	Role   string `json:"role"`
	UserID string `json:"user_id"`
	Status string `json:"status"`
}

// Result summarises a provisioning run.
type Result struct {
	Accounts        []AccountResult `json:"accounts"`
	SeededResources int             `json:"seeded_resources"`
	SeededAlerts    int             `json:"seeded_alerts"`
}

// Provision ensures every demo account exists. Running it again reports the accounts as existing.
func (s Service) Provision(ctx context.Context, actor domain.Actor, input Input) (Result, error) {
	if !actor.IsAdmin() {
		return Result{}, domain.ErrForbidden
	}
	if err := validate.Struct(input); err != nil {
		return Result{}, err
	}
	var result Result
	for _, acct := range Accounts {
		res, err := s.ensureAccount(ctx, acct.Email, acct.FullName, acct.Role, input.Password)
		if err != nil {
			return result, fmt.Errorf("provision %s: %w", acct.Email, err)
		}
		result.Accounts = append(result.Accounts, res)
	}
	if input.IncludeSeedData {
		if err := s.seed(ctx, actor, &result); err != nil {
			return result, fmt.Errorf("seed demo data: %w", err)
		}
	}
	s.logger.Info("demo accounts provisioned", "actor_id", actor.UserID, "seeded_resources", result.SeededResources, "seeded_alerts", result.SeededAlerts)
	return result, nil
}

func (s Service) ensureAccount(ctx context.Context, email, fullName, role, password string) (AccountResult, error) {
	result := AccountResult{Email: email, Role: role}
	existing, err := s.users.GetUserByEmail(ctx, email)
	switch {
	case err == nil:
		return s.describeExisting(ctx, result, existing.ID)
	case !errors.Is(err, repository.ErrNotFound):
		return result, err
	}
	profile, err := s.accounts.CreateAccount(ctx, auth.AccountInput{
		SignupInput: auth.SignupInput{Email: email, Password: password, FullName: fullName},
		Role:        role,
		IsDemo:      true,
	})
	if errors.Is(err, auth.ErrEmailTaken) {
		// Created concurrently by another run.
		u, lookupErr := s.users.GetUserByEmail(ctx, email)
		if lookupErr != nil {
			result.Status = StatusExisting
			return result, nil
		}
		return s.describeExisting(ctx, result, u.ID)
	}
	if err != nil {
		return result, err
	}
	result.UserID = profile.ID
	result.Status = StatusCreated
	return result, nil
}

// describeExisting reports an account that already holds a demo address with its stored role.
func (s Service) describeExisting(ctx context.Context, result AccountResult, userID string) (AccountResult, error) {
	result.UserID = userID
	result.Status = StatusExisting
	profile, err := s.users.GetProfile(ctx, userID)
	if err != nil {
		return result, fmt.Errorf("load profile: %w", err)
	}
	if !profile.IsDemo {
		result.Status = StatusConflict
		s.logger.Warn("demo address held by a regular account", "email", result.Email, "user_id", userID, "role", profile.Role)
	}
	result.Role = profile.Role
	return result, nil
}

var seedResources = []resource.CreateInput{
	{Name: "Batmobile Mk VII", Type: domain.ResourceVehicle, Location: "Gotham Garage", SerialNumber: "DEMO-VEH-001", Description: "Armoured pursuit vehicle."},
	{Name: "Thermal Imaging Kit", Type: domain.ResourceEquipment, Location: "R&D Lab 3", SerialNumber: "DEMO-EQP-001", Description: "Handheld thermal scanner."},
	{Name: "Field Tablet", Type: domain.ResourceDevice, Location: "Wayne Tower 42F", SerialNumber: "DEMO-DEV-001", Description: "Rugged tablet for site surveys."},
	{Name: "Applied Sciences Wing", Type: domain.ResourceFacility, Location: "Wayne Tower", SerialNumber: "DEMO-FAC-001", Description: "Restricted research floor."},
}

func (s Service) seed(ctx context.Context, actor domain.Actor, result *Result) error {
	var first *domain.Resource
	for _, input := range seedResources {
		created, err := s.resources.Create(ctx, actor, input)
		if errors.Is(err, resource.ErrDuplicateSerial) {
			continue
		}
		if err != nil {
			return err
		}
		result.SeededResources++
		if first == nil {
			first = created
		}
	}
	// Alerts are only seeded alongside fresh resources so reruns stay idempotent.
	if first == nil {
		return nil
	}
	resourceID := first.ID
	if _, err := s.alerts.Create(ctx, actor, alert.CreateInput{
		Title:      "Scheduled inspection due",
		Message:    first.Name + " is due for its quarterly inspection.",
		Severity:   domain.SeverityMedium,
		ResourceID: &resourceID,
	}); err != nil {
		return err
	}
	result.SeededAlerts++
	return nil
}
