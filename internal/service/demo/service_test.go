package demo

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"

	"github.com/wayneindustries/resourcemgmt/internal/domain"
	"github.com/wayneindustries/resourcemgmt/internal/repository"
	"github.com/wayneindustries/resourcemgmt/internal/service/alert"
	"github.com/wayneindustries/resourcemgmt/internal/service/auth"
	"github.com/wayneindustries/resourcemgmt/internal/service/resource"
	"github.com/wayneindustries/resourcemgmt/internal/validate"
)

type accountStore struct {
	users    map[string]*domain.User
	profiles map[string]*domain.Profile
	created  []auth.AccountInput
}

func (a *accountStore) CreateAccount(_ context.Context, input auth.AccountInput) (*domain.Profile, error) {
	if _, ok := a.users[input.Email]; ok {
		return nil, auth.ErrEmailTaken
	}
	id := uuid.NewString()
	a.users[input.Email] = &domain.User{ID: id, Email: input.Email}
	a.created = append(a.created, input)
	profile := &domain.Profile{ID: id, Email: input.Email, Role: input.Role, IsDemo: input.IsDemo}
	a.profiles[id] = profile
	return profile, nil
}

// userRepo exposes the lookups of accountStore.
type userRepo struct{ store *accountStore }

func (u userRepo) GetUserByEmail(_ context.Context, email string) (*domain.User, error) {
	user, ok := u.store.users[email]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return user, nil
}

func (u userRepo) GetProfile(_ context.Context, id string) (*domain.Profile, error) {
	p, ok := u.store.profiles[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return p, nil
}

type resourceStore struct{ serials map[string]bool }

func (r *resourceStore) Create(_ context.Context, _ domain.Actor, input resource.CreateInput) (*domain.Resource, error) {
	if r.serials[input.SerialNumber] {
		return nil, resource.ErrDuplicateSerial
	}
	r.serials[input.SerialNumber] = true
	return &domain.Resource{ID: uuid.NewString(), Name: input.Name}, nil
}

type alertStore struct{ created []alert.CreateInput }

func (a *alertStore) Create(_ context.Context, _ domain.Actor, input alert.CreateInput) (*domain.Alert, error) {
	a.created = append(a.created, input)
	return &domain.Alert{ID: uuid.NewString()}, nil
}

var admin = domain.Actor{UserID: "admin-1", Role: domain.RoleAdmin}

func newTestService() (Service, *accountStore, *resourceStore, *alertStore) {
	accounts := &accountStore{users: make(map[string]*domain.User), profiles: make(map[string]*domain.Profile)}
	resources := &resourceStore{serials: make(map[string]bool)}
	alerts := &alertStore{}
	svc := New(accounts, userRepo{accounts}, resources, alerts, slog.New(slog.NewTextHandler(io.Discard, nil)))
	return svc, accounts, resources, alerts
}

func TestProvisionRequiresAdmin(t *testing.T) {
	svc, _, _, _ := newTestService()
	_, err := svc.Provision(context.Background(), domain.Actor{UserID: "m", Role: domain.RoleManager}, Input{Password: "Demo!Pass1"})
	if !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestProvisionValidatesPassword(t *testing.T) {
	svc, accounts, _, _ := newTestService()
	_, err := svc.Provision(context.Background(), admin, Input{Password: "weak"})
	var fields validate.FieldErrors
	if !errors.As(err, &fields) {
		t.Fatalf("expected FieldErrors, got %v", err)
	}
	if len(accounts.created) != 0 {
		t.Fatal("expected no accounts created")
	}
}

func TestProvisionIsIdempotent(t *testing.T) {
	svc, accounts, _, alerts := newTestService()
	first, err := svc.Provision(context.Background(), admin, Input{Password: "Demo!Pass1", IncludeSeedData: true})
	if err != nil {
		t.Fatalf("Provision: %v", err)
	}
	if len(first.Accounts) != len(Accounts) {
		t.Fatalf("expected %d accounts, got %d", len(Accounts), len(first.Accounts))
	}
	for i, acct := range first.Accounts {
		if acct.Status != StatusCreated || acct.Role != Accounts[i].Role || acct.UserID == "" {
			t.Fatalf("unexpected first run result %+v", acct)
		}
	}
	for _, input := range accounts.created {
		if !input.IsDemo {
			t.Fatalf("expected demo flag on %s", input.Email)
		}
	}
	if first.SeededResources != len(seedResources) || first.SeededAlerts != 1 {
		t.Fatalf("unexpected seed counts %+v", first)
	}

	second, err := svc.Provision(context.Background(), admin, Input{Password: "Demo!Pass1", IncludeSeedData: true})
	if err != nil {
		t.Fatalf("second Provision: %v", err)
	}
	for i, acct := range second.Accounts {
		if acct.Status != StatusExisting || acct.UserID != first.Accounts[i].UserID {
			t.Fatalf("unexpected second run result %+v", acct)
		}
	}
	if second.SeededResources != 0 || second.SeededAlerts != 0 {
		t.Fatalf("expected no new seed data, got %+v", second)
	}
	if len(accounts.created) != len(Accounts) || len(alerts.created) != 1 {
		t.Fatalf("expected no duplicates, accounts=%d alerts=%d", len(accounts.created), len(alerts.created))
	}
}

func TestProvisionReportsRegularAccountOnDemoAddress(t *testing.T) {
	svc, accounts, _, _ := newTestService()
	squatter, err := accounts.CreateAccount(context.Background(), auth.AccountInput{
		SignupInput: auth.SignupInput{Email: "demo.admin@wayne.test"},
		Role:        domain.RoleEmployee,
	})
	if err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}

	result, err := svc.Provision(context.Background(), admin, Input{Password: "Demo!Pass1"})
	if err != nil {
		t.Fatalf("Provision: %v", err)
	}
	got := result.Accounts[0]
	if got.Email != "demo.admin@wayne.test" || got.UserID != squatter.ID {
		t.Fatalf("unexpected account %+v", got)
	}
	if got.Status != StatusConflict || got.Role != domain.RoleEmployee {
		t.Fatalf("expected conflict with the stored employee role, got %+v", got)
	}
	for _, acct := range result.Accounts[1:] {
		if acct.Status != StatusCreated {
			t.Fatalf("expected remaining demo accounts to be created, got %+v", acct)
		}
	}
}
