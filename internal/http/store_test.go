package httpx

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/wayneindustries/resourcemgmt/internal/domain"
	"github.com/wayneindustries/resourcemgmt/internal/repository"
)

// memoryStore backs every repository the router's services need.
type memoryStore struct {
	mu         sync.Mutex
	users      map[string]*domain.User
	profiles   map[string]*domain.Profile
	settings   map[string]*domain.UserSettings
	sessions   map[string]*domain.Session
	resets     map[string]*domain.PasswordReset
	resources  map[string]*domain.Resource
	alerts     map[string]*domain.Alert
	files      map[string]*domain.File
	accessLogs []domain.AccessLog
	rollups    []domain.PerformanceRollup
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		users:     make(map[string]*domain.User),
		profiles:  make(map[string]*domain.Profile),
		settings:  make(map[string]*domain.UserSettings),
		sessions:  make(map[string]*domain.Session),
		resets:    make(map[string]*domain.PasswordReset),
		resources: make(map[string]*domain.Resource),
		alerts:    make(map[string]*domain.Alert),
		files:     make(map[string]*domain.File),
	}
}

func (m *memoryStore) CreateAccount(_ context.Context, user *domain.User, profile *domain.Profile, settings *domain.UserSettings) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == user.Email {
			return repository.ErrConflict
		}
	}
	u := *user
	p := *profile
	m.users[u.ID] = &u
	m.profiles[p.ID] = &p
	if settings != nil {
		s := *settings
		m.settings[s.UserID] = &s
	}
	return nil
}

func (m *memoryStore) GetUserByEmail(_ context.Context, email string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			out := *u
			return &out, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *memoryStore) GetUserByID(_ context.Context, id string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	out := *u
	return &out, nil
}

func (m *memoryStore) UpdatePassword(_ context.Context, userID string, hash []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return repository.ErrNotFound
	}
	u.PasswordHash = hash
	return nil
}

func (m *memoryStore) CreateSession(_ context.Context, session *domain.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := *session
	m.sessions[s.ID] = &s
	return nil
}

func (m *memoryStore) GetSession(_ context.Context, id string) (*domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	out := *s
	return &out, nil
}

func (m *memoryStore) RevokeSession(_ context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[id]; ok && s.RevokedAt == nil {
		s.RevokedAt = &at
	}
	return nil
}

func (m *memoryStore) RevokeUserSessions(_ context.Context, userID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.sessions {
		if s.UserID == userID && s.RevokedAt == nil {
			s.RevokedAt = &at
		}
	}
	return nil
}

func (m *memoryStore) CreatePasswordReset(_ context.Context, reset *domain.PasswordReset) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := *reset
	m.resets[r.TokenHash] = &r
	return nil
}

func (m *memoryStore) GetPasswordReset(_ context.Context, tokenHash string) (*domain.PasswordReset, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.resets[tokenHash]
	if !ok {
		return nil, repository.ErrNotFound
	}
	out := *r
	return &out, nil
}

func (m *memoryStore) CompletePasswordReset(ctx context.Context, tokenHash string, passwordHash []byte, at time.Time) error {
	m.mu.Lock()
	r, ok := m.resets[tokenHash]
	if !ok || r.UsedAt != nil {
		m.mu.Unlock()
		return repository.ErrNotFound
	}
	r.UsedAt = &at
	userID := r.UserID
	m.mu.Unlock()
	if err := m.UpdatePassword(ctx, userID, passwordHash); err != nil {
		return err
	}
	return m.RevokeUserSessions(ctx, userID, at)
}

func (m *memoryStore) GetProfile(_ context.Context, id string) (*domain.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	out := *p
	return &out, nil
}

func (m *memoryStore) ListProfiles(_ context.Context, filter domain.ProfileFilter) ([]domain.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Profile
	for _, p := range m.profiles {
		if filter.Role != "" && p.Role != filter.Role {
			continue
		}
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	return out, nil
}

func (m *memoryStore) UpdateProfile(_ context.Context, profile *domain.Profile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.profiles[profile.ID]; !ok {
		return repository.ErrNotFound
	}
	p := *profile
	m.profiles[p.ID] = &p
	return nil
}

func (m *memoryStore) SetProfileRole(_ context.Context, id, role string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[id]
	if !ok {
		return repository.ErrNotFound
	}
	p.Role = role
	p.UpdatedAt = at
	return nil
}

func (m *memoryStore) SetProfileAvatar(_ context.Context, id, path string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[id]
	if !ok {
		return repository.ErrNotFound
	}
	p.AvatarPath = path
	p.UpdatedAt = at
	return nil
}

func (m *memoryStore) SetProfileDemo(_ context.Context, id string, demo bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.profiles[id]; ok {
		p.IsDemo = demo
	}
	return nil
}

func (m *memoryStore) CreateResource(_ context.Context, resource *domain.Resource) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.resources {
		if resource.SerialNumber != "" && r.SerialNumber == resource.SerialNumber {
			return repository.ErrConflict
		}
	}
	now := time.Now().UTC()
	resource.CreatedAt, resource.UpdatedAt = now, now
	r := *resource
	m.resources[r.ID] = &r
	return nil
}

func (m *memoryStore) GetResource(_ context.Context, id string) (*domain.Resource, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.resources[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	out := *r
	return &out, nil
}

func (m *memoryStore) ListResources(_ context.Context, filter domain.ResourceFilter) ([]domain.Resource, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Resource
	for _, r := range m.resources {
		if filter.Type != "" && r.Type != filter.Type {
			continue
		}
		if filter.Status != "" && r.Status != filter.Status {
			continue
		}
		if filter.Search != "" && !strings.Contains(strings.ToLower(r.Name), strings.ToLower(filter.Search)) {
			continue
		}
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *memoryStore) UpdateResource(_ context.Context, resource *domain.Resource) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.resources[resource.ID]; !ok {
		return repository.ErrNotFound
	}
	resource.UpdatedAt = time.Now().UTC()
	r := *resource
	m.resources[r.ID] = &r
	return nil
}

func (m *memoryStore) DeleteResource(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.resources[id]; !ok {
		return repository.ErrNotFound
	}
	delete(m.resources, id)
	return nil
}

func (m *memoryStore) InsertAccessLog(_ context.Context, entry *domain.AccessLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry.ID = int64(len(m.accessLogs) + 1)
	entry.CreatedAt = time.Now().UTC()
	m.accessLogs = append(m.accessLogs, *entry)
	return nil
}

func (m *memoryStore) ListAccessLogs(_ context.Context, filter domain.AccessLogFilter) ([]domain.AccessLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.AccessLog
	for _, entry := range m.accessLogs {
		if filter.UserID != "" && (entry.UserID == nil || *entry.UserID != filter.UserID) {
			continue
		}
		if filter.Outcome != "" && entry.Outcome != filter.Outcome {
			continue
		}
		out = append(out, entry)
	}
	return out, nil
}

func (m *memoryStore) accessLogEntries() []domain.AccessLog {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.AccessLog, len(m.accessLogs))
	copy(out, m.accessLogs)
	return out
}

func (m *memoryStore) CreateAlert(_ context.Context, alert *domain.Alert) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a := *alert
	m.alerts[a.ID] = &a
	return nil
}

func (m *memoryStore) GetAlert(_ context.Context, id string) (*domain.Alert, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.alerts[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	out := *a
	return &out, nil
}

func (m *memoryStore) ListAlerts(_ context.Context, filter domain.AlertFilter) ([]domain.Alert, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Alert
	for _, a := range m.alerts {
		if filter.Status != "" && a.Status != filter.Status {
			continue
		}
		out = append(out, *a)
	}
	return out, nil
}

func (m *memoryStore) UpdateAlert(_ context.Context, alert *domain.Alert, fromStatus string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.alerts[alert.ID]
	if !ok {
		return repository.ErrNotFound
	}
	if current.Status != fromStatus {
		return repository.ErrStale
	}
	a := *alert
	m.alerts[a.ID] = &a
	return nil
}

func (m *memoryStore) DeleteAlert(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.alerts[id]; !ok {
		return repository.ErrNotFound
	}
	delete(m.alerts, id)
	return nil
}

func (m *memoryStore) GetSettings(_ context.Context, userID string) (*domain.UserSettings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.settings[userID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	out := *s
	return &out, nil
}

func (m *memoryStore) UpsertSettings(_ context.Context, settings *domain.UserSettings) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := *settings
	m.settings[s.UserID] = &s
	return nil
}

func (m *memoryStore) CreateFile(_ context.Context, file *domain.File) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	file.CreatedAt = time.Now().UTC()
	f := *file
	m.files[f.ObjectKey] = &f
	return nil
}

func (m *memoryStore) GetFileByKey(_ context.Context, objectKey string) (*domain.File, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.files[objectKey]
	if !ok {
		return nil, repository.ErrNotFound
	}
	out := *f
	return &out, nil
}

func (m *memoryStore) DeleteFile(_ context.Context, objectKey string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.files[objectKey]; !ok {
		return repository.ErrNotFound
	}
	delete(m.files, objectKey)
	return nil
}

func (m *memoryStore) UpsertPerformanceRollups(_ context.Context, rollups []domain.PerformanceRollup) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rollups = append(m.rollups, rollups...)
	return nil
}

func (m *memoryStore) ListPerformanceRollups(_ context.Context, name, source string, _ time.Duration, _ int) ([]domain.PerformanceRollup, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.PerformanceRollup
	for _, r := range m.rollups {
		if (name == "" || r.Name == name) && (source == "" || r.Source == source) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memoryStore) CountResources(context.Context) (map[string]int, map[string]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	byType := make(map[string]int)
	byStatus := make(map[string]int)
	for _, r := range m.resources {
		byType[r.Type]++
		byStatus[r.Status]++
	}
	return byType, byStatus, nil
}

func (m *memoryStore) CountOpenAlertsBySeverity(context.Context) (map[string]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]int)
	for _, a := range m.alerts {
		if a.Status != domain.AlertResolved {
			out[a.Severity]++
		}
	}
	return out, nil
}

func (m *memoryStore) CountProfiles(context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.profiles), nil
}

func (m *memoryStore) CountAccessLogsSince(_ context.Context, since time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, entry := range m.accessLogs {
		if !entry.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}
