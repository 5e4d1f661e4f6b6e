package stats

import (
	"context"
	"fmt"
	"time"

	"github.com/wayneindustries/resourcemgmt/internal/domain"
	"github.com/wayneindustries/resourcemgmt/internal/repository"
)

// Service builds the dashboard summary.
type Service struct {
	repo repository.StatsRepository
	now  func() time.Time
}

// New constructs a stats service.
func New(repo repository.StatsRepository) Service {
	return Service{repo: repo, now: func() time.Time { return time.Now().UTC() }}
}

// Summary counts resources, open alerts, profiles and the access log entries of the last day.
func (s Service) Summary(ctx context.Context) (domain.DashboardStats, error) {
	now := s.now()
	byType, byStatus, err := s.repo.CountResources(ctx)
	if err != nil {
		return domain.DashboardStats{}, fmt.Errorf("count resources: %w", err)
	}
	alerts, err := s.repo.CountOpenAlertsBySeverity(ctx)
	if err != nil {
		return domain.DashboardStats{}, fmt.Errorf("count alerts: %w", err)
	}
	profiles, err := s.repo.CountProfiles(ctx)
	if err != nil {
		return domain.DashboardStats{}, fmt.Errorf("count profiles: %w", err)
	}
	logs, err := s.repo.CountAccessLogsSince(ctx, now.Add(-24*time.Hour))
	if err != nil {
		return domain.DashboardStats{}, fmt.Errorf("count access logs: %w", err)
	}
	return domain.DashboardStats{
		ResourcesByType:      fill(byType, domain.ResourceEquipment, domain.ResourceVehicle, domain.ResourceDevice, domain.ResourceFacility, domain.ResourceOther),
		ResourcesByStatus:    fill(byStatus, domain.StatusAvailable, domain.StatusInUse, domain.StatusMaintenance, domain.StatusRetired),
		OpenAlertsBySeverity: fill(alerts, domain.SeverityLow, domain.SeverityMedium, domain.SeverityHigh, domain.SeverityCritical),
		ProfileCount:         profiles,
		AccessLogsLast24h:    logs,
		GeneratedAt:          now,
	}, nil
}

// fill makes every known key present so charts render zero bars.
func fill(counts map[string]int, keys ...string) map[string]int {
	out := make(map[string]int, len(keys))
	for _, k := range keys {
		out[k] = 0
	}
	for k, v := range counts {
		out[k] = v
	}
	return out
}
