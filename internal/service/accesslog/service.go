package accesslog

import (
	"context"
	"log/slog"
	"strconv"
	"strings"

	"github.com/wayneindustries/resourcemgmt/internal/domain"
	"github.com/wayneindustries/resourcemgmt/internal/repository"
	"github.com/wayneindustries/resourcemgmt/internal/service/changefeed"
	"github.com/wayneindustries/resourcemgmt/internal/validate"
)

// Publisher announces row changes to realtime subscribers.
type Publisher interface {
	Publish(ctx context.Context, change domain.Change) error
}

type clientInfoKey struct{}

type clientInfo struct {
	ip        string
	userAgent string
}

// WithClientInfo stores the caller's address and user agent for entries recorded under ctx.
func WithClientInfo(ctx context.Context, ip, userAgent string) context.Context {
	return context.WithValue(ctx, clientInfoKey{}, clientInfo{ip: ip, userAgent: userAgent})
}

func clientInfoFrom(ctx context.Context) clientInfo {
	info, _ := ctx.Value(clientInfoKey{}).(clientInfo)
	return info
}

const (
	maxActionLen    = 64
	maxUserAgentLen = 256
)

// Service handles access log persistence and streaming.
type Service struct {
	repo      repository.AccessLogRepository
	publisher Publisher
	logger    *slog.Logger
}

// New constructs an access log service.
func New(repo repository.AccessLogRepository, publisher Publisher, logger *slog.Logger) Service {
	return Service{repo: repo, publisher: publisher, logger: logger}
}

// Record stores entry and publishes it. Failures are logged and never returned.
func (s Service) Record(ctx context.Context, entry domain.AccessLog) {
	entry.Action = normalizeAction(entry.Action)
	if entry.Action == "" {
		s.logger.Warn("access log dropped: empty action")
		return
	}
	if entry.Outcome != domain.OutcomeDenied {
		entry.Outcome = domain.OutcomeGranted
	}
	info := clientInfoFrom(ctx)
	if entry.IPAddress == "" {
		entry.IPAddress = info.ip
	}
	if entry.UserAgent == "" {
		entry.UserAgent = info.userAgent
	}
	entry.UserAgent = truncate(validate.Text(entry.UserAgent), maxUserAgentLen)
	entry.CreatedAt = entry.CreatedAt.UTC()

	if err := s.repo.InsertAccessLog(ctx, &entry); err != nil {
		s.logger.Error("access log write failed", "action", entry.Action, "outcome", entry.Outcome, "error", err)
		return
	}
	if s.publisher == nil {
		return
	}
	change := changefeed.NewChange(domain.TableAccessLogs, domain.ChangeInsert, formatID(entry.ID), entry)
	if entry.UserID != nil {
		change.OwnerID = *entry.UserID
	}
	if err := s.publisher.Publish(ctx, change); err != nil {
		s.logger.Warn("access log publish failed", "id", entry.ID, "error", err)
	}
}

// List returns entries visible to viewer. Employees only ever see their own entries.
func (s Service) List(ctx context.Context, viewer domain.Profile, filter domain.AccessLogFilter) ([]domain.AccessLog, error) {
	if viewer.Role == domain.RoleEmployee {
		filter.UserID = viewer.ID
	}
	filter.Action = normalizeAction(filter.Action)
	if filter.Outcome != domain.OutcomeGranted && filter.Outcome != domain.OutcomeDenied {
		filter.Outcome = ""
	}
	return s.repo.ListAccessLogs(ctx, filter)
}

func normalizeAction(action string) string {
	action = strings.ToLower(validate.Text(action))
	action = strings.ReplaceAll(action, " ", "_")
	return truncate(action, maxActionLen)
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}
