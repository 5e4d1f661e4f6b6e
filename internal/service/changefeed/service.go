package changefeed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/wayneindustries/resourcemgmt/internal/domain"
	"github.com/wayneindustries/resourcemgmt/internal/repository"
	"github.com/wayneindustries/resourcemgmt/internal/ws"
)

// maxNotifyPayload stays under the 8000 byte NOTIFY limit.
const maxNotifyPayload = 7900

// ErrUnknownTable is returned when subscribing to a table that does not publish changes.
var ErrUnknownTable = errors.New("changefeed: unknown table")

var tables = map[string]struct{}{
	domain.TableResources:  {},
	domain.TableProfiles:   {},
	domain.TableAccessLogs: {},
	domain.TableAlerts:     {},
	domain.TableSettings:   {},
}

// KnownTable reports whether table can be subscribed to.
func KnownTable(table string) bool {
	_, ok := tables[table]
	return ok
}

// Service publishes row changes and fans them out to realtime subscribers.
type Service struct {
	notifier repository.ChangeNotifier
	hub      *ws.Hub
	logger   *slog.Logger
	channel  string
	listen   bool
}

// New constructs a change feed. With listen disabled or no notifier, changes are delivered
// to the local hub only.
func New(notifier repository.ChangeNotifier, hub *ws.Hub, logger *slog.Logger, channel string, listen bool) Service {
	if strings.TrimSpace(channel) == "" {
		channel = "wayne_changes"
	}
	return Service{notifier: notifier, hub: hub, logger: logger, channel: channel, listen: listen && notifier != nil}
}

// NewChange builds a change event, encoding record as its JSON snapshot.
func NewChange(table, changeType, recordID string, record any) domain.Change {
	change := domain.Change{
		Table:      table,
		Type:       changeType,
		RecordID:   recordID,
		OccurredAt: time.Now().UTC(),
	}
	if record != nil {
		if data, err := json.Marshal(record); err == nil {
			change.Record = data
		}
	}
	return change
}

// Publish announces change to every API instance.
func (s Service) Publish(ctx context.Context, change domain.Change) error {
	if !KnownTable(change.Table) {
		return fmt.Errorf("%w: %s", ErrUnknownTable, change.Table)
	}
	if change.OccurredAt.IsZero() {
		change.OccurredAt = time.Now().UTC()
	}
	payload, err := json.Marshal(change)
	if err != nil {
		return fmt.Errorf("encode change: %w", err)
	}
	if !s.listen {
		s.broadcast(change, payload)
		return nil
	}
	if len(payload) > maxNotifyPayload {
		// subscribers re-fetch on notification, the snapshot is optional
		change.Record = nil
		if payload, err = json.Marshal(change); err != nil {
			return fmt.Errorf("encode change: %w", err)
		}
	}
	if err := s.notifier.Notify(ctx, s.channel, payload); err != nil {
		s.logger.Warn("change notify failed, delivering locally", "table", change.Table, "error", err)
		s.broadcast(change, payload)
		return nil
	}
	return nil
}

// Run listens for notifications until ctx is cancelled. Listener failures are retried
// with a capped backoff.
func (s Service) Run(ctx context.Context) {
	if !s.listen {
		return
	}
	backoff := time.Second
	for {
		s.logger.Info("change feed listening", "channel", s.channel)
		err := s.notifier.Listen(ctx, s.channel, s.deliver)
		if ctx.Err() != nil {
			s.logger.Info("change feed stopped")
			return
		}
		s.logger.Warn("change feed listener exited", "error", err, "retry_in", backoff.String())
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		if backoff < 30*time.Second {
			backoff *= 2
		}
	}
}

func (s Service) deliver(payload []byte) {
	var change domain.Change
	if err := json.Unmarshal(payload, &change); err != nil || change.Table == "" {
		s.logger.Warn("discarding malformed change payload", "error", err)
		return
	}
	s.broadcast(change, payload)
}

func (s Service) broadcast(change domain.Change, payload []byte) {
	for _, topic := range topics(change) {
		s.hub.Broadcast(topic, payload)
	}
}

// Topic returns the hub key a subscriber to table receives changes on. Settings are
// private to their owner and employees only follow their own access log entries.
func Topic(table string, actor domain.Actor) string {
	switch {
	case table == domain.TableSettings:
		return table + "/" + actor.UserID
	case table == domain.TableAccessLogs && actor.Role == domain.RoleEmployee:
		return table + "/" + actor.UserID
	default:
		return table
	}
}

func topics(change domain.Change) []string {
	switch change.Table {
	case domain.TableSettings:
		return []string{change.Table + "/" + change.RecordID}
	case domain.TableAccessLogs:
		if change.OwnerID != "" {
			return []string{change.Table, change.Table + "/" + change.OwnerID}
		}
		return []string{change.Table}
	default:
		return []string{change.Table}
	}
}

// Hub returns the subscription hub (useful for HTTP handlers).
func (s Service) Hub() *ws.Hub {
	return s.hub
}
