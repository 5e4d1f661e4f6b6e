package auth

import (
	"context"
	"log/slog"
	"net/url"
	"strings"
	"time"
)

// LogNotifier writes reset links to the service log. Outside development only the
// request itself is logged.
type LogNotifier struct {
	logger     *slog.Logger
	resetURL   string
	production bool
}

// NewLogNotifier builds a notifier that links to resetURL with the token as a query parameter.
func NewLogNotifier(logger *slog.Logger, resetURL string, production bool) LogNotifier {
	return LogNotifier{logger: logger, resetURL: strings.TrimSpace(resetURL), production: production}
}

// SendPasswordReset implements ResetNotifier.
func (n LogNotifier) SendPasswordReset(_ context.Context, email, token string, expiresAt time.Time) error {
	if n.production {
		n.logger.Info("password reset issued", "email", email, "expires_at", expiresAt.Format(time.RFC3339))
		return nil
	}
	link := n.resetURL
	if link == "" {
		link = "/reset-password"
	}
	u, err := url.Parse(link)
	if err != nil {
		return err
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	n.logger.Info("password reset issued", "email", email, "reset_link", u.String(), "expires_at", expiresAt.Format(time.RFC3339))
	return nil
}
