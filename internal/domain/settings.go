package domain

import "time"

// UserSettings holds per-user preferences.
type UserSettings struct {
	UserID             string    `json:"user_id"`
	Theme              string    `json:"theme"`
	Language           string    `json:"language"`
	EmailNotifications bool      `json:"email_notifications"`
	PushNotifications  bool      `json:"push_notifications"`
	AlertThreshold     string    `json:"alert_threshold"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// DefaultSettings returns the settings used before a user saves any preference.
func DefaultSettings(userID string) UserSettings {
	return UserSettings{
		UserID:             userID,
		Theme:              "system",
		Language:           "en",
		EmailNotifications: true,
		PushNotifications:  true,
		AlertThreshold:     SeverityMedium,
	}
}
