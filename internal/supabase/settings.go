package supabase

import (
	"context"
	"net/url"

	"github.com/maauso/kuiper-api/internal/usersettings"
)

// Compile-time check that SettingsRepository implements usersettings.Repository.
var _ usersettings.Repository = (*SettingsRepository)(nil)

// SettingsRepository stores per-user settings in the "user_settings" table.
type SettingsRepository struct {
	client *Client
}

// NewSettingsRepository creates a new SettingsRepository.
func NewSettingsRepository(c *Client) *SettingsRepository {
	return &SettingsRepository{client: c}
}

// toSettings fills missing columns with the defaults.
func toSettings(r settingsRow) usersettings.Settings {
	s := usersettings.Defaults()
	if r.Gain != nil {
		s.Gain = *r.Gain
	}
	if r.Bass != nil {
		s.Bass = *r.Bass
	}
	if r.Treble != nil {
		s.Treble = *r.Treble
	}
	s.DeviceID = r.DeviceID
	return s
}

// Get returns the settings row of userID.
func (r *SettingsRepository) Get(ctx context.Context, userID string) (usersettings.Settings, error) {
	q := url.Values{}
	q.Set("select", "*")
	q.Set("user_id", eq(userID))
	q.Set("limit", "1")

	var rows []settingsRow
	if err := r.client.Select(ctx, tableUserSettings, q, &rows); err != nil {
		return usersettings.Settings{}, err
	}
	if len(rows) == 0 {
		return usersettings.Settings{}, usersettings.ErrSettingsNotFound
	}
	return toSettings(rows[0]), nil
}

// Upsert creates or replaces the settings row of userID.
func (r *SettingsRepository) Upsert(ctx context.Context, userID string, s usersettings.Settings) (usersettings.Settings, error) {
	row := settingsRow{
		UserID:   userID,
		Gain:     &s.Gain,
		Bass:     &s.Bass,
		Treble:   &s.Treble,
		DeviceID: s.DeviceID,
	}

	var rows []settingsRow
	if err := r.client.Upsert(ctx, tableUserSettings, "user_id", row, &rows); err != nil {
		return usersettings.Settings{}, err
	}
	if len(rows) == 0 {
		return s, nil
	}
	return toSettings(rows[0]), nil
}
