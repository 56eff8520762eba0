package supabase

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// Table names.
const (
	tableScripts      = "scripts"
	tableRecordings   = "recordings"
	tableUserSettings = "user_settings"
)

// timestamp decodes PostgREST timestamps with or without a zone offset.
type timestamp struct {
	time.Time
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *timestamp) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		t.Time = time.Time{}
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed.UTC()
			return nil
		}
	}
	return fmt.Errorf("supabase: unrecognised timestamp %q", s)
}

// MarshalJSON implements json.Marshaler.
func (t timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.UTC().Format(time.RFC3339Nano))
}

type scriptRow struct {
	ID        int64     `json:"id,omitempty"`
	Name      string    `json:"name"`
	Lines     []string  `json:"lines"`
	LineCount int       `json:"line_count"`
	CreatedAt timestamp `json:"created_at,omitzero"`
}

type recordingRow struct {
	ID              int64     `json:"id,omitempty"`
	ScriptID        int64     `json:"script_id"`
	LineIndex       int       `json:"line_index"`
	PhraseText      string    `json:"phrase_text"`
	RecorderName    string    `json:"recorder_name"`
	UserID          *string   `json:"user_id,omitempty"`
	Filename        string    `json:"filename"`
	StoragePath     *string   `json:"storage_path"`
	DurationSeconds float64   `json:"duration_seconds"`
	PeakAmplitude   float64   `json:"peak_amplitude"`
	RMSLevel        float64   `json:"rms_level"`
	IsValid         *bool     `json:"is_valid"`
	FileSizeBytes   int64     `json:"file_size_bytes"`
	CreatedAt       timestamp `json:"created_at,omitzero"`
}

type settingsRow struct {
	UserID   string  `json:"user_id"`
	Gain     *int    `json:"gain"`
	Bass     *int    `json:"bass"`
	Treble   *int    `json:"treble"`
	DeviceID *string `json:"device_id"`
}
