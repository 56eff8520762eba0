// Package server provides the HTTP server for the Kuiper API.
// It includes handlers, middleware, routes, and DTOs separated from domain types.
package server

import (
	"time"

	"github.com/maauso/kuiper-api/internal/audio"
	"github.com/maauso/kuiper-api/internal/recording"
	"github.com/maauso/kuiper-api/internal/script"
	"github.com/maauso/kuiper-api/internal/usersettings"
)

// Version is reported by the health endpoint.
const Version = "2.0.0"

// ScriptRequest is the request body for POST and PUT /api/admin/scripts.
type ScriptRequest struct {
	Name  string   `json:"name" validate:"required,min=1,max=255"`
	Lines []string `json:"lines" validate:"required,min=1"`
}

// ScriptResponse is a script as returned by the API.
type ScriptResponse struct {
	ID        int64    `json:"id"`
	Name      string   `json:"name"`
	Lines     []string `json:"lines"`
	LineCount int      `json:"line_count"`
	CreatedAt string   `json:"created_at,omitempty"`
}

func newScriptResponse(s *script.Script) ScriptResponse {
	lines := s.Lines
	if lines == nil {
		lines = []string{}
	}
	return ScriptResponse{
		ID:        s.ID,
		Name:      s.Name,
		Lines:     lines,
		LineCount: s.LineCount(),
		CreatedAt: formatTime(s.CreatedAt),
	}
}

// SaveRecordingResponse is the response body for POST /api/recording/save.
// Error is set when Success is false, and also carries the analyzer's
// message when a stored recording failed the quality checks.
type SaveRecordingResponse struct {
	Success         bool    `json:"success"`
	ID              *int64  `json:"id"`
	DurationSeconds float64 `json:"duration_seconds"`
	PeakAmplitude   float64 `json:"peak_amplitude"`
	RMSLevel        float64 `json:"rms_level"`
	IsValid         bool    `json:"is_valid"`
	Error           *string `json:"error"`
}

func newSaveRecordingResponse(out *recording.SaveOutput) SaveRecordingResponse {
	id := out.Recording.ID
	resp := SaveRecordingResponse{
		Success:         true,
		ID:              &id,
		DurationSeconds: out.Analysis.DurationSeconds,
		PeakAmplitude:   out.Analysis.PeakAmplitude,
		RMSLevel:        out.Analysis.RMSLevel,
		IsValid:         out.Analysis.Valid,
	}
	if out.Analysis.Error != "" {
		msg := out.Analysis.Error
		resp.Error = &msg
	}
	return resp
}

func failedSave(msg string) SaveRecordingResponse {
	return SaveRecordingResponse{Success: false, Error: &msg}
}

// RecordingResponse is one item of GET /api/recording/list.
type RecordingResponse struct {
	ID              int64   `json:"id"`
	ScriptID        int64   `json:"script_id"`
	ScriptName      string  `json:"script_name"`
	LineIndex       int     `json:"line_index"`
	RecorderName    string  `json:"recorder_name"`
	PhraseText      string  `json:"phrase_text"`
	Text            string  `json:"text"`
	Filename        string  `json:"filename"`
	DurationSeconds float64 `json:"duration_seconds"`
	PeakAmplitude   float64 `json:"peak_amplitude"`
	RMSLevel        float64 `json:"rms_level"`
	IsValid         bool    `json:"is_valid"`
	StoragePath     *string `json:"storage_path"`
	CreatedAt       string  `json:"created_at,omitempty"`
}

func newRecordingResponse(r *recording.Recording) RecordingResponse {
	resp := RecordingResponse{
		ID:              r.ID,
		ScriptID:        r.ScriptID,
		ScriptName:      r.ScriptName,
		LineIndex:       r.LineIndex,
		RecorderName:    r.RecorderName,
		PhraseText:      r.PhraseText,
		Text:            r.PhraseText,
		Filename:        r.Filename,
		DurationSeconds: r.DurationSeconds,
		PeakAmplitude:   r.PeakAmplitude,
		RMSLevel:        r.RMSLevel,
		IsValid:         r.Valid,
		CreatedAt:       formatTime(r.CreatedAt),
	}
	if r.StoragePath != "" {
		p := r.StoragePath
		resp.StoragePath = &p
	}
	return resp
}

// ProgressResponse is one item of GET /api/recording/progress.
type ProgressResponse struct {
	ScriptID   int64   `json:"script_id"`
	ScriptName string  `json:"script_name"`
	Recorded   int     `json:"recorded"`
	Total      int     `json:"total"`
	Remaining  int     `json:"remaining"`
	Percent    float64 `json:"percent"`
}

func newProgressResponse(p recording.Progress) ProgressResponse {
	return ProgressResponse{
		ScriptID:   p.ScriptID,
		ScriptName: p.ScriptName,
		Recorded:   p.Recorded,
		Total:      p.Total,
		Remaining:  p.Remaining,
		Percent:    p.Percent,
	}
}

// SettingsRequest is the request body for PUT /api/user/settings.
// Omitted fields take their default values.
type SettingsRequest struct {
	Gain     int     `json:"gain" validate:"gte=20,lte=200"`
	Bass     int     `json:"bass" validate:"gte=-12,lte=12"`
	Treble   int     `json:"treble" validate:"gte=-12,lte=12"`
	DeviceID *string `json:"device_id"`
}

func defaultSettingsRequest() SettingsRequest {
	d := usersettings.Defaults()
	return SettingsRequest{Gain: d.Gain, Bass: d.Bass, Treble: d.Treble}
}

func (r SettingsRequest) settings() usersettings.Settings {
	return usersettings.Settings{
		Gain:     r.Gain,
		Bass:     r.Bass,
		Treble:   r.Treble,
		DeviceID: r.DeviceID,
	}
}

// SettingsResponse is the per-user audio settings as returned by the API.
type SettingsResponse struct {
	Gain     int     `json:"gain"`
	Bass     int     `json:"bass"`
	Treble   int     `json:"treble"`
	DeviceID *string `json:"device_id"`
}

func newSettingsResponse(s usersettings.Settings) SettingsResponse {
	return SettingsResponse{
		Gain:     s.Gain,
		Bass:     s.Bass,
		Treble:   s.Treble,
		DeviceID: s.DeviceID,
	}
}

// SuccessResponse acknowledges a delete.
type SuccessResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// HealthResponse represents the response for GET /api/health.
type HealthResponse struct {
	Status      string `json:"status"`
	Version     string `json:"version"`
	Environment string `json:"environment"`
}

// AnalysisResponse is the response body for POST /api/analyze.
type AnalysisResponse struct {
	SampleRate      int     `json:"sample_rate"`
	Channels        int     `json:"channels"`
	BitDepth        int     `json:"bit_depth"`
	Samples         int     `json:"samples"`
	DurationSeconds float64 `json:"duration_seconds"`
	PeakAmplitude   float64 `json:"peak_amplitude"`
	RMSLevel        float64 `json:"rms_level"`
	IsValid         bool    `json:"is_valid"`
	Outcome         string  `json:"outcome"`
	Error           string  `json:"error,omitempty"`
}

func newAnalysisResponse(res audio.Result) AnalysisResponse {
	return AnalysisResponse{
		SampleRate:      res.SampleRate,
		Channels:        res.Channels,
		BitDepth:        res.BitDepth,
		Samples:         res.Samples,
		DurationSeconds: res.DurationSeconds,
		PeakAmplitude:   res.PeakAmplitude,
		RMSLevel:        res.RMSLevel,
		IsValid:         res.Valid,
		Outcome:         res.Outcome.String(),
		Error:           res.Error,
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
