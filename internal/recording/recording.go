// Package recording provides the Recording aggregate and the use cases for
// saving, listing, serving and deleting users' phrase recordings.
package recording

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

var (
	// ErrRecordingNotFound is returned when a recording does not exist or
	// belongs to another user.
	ErrRecordingNotFound = errors.New("recording not found")
	// ErrAudioNotFound is returned when a recording has no stored audio.
	ErrAudioNotFound = errors.New("recording audio not found")
	// ErrEmptyAudio is returned when an upload carries no bytes.
	ErrEmptyAudio = errors.New("empty audio data")
	// ErrPhraseRequired is returned when the phrase text is blank.
	ErrPhraseRequired = errors.New("phrase text is required")
	// ErrInvalidLineIndex is matched by InvalidLineIndexError.
	ErrInvalidLineIndex = errors.New("invalid line index")
	// ErrUserRequired is returned when no user identity is attached.
	ErrUserRequired = errors.New("user id is required")
)

// InvalidLineIndexError reports a line index outside the script.
type InvalidLineIndexError struct {
	Index     int
	LineCount int
}

func (e *InvalidLineIndexError) Error() string {
	return fmt.Sprintf("invalid line index %d for script with %d lines", e.Index, e.LineCount)
}

// Is reports whether target is ErrInvalidLineIndex.
func (e *InvalidLineIndexError) Is(target error) bool {
	return target == ErrInvalidLineIndex
}

// Recording is the metadata of one uploaded phrase recording.
type Recording struct {
	ID           int64
	ScriptID     int64
	ScriptName   string // joined from the script catalog, not persisted
	LineIndex    int
	PhraseText   string
	RecorderName string
	UserID       string
	Filename     string
	StoragePath  string

	DurationSeconds float64
	PeakAmplitude   float64
	RMSLevel        float64
	Valid           bool
	FileSizeBytes   int64

	CreatedAt time.Time
}

// Clone returns a copy of the recording.
func (r *Recording) Clone() *Recording {
	if r == nil {
		return nil
	}
	c := *r
	return &c
}

// OwnedBy reports whether the recording belongs to userID.
func (r *Recording) OwnedBy(userID string) bool {
	return userID != "" && r.UserID == userID
}

// Filter narrows a recording listing. Zero values match everything.
type Filter struct {
	ScriptID     int64
	RecorderName string
}

// Matches reports whether r passes the filter.
func (f Filter) Matches(r *Recording) bool {
	if f.ScriptID != 0 && r.ScriptID != f.ScriptID {
		return false
	}
	if f.RecorderName != "" && r.RecorderName != f.RecorderName {
		return false
	}
	return true
}

// Progress summarises how many lines of a script a user has recorded.
type Progress struct {
	ScriptID   int64
	ScriptName string
	Recorded   int
	Total      int
	Remaining  int
	Percent    float64
}

const maxRecorderNameLen = 100

var unsafeNameChars = regexp.MustCompile(`[^A-Za-z0-9_-]`)

// SanitizeRecorderName makes name safe for use as a storage path segment.
// Every character outside [A-Za-z0-9_-] becomes "_", the result is capped at
// 100 characters and an empty result becomes "unknown".
func SanitizeRecorderName(name string) string {
	safe := unsafeNameChars.ReplaceAllString(strings.TrimSpace(name), "_")
	if len(safe) > maxRecorderNameLen {
		safe = safe[:maxRecorderNameLen]
	}
	if safe == "" {
		return "unknown"
	}
	return safe
}

// Filename returns the file name for line lineIndex of scriptName.
// Lines are numbered from 1 and zero-padded to four digits.
func Filename(scriptName string, lineIndex int) string {
	return fmt.Sprintf("%s_%04d.wav", scriptName, lineIndex+1)
}

// StoragePath returns the object key for a recording.
func StoragePath(recorderName string, scriptID int64, filename string) string {
	return fmt.Sprintf("%s/%d/%s", SanitizeRecorderName(recorderName), scriptID, filename)
}
