package server

import (
	"errors"
	"fmt"

	"github.com/maauso/kuiper-api/internal/auth"
	"github.com/maauso/kuiper-api/internal/recording"
	"github.com/maauso/kuiper-api/internal/script"
)

// clientMessages maps domain errors to the text returned to API clients.
var clientMessages = []struct {
	err error
	msg string
}{
	{auth.ErrMissingToken, "Authorization required. Please sign in."},
	{auth.ErrEmptyToken, "Invalid authorization token."},
	{auth.ErrTokenExpired, "Session expired. Please sign in again."},
	{auth.ErrMissingSubject, "Invalid token: missing user id"},
	{auth.ErrInvalidToken, "Invalid or expired token. Please sign in again."},
	{auth.ErrNotConfigured, "SUPABASE_URL not configured"},
	{recording.ErrRecordingNotFound, "Recording not found"},
	{recording.ErrAudioNotFound, "Recording audio not found"},
	{recording.ErrEmptyAudio, "Empty audio data received"},
	{recording.ErrPhraseRequired, "Phrase text is required"},
	{recording.ErrUserRequired, "Authorization required. Please sign in."},
	{script.ErrScriptNotFound, "Script not found"},
	{script.ErrDuplicateName, "Script name already exists"},
	{script.ErrNameRequired, "Script name is required"},
	{script.ErrNoLines, "File contains no non-empty lines"},
	{script.ErrNotTextFile, "File must be a .txt file"},
}

// clientMessage returns the client-facing text for err. Errors without a
// mapping keep their own text.
func clientMessage(err error) string {
	var lineErr *recording.InvalidLineIndexError
	if errors.As(err, &lineErr) {
		return fmt.Sprintf("Invalid line index %d for script with %d lines", lineErr.Index, lineErr.LineCount)
	}
	var dupErr *script.DuplicateNameError
	if errors.As(err, &dupErr) {
		return fmt.Sprintf("Script with name '%s' already exists", dupErr.Name)
	}
	for _, m := range clientMessages {
		if errors.Is(err, m.err) {
			return m.msg
		}
	}
	return err.Error()
}
