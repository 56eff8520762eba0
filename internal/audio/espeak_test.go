package audio

import (
	"context"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// skipIfNoESpeak skips the test if espeak-ng is not available.
func skipIfNoESpeak(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("espeak-ng"); err != nil {
		t.Skip("espeak-ng not found in PATH, skipping test")
	}
}

func TestNewESpeakSynthesizer_DefaultPath(t *testing.T) {
	s := NewESpeakSynthesizer("")

	assert.Equal(t, "espeak-ng", s.espeakPath)
	assert.Equal(t, DefaultSynthesisTimeout, s.timeout)
}

func TestESpeakSynthesizer_RejectsInput(t *testing.T) {
	s := NewESpeakSynthesizer(filepath.Join(t.TempDir(), "missing-espeak"))
	ctx := context.Background()

	tests := []struct {
		name    string
		text    string
		voice   string
		wantErr error
	}{
		{"empty text", "", "en", ErrEmptyText},
		{"blank text", "   \n\t", "en", ErrEmptyText},
		{"empty voice", "hello", "", ErrInvalidVoice},
		{"option-like voice", "hello", "-w/tmp/x", ErrInvalidVoice},
		{"path voice", "hello", "../en", ErrInvalidVoice},
		{"long voice", "hello", "abcdefghijklmnopqrstuvwxyz0123456789", ErrInvalidVoice},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Synthesize(ctx, tt.text, tt.voice)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestESpeakSynthesizer_MissingBinary(t *testing.T) {
	s := NewESpeakSynthesizer(filepath.Join(t.TempDir(), "missing-espeak"))

	_, err := s.Synthesize(context.Background(), "hello", "en-us")

	assert.ErrorIs(t, err, ErrSynthesizerUnavailable)
}

func TestESpeakSynthesizer_ProducesAnalyzableWAV(t *testing.T) {
	skipIfNoESpeak(t)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	s := NewESpeakSynthesizer("")
	data, err := s.Synthesize(ctx, "The quick brown fox jumps over the lazy dog.", "en")
	require.NoError(t, err)

	got := Analyze(data)

	assert.Equal(t, OutcomeAnalyzed, got.Outcome)
	assert.Equal(t, 16, got.BitDepth)
	assert.Greater(t, got.DurationSeconds, 1.0)
	assert.Greater(t, got.RMSLevel, 0.0)
}
