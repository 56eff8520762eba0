package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"time"
)

// Static errors for speech synthesis.
var (
	// ErrEmptyText is returned when there is nothing to pronounce.
	ErrEmptyText = errors.New("tts: text is required")
	// ErrInvalidVoice is returned when the voice name is not a plain identifier.
	ErrInvalidVoice = errors.New("tts: invalid voice")
	// ErrSynthesizerUnavailable is returned when the espeak-ng binary cannot be found.
	ErrSynthesizerUnavailable = errors.New("tts: espeak-ng is not available")
	// ErrSynthesisTimeout is returned when synthesis exceeds its time budget.
	ErrSynthesisTimeout = errors.New("tts: synthesis timed out")
	// ErrSynthesisFailed is returned when espeak-ng exits with an error.
	ErrSynthesisFailed = errors.New("tts: synthesis failed")
)

const (
	// MaxPronounceRunes caps the text handed to the synthesizer.
	MaxPronounceRunes = 500
	// DefaultSynthesisTimeout bounds a single espeak-ng run.
	DefaultSynthesisTimeout = 10 * time.Second
)

var voicePattern = regexp.MustCompile(`^[A-Za-z0-9_+][A-Za-z0-9_+-]{0,31}$`)

// Synthesizer turns text into WAV audio.
type Synthesizer interface {
	// Synthesize returns WAV bytes pronouncing text in the given voice.
	Synthesize(ctx context.Context, text, voice string) ([]byte, error)
}

// ESpeakSynthesizer implements Synthesizer using the espeak-ng CLI.
type ESpeakSynthesizer struct {
	// espeakPath is the path to the espeak-ng binary. Defaults to "espeak-ng".
	espeakPath string
	tempDir    string
	timeout    time.Duration
}

// NewESpeakSynthesizer creates a new ESpeakSynthesizer.
// If espeakPath is empty, it defaults to "espeak-ng" (found via PATH).
func NewESpeakSynthesizer(espeakPath string) *ESpeakSynthesizer {
	if espeakPath == "" {
		espeakPath = "espeak-ng"
	}
	return &ESpeakSynthesizer{
		espeakPath: espeakPath,
		tempDir:    os.TempDir(),
		timeout:    DefaultSynthesisTimeout,
	}
}

// Synthesize renders text with espeak-ng and returns the resulting WAV file.
// The text is trimmed and truncated to MaxPronounceRunes and passed on stdin.
func (s *ESpeakSynthesizer) Synthesize(ctx context.Context, text, voice string) ([]byte, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyText
	}
	if r := []rune(text); len(r) > MaxPronounceRunes {
		text = string(r[:MaxPronounceRunes])
	}
	if !voicePattern.MatchString(voice) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidVoice, voice)
	}

	out, err := os.CreateTemp(s.tempDir, "pronounce_*.wav")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	outPath := out.Name()
	_ = out.Close()
	defer func() { _ = os.Remove(outPath) }()

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	// #nosec G204 - espeakPath is set by the application, voice is pattern-checked
	cmd := exec.CommandContext(ctx, s.espeakPath, "--stdin", "-w", outPath, "-v", voice)
	cmd.Stdin = strings.NewReader(text)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if errors.Is(err, exec.ErrNotFound) || errors.Is(err, os.ErrNotExist) {
			return nil, ErrSynthesizerUnavailable
		}
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, ErrSynthesisTimeout
		}
		if ctx.Err() != nil {
			return nil, fmt.Errorf("espeak-ng cancelled: %w", ctx.Err())
		}
		return nil, fmt.Errorf("%w: %v, stderr: %s", ErrSynthesisFailed, err, strings.TrimSpace(stderr.String()))
	}

	data, err := os.ReadFile(outPath) // #nosec G304 - path created above
	if err != nil {
		return nil, fmt.Errorf("read synthesized audio: %w", err)
	}
	return data, nil
}
