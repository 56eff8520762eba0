// Package audio provides WAV quality analysis for uploaded recordings and a
// text-to-speech synthesizer for reference pronunciations.
package audio

import (
	"fmt"
	"strconv"
)

// Quality thresholds applied to every analyzed recording.
const (
	// MinHeaderSize is the size of the smallest canonical WAV header.
	MinHeaderSize = 44
	// MinDurationSeconds is the shortest accepted recording.
	MinDurationSeconds = 0.5
	// MaxDurationSeconds is the longest accepted recording.
	MaxDurationSeconds = 30.0
	// MinRMSLevel is the quietest accepted RMS level.
	MinRMSLevel = 0.01
	// ClippingThreshold is the normalized peak at which a recording counts as clipping.
	ClippingThreshold = 0.99
)

// Messages reported in Result.Error for structural failures.
const (
	MsgTooSmall = "Audio data too small to be a valid WAV file"
	MsgNotWAV   = "Not a valid WAV file"
	MsgClipping = "Audio is clipping"
)

// Outcome tells how far analysis got before producing a Result.
type Outcome int

const (
	// OutcomeAnalyzed means the container parsed and the quality checks ran.
	// Result.Valid carries the verdict.
	OutcomeAnalyzed Outcome = iota
	// OutcomeStructuralError means the buffer was too small or lacked RIFF/WAVE magic.
	OutcomeStructuralError
	// OutcomeParseError means the RIFF/WAVE chunk structure could not be parsed.
	OutcomeParseError
)

// String returns a lowercase name for the outcome.
func (o Outcome) String() string {
	switch o {
	case OutcomeAnalyzed:
		return "analyzed"
	case OutcomeStructuralError:
		return "structural_error"
	case OutcomeParseError:
		return "parse_error"
	default:
		return "unknown"
	}
}

// Result is the outcome of analyzing one WAV buffer.
// Valid is true if and only if Error is empty.
type Result struct {
	// SampleRate is the number of frames per second (0 when unknown).
	SampleRate int
	// Channels is the number of interleaved channels.
	Channels int
	// DurationSeconds is Samples/SampleRate, rounded to 3 decimals.
	DurationSeconds float64
	// Samples is the number of frames declared by the data chunk.
	Samples int
	// BitDepth is the number of bits per sample.
	BitDepth int
	// PeakAmplitude is the largest absolute normalized sample, rounded to 4 decimals.
	PeakAmplitude float64
	// RMSLevel is the root-mean-square of all normalized samples, rounded to 4 decimals.
	RMSLevel float64
	// Valid reports whether the recording passed every quality check.
	Valid bool
	// Error is the human-readable rejection or failure reason.
	Error string
	// Outcome discriminates structural and parse failures from analyzed audio.
	Outcome Outcome
}

// Analyze parses data as a WAV file, measures its duration, peak and RMS
// levels, and checks them against the quality thresholds.
//
// Analyze never fails: malformed input is reported through Result.Error with
// Result.Valid set to false. It keeps no reference to data and is safe for
// concurrent use.
func Analyze(data []byte) Result {
	if len(data) < MinHeaderSize {
		return Result{Error: MsgTooSmall, Outcome: OutcomeStructuralError}
	}
	if string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return Result{Error: MsgNotWAV, Outcome: OutcomeStructuralError}
	}

	w, err := parseWAV(data)
	if err != nil {
		return Result{
			Error:   fmt.Sprintf("Failed to parse WAV: %v", err),
			Outcome: OutcomeParseError,
		}
	}

	var duration float64
	if w.sampleRate > 0 {
		duration = float64(w.frames) / float64(w.sampleRate)
	}

	// Decode failures degrade metrics to zero; duration checks still apply.
	lv, err := measureLevels(w)
	if err != nil {
		lv = levels{}
	}

	reason := checkQuality(duration, lv)

	return Result{
		SampleRate:      w.sampleRate,
		Channels:        w.channels,
		DurationSeconds: roundTo(duration, 3),
		Samples:         w.frames,
		BitDepth:        w.bitDepth(),
		PeakAmplitude:   roundTo(lv.peak, 4),
		RMSLevel:        roundTo(lv.rms, 4),
		Valid:           reason == "",
		Error:           reason,
		Outcome:         OutcomeAnalyzed,
	}
}

// checkQuality returns the first failing check's message, or "" when the
// recording is acceptable. It compares unrounded values.
func checkQuality(duration float64, lv levels) string {
	switch {
	case duration < MinDurationSeconds:
		return fmt.Sprintf("Audio too short (%.2fs)", duration)
	case duration > MaxDurationSeconds:
		return fmt.Sprintf("Audio too long (%.2fs)", duration)
	case lv.rms < MinRMSLevel:
		return fmt.Sprintf("Audio too quiet (RMS %.3f)", lv.rms)
	case lv.peak >= ClippingThreshold:
		return MsgClipping
	default:
		return ""
	}
}

// roundTo rounds v to the given number of decimals using correctly rounded
// decimal conversion, so halfway cases follow the exact binary value.
func roundTo(v float64, decimals int) float64 {
	r, err := strconv.ParseFloat(strconv.FormatFloat(v, 'f', decimals, 64), 64)
	if err != nil {
		return v
	}
	return r
}
