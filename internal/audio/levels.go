package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// ErrUnsupportedBitDepth is returned when samples of the given depth cannot be decoded.
var ErrUnsupportedBitDepth = errors.New("wav: unsupported bit depth for level metering")

// ErrShortPayload is returned when the data chunk holds fewer bytes than its frames need.
var ErrShortPayload = errors.New("wav: sample payload shorter than declared frames")

// levels holds the amplitude metrics of a flat pool of normalized samples.
type levels struct {
	peak float64
	rms  float64
}

// measureLevels decodes the interleaved payload of w and returns the peak and
// RMS of all normalized samples across all channels. Only 8-bit unsigned and
// 16-bit signed little-endian PCM are supported.
func measureLevels(w *wavFile) (levels, error) {
	total := w.frames * w.channels
	if total == 0 {
		return levels{}, nil
	}

	var normalize func(b []byte) float64
	switch w.bitDepth() {
	case 16:
		normalize = func(b []byte) float64 {
			return float64(int16(binary.LittleEndian.Uint16(b))) / 32768.0
		}
	case 8:
		normalize = func(b []byte) float64 {
			return (float64(b[0]) - 128) / 128.0
		}
	default:
		return levels{}, fmt.Errorf("%w: %d", ErrUnsupportedBitDepth, w.bitDepth())
	}

	width := w.sampleWidth
	need := total * width
	if len(w.payload) < need {
		return levels{}, fmt.Errorf("%w: have %d bytes, need %d", ErrShortPayload, len(w.payload), need)
	}

	var peak, sumSquares float64
	for off := 0; off < need; off += width {
		v := normalize(w.payload[off : off+width])
		sumSquares += v * v
		if a := math.Abs(v); a > peak {
			peak = a
		}
	}

	return levels{
		peak: peak,
		rms:  math.Sqrt(sumSquares / float64(total)),
	}, nil
}
