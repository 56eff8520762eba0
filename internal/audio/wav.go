package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"golang.org/x/image/riff"
)

// WAVE format tags accepted by the container parser.
const (
	formatPCM        = 0x0001
	formatExtensible = 0xFFFE
)

var (
	waveID      = riff.FourCC{'W', 'A', 'V', 'E'}
	fmtChunkID  = riff.FourCC{'f', 'm', 't', ' '}
	dataChunkID = riff.FourCC{'d', 'a', 't', 'a'}
)

// Static errors for WAV container parsing.
var (
	// ErrNotWave is returned when the RIFF form type is not WAVE.
	ErrNotWave = errors.New("wav: RIFF form type is not WAVE")
	// ErrFmtTooShort is returned when the fmt chunk cannot hold a PCM header.
	ErrFmtTooShort = errors.New("wav: fmt chunk too short")
	// ErrBadChannels is returned when the fmt chunk declares zero channels.
	ErrBadChannels = errors.New("wav: bad number of channels")
	// ErrBadSampleWidth is returned when the fmt chunk declares zero bits per sample.
	ErrBadSampleWidth = errors.New("wav: bad sample width")
	// ErrDataBeforeFmt is returned when the data chunk precedes the fmt chunk.
	ErrDataBeforeFmt = errors.New("wav: data chunk before fmt chunk")
	// ErrMissingChunks is returned when the container ends without fmt and data chunks.
	ErrMissingChunks = errors.New("wav: fmt chunk and/or data chunk missing")
)

// wavFile is the parsed view of a WAV container.
type wavFile struct {
	channels    int
	sampleRate  int
	sampleWidth int // bytes per sample
	frames      int
	payload     []byte // interleaved samples, possibly shorter than declared
}

func (w *wavFile) bitDepth() int {
	return w.sampleWidth * 8
}

func (w *wavFile) frameSize() int {
	return w.channels * w.sampleWidth
}

// parseWAV walks the RIFF chunks of data and returns the format and sample
// payload. Chunks other than "fmt " and "data" are skipped. Parsing stops at
// the data chunk; anything after it is not inspected.
func parseWAV(data []byte) (*wavFile, error) {
	formType, rr, err := riff.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	if formType != waveID {
		return nil, ErrNotWave
	}

	var (
		w       wavFile
		haveFmt bool
	)
	for {
		chunkID, chunkLen, chunkData, err := rr.Next()
		if errors.Is(err, io.EOF) {
			return nil, ErrMissingChunks
		}
		if err != nil {
			return nil, err
		}

		switch chunkID {
		case fmtChunkID:
			b, err := io.ReadAll(chunkData)
			if err != nil {
				return nil, fmt.Errorf("read fmt chunk: %w", err)
			}
			if err := w.readFormat(b); err != nil {
				return nil, err
			}
			haveFmt = true
		case dataChunkID:
			if !haveFmt {
				return nil, ErrDataBeforeFmt
			}
			// A truncated file yields fewer bytes than chunkLen; the frame
			// count still follows the declared length.
			payload, err := io.ReadAll(chunkData)
			if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
				return nil, fmt.Errorf("read data chunk: %w", err)
			}
			w.frames = int(chunkLen) / w.frameSize()
			w.payload = payload
			return &w, nil
		}
	}
}

// readFormat decodes a fmt chunk body.
func (w *wavFile) readFormat(b []byte) error {
	if len(b) < 16 {
		return ErrFmtTooShort
	}

	tag := binary.LittleEndian.Uint16(b[0:2])
	channels := binary.LittleEndian.Uint16(b[2:4])
	sampleRate := binary.LittleEndian.Uint32(b[4:8])
	bitsPerSample := binary.LittleEndian.Uint16(b[14:16])

	switch tag {
	case formatPCM:
	case formatExtensible:
		// cbSize(2) validBits(2) channelMask(4) subFormat GUID(16)
		if len(b) < 40 {
			return ErrFmtTooShort
		}
		if sub := binary.LittleEndian.Uint16(b[24:26]); sub != formatPCM {
			return fmt.Errorf("wav: unknown extended format: %d", sub)
		}
	default:
		return fmt.Errorf("wav: unknown format: %d", tag)
	}

	w.sampleWidth = (int(bitsPerSample) + 7) / 8
	if w.sampleWidth == 0 {
		return ErrBadSampleWidth
	}
	if channels == 0 {
		return ErrBadChannels
	}
	w.channels = int(channels)
	w.sampleRate = int(sampleRate)
	return nil
}
