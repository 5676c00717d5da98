package audio

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/go-audio/wav"
)

// TargetSampleRate is the sample rate speech recognition expects.
const TargetSampleRate = 16000

// ErrInvalidWav is returned when the data is not a readable WAV file.
var ErrInvalidWav = errors.New("audio: invalid wav file")

// WavInfo describes a WAV file's format.
type WavInfo struct {
	SampleRate int
	Channels   int
	BitDepth   int
	Duration   time.Duration
}

// IsSpeechReady reports whether the file is already 16 kHz mono 16-bit PCM.
func (i WavInfo) IsSpeechReady() bool {
	return i.SampleRate == TargetSampleRate && i.Channels == 1 && i.BitDepth == 16
}

// InspectWav reads the header of a WAV stream.
func InspectWav(r io.ReadSeeker) (*WavInfo, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return nil, ErrInvalidWav
	}

	if err := dec.FwdToPCM(); err != nil {
		return nil, fmt.Errorf("failed to locate wav data chunk: %w", err)
	}

	info := &WavInfo{
		SampleRate: int(dec.SampleRate),
		Channels:   int(dec.NumChans),
		BitDepth:   int(dec.BitDepth),
	}
	bytesPerSec := info.SampleRate * info.Channels * info.BitDepth / 8
	if bytesPerSec > 0 {
		info.Duration = time.Duration(int64(dec.PCMSize) * int64(time.Second) / int64(bytesPerSec))
	}
	return info, nil
}
