package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// ErrFFmpegMissing is returned when the ffmpeg binary cannot be found.
var ErrFFmpegMissing = errors.New("audio: ffmpeg not found in PATH")

// ConversionError carries ffmpeg's stderr when a conversion fails.
type ConversionError struct {
	Detail string
	Err    error
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("ffmpeg conversion failed: %v", e.Err)
}

func (e *ConversionError) Unwrap() error { return e.Err }

// Converter runs ffmpeg to normalise uploads into 16 kHz mono 16-bit WAV.
type Converter struct {
	bin string
}

// NewConverter creates a Converter using the ffmpeg found in PATH.
func NewConverter() *Converter {
	return &Converter{bin: "ffmpeg"}
}

// NewConverterWithBinary creates a Converter using bin.
func NewConverterWithBinary(bin string) *Converter {
	return &Converter{bin: bin}
}

// Available reports whether the ffmpeg binary can be found.
func (c *Converter) Available() bool {
	_, err := exec.LookPath(c.bin)
	return err == nil
}

// ConvertTo16kWav converts src into a 16 kHz mono PCM WAV file at dst,
// overwriting dst.
func (c *Converter) ConvertTo16kWav(ctx context.Context, src, dst string) error {
	path, err := exec.LookPath(c.bin)
	if err != nil {
		return ErrFFmpegMissing
	}

	cmd := exec.CommandContext(ctx, path,
		"-nostdin", "-hide_banner", "-loglevel", "error",
		"-y", "-i", src,
		"-ar", "16000", "-ac", "1", "-c:a", "pcm_s16le",
		dst,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return &ConversionError{Detail: strings.TrimSpace(stderr.String()), Err: err}
	}
	return nil
}
