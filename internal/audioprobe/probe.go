// Package audioprobe determines the true playback duration of an audio blob
// through a layered strategy: container metadata first, an external probing
// tool second, a byte-rate estimate last.
package audioprobe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"time"

	"github.com/go-audio/wav"
	shellwords "github.com/mattn/go-shellwords"
	"github.com/tcolgate/mp3"

	"github.com/fasttts-labs/fasttts-core/internal/config"
)

// minDurationMS floors every probe result so downstream offset arithmetic
// never sees zero or negative spans.
const minDurationMS = 100

var errEmptyAudio = errors.New("no audio data to probe")

// Prober resolves audio durations. The byte-rate tier always succeeds, so a
// Prober returns an error only for empty input.
type Prober struct {
	ffprobeCmd []string
	timeout    time.Duration
	bitrateBPS int
	logger     *slog.Logger
}

func New(cfg config.ProbeConfig, bitrateBPS int, logger *slog.Logger) (*Prober, error) {
	var cmd []string
	if cfg.FFprobeCommand != "" {
		parsed, err := shellwords.NewParser().Parse(cfg.FFprobeCommand)
		if err != nil {
			return nil, fmt.Errorf("parse ffprobe command: %w", err)
		}
		cmd = parsed
	}
	if bitrateBPS <= 0 {
		bitrateBPS = 128000
	}
	return &Prober{
		ffprobeCmd: cmd,
		timeout:    time.Duration(cfg.TimeoutSec) * time.Second,
		bitrateBPS: bitrateBPS,
		logger:     logger.With(slog.String("component", "audioprobe")),
	}, nil
}

// DurationMS returns the playback duration of the blob in milliseconds,
// always at least minDurationMS.
func (p *Prober) DurationMS(ctx context.Context, data []byte) (float64, error) {
	if len(data) == 0 {
		return 0, errEmptyAudio
	}

	if ms, err := containerDuration(data); err == nil {
		return floor(ms), nil
	} else {
		p.logger.Debug("container metadata probe failed", slog.String("error", err.Error()))
	}

	if len(p.ffprobeCmd) > 0 {
		if ms, err := p.ffprobeDuration(ctx, data); err == nil {
			return floor(ms), nil
		} else {
			p.logger.Debug("ffprobe probe failed", slog.String("error", err.Error()))
		}
	}

	ms := float64(len(data)) / (float64(p.bitrateBPS) / 8) * 1000
	return floor(ms), nil
}

func floor(ms float64) float64 {
	if ms < minDurationMS {
		return minDurationMS
	}
	return ms
}

// containerDuration parses the container directly: WAV via header metadata,
// MP3 by walking frames.
func containerDuration(data []byte) (float64, error) {
	switch {
	case bytes.HasPrefix(data, []byte("RIFF")):
		return wavDuration(data)
	case bytes.HasPrefix(data, []byte("ID3")), len(data) > 1 && data[0] == 0xFF && data[1]&0xE0 == 0xE0:
		return mp3Duration(data)
	default:
		return 0, errors.New("unrecognized container format")
	}
}

func wavDuration(data []byte) (float64, error) {
	decoder := wav.NewDecoder(bytes.NewReader(data))
	dur, err := decoder.Duration()
	if err != nil {
		return 0, fmt.Errorf("decode wav duration: %w", err)
	}
	if dur <= 0 {
		return 0, errors.New("wav reports non-positive duration")
	}
	return float64(dur.Milliseconds()), nil
}

func mp3Duration(data []byte) (float64, error) {
	decoder := mp3.NewDecoder(bytes.NewReader(data))
	var (
		frame   mp3.Frame
		skipped int
		total   time.Duration
		frames  int
	)
	for {
		if err := decoder.Decode(&frame, &skipped); err != nil {
			if err == io.EOF || errors.Is(err, io.ErrUnexpectedEOF) {
				break
			}
			if frames > 0 {
				// Trailing garbage after valid frames; keep what we have.
				break
			}
			return 0, fmt.Errorf("decode mp3 frame: %w", err)
		}
		total += frame.Duration()
		frames++
	}
	if frames == 0 || total <= 0 {
		return 0, errors.New("no decodable mp3 frames")
	}
	return float64(total) / float64(time.Millisecond), nil
}

type ffprobeReport struct {
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

func (p *Prober) ffprobeDuration(ctx context.Context, data []byte) (float64, error) {
	file, err := os.CreateTemp("", "fasttts_probe_*.mp3")
	if err != nil {
		return 0, fmt.Errorf("temp file: %w", err)
	}
	defer os.Remove(file.Name())
	if _, err := file.Write(data); err != nil {
		file.Close()
		return 0, fmt.Errorf("write temp file: %w", err)
	}
	file.Close()

	runCtx := ctx
	if p.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	args := append([]string{}, p.ffprobeCmd[1:]...)
	args = append(args, "-v", "quiet", "-print_format", "json", "-show_format", file.Name())
	cmd := exec.CommandContext(runCtx, p.ffprobeCmd[0], args...)
	out, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("run ffprobe: %w", err)
	}

	var report ffprobeReport
	if err := json.Unmarshal(out, &report); err != nil {
		return 0, fmt.Errorf("decode ffprobe report: %w", err)
	}
	seconds, err := strconv.ParseFloat(report.Format.Duration, 64)
	if err != nil {
		return 0, fmt.Errorf("parse ffprobe duration %q: %w", report.Format.Duration, err)
	}
	if seconds <= 0 {
		return 0, errors.New("ffprobe reports non-positive duration")
	}
	return seconds * 1000, nil
}
