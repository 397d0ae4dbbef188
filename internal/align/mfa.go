package align

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"
	"unicode"

	shellwords "github.com/mattn/go-shellwords"

	"github.com/fasttts-labs/fasttts-core/internal/config"
	"github.com/fasttts-labs/fasttts-core/internal/timing"
)

// MFA drives the Montreal Forced Aligner CLI. Each Align call builds a
// one-utterance corpus in a temp directory, converts the audio to the 16kHz
// mono WAV the aligner expects, and parses the resulting TextGrid.
type MFA struct {
	command       []string
	ffmpegCommand []string
	acousticModel string
	dictionary    string
	timeout       time.Duration
	logger        *slog.Logger

	probeOnce sync.Once
	available bool
}

func NewMFA(cfg config.AlignmentConfig, logger *slog.Logger) (*MFA, error) {
	command, err := shellwords.Parse(cfg.Command)
	if err != nil {
		return nil, fmt.Errorf("parse aligner command: %w", err)
	}
	if len(command) == 0 {
		return nil, fmt.Errorf("aligner command is empty")
	}
	ffmpegCommand, err := shellwords.Parse(cfg.FFmpegCommand)
	if err != nil {
		return nil, fmt.Errorf("parse ffmpeg command: %w", err)
	}
	if len(ffmpegCommand) == 0 {
		return nil, fmt.Errorf("ffmpeg command is empty")
	}
	return &MFA{
		command:       command,
		ffmpegCommand: ffmpegCommand,
		acousticModel: cfg.AcousticModel,
		dictionary:    cfg.Dictionary,
		timeout:       time.Duration(cfg.TimeoutSec) * time.Second,
		logger:        logger.With(slog.String("component", "aligner")),
	}, nil
}

// Available probes the aligner binary and its models once and caches the
// answer. A missing binary or model means every chunk will use estimated
// timings, so the probe result is logged at startup volume.
func (m *MFA) Available(ctx context.Context) bool {
	m.probeOnce.Do(func() {
		m.available = m.probe(ctx)
		if m.available {
			m.logger.Info("forced aligner available",
				slog.String("acoustic_model", m.acousticModel),
				slog.String("dictionary", m.dictionary))
		} else {
			m.logger.Warn("forced aligner unavailable, word timings will be estimated")
		}
	})
	return m.available
}

func (m *MFA) probe(ctx context.Context) bool {
	if _, err := m.run(ctx, 15*time.Second, "version"); err != nil {
		m.logger.Debug("aligner version probe failed", slog.String("error", err.Error()))
		return false
	}
	acoustic, err := m.run(ctx, 30*time.Second, "model", "list", "acoustic")
	if err != nil || !strings.Contains(acoustic, m.acousticModel) {
		m.logger.Debug("acoustic model not installed", slog.String("model", m.acousticModel))
		return false
	}
	dict, err := m.run(ctx, 30*time.Second, "model", "list", "dictionary")
	if err != nil || !strings.Contains(dict, m.dictionary) {
		m.logger.Debug("dictionary not installed", slog.String("dictionary", m.dictionary))
		return false
	}
	return true
}

// DownloadModels fetches the configured acoustic model and dictionary. This
// is an operator action, typically run once at install time.
func (m *MFA) DownloadModels(ctx context.Context) error {
	if _, err := m.run(ctx, 10*time.Minute, "model", "download", "acoustic", m.acousticModel); err != nil {
		return fmt.Errorf("download acoustic model %s: %w", m.acousticModel, err)
	}
	if _, err := m.run(ctx, 10*time.Minute, "model", "download", "dictionary", m.dictionary); err != nil {
		return fmt.Errorf("download dictionary %s: %w", m.dictionary, err)
	}
	return nil
}

func (m *MFA) Align(ctx context.Context, audio []byte, words []string, totalDurationMS float64) ([]timing.WordTiming, error) {
	if !m.Available(ctx) {
		return nil, ErrUnavailable
	}
	transcript := prepareTranscript(words)
	if transcript == "" {
		return nil, fmt.Errorf("no alignable words in transcript")
	}

	workDir, err := os.MkdirTemp("", "fasttts-align-")
	if err != nil {
		return nil, fmt.Errorf("create alignment workspace: %w", err)
	}
	defer os.RemoveAll(workDir)

	corpusDir := filepath.Join(workDir, "corpus")
	outDir := filepath.Join(workDir, "aligned")
	if err := os.MkdirAll(corpusDir, 0o755); err != nil {
		return nil, fmt.Errorf("create corpus dir: %w", err)
	}

	rawPath := filepath.Join(workDir, "input.audio")
	if err := os.WriteFile(rawPath, audio, 0o644); err != nil {
		return nil, fmt.Errorf("write request audio: %w", err)
	}
	wavPath := filepath.Join(corpusDir, "utt.wav")
	if err := m.convertAudio(ctx, rawPath, wavPath); err != nil {
		return nil, err
	}
	labPath := filepath.Join(corpusDir, "utt.lab")
	if err := os.WriteFile(labPath, []byte(transcript), 0o644); err != nil {
		return nil, fmt.Errorf("write transcript: %w", err)
	}

	start := time.Now()
	if _, err := m.run(ctx, m.timeout,
		"align", corpusDir, m.dictionary, m.acousticModel, outDir,
		"--clean", "--quiet"); err != nil {
		return nil, fmt.Errorf("run aligner: %w", err)
	}

	gridPath := filepath.Join(outDir, "utt.TextGrid")
	content, err := os.ReadFile(gridPath)
	if err != nil {
		return nil, fmt.Errorf("read alignment output: %w", err)
	}
	timings := boundTimings(parseTextGrid(string(content)), totalDurationMS)
	if len(timings) == 0 {
		return nil, fmt.Errorf("aligner produced no word intervals")
	}

	m.logger.Debug("audio aligned",
		slog.Int("words_in", len(words)),
		slog.Int("words_aligned", len(timings)),
		slog.Duration("elapsed", time.Since(start)))
	return timings, nil
}

// convertAudio transcodes the audio into the 16kHz mono PCM WAV the aligner
// expects, regardless of the provider's output format.
func (m *MFA) convertAudio(ctx context.Context, src, dst string) error {
	runCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	args := append(append([]string{}, m.ffmpegCommand[1:]...),
		"-y", "-i", src,
		"-ar", "16000", "-ac", "1", "-sample_fmt", "s16",
		dst)
	cmd := exec.CommandContext(runCtx, m.ffmpegCommand[0], args...)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("convert audio for alignment: %w: %s", err, truncate(string(out), 200))
	}
	return nil
}

func (m *MFA) run(ctx context.Context, timeout time.Duration, args ...string) (string, error) {
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	full := append(append([]string{}, m.command[1:]...), args...)
	cmd := exec.CommandContext(runCtx, m.command[0], full...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("%s %s: %w: %s", m.command[0], strings.Join(args, " "), err, truncate(string(out), 200))
	}
	return string(out), nil
}

// boundTimings sanity-checks aligned intervals against the known audio
// duration. The tool occasionally hallucinates trailing intervals past the
// end of short recordings; those are dropped, and an interval straddling
// the end is clamped to it.
func boundTimings(timings []timing.WordTiming, totalDurationMS float64) []timing.WordTiming {
	if totalDurationMS <= 0 {
		return timings
	}
	out := timings[:0]
	for _, t := range timings {
		if t.StartMS >= totalDurationMS {
			continue
		}
		if t.EndMS > totalDurationMS {
			t.EndMS = totalDurationMS
		}
		out = append(out, t)
	}
	return out
}

// prepareTranscript joins the request's words into the single-line
// transcript MFA reads, dropping tokens with no letters or digits since the
// aligner has no pronunciations for bare punctuation.
func prepareTranscript(words []string) string {
	kept := make([]string, 0, len(words))
	for _, w := range words {
		if hasLexicalRune(w) {
			kept = append(kept, w)
		}
	}
	return strings.Join(kept, " ")
}

func hasLexicalRune(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsNumber(r) {
			return true
		}
	}
	return false
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
