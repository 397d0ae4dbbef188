package synth

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os/exec"
	"sync"

	shellwords "github.com/mattn/go-shellwords"
)

// execProvider shells out to a synthesis command: one JSON request on stdin,
// one JSON response on stdout.
type execProvider struct {
	cmd []string
	mu  sync.Mutex
}

type execRequest struct {
	Text   string  `json:"text"`
	Voice  string  `json:"voice"`
	Speed  float64 `json:"speed"`
	Volume float64 `json:"volume"`
}

type execResponse struct {
	AudioBase64 string  `json:"audio_base64"`
	DurationMS  float64 `json:"duration_ms"`
}

func NewExec(command string) (Provider, error) {
	args, err := shellwords.NewParser().Parse(command)
	if err != nil {
		return nil, fmt.Errorf("parse synthesis command: %w", err)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("synthesis command empty")
	}
	return &execProvider{cmd: args}, nil
}

func (e *execProvider) Name() string { return "exec" }

func (e *execProvider) Synthesize(ctx context.Context, req Request) (Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	payload, err := json.Marshal(execRequest{
		Text:   req.Text,
		Voice:  req.Voice,
		Speed:  req.Speed,
		Volume: req.Volume,
	})
	if err != nil {
		return Result{}, failure(FailureData, "encode request: %w", err)
	}

	cmd := exec.CommandContext(ctx, e.cmd[0], e.cmd[1:]...)
	cmd.Stdin = bytes.NewReader(payload)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return Result{}, ctx.Err()
		}
		return Result{}, failure(FailureTransient, "synthesis command failed: %w: %s", err, stderr.String())
	}

	var resp execResponse
	if err := json.Unmarshal(stdout.Bytes(), &resp); err != nil {
		return Result{}, failure(FailureData, "decode synthesis response: %w", err)
	}
	if resp.AudioBase64 == "" {
		return Result{}, failure(FailureData, "no audio payload in response")
	}
	audio, err := base64.StdEncoding.DecodeString(resp.AudioBase64)
	if err != nil {
		return Result{}, failure(FailureData, "decode audio payload: %w", err)
	}

	result := Result{Audio: audio}
	if resp.DurationMS > 0 {
		result.Coarse = &CoarseTiming{Text: req.Text, StartMS: 0, EndMS: resp.DurationMS}
	}
	return result, nil
}
