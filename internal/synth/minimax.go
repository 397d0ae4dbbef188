package synth

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/fasttts-labs/fasttts-core/internal/config"
)

// minimaxRateLimitCode is the embedded status code the provider uses for
// requests-per-minute rejections delivered with a 200 transport status.
const minimaxRateLimitCode = 1002

type minimaxProvider struct {
	endpoint   string
	apiKey     string
	groupID    string
	model      string
	sampleRate int
	bitrateBPS int
	client     *http.Client
}

// NewMinimax builds the HTTP provider for the MiniMax t2a API.
func NewMinimax(cfg config.SynthesisConfig) Provider {
	timeout := time.Duration(cfg.RequestTimeoutMS) * time.Millisecond
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &minimaxProvider{
		endpoint:   cfg.Endpoint,
		apiKey:     cfg.APIKey,
		groupID:    cfg.GroupID,
		model:      cfg.Model,
		sampleRate: cfg.SampleRate,
		bitrateBPS: cfg.BitrateBPS,
		client:     &http.Client{Timeout: timeout},
	}
}

func (p *minimaxProvider) Name() string { return "minimax" }

type minimaxVoiceSetting struct {
	VoiceID string  `json:"voice_id"`
	Speed   float64 `json:"speed"`
	Volume  float64 `json:"vol"`
	Pitch   int     `json:"pitch"`
}

type minimaxAudioSetting struct {
	SampleRate int    `json:"sample_rate"`
	Bitrate    int    `json:"bitrate"`
	Format     string `json:"format"`
	Channel    int    `json:"channel"`
}

type minimaxRequest struct {
	Model        string              `json:"model"`
	Text         string              `json:"text"`
	Stream       bool                `json:"stream"`
	VoiceSetting minimaxVoiceSetting `json:"voice_setting"`
	AudioSetting minimaxAudioSetting `json:"audio_setting"`
}

type minimaxResponse struct {
	BaseResp struct {
		StatusCode int    `json:"status_code"`
		StatusMsg  string `json:"status_msg"`
	} `json:"base_resp"`
	Data struct {
		Audio string `json:"audio"`
	} `json:"data"`
	ExtraInfo struct {
		AudioLengthMS float64 `json:"audio_length"`
	} `json:"extra_info"`
}

func (p *minimaxProvider) Synthesize(ctx context.Context, req Request) (Result, error) {
	payload := minimaxRequest{
		Model:  p.model,
		Text:   req.Text,
		Stream: false,
		VoiceSetting: minimaxVoiceSetting{
			VoiceID: req.Voice,
			Speed:   req.Speed,
			Volume:  req.Volume,
		},
		AudioSetting: minimaxAudioSetting{
			SampleRate: p.sampleRate,
			Bitrate:    p.bitrateBPS,
			Format:     "mp3",
			Channel:    1,
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return Result{}, failure(FailureData, "encode request: %w", err)
	}

	url := fmt.Sprintf("%s?GroupId=%s", p.endpoint, p.groupID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return Result{}, failure(FailureData, "build request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return Result{}, err
		}
		return Result{}, failure(FailureTransient, "provider request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return Result{}, failure(FailureRateLimited, "provider returned status %s", resp.Status)
	case resp.StatusCode >= 500:
		return Result{}, failure(FailureTransient, "provider returned status %s", resp.Status)
	case resp.StatusCode >= 300:
		return Result{}, failure(FailureData, "provider returned status %s", resp.Status)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{}, failure(FailureTransient, "read response: %w", err)
	}

	var decoded minimaxResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return Result{}, failure(FailureData, "decode response: %w", err)
	}
	if code := decoded.BaseResp.StatusCode; code != 0 {
		if code == minimaxRateLimitCode {
			return Result{}, failure(FailureRateLimited, "provider error %d: %s", code, decoded.BaseResp.StatusMsg)
		}
		return Result{}, failure(FailureData, "provider error %d: %s", code, decoded.BaseResp.StatusMsg)
	}
	if decoded.Data.Audio == "" {
		return Result{}, failure(FailureData, "no audio payload in response")
	}

	audio, err := hex.DecodeString(decoded.Data.Audio)
	if err != nil {
		return Result{}, failure(FailureData, "decode audio payload: %w", err)
	}

	result := Result{Audio: audio}
	if decoded.ExtraInfo.AudioLengthMS > 0 {
		result.Coarse = &CoarseTiming{Text: req.Text, StartMS: 0, EndMS: decoded.ExtraInfo.AudioLengthMS}
	}
	return result, nil
}
