package synth

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/fasttts-labs/fasttts-core/internal/config"
)

func minimaxConfig(endpoint string) config.SynthesisConfig {
	return config.SynthesisConfig{
		Mode:             "minimax",
		Endpoint:         endpoint,
		APIKey:           "test-key",
		GroupID:          "test-group",
		Model:            "speech-02-turbo",
		SampleRate:       32000,
		BitrateBPS:       128000,
		RequestTimeoutMS: 5000,
	}
}

func successBody(audio []byte, lengthMS float64) map[string]any {
	return map[string]any{
		"base_resp":  map[string]any{"status_code": 0},
		"data":       map[string]any{"audio": hex.EncodeToString(audio)},
		"extra_info": map[string]any{"audio_length": lengthMS},
	}
}

func TestMinimaxSynthesizeSuccess(t *testing.T) {
	audio := []byte{0xFF, 0xFB, 0x90, 0x00, 0x01, 0x02}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("unexpected auth header %q", got)
		}
		if got := r.URL.Query().Get("GroupId"); got != "test-group" {
			t.Errorf("unexpected group id %q", got)
		}
		var req minimaxRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Text != "你好世界" {
			t.Errorf("unexpected text %q", req.Text)
		}
		json.NewEncoder(w).Encode(successBody(audio, 1234))
	}))
	defer srv.Close()

	p := NewMinimax(minimaxConfig(srv.URL))
	res, err := p.Synthesize(context.Background(), Request{Text: "你好世界", Voice: "v1", Speed: 1, Volume: 0.8})
	if err != nil {
		t.Fatalf("synthesize: %v", err)
	}
	if len(res.Audio) != len(audio) {
		t.Fatalf("unexpected audio length %d", len(res.Audio))
	}
	if res.Coarse == nil || res.Coarse.EndMS != 1234 {
		t.Fatalf("expected coarse timing of 1234ms, got %+v", res.Coarse)
	}
}

func TestMinimaxClassifiesRateLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	p := NewMinimax(minimaxConfig(srv.URL))
	_, err := p.Synthesize(context.Background(), Request{Text: "你好"})
	var perr *ProviderError
	if !errors.As(err, &perr) || perr.Kind != FailureRateLimited {
		t.Fatalf("expected rate-limited classification, got %v", err)
	}
}

func TestMinimaxClassifiesEmbeddedError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"base_resp": map[string]any{"status_code": 2013, "status_msg": "invalid params"},
		})
	}))
	defer srv.Close()

	p := NewMinimax(minimaxConfig(srv.URL))
	_, err := p.Synthesize(context.Background(), Request{Text: "你好"})
	var perr *ProviderError
	if !errors.As(err, &perr) || perr.Kind != FailureData {
		t.Fatalf("expected data classification, got %v", err)
	}
}

func TestMinimaxEmbeddedRateLimitCode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"base_resp": map[string]any{"status_code": minimaxRateLimitCode, "status_msg": "rate limit"},
		})
	}))
	defer srv.Close()

	p := NewMinimax(minimaxConfig(srv.URL))
	_, err := p.Synthesize(context.Background(), Request{Text: "你好"})
	var perr *ProviderError
	if !errors.As(err, &perr) || perr.Kind != FailureRateLimited {
		t.Fatalf("expected rate-limited classification, got %v", err)
	}
}

func TestMinimaxEmptyAudioIsDataError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(successBody(nil, 0))
	}))
	defer srv.Close()

	p := NewMinimax(minimaxConfig(srv.URL))
	_, err := p.Synthesize(context.Background(), Request{Text: "你好"})
	var perr *ProviderError
	if !errors.As(err, &perr) || perr.Kind != FailureData {
		t.Fatalf("expected data classification for empty audio, got %v", err)
	}
}

func TestMinimaxServerErrorIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	p := NewMinimax(minimaxConfig(srv.URL))
	_, err := p.Synthesize(context.Background(), Request{Text: "你好"})
	var perr *ProviderError
	if !errors.As(err, &perr) || perr.Kind != FailureTransient {
		t.Fatalf("expected transient classification, got %v", err)
	}
}
