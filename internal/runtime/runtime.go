// Package runtime assembles the daemon: telemetry, bus, the synthesis
// pipeline and its bus-facing service, plus the HTTP health endpoints.
package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fasttts-labs/fasttts-core/internal/align"
	"github.com/fasttts-labs/fasttts-core/internal/audioprobe"
	"github.com/fasttts-labs/fasttts-core/internal/bus"
	"github.com/fasttts-labs/fasttts-core/internal/config"
	"github.com/fasttts-labs/fasttts-core/internal/natsserver"
	"github.com/fasttts-labs/fasttts-core/internal/pipeline"
	"github.com/fasttts-labs/fasttts-core/internal/progress"
	"github.com/fasttts-labs/fasttts-core/internal/service"
	"github.com/fasttts-labs/fasttts-core/internal/synth"
	"github.com/fasttts-labs/fasttts-core/internal/textseg"
)

type Runtime struct {
	cfg         config.Config
	logger      *slog.Logger
	httpServer  *http.Server
	tracerClose func(context.Context) error
	ready       atomic.Bool
	wg          sync.WaitGroup
}

func New(cfg config.Config, logger *slog.Logger) *Runtime {
	return &Runtime{
		cfg:    cfg,
		logger: logger,
	}
}

func (r *Runtime) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	shutdownTelemetry, metricHandler, err := setupTelemetry(r.cfg, r.logger)
	if err != nil {
		return fmt.Errorf("failed to setup telemetry: %w", err)
	}
	r.tracerClose = shutdownTelemetry

	embedded, err := natsserver.Start(r.cfg.Bus, r.logger)
	if err != nil {
		return fmt.Errorf("failed to start embedded bus: %w", err)
	}
	defer embedded.Shutdown()

	busClient, err := bus.Connect(ctx, r.cfg.Bus, r.logger)
	if err != nil {
		return fmt.Errorf("failed to connect to bus: %w", err)
	}
	defer busClient.Close()

	engine, err := r.buildEngine(ctx)
	if err != nil {
		return err
	}

	retention := time.Duration(r.cfg.Progress.SessionTTLSec) * time.Second
	tracker := progress.NewTracker(busClient, retention, r.logger)
	tracker.StartSweeper(ctx, time.Duration(r.cfg.Progress.SweepIntervalSec)*time.Second)

	svc := service.NewService(ctx, r.cfg.Service, busClient, engine, tracker, r.logger)
	if err := svc.Start(); err != nil {
		return fmt.Errorf("failed to start synthesis service: %w", err)
	}
	defer svc.Close()

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", r.handleHealth)
	mux.HandleFunc("/readyz", r.handleReady)
	if metricHandler != nil {
		mux.Handle("/metrics", metricHandler)
	}

	addr := fmt.Sprintf("%s:%d", r.cfg.HTTP.Bind, r.cfg.HTTP.Port)
	r.httpServer = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		if err := r.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			r.logger.Error("http server failed", slog.String("error", err.Error()))
		}
	}()

	r.ready.Store(true)
	r.logger.Info("runtime started", slog.String("addr", addr))

	<-ctx.Done()
	r.logger.Info("runtime stopping")
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := r.httpServer.Shutdown(shutdownCtx); err != nil {
		r.logger.Error("http shutdown error", slog.String("error", err.Error()))
	}
	r.wg.Wait()

	if r.tracerClose != nil {
		if err := r.tracerClose(shutdownCtx); err != nil {
			r.logger.Error("telemetry shutdown error", slog.String("error", err.Error()))
		}
	}

	return nil
}

// buildEngine constructs the pipeline from configuration.
func (r *Runtime) buildEngine(ctx context.Context) (*pipeline.Engine, error) {
	segmenter, err := textseg.New(r.cfg.Synthesis.ChunkWords)
	if err != nil {
		return nil, fmt.Errorf("failed to build segmenter: %w", err)
	}

	provider, catalog, err := synth.FromConfig(r.cfg.Synthesis)
	if err != nil {
		return nil, fmt.Errorf("failed to build synthesis provider: %w", err)
	}
	cooldown := time.Duration(r.cfg.Synthesis.RateCooldownSec) * time.Second
	client := synth.NewClient(provider, cooldown, r.logger)

	prober, err := audioprobe.New(r.cfg.Probe, r.cfg.Synthesis.BitrateBPS, r.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to build duration prober: %w", err)
	}

	var aligner align.Aligner
	if r.cfg.Alignment.Enabled {
		mfa, err := align.NewMFA(r.cfg.Alignment, r.logger)
		if err != nil {
			return nil, fmt.Errorf("failed to build aligner: %w", err)
		}
		// Probe now so the availability outcome lands in the startup logs.
		mfa.Available(ctx)
		aligner = mfa
	} else {
		r.logger.Info("forced alignment disabled, word timings will be estimated")
	}

	format := "mp3"
	if r.cfg.Synthesis.Mode == "mock" {
		format = "wav"
	}
	opts := pipeline.Options{
		CallsPerMinute: r.cfg.Synthesis.CallsPerMinute,
		DefaultVoice:   r.cfg.Synthesis.DefaultVoice,
		DefaultSpeed:   r.cfg.Synthesis.Speed,
		DefaultVolume:  r.cfg.Synthesis.Volume,
		Format:         format,
	}
	return pipeline.New(segmenter, client, catalog, prober, aligner, opts, r.logger), nil
}

func (r *Runtime) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (r *Runtime) handleReady(w http.ResponseWriter, _ *http.Request) {
	if r.ready.Load() {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
		return
	}
	w.WriteHeader(http.StatusServiceUnavailable)
	_, _ = w.Write([]byte("not ready"))
}
