// Package service exposes the synthesis pipeline on the bus: one request
// subject in, per-request result and progress subjects out.
package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/fasttts-labs/fasttts-core/internal/bus"
	"github.com/fasttts-labs/fasttts-core/internal/config"
	"github.com/fasttts-labs/fasttts-core/internal/pipeline"
	"github.com/fasttts-labs/fasttts-core/internal/progress"
	"github.com/fasttts-labs/fasttts-core/internal/protocol"
	"github.com/fasttts-labs/fasttts-core/internal/timing"
)

type Service struct {
	cfg     config.ServiceConfig
	bus     *bus.Client
	engine  *pipeline.Engine
	tracker *progress.Tracker
	sub     *nats.Subscription
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	logger  *slog.Logger
}

func NewService(parent context.Context, cfg config.ServiceConfig, busClient *bus.Client,
	engine *pipeline.Engine, tracker *progress.Tracker, log *slog.Logger) *Service {
	ctx, cancel := context.WithCancel(parent)
	return &Service{
		cfg:     cfg,
		bus:     busClient,
		engine:  engine,
		tracker: tracker,
		ctx:     ctx,
		cancel:  cancel,
		logger:  log.With(slog.String("component", "synthesis-service")),
	}
}

func (s *Service) Start() error {
	if !s.cfg.Enabled {
		return nil
	}
	sub, err := bus.SubscribeJSON(s.bus, protocol.SubjectSynthesize, s.handleRequest)
	if err != nil {
		return err
	}
	s.sub = sub
	s.logger.Info("listening for synthesis requests", slog.String("subject", protocol.SubjectSynthesize))
	return nil
}

func (s *Service) Close() {
	s.cancel()
	if s.sub != nil {
		_ = s.sub.Drain()
	}
	s.wg.Wait()
}

func (s *Service) Healthy() bool { return !s.cfg.Enabled || s.sub != nil }

func (s *Service) handleRequest(req protocol.SynthesizeRequest) {
	requestID := s.tracker.Create(req.RequestID)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ctx, cancel := requestContext(s.ctx, s.cfg)
		defer cancel()

		out, err := s.engine.Synthesize(ctx, pipeline.Request{
			Text:   req.Text,
			Voice:  req.Voice,
			Speed:  req.Speed,
			Volume: req.Volume,
		}, func(stage string, done, total int) {
			s.tracker.Update(requestID, stage, done, total, "")
		})

		if err != nil {
			s.tracker.Fail(requestID, err.Error())
			s.publishResult(failedResult(requestID, err))
			return
		}
		s.tracker.Complete(requestID)
		s.publishResult(successResult(requestID, out))
	}()
}

// requestContext bounds one synthesis job when a timeout is configured.
// Zero means no overall deadline: only the per-call timeouts of the
// provider, prober and aligner apply, so arbitrarily long texts can finish.
func requestContext(parent context.Context, cfg config.ServiceConfig) (context.Context, context.CancelFunc) {
	if cfg.RequestTimeoutSec <= 0 {
		return context.WithCancel(parent)
	}
	return context.WithTimeout(parent, time.Duration(cfg.RequestTimeoutSec)*time.Second)
}

func (s *Service) publishResult(result protocol.SynthesizeResult) {
	subject := protocol.ResultSubject(result.RequestID)
	if err := s.bus.PublishJSON(subject, result); err != nil {
		s.logger.Warn("failed to publish synthesis result",
			slog.String("request_id", result.RequestID), slogError(err))
	}
}

func successResult(requestID string, out pipeline.Output) protocol.SynthesizeResult {
	return protocol.SynthesizeResult{
		RequestID:  requestID,
		Audio:      out.Audio,
		Format:     out.Format,
		DurationMS: out.DurationMS,
		Timings:    wireTimings(out.Timings),
		Chunks:     out.Chunks,
		Aligned:    out.Aligned,
	}
}

func failedResult(requestID string, err error) protocol.SynthesizeResult {
	result := protocol.SynthesizeResult{RequestID: requestID, Error: err.Error()}
	var perr *pipeline.Error
	if errors.As(err, &perr) {
		result.ErrorKind = perr.Kind.String()
	}
	return result
}

func wireTimings(timings []timing.WordTiming) []protocol.WordTiming {
	out := make([]protocol.WordTiming, 0, len(timings))
	for _, t := range timings {
		out = append(out, protocol.WordTiming{
			Word:       t.Word,
			StartMS:    t.StartMS,
			EndMS:      t.EndMS,
			Source:     string(t.Source),
			Confidence: t.Confidence,
		})
	}
	return out
}

func slogError(err error) slog.Attr {
	return slog.String("error", err.Error())
}
