package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"deskrelay/internal/core/domain"
	"deskrelay/internal/core/ports"
	"deskrelay/pkg/retry"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

var errCaptureFailed = errors.New("capture failed")

type CaptureConfig struct {
	// Interval is the target spacing between frames.
	Interval time.Duration
	// RetryDelay is the pause after the display reports no frame ready.
	RetryDelay time.Duration
	// ErrorDelay is the pause after any other capture error.
	ErrorDelay time.Duration
}

type CaptureService struct {
	display ports.DisplayCapturer
	encoder ports.FrameEncoder
	sink    ports.FrameSink
	metrics ports.MetricsRecorder
	config  CaptureConfig
	logger  *zap.SugaredLogger
	limiter *rate.Limiter
	retry   retry.Config
}

func NewCaptureService(
	display ports.DisplayCapturer,
	encoder ports.FrameEncoder,
	sink ports.FrameSink,
	metrics ports.MetricsRecorder,
	config CaptureConfig,
	logger *zap.SugaredLogger,
) *CaptureService {
	s := &CaptureService{
		display: display,
		encoder: encoder,
		sink:    sink,
		metrics: metrics,
		config:  config,
		logger:  logger,
		limiter: rate.NewLimiter(rate.Every(config.Interval), 1),
	}

	s.retry = retry.Fixed(config.RetryDelay)
	s.retry.NonRetryableErrors = []error{errCaptureFailed}
	s.retry.OnRetry = func(int, error) {
		metrics.RecordCaptureRetry()
	}
	return s
}

// Run captures, encodes and publishes frames until ctx is done. Failures are
// contained to the frame they occur in.
func (s *CaptureService) Run(ctx context.Context) error {
	bounds := s.display.Bounds()
	s.logger.Infow("Capture loop started",
		"width", bounds.Dx(),
		"height", bounds.Dy(),
		"interval", s.config.Interval,
	)
	defer s.logger.Infow("Capture loop stopped")

	for {
		if err := s.limiter.Wait(ctx); err != nil {
			// Wait fails early when the deadline falls before the next token.
			<-ctx.Done()
			return ctx.Err()
		}

		if err := s.Tick(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.logger.Warnw("Capture failed", "error", err)

			timer := time.NewTimer(s.config.ErrorDelay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}
	}
}

// Tick runs a single capture iteration. An encode failure drops the frame
// and is not reported as an error.
func (s *CaptureService) Tick(ctx context.Context) error {
	frame, err := retry.RetryWithResult(ctx, s.retry, func() (*domain.RawFrame, error) {
		f, err := s.display.Capture(ctx)
		if err == nil {
			return f, nil
		}
		if errors.Is(err, domain.ErrCaptureUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", errCaptureFailed, err)
	})
	if err != nil {
		return err
	}
	s.metrics.RecordFrameCaptured()
	capturedAt := time.Now()

	start := time.Now()
	data, width, height, err := s.encoder.Encode(frame)
	if err != nil {
		s.metrics.RecordFrameDropped("encode")
		s.logger.Debugw("Frame dropped", "error", err)
		return nil
	}
	s.metrics.RecordFrameEncoded(len(data), time.Since(start))

	seq := s.sink.Publish(domain.EncodedFrame{
		Data:       data,
		Width:      width,
		Height:     height,
		CapturedAt: capturedAt,
	})
	s.logger.Debugw("Frame published", "seq", seq, "bytes", len(data))
	return nil
}
