package capability

import (
	"fmt"

	"deskrelay/internal/core/ports"
	"deskrelay/internal/infrastructure/display"
	"deskrelay/internal/infrastructure/imaging"
	"deskrelay/internal/infrastructure/input"
	"deskrelay/internal/infrastructure/input/desktop"
	"deskrelay/pkg/config"

	"go.uber.org/zap"
)

const (
	syntheticWidth  = 1280
	syntheticHeight = 720
	logInjectorKeep = 64
)

// Factory builds the OS-facing capabilities selected in the configuration.
type Factory struct {
	cfg    *config.Config
	logger *zap.SugaredLogger
}

func NewFactory(cfg *config.Config, logger *zap.SugaredLogger) *Factory {
	return &Factory{cfg: cfg, logger: logger}
}

// CreateDisplay returns the configured capturer. A missing display is
// reported as domain.ErrNoDisplay and is not recoverable.
func (f *Factory) CreateDisplay() (ports.DisplayCapturer, error) {
	switch f.cfg.Capture.Backend {
	case "synthetic":
		f.logger.Infow("Using synthetic display", "width", syntheticWidth, "height", syntheticHeight)
		return display.NewSyntheticCapturer(syntheticWidth, syntheticHeight), nil
	case "screen":
		c, err := display.NewScreenCapturer(f.cfg.Capture.Display)
		if err != nil {
			return nil, err
		}
		f.logger.Infow("Using screen display",
			"display", f.cfg.Capture.Display,
			"bounds", c.Bounds().String(),
			"displays", len(display.Screens()),
		)
		return c, nil
	default:
		return nil, fmt.Errorf("unknown capture backend %q", f.cfg.Capture.Backend)
	}
}

// CreateEncoder returns the JPEG encoder for the configured quality,
// downscale factor and filter.
func (f *Factory) CreateEncoder() (*imaging.JPEGEncoder, error) {
	filter, err := imaging.ParseFilter(f.cfg.Capture.Filter)
	if err != nil {
		return nil, err
	}
	return imaging.NewJPEGEncoder(f.cfg.Capture.Quality, f.cfg.Capture.Downscale, filter), nil
}

// CreateInjector returns the configured injector, falling back to the log
// injector when the desktop one cannot start.
func (f *Factory) CreateInjector() ports.Injector {
	if f.cfg.Input.Backend == "robotgo" {
		inj, err := desktop.NewRobotgoInjector()
		if err == nil {
			f.logger.Info("Using desktop input injection")
			return inj
		}
		f.logger.Warnw("Desktop input injection unavailable, falling back to log injector", "error", err)
	}
	f.logger.Info("Using log injector")
	return input.NewLogInjector(f.logger, logInjectorKeep)
}

// DeviceScale resolves input.device_scale, asking the injector and then the
// display when it is left at zero.
func (f *Factory) DeviceScale(disp ports.DisplayCapturer, inj ports.Injector) float64 {
	if f.cfg.Input.DeviceScale > 0 {
		return f.cfg.Input.DeviceScale
	}
	if s, ok := inj.(interface{ ScaleFactor() float64 }); ok {
		if v := s.ScaleFactor(); v > 0 {
			return v
		}
	}
	return disp.ScaleFactor()
}
