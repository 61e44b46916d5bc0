package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/dj-oyu/people-count-monitor/internal/capture"
	"github.com/dj-oyu/people-count-monitor/internal/config"
	"github.com/dj-oyu/people-count-monitor/internal/detect"
	"github.com/dj-oyu/people-count-monitor/internal/display"
	"github.com/dj-oyu/people-count-monitor/internal/events"
	"github.com/dj-oyu/people-count-monitor/internal/indicator"
	"github.com/dj-oyu/people-count-monitor/internal/logger"
	"github.com/dj-oyu/people-count-monitor/internal/metrics"
	"github.com/dj-oyu/people-count-monitor/internal/monitor"
	"github.com/dj-oyu/people-count-monitor/internal/notify"
	"github.com/dj-oyu/people-count-monitor/internal/recorder"
	"github.com/dj-oyu/people-count-monitor/internal/timeutil"
	"github.com/dj-oyu/people-count-monitor/internal/webmonitor"
)

// app wires the configured components around the monitoring loop
type app struct {
	monitor  *monitor.Monitor
	web      *webmonitor.Server
	notifier *notify.Fanout
	events   *events.Store
	closers  []io.Closer
}

func newApp(ctx context.Context, cfg config.Config) (_ *app, err error) {
	a := &app{}
	defer func() {
		if err != nil {
			a.closeAll()
		}
	}()

	m := metrics.New()
	clock := timeutil.RealClock{}

	source, err := openSource(cfg.Camera)
	if err != nil {
		return nil, fmt.Errorf("could not find any available cameras: %w", err)
	}
	// Released by the monitor from here on
	comps := monitor.Components{
		Source:  source,
		Metrics: m,
		Clock:   clock,
	}

	det, err := openDetector(cfg.Detector)
	if err != nil {
		source.Close()
		return nil, err
	}
	comps.Detector = det
	if c, ok := det.(io.Closer); ok {
		a.closers = append(a.closers, c)
	}

	ind, err := openIndicator(cfg.Indicator)
	if err != nil {
		logger.Warn("Main", "Indicator unavailable, continuing without it: %v", err)
		ind = indicator.None{}
	}
	comps.Indicator = ind

	if cfg.Recording.Enabled {
		sink, err := newRecordingSink(cfg.Recording)
		if err != nil {
			logger.Warn("Main", "Recording sink %q unavailable, using mjpeg: %v", cfg.Recording.Format, err)
			sink = recorder.NewMJPEGSink(display.DefaultJPEGQuality)
		}
		comps.Recorder = recorder.NewRecorder(sink, cfg.LogDir, cfg.Recording.Prefix, cfg.Recording.FPS, clock)
		if cfg.Recording.Continuous {
			comps.Continuous = recorder.NewRecorder(sink, cfg.LogDir, cfg.Recording.ContinuousPrefix, cfg.Recording.FPS, clock)
		}
	}

	a.notifier = buildNotifier(ctx, cfg.Notify, m)
	comps.Notifier = a.notifier

	if cfg.Events.DBPath != "" {
		store, err := events.Open(cfg.Events.DBPath)
		if err != nil {
			logger.Warn("Main", "Event store unavailable: %v", err)
		} else {
			a.events = store
			comps.Events = store
		}
	}

	var sinks display.Multi
	if local := openDisplay(cfg.Display); local != nil {
		sinks = append(sinks, local)
	}

	var web *webmonitor.Server
	if cfg.HTTPAddr != "" {
		wcfg := webmonitor.DefaultConfig()
		wcfg.Addr = cfg.HTTPAddr
		src := webmonitor.Sources{
			// a.monitor is set below, before the server starts
			State:   func() monitor.State { return a.monitor.State() },
			Metrics: m,
		}
		if a.events != nil {
			src.Events = a.events
		}
		if rec, ok := comps.Recorder.(*recorder.Recorder); ok {
			src.Recording = rec.GetStatus
		}
		web = webmonitor.NewServer(wcfg, src)

		sinks = append(sinks, display.NewWeb(web.Frames(), display.DefaultJPEGQuality))
		comps.Observers = append(comps.Observers, web.Tracker())
	}
	comps.Display = sinks

	opts := monitor.Options{
		MinPeople:     cfg.MinPeople,
		AlertInterval: cfg.AlertInterval,
		FrameDelay:    cfg.FrameDelay,
		DetectTimeout: cfg.Detector.Timeout,
	}
	a.monitor, err = monitor.New(opts, comps)
	if err != nil {
		source.Close()
		ind.Close()
		sinks.Close()
		return nil, err
	}
	a.web = web
	return a, nil
}

func (a *app) start(ctx context.Context) error {
	if a.web != nil {
		a.web.Start(ctx)
	}
	return a.monitor.Start(ctx)
}

// shutdown stops the loop first so the last recording is closed before
// the web server and notifiers go away.
func (a *app) shutdown() {
	if err := a.monitor.Close(); err != nil {
		logger.Warn("Main", "Monitor cleanup: %v", err)
	}
	if a.web != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.web.Shutdown(ctx); err != nil {
			logger.Warn("Main", "HTTP shutdown: %v", err)
		}
	}
	a.closeAll()
}

func (a *app) closeAll() {
	if a.notifier != nil {
		if err := a.notifier.Close(); err != nil {
			logger.Warn("Main", "Notifier cleanup: %v", err)
		}
	}
	if a.events != nil {
		if err := a.events.Close(); err != nil {
			logger.Warn("Main", "Event store cleanup: %v", err)
		}
	}
	for _, c := range a.closers {
		_ = c.Close()
	}
}

func openSource(cfg config.CameraConfig) (capture.Source, error) {
	switch cfg.Source {
	case "mjpeg":
		logger.Info("Main", "Using MJPEG stream %s", cfg.URL)
		return capture.NewMJPEGSource(cfg.URL, &http.Client{}), nil
	default:
		cam, err := capture.OpenCamera(cfg.Device)
		if err != nil {
			return nil, fmt.Errorf("opencv camera %d (requires -tags gocv, or set camera.source: mjpeg): %w", cfg.Device, err)
		}
		logger.Info("Main", "Using camera: %s", cam.Name())
		return cam, nil
	}
}

func openDetector(cfg config.DetectorConfig) (detect.Detector, error) {
	switch cfg.Kind {
	case "http":
		return detect.NewHTTPDetector(cfg.URL, cfg.Timeout, cfg.Confidence), nil
	default:
		d, err := detect.NewDNNDetector(cfg.Model, cfg.Confidence)
		if err != nil {
			return nil, fmt.Errorf("failed to load model %s: %w", cfg.Model, err)
		}
		return d, nil
	}
}

func openIndicator(cfg config.IndicatorConfig) (indicator.Indicator, error) {
	switch cfg.Kind {
	case "gpio":
		return indicator.OpenGPIOLED(cfg.Pin)
	case "strip":
		return indicator.OpenStrip(cfg.SPIPort, cfg.Pixels)
	case "serial":
		return indicator.OpenSerialStrip(cfg.SerialPort, cfg.BaudRate)
	default:
		return indicator.None{}, nil
	}
}

func newRecordingSink(cfg config.RecordingConfig) (recorder.Sink, error) {
	if cfg.Format == "mjpeg" {
		return recorder.NewMJPEGSink(display.DefaultJPEGQuality), nil
	}
	sink, err := recorder.NewVideoWriterSink(cfg.Format)
	if err != nil {
		return nil, err
	}
	return sink, nil
}

func openDisplay(cfg config.DisplayConfig) display.Sink {
	switch cfg.Kind {
	case "terminal":
		return display.NewTerminal(os.Stdout)
	case "window":
		win, err := display.OpenWindow("People Count Monitor")
		if err != nil {
			logger.Warn("Main", "Window display unavailable, using terminal: %v", err)
			return display.NewTerminal(os.Stdout)
		}
		return win
	default:
		return nil
	}
}

func buildNotifier(ctx context.Context, cfg config.NotifyConfig, m *metrics.Metrics) *notify.Fanout {
	var notifiers []notify.Notifier

	if cfg.Slack.Enabled() {
		notifiers = append(notifiers, notify.NewSlack(cfg.Slack.Token, cfg.Slack.Channel, ""))
	}
	if cfg.Email.Enabled() {
		e, err := notify.NewEmail(cfg.Email, cfg.Timeout)
		if err != nil {
			logger.Warn("Main", "Email alerts disabled: %v", err)
		} else {
			notifiers = append(notifiers, e)
		}
	}
	if cfg.MQTT.Enabled() {
		mq, err := notify.ConnectMQTT(ctx, cfg.MQTT)
		if err != nil {
			logger.Warn("Main", "MQTT alerts disabled: %v", err)
		} else {
			notifiers = append(notifiers, mq)
		}
	}

	f := notify.NewFanout(cfg.Timeout, m, notifiers...)
	if f.Len() == 0 {
		logger.Info("Main", "No notification channels configured; alerts are logged only")
	}
	return f
}
