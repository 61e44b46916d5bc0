package config

import (
	"fmt"
)

// Validate checks the configuration and fills derived defaults
func Validate(cfg *Config) error {
	if cfg.MinPeople < 0 {
		return fmt.Errorf("min_people must be >= 0, got %d", cfg.MinPeople)
	}
	if cfg.AlertInterval <= 0 {
		return fmt.Errorf("alert_interval must be > 0")
	}
	if cfg.FrameDelay < 0 {
		return fmt.Errorf("frame_delay must be >= 0")
	}
	if cfg.LogDir == "" {
		return fmt.Errorf("log_dir is required")
	}
	if cfg.LogFile == "" {
		cfg.LogFile = DefaultConfig().LogFile
	}

	switch cfg.Camera.Source {
	case "mjpeg":
		if cfg.Camera.URL == "" {
			return fmt.Errorf("camera.url is required for mjpeg source")
		}
	case "opencv":
	default:
		return fmt.Errorf("unsupported camera.source %q: expected mjpeg or opencv", cfg.Camera.Source)
	}

	switch cfg.Detector.Kind {
	case "http":
		if cfg.Detector.URL == "" {
			return fmt.Errorf("detector.url is required for http detector")
		}
	case "dnn":
		if cfg.Detector.Model == "" {
			return fmt.Errorf("detector.model is required for dnn detector")
		}
	default:
		return fmt.Errorf("unsupported detector.kind %q: expected http or dnn", cfg.Detector.Kind)
	}
	if cfg.Detector.Confidence < 0 || cfg.Detector.Confidence > 1 {
		return fmt.Errorf("detector.confidence must be within [0,1]")
	}
	if cfg.Detector.Timeout <= 0 {
		cfg.Detector.Timeout = DefaultConfig().Detector.Timeout
	}

	switch cfg.Recording.Format {
	case "mjpeg", "avi", "mp4":
	default:
		return fmt.Errorf("unsupported recording.format %q", cfg.Recording.Format)
	}
	if cfg.Recording.FPS <= 0 {
		cfg.Recording.FPS = DefaultConfig().Recording.FPS
	}
	if cfg.Recording.Prefix == "" {
		cfg.Recording.Prefix = DefaultConfig().Recording.Prefix
	}
	if cfg.Recording.ContinuousPrefix == "" {
		cfg.Recording.ContinuousPrefix = DefaultConfig().Recording.ContinuousPrefix
	}

	switch cfg.Indicator.Kind {
	case "none", "gpio":
	case "strip":
		if cfg.Indicator.Pixels <= 0 {
			return fmt.Errorf("indicator.pixels must be > 0 for strip")
		}
	case "serial":
		if cfg.Indicator.SerialPort == "" {
			return fmt.Errorf("indicator.serial_port is required for serial strip")
		}
	default:
		return fmt.Errorf("unsupported indicator.kind %q", cfg.Indicator.Kind)
	}

	switch cfg.Display.Kind {
	case "none", "terminal", "window":
	default:
		return fmt.Errorf("unsupported display.kind %q", cfg.Display.Kind)
	}

	if cfg.Notify.Timeout <= 0 {
		cfg.Notify.Timeout = DefaultConfig().Notify.Timeout
	}
	if cfg.Notify.Email.Port <= 0 {
		cfg.Notify.Email.Port = DefaultConfig().Notify.Email.Port
	}
	if cfg.Notify.MQTT.Topic == "" {
		cfg.Notify.MQTT.Topic = DefaultConfig().Notify.MQTT.Topic
	}

	return nil
}
