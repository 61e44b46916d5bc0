package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config defines the runtime configuration for the people count monitor.
// It is immutable once handed to the monitor.
type Config struct {
	MinPeople     int           `yaml:"min_people"`
	AlertInterval time.Duration `yaml:"alert_interval"`
	FrameDelay    time.Duration `yaml:"frame_delay"`
	LogDir        string        `yaml:"log_dir"`
	LogFile       string        `yaml:"log_file"`
	HTTPAddr      string        `yaml:"http_addr"`

	Camera    CameraConfig    `yaml:"camera"`
	Detector  DetectorConfig  `yaml:"detector"`
	Recording RecordingConfig `yaml:"recording"`
	Indicator IndicatorConfig `yaml:"indicator"`
	Display   DisplayConfig   `yaml:"display"`
	Notify    NotifyConfig    `yaml:"notify"`
	Events    EventsConfig    `yaml:"events"`
}

// CameraConfig selects the frame source
type CameraConfig struct {
	Source string `yaml:"source"` // mjpeg, opencv
	URL    string `yaml:"url"`    // MJPEG stream URL
	Device int    `yaml:"device"` // OpenCV device index, -1 for discovery
}

// DetectorConfig selects the detection service
type DetectorConfig struct {
	Kind       string        `yaml:"kind"`  // http, dnn
	URL        string        `yaml:"url"`   // inference endpoint for http
	Model      string        `yaml:"model"` // ONNX model for dnn
	Confidence float64       `yaml:"confidence"`
	Timeout    time.Duration `yaml:"timeout"`
}

// RecordingConfig controls incident (and optional continuous) recordings
type RecordingConfig struct {
	Enabled          bool    `yaml:"enabled"`
	Format           string  `yaml:"format"` // mjpeg, avi, mp4
	Prefix           string  `yaml:"prefix"`
	FPS              float64 `yaml:"fps"`
	Continuous       bool    `yaml:"continuous"`
	ContinuousPrefix string  `yaml:"continuous_prefix"`
}

// IndicatorConfig selects the LED hardware
type IndicatorConfig struct {
	Kind       string `yaml:"kind"` // none, gpio, strip, serial
	Pin        string `yaml:"pin"`
	SPIPort    string `yaml:"spi_port"`
	Pixels     int    `yaml:"pixels"`
	SerialPort string `yaml:"serial_port"`
	BaudRate   int    `yaml:"baud_rate"`
}

// DisplayConfig selects the local status display
type DisplayConfig struct {
	Kind string `yaml:"kind"` // none, terminal, window
}

// NotifyConfig holds notification targets. Secrets come from the environment.
type NotifyConfig struct {
	Timeout time.Duration `yaml:"timeout"`
	Slack   SlackConfig   `yaml:"slack"`
	Email   EmailConfig   `yaml:"email"`
	MQTT    MQTTConfig    `yaml:"mqtt"`
}

// SlackConfig for chat.postMessage
type SlackConfig struct {
	Token   string `yaml:"token"`
	Channel string `yaml:"channel"`
}

// Enabled reports whether Slack delivery is configured
func (c SlackConfig) Enabled() bool {
	return c.Token != "" && c.Channel != ""
}

// EmailConfig for SMTP over implicit TLS
type EmailConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
	To       string `yaml:"to"`
}

// Enabled reports whether email delivery is configured
func (c EmailConfig) Enabled() bool {
	return c.Host != "" && c.Username != "" && c.Password != "" && c.To != ""
}

// MQTTConfig for alert publishing
type MQTTConfig struct {
	Broker   string `yaml:"broker"`
	Topic    string `yaml:"topic"`
	ClientID string `yaml:"client_id"`
}

// Enabled reports whether MQTT publishing is configured
func (c MQTTConfig) Enabled() bool {
	return c.Broker != ""
}

// EventsConfig controls the optional SQLite event store
type EventsConfig struct {
	DBPath string `yaml:"db_path"`
}

// DefaultConfig returns the built-in defaults. The opencv camera, dnn
// detector and avi recordings need a build with -tags gocv; without it use
// camera.source mjpeg and detector.kind http.
func DefaultConfig() Config {
	return Config{
		MinPeople:     2,
		AlertInterval: 5 * time.Second,
		FrameDelay:    50 * time.Millisecond,
		LogDir:        filepath.Clean("./monitoring_logs"),
		LogFile:       "people_monitoring.log",
		HTTPAddr:      ":8080",
		Camera: CameraConfig{
			Source: "opencv",
			Device: -1,
		},
		Detector: DetectorConfig{
			Kind:       "dnn",
			Model:      "yolov8n.onnx",
			Confidence: 0.5,
			Timeout:    5 * time.Second,
		},
		Recording: RecordingConfig{
			Enabled:          true,
			Format:           "avi",
			Prefix:           "security_recording",
			FPS:              10,
			ContinuousPrefix: "continuous_recording",
		},
		Indicator: IndicatorConfig{
			Kind:     "none",
			Pin:      "GPIO18",
			Pixels:   30,
			BaudRate: 115200,
		},
		Display: DisplayConfig{
			Kind: "terminal",
		},
		Notify: NotifyConfig{
			Timeout: 10 * time.Second,
			Slack: SlackConfig{
				Channel: "#team-alerts",
			},
			Email: EmailConfig{
				Host: "smtp.gmail.com",
				Port: 465,
			},
			MQTT: MQTTConfig{
				Topic:    "people-monitor/alerts",
				ClientID: "people-monitor",
			},
		},
	}
}

// Load reads a YAML config file on top of DefaultConfig. ${VAR} references
// in the file are expanded from the environment, then environment overrides
// are applied and the result is validated. An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(filepath.Clean(path))
		if err != nil {
			return cfg, fmt.Errorf("failed to read config file: %w", err)
		}
		expanded := os.ExpandEnv(string(data))
		if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	ApplyEnv(&cfg, os.LookupEnv)

	if err := Validate(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// ApplyEnv overrides secrets and targets from environment variables.
func ApplyEnv(cfg *Config, lookup func(string) (string, bool)) {
	set := func(dst *string, key string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}

	set(&cfg.Notify.Slack.Token, "SLACK_TOKEN")
	set(&cfg.Notify.Slack.Channel, "SLACK_CHANNEL")
	set(&cfg.Notify.Email.Host, "SMTP_HOST")
	set(&cfg.Notify.Email.Username, "SMTP_USERNAME")
	set(&cfg.Notify.Email.Password, "SMTP_PASSWORD")
	set(&cfg.Notify.Email.From, "ALERT_EMAIL_FROM")
	set(&cfg.Notify.Email.To, "ALERT_EMAIL_TO")
	set(&cfg.Notify.MQTT.Broker, "MQTT_BROKER")
	set(&cfg.Camera.URL, "CAMERA_URL")
	set(&cfg.Detector.URL, "DETECTOR_URL")

	if cfg.Notify.Email.From == "" {
		cfg.Notify.Email.From = cfg.Notify.Email.Username
	}
}
