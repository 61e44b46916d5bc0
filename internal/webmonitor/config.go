package webmonitor

import "time"

// Config defines the runtime configuration for the web monitor server.
type Config struct {
	Addr           string
	StatusInterval time.Duration
	HistorySize    int
	EventsLimit    int
}

// DefaultConfig returns the defaults used by cmd/monitor.
func DefaultConfig() Config {
	return Config{
		Addr:           ":8080",
		StatusInterval: 2 * time.Second,
		HistorySize:    8,
		EventsLimit:    20,
	}
}
