package webmonitor

import (
	"github.com/dj-oyu/people-count-monitor/internal/events"
	"github.com/dj-oyu/people-count-monitor/internal/recorder"
)

// MonitorStats is the loop section of the status payload.
type MonitorStats struct {
	Running              bool    `json:"running"`
	FramesProcessed      uint64  `json:"frames_processed"`
	CurrentFPS           float64 `json:"current_fps"`
	PeopleCount          int     `json:"people_count"`
	MinPeople            int     `json:"min_people"`
	BelowMinimum         bool    `json:"below_minimum"`
	AlertsEmitted        uint64  `json:"alerts_emitted"`
	LastAlertTime        float64 `json:"last_alert_time"`
	RecordingActive      bool    `json:"recording_active"`
	CurrentRecordingPath string  `json:"current_recording_path"`
	LastError            string  `json:"last_error"`
	UptimeSeconds        float64 `json:"uptime_seconds"`
}

// CountSample is one head count change.
type CountSample struct {
	FrameNumber  uint64  `json:"frame_number"`
	Timestamp    float64 `json:"timestamp"`
	PeopleCount  int     `json:"people_count"`
	BelowMinimum bool    `json:"below_minimum"`
}

// StatusPayload is served by /api/status and /api/status/stream.
type StatusPayload struct {
	Monitor       MonitorStats              `json:"monitor"`
	Recording     *recorder.RecordingStatus `json:"recording,omitempty"`
	CountHistory  []CountSample             `json:"count_history"`
	StreamClients int                       `json:"stream_clients"`
	Timestamp     float64                   `json:"timestamp"`
}

// EventsPayload is served by /api/events.
type EventsPayload struct {
	Alerts     []events.Alert     `json:"alerts"`
	Recordings []events.Recording `json:"recordings"`
}
