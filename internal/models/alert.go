package models

import "time"

// Alert is a metric at or above the warning level of its threshold.
type Alert struct {
	MetricKey  string  `json:"metricKey"`
	Name       string  `json:"name"`
	Current    float64 `json:"current"`
	Threshold  float64 `json:"threshold"`
	Percentage float64 `json:"percentage"`
}

// ThresholdReport is the outcome of a threshold check.
type ThresholdReport struct {
	CheckedAt time.Time `json:"checkedAt"`
	Alerts    []Alert   `json:"alerts"`
	// Notified lists the alerts included in the outgoing notification.
	Notified   []Alert `json:"notified"`
	Test       bool    `json:"test,omitempty"`
	SlackSent  bool    `json:"slackSent"`
	SlackError string  `json:"slackError,omitempty"`
}
