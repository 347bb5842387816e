package sdk

import (
	"time"
)

// EngineInfo is the public summary of one engine instance.
type EngineInfo struct {
	Name           string         `json:"name"`
	Kind           Kind           `json:"kind"`
	Origin         Origin         `json:"origin"`
	ValidationMode ValidationMode `json:"validation_mode"`
	Protocol       string         `json:"protocol"`
	Initialized    bool           `json:"initialized"`

	// Available is nil until the engine has been probed.
	Available *bool `json:"available,omitempty"`
}

// NewEngineInfo builds the summary for an engine.
func NewEngineInfo(e Engine, available *bool) EngineInfo {
	d := e.Descriptor()
	return EngineInfo{
		Name:           d.Name,
		Kind:           d.Kind,
		Origin:         d.Origin,
		ValidationMode: d.ValidationMode,
		Protocol:       d.Protocol,
		Initialized:    e.IsInitialized(),
		Available:      available,
	}
}

// HealthStatus represents the outcome of an availability probe.
type HealthStatus struct {
	// Healthy indicates if the engine answered the probe.
	Healthy bool `json:"healthy"`

	// Message provides additional context about the health status.
	Message string `json:"message,omitempty"`

	// Details contains engine-specific health information.
	Details map[string]any `json:"details,omitempty"`

	// CheckedAt is when the probe was performed.
	CheckedAt time.Time `json:"checked_at"`
}

// NewHealthStatus creates a health status with the given message.
func NewHealthStatus(healthy bool, message string) HealthStatus {
	return HealthStatus{
		Healthy:   healthy,
		Message:   message,
		CheckedAt: time.Now(),
	}
}

// WithDetails adds details to the health status.
func (h HealthStatus) WithDetails(details map[string]any) HealthStatus {
	h.Details = details
	return h
}
