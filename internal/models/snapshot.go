// Package models defines the wire and storage types for FleetPulse.
package models

import "time"

// Snapshot is one point-in-time system-state record from one agent.
// It is immutable once assembled; one is produced per sampling cycle.
type Snapshot struct {
	IP        string          `json:"ip" binding:"required"`
	AgentID   string          `json:"agent_id"`
	CPU       CPUInfo         `json:"cpu"`
	Processes []ProcessSample `json:"processes"`
	Users     []UserSession   `json:"users"`
	OS        OSInfo          `json:"os"`
	Timestamp time.Time       `json:"timestamp" binding:"required"`
}

// CPUInfo describes the host CPU. Frequency is nil when the platform
// does not report it.
type CPUInfo struct {
	Count     int           `json:"count"`
	Frequency *CPUFrequency `json:"frequency"`
	Model     string        `json:"model"`
}

// CPUFrequency mirrors the frequency object reported by agents.
type CPUFrequency struct {
	Current float64 `json:"current"`
	Min     float64 `json:"min,omitempty"`
	Max     float64 `json:"max,omitempty"`
}

// ProcessSample is one process observed during a sampling cycle.
// PID uniqueness holds only within a single snapshot.
type ProcessSample struct {
	PID           int32    `json:"pid"`
	Name          string   `json:"name"`
	CPUPercent    float64  `json:"cpu_percent"`
	MemoryPercent *float64 `json:"memory_percent,omitempty"`
	Status        string   `json:"status,omitempty"`
}

// UserSession is one logged-in session on the agent host.
// Started is unix seconds, matching the wire format.
type UserSession struct {
	Name     string `json:"name"`
	Terminal string `json:"terminal"`
	Host     string `json:"host"`
	Started  int64  `json:"started"`
}

// OSInfo identifies the agent's operating system.
type OSInfo struct {
	Name     string `json:"name"`
	Version  string `json:"version"`
	Release  string `json:"release"`
	Hostname string `json:"hostname"`
}

// StoredSnapshot is a Snapshot as persisted by the collector, stamped
// with the server-side receipt time.
type StoredSnapshot struct {
	Snapshot
	ReceivedAt time.Time `json:"received_at"`
}
