package models

import "time"

// Series is a labels/data pair consumed directly by the dashboard charts.
type Series struct {
	Labels []string  `json:"labels"`
	Data   []float64 `json:"data"`
}

// ProcessDetail is a process row flattened across recent snapshots,
// carrying the source agent's IP and snapshot timestamp.
type ProcessDetail struct {
	Name       string    `json:"name"`
	PID        int32     `json:"pid"`
	CPUPercent float64   `json:"cpu_percent"`
	IP         string    `json:"ip"`
	Timestamp  time.Time `json:"timestamp"`
}

// ActiveUser is a deduplicated logged-in session attributed to an agent IP.
type ActiveUser struct {
	Name     string `json:"name"`
	Terminal string `json:"terminal"`
	Host     string `json:"host"`
	IP       string `json:"ip"`
	Started  int64  `json:"started"`
}

// Alert severities. Critical renders as "danger" styling on the dashboard.
const (
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

// Alert is a transient threshold finding, recomputed on every stats query.
type Alert struct {
	Severity string `json:"severity"`
	Icon     string `json:"icon"`
	Message  string `json:"message"`
}

// AggregatedStats is the derived dashboard view. It is never persisted;
// every /api/stats call recomputes it from the full record set.
type AggregatedStats struct {
	TotalRecords int       `json:"total_records"`
	ActiveAgents int       `json:"active_agents"`
	AvgCPU       float64   `json:"avg_cpu"` // GHz (mean reported frequency / 1000)
	TotalProcs   int       `json:"total_processes"`
	ActiveUsers  int       `json:"active_users"`
	LastUpdate   time.Time `json:"last_update"`

	CPUTimeline    Series `json:"cpu_timeline"`
	OSDistribution Series `json:"os_distribution"`
	IPActivity     Series `json:"ip_activity"`
	TopProcesses   Series `json:"top_processes"`

	Processes []ProcessDetail `json:"processes"`
	Users     []ActiveUser    `json:"users"`
	HighCPU   []ProcessDetail `json:"high_cpu_processes"`
	Alerts    []Alert         `json:"alerts"`
}
