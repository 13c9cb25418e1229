package server

import (
	"fmt"
	"time"

	"github.com/fleetpulse/fleetpulse/internal/models"
)

const (
	// criticalCPUPercent: strictly above is critical.
	criticalCPUPercent = 80.0
	// elevatedCPUPercent: strictly above (up to and including critical
	// threshold) is elevated. Exactly 50% is not elevated.
	elevatedCPUPercent = 50.0
	// staleAfter: elapsed receipt silence that triggers the staleness alert.
	staleAfter = 120 * time.Second
)

// EvaluateAlerts derives threshold alerts from the flattened recent
// process set and the last receipt time. It is pure and order-stable:
// critical first, then elevated, then staleness; a rule whose condition
// is false contributes nothing.
func EvaluateAlerts(procs []models.ProcessDetail, lastReceived time.Time, now time.Time) []models.Alert {
	alerts := []models.Alert{}

	var critical, elevated int
	for _, p := range procs {
		switch {
		case p.CPUPercent > criticalCPUPercent:
			critical++
		case p.CPUPercent > elevatedCPUPercent:
			elevated++
		}
	}

	if critical > 0 {
		alerts = append(alerts, models.Alert{
			Severity: models.SeverityCritical,
			Icon:     "🔴",
			Message:  fmt.Sprintf("%d process(es) with critical CPU usage (>80%%)", critical),
		})
	}
	if elevated > 0 {
		alerts = append(alerts, models.Alert{
			Severity: models.SeverityWarning,
			Icon:     "🟡",
			Message:  fmt.Sprintf("%d process(es) with elevated CPU usage (50-80%%)", elevated),
		})
	}

	if !lastReceived.IsZero() {
		if silence := now.Sub(lastReceived); silence > staleAfter {
			alerts = append(alerts, models.Alert{
				Severity: models.SeverityWarning,
				Icon:     "⏰",
				Message:  fmt.Sprintf("No data received for %d minute(s)", int(silence.Seconds())/60),
			})
		}
	}

	return alerts
}
