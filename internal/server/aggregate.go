package server

import (
	"fmt"
	"sort"
	"time"

	"github.com/fleetpulse/fleetpulse/internal/models"
)

const (
	// activeWindow decides whether an agent still counts as active.
	activeWindow = 5 * time.Minute
	// timelinePoints bounds the CPU frequency chart.
	timelinePoints = 20
	// recentSnapshots is how many of the newest snapshots feed the
	// process and user views.
	recentSnapshots = 10
	// topProcessCount bounds the top-process ranking.
	topProcessCount = 10
	// highCPUThreshold selects processes for the high-consumption history.
	highCPUThreshold = 50.0
	// highCPULimit caps that history.
	highCPULimit = 20
)

// Aggregate computes the dashboard statistics from the full record set.
// It is a pure function of its inputs: no cached state, recomputed on
// every call. An empty record set yields an all-zero result with
// LastUpdate = now.
func Aggregate(records []models.StoredSnapshot, now time.Time) *models.AggregatedStats {
	stats := &models.AggregatedStats{
		LastUpdate:     now,
		CPUTimeline:    emptySeries(),
		OSDistribution: emptySeries(),
		IPActivity:     emptySeries(),
		TopProcesses:   emptySeries(),
		Processes:      []models.ProcessDetail{},
		Users:          []models.ActiveUser{},
		HighCPU:        []models.ProcessDetail{},
		Alerts:         []models.Alert{},
	}
	if len(records) == 0 {
		return stats
	}

	byTime := make([]models.StoredSnapshot, len(records))
	copy(byTime, records)
	sort.SliceStable(byTime, func(i, j int) bool {
		return byTime[i].Timestamp.Before(byTime[j].Timestamp)
	})

	stats.TotalRecords = len(byTime)
	stats.ActiveAgents = countActiveAgents(byTime, now)
	stats.AvgCPU = meanFrequencyGHz(byTime)
	stats.CPUTimeline = cpuTimeline(byTime)
	stats.OSDistribution = agentDistribution(byTime, func(s *models.StoredSnapshot) string {
		if s.OS.Name == "" {
			return "Unknown"
		}
		return s.OS.Name
	})
	stats.IPActivity = agentDistribution(byTime, func(s *models.StoredSnapshot) string {
		return s.IP
	})

	recent := byTime
	if len(recent) > recentSnapshots {
		recent = recent[len(recent)-recentSnapshots:]
	}
	procs := flattenProcesses(recent)
	stats.Processes = rankProcesses(procs, topProcessCount)
	stats.TopProcesses = processSeries(stats.Processes)
	stats.HighCPU = highCPUProcesses(procs)
	stats.TotalProcs = distinctProcessNames(procs)
	stats.Users = dedupUsers(flattenUsers(recent))
	stats.ActiveUsers = len(stats.Users)

	last := lastReceipt(byTime)
	stats.LastUpdate = last
	stats.Alerts = EvaluateAlerts(procs, last, now)
	return stats
}

func emptySeries() models.Series {
	return models.Series{Labels: []string{}, Data: []float64{}}
}

// agentKey deduplicates by agent identity; records sent before an agent
// id was assigned fall back to the source IP.
func agentKey(s *models.StoredSnapshot) string {
	if s.AgentID != "" {
		return s.AgentID
	}
	return s.IP
}

// countActiveAgents counts agents whose most recent record was received
// within the recency window.
func countActiveAgents(byTime []models.StoredSnapshot, now time.Time) int {
	latest := make(map[string]time.Time)
	for i := range byTime {
		key := agentKey(&byTime[i])
		if byTime[i].ReceivedAt.After(latest[key]) {
			latest[key] = byTime[i].ReceivedAt
		}
	}
	active := 0
	cutoff := now.Add(-activeWindow)
	for _, seen := range latest {
		if seen.After(cutoff) {
			active++
		}
	}
	return active
}

// meanFrequencyGHz averages reported CPU frequency across records that
// carry one; records without a frequency reading are excluded from both
// numerator and denominator. The result is GHz for the dashboard.
func meanFrequencyGHz(records []models.StoredSnapshot) float64 {
	var sum float64
	var n int
	for i := range records {
		if f := records[i].CPU.Frequency; f != nil {
			sum += f.Current
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n) / 1000
}

// cpuTimeline emits (time-of-day, frequency) pairs for the newest
// timelinePoints records in snapshot-timestamp order.
func cpuTimeline(byTime []models.StoredSnapshot) models.Series {
	points := byTime
	if len(points) > timelinePoints {
		points = points[len(points)-timelinePoints:]
	}
	series := emptySeries()
	for i := range points {
		series.Labels = append(series.Labels, points[i].Timestamp.Format("15:04:05"))
		freq := 0.0
		if f := points[i].CPU.Frequency; f != nil {
			freq = f.Current
		}
		series.Data = append(series.Data, freq)
	}
	return series
}

// agentDistribution counts agents per distinct value, attributing each
// agent to its most recently seen value (later records overwrite earlier
// ones while iterating in timestamp order).
func agentDistribution(byTime []models.StoredSnapshot, value func(*models.StoredSnapshot) string) models.Series {
	valueByAgent := make(map[string]string)
	var agentOrder []string
	for i := range byTime {
		key := agentKey(&byTime[i])
		if _, seen := valueByAgent[key]; !seen {
			agentOrder = append(agentOrder, key)
		}
		valueByAgent[key] = value(&byTime[i])
	}

	counts := make(map[string]int)
	var valueOrder []string
	for _, key := range agentOrder {
		v := valueByAgent[key]
		if counts[v] == 0 {
			valueOrder = append(valueOrder, v)
		}
		counts[v]++
	}

	series := emptySeries()
	for _, v := range valueOrder {
		series.Labels = append(series.Labels, v)
		series.Data = append(series.Data, float64(counts[v]))
	}
	return series
}

func flattenProcesses(recent []models.StoredSnapshot) []models.ProcessDetail {
	var procs []models.ProcessDetail
	for i := range recent {
		for _, p := range recent[i].Processes {
			name := p.Name
			if name == "" {
				name = "Unknown"
			}
			procs = append(procs, models.ProcessDetail{
				Name:       name,
				PID:        p.PID,
				CPUPercent: p.CPUPercent,
				IP:         recent[i].IP,
				Timestamp:  recent[i].Timestamp,
			})
		}
	}
	return procs
}

// rankProcesses returns the n hottest processes, ties keeping their
// original relative order.
func rankProcesses(procs []models.ProcessDetail, n int) []models.ProcessDetail {
	ranked := make([]models.ProcessDetail, len(procs))
	copy(ranked, procs)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].CPUPercent > ranked[j].CPUPercent
	})
	if len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}

func processSeries(ranked []models.ProcessDetail) models.Series {
	series := emptySeries()
	for _, p := range ranked {
		series.Labels = append(series.Labels, fmt.Sprintf("%s (PID: %d)", p.Name, p.PID))
		series.Data = append(series.Data, p.CPUPercent)
	}
	return series
}

func highCPUProcesses(procs []models.ProcessDetail) []models.ProcessDetail {
	high := []models.ProcessDetail{}
	for _, p := range procs {
		if p.CPUPercent > highCPUThreshold {
			high = append(high, p)
			if len(high) == highCPULimit {
				break
			}
		}
	}
	return high
}

func distinctProcessNames(procs []models.ProcessDetail) int {
	names := make(map[string]struct{}, len(procs))
	for _, p := range procs {
		names[p.Name] = struct{}{}
	}
	return len(names)
}

func flattenUsers(recent []models.StoredSnapshot) []models.ActiveUser {
	var users []models.ActiveUser
	for i := range recent {
		for _, u := range recent[i].Users {
			users = append(users, models.ActiveUser{
				Name:     u.Name,
				Terminal: u.Terminal,
				Host:     u.Host,
				IP:       recent[i].IP,
				Started:  u.Started,
			})
		}
	}
	return users
}

// dedupUsers keeps the first occurrence of each (name, terminal, ip)
// triple.
func dedupUsers(users []models.ActiveUser) []models.ActiveUser {
	seen := make(map[string]struct{}, len(users))
	unique := []models.ActiveUser{}
	for _, u := range users {
		key := u.Name + "\x00" + u.Terminal + "\x00" + u.IP
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		unique = append(unique, u)
	}
	return unique
}

func lastReceipt(records []models.StoredSnapshot) time.Time {
	var last time.Time
	for i := range records {
		if records[i].ReceivedAt.After(last) {
			last = records[i].ReceivedAt
		}
	}
	return last
}
