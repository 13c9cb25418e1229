package server

import (
	"testing"
	"time"

	"github.com/fleetpulse/fleetpulse/internal/models"
)

var baseTime = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

type recordOpt func(*models.StoredSnapshot)

func withFreq(mhz float64) recordOpt {
	return func(s *models.StoredSnapshot) {
		s.CPU.Frequency = &models.CPUFrequency{Current: mhz}
	}
}

func withProcs(cpus ...float64) recordOpt {
	return func(s *models.StoredSnapshot) {
		for i, c := range cpus {
			s.Processes = append(s.Processes, models.ProcessSample{
				PID: int32(100 + i), Name: "worker", CPUPercent: c,
			})
		}
	}
}

func withUsers(names ...string) recordOpt {
	return func(s *models.StoredSnapshot) {
		for _, n := range names {
			s.Users = append(s.Users, models.UserSession{Name: n, Terminal: "pts/0", Host: "h"})
		}
	}
}

func record(agentID, ip, osName string, age time.Duration, opts ...recordOpt) models.StoredSnapshot {
	s := models.StoredSnapshot{
		Snapshot: models.Snapshot{
			AgentID:   agentID,
			IP:        ip,
			OS:        models.OSInfo{Name: osName},
			Timestamp: baseTime.Add(-age),
		},
		ReceivedAt: baseTime.Add(-age),
	}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

func TestAggregate_EmptyInput(t *testing.T) {
	stats := Aggregate(nil, baseTime)

	if stats.TotalRecords != 0 || stats.ActiveAgents != 0 || stats.AvgCPU != 0 ||
		stats.TotalProcs != 0 || stats.ActiveUsers != 0 {
		t.Fatalf("expected all-zero counters, got %+v", stats)
	}
	if !stats.LastUpdate.Equal(baseTime) {
		t.Fatalf("expected lastUpdate=now, got %v", stats.LastUpdate)
	}
	if len(stats.Alerts) != 0 {
		t.Fatalf("expected no alerts, got %v", stats.Alerts)
	}
	// JSON consumers rely on arrays, never null
	if stats.Processes == nil || stats.Users == nil || stats.HighCPU == nil ||
		stats.CPUTimeline.Labels == nil || stats.OSDistribution.Labels == nil {
		t.Fatal("empty result must use empty slices, not nil")
	}
}

func TestAggregate_DedupByAgentUsesLatestRecord(t *testing.T) {
	records := []models.StoredSnapshot{
		record("agent-1", "10.0.0.1", "Linux", 2*time.Minute),
		record("agent-1", "10.0.0.99", "Windows", 1*time.Minute), // newer
	}
	stats := Aggregate(records, baseTime)

	if len(stats.IPActivity.Labels) != 1 {
		t.Fatalf("expected a single IP bucket, got %v", stats.IPActivity.Labels)
	}
	if stats.IPActivity.Labels[0] != "10.0.0.99" {
		t.Fatalf("agent attributed to %s, want later record's 10.0.0.99", stats.IPActivity.Labels[0])
	}
	if stats.IPActivity.Data[0] != 1 {
		t.Fatalf("agent counted %v times, want once", stats.IPActivity.Data[0])
	}
	if len(stats.OSDistribution.Labels) != 1 || stats.OSDistribution.Labels[0] != "Windows" {
		t.Fatalf("os distribution %v, want single Windows bucket", stats.OSDistribution.Labels)
	}
}

func TestAggregate_AgentWithoutIDFallsBackToIP(t *testing.T) {
	records := []models.StoredSnapshot{
		record("", "10.0.0.5", "Linux", 3*time.Minute),
		record("", "10.0.0.5", "Linux", 2*time.Minute),
		record("", "10.0.0.6", "Linux", time.Minute),
	}
	stats := Aggregate(records, baseTime)

	if stats.ActiveAgents != 2 {
		t.Fatalf("expected 2 active agents keyed by IP, got %d", stats.ActiveAgents)
	}
	if stats.OSDistribution.Data[0] != 2 {
		t.Fatalf("expected 2 Linux agents, got %v", stats.OSDistribution.Data)
	}
}

func TestAggregate_ActiveAgentWindow(t *testing.T) {
	records := []models.StoredSnapshot{
		record("fresh", "10.0.0.1", "Linux", time.Minute),
		record("stale", "10.0.0.2", "Linux", 10*time.Minute),
	}
	stats := Aggregate(records, baseTime)

	if stats.ActiveAgents != 1 {
		t.Fatalf("expected 1 active agent, got %d", stats.ActiveAgents)
	}
}

func TestAggregate_StaleAgentRevivedByNewerRecord(t *testing.T) {
	records := []models.StoredSnapshot{
		record("agent-1", "10.0.0.1", "Linux", 30*time.Minute),
		record("agent-1", "10.0.0.1", "Linux", time.Minute),
	}
	if got := Aggregate(records, baseTime).ActiveAgents; got != 1 {
		t.Fatalf("expected most recent record to decide activity, got %d", got)
	}
}

func TestAggregate_AvgFrequencySkipsMissing(t *testing.T) {
	records := []models.StoredSnapshot{
		record("a", "10.0.0.1", "Linux", 3*time.Minute, withFreq(2000)),
		record("b", "10.0.0.2", "Linux", 2*time.Minute), // no frequency reported
		record("c", "10.0.0.3", "Linux", time.Minute, withFreq(3000)),
	}
	stats := Aggregate(records, baseTime)

	// mean of 2000 and 3000 MHz = 2500 MHz = 2.5 GHz; the null reading
	// is excluded from numerator and denominator alike.
	if stats.AvgCPU != 2.5 {
		t.Fatalf("avg cpu = %v GHz, want 2.5", stats.AvgCPU)
	}
}

func TestAggregate_TimelineBoundedToTwenty(t *testing.T) {
	var records []models.StoredSnapshot
	for i := 0; i < 30; i++ {
		records = append(records, record("a", "10.0.0.1", "Linux",
			time.Duration(30-i)*time.Second, withFreq(float64(1000+i))))
	}
	stats := Aggregate(records, baseTime)

	if len(stats.CPUTimeline.Labels) != timelinePoints {
		t.Fatalf("timeline has %d points, want %d", len(stats.CPUTimeline.Labels), timelinePoints)
	}
	// last point is the newest record
	if got := stats.CPUTimeline.Data[timelinePoints-1]; got != 1029 {
		t.Fatalf("newest timeline point = %v, want 1029", got)
	}
	// ascending timestamp order
	if stats.CPUTimeline.Data[0] != 1010 {
		t.Fatalf("oldest kept point = %v, want 1010", stats.CPUTimeline.Data[0])
	}
}

func TestAggregate_TopProcessesAcrossRecentSnapshots(t *testing.T) {
	// 12 snapshots; only the newest 10 feed the process view, so the two
	// oldest (with the extreme 99% readings) must be ignored.
	var records []models.StoredSnapshot
	records = append(records,
		record("old", "10.0.0.9", "Linux", time.Hour, withProcs(99, 99)),
		record("old", "10.0.0.9", "Linux", 59*time.Minute, withProcs(99)),
	)
	for i := 0; i < 10; i++ {
		records = append(records, record("a", "10.0.0.1", "Linux",
			time.Duration(10-i)*time.Minute, withProcs(float64(i+1), float64(i+20))))
	}
	stats := Aggregate(records, baseTime)

	if len(stats.Processes) != topProcessCount {
		t.Fatalf("expected %d ranked processes, got %d", topProcessCount, len(stats.Processes))
	}
	if stats.Processes[0].CPUPercent != 29 {
		t.Fatalf("hottest process = %v, want 29 (old 99%% readings must be excluded)", stats.Processes[0].CPUPercent)
	}
	for i := 1; i < len(stats.Processes); i++ {
		if stats.Processes[i].CPUPercent > stats.Processes[i-1].CPUPercent {
			t.Fatalf("ranking not descending at %d", i)
		}
	}
	if len(stats.TopProcesses.Labels) != topProcessCount {
		t.Fatalf("series labels %d, want %d", len(stats.TopProcesses.Labels), topProcessCount)
	}
}

func TestAggregate_DistinctProcessNames(t *testing.T) {
	rec := record("a", "10.0.0.1", "Linux", time.Minute)
	rec.Processes = []models.ProcessSample{
		{PID: 1, Name: "nginx", CPUPercent: 1},
		{PID: 2, Name: "nginx", CPUPercent: 2}, // same name, different pid
		{PID: 3, Name: "redis", CPUPercent: 3},
	}
	stats := Aggregate([]models.StoredSnapshot{rec}, baseTime)
	if stats.TotalProcs != 2 {
		t.Fatalf("distinct process names = %d, want 2", stats.TotalProcs)
	}
}

func TestAggregate_HighCPUHistory(t *testing.T) {
	records := []models.StoredSnapshot{
		record("a", "10.0.0.1", "Linux", time.Minute, withProcs(10, 50, 50.5, 81, 99)),
	}
	stats := Aggregate(records, baseTime)

	if len(stats.HighCPU) != 3 {
		t.Fatalf("expected 3 high-cpu rows (>50%%), got %d", len(stats.HighCPU))
	}
	for _, p := range stats.HighCPU {
		if p.CPUPercent <= highCPUThreshold {
			t.Fatalf("row %v does not exceed the threshold", p.CPUPercent)
		}
	}
}

func TestAggregate_UserDedup(t *testing.T) {
	records := []models.StoredSnapshot{
		record("a", "10.0.0.1", "Linux", 2*time.Minute, withUsers("alice", "bob")),
		record("a", "10.0.0.1", "Linux", time.Minute, withUsers("alice")), // dup triple
		record("b", "10.0.0.2", "Linux", time.Minute, withUsers("alice")), // other ip
	}
	stats := Aggregate(records, baseTime)

	if stats.ActiveUsers != 3 {
		t.Fatalf("expected 3 unique users (alice@.1, bob@.1, alice@.2), got %d", stats.ActiveUsers)
	}
	// first occurrence wins
	if stats.Users[0].Name != "alice" || stats.Users[0].IP != "10.0.0.1" {
		t.Fatalf("unexpected first user %+v", stats.Users[0])
	}
}

func TestAggregate_LastUpdateIsNewestReceipt(t *testing.T) {
	records := []models.StoredSnapshot{
		record("a", "10.0.0.1", "Linux", 4*time.Minute),
		record("b", "10.0.0.2", "Linux", time.Minute),
	}
	stats := Aggregate(records, baseTime)
	want := baseTime.Add(-time.Minute)
	if !stats.LastUpdate.Equal(want) {
		t.Fatalf("lastUpdate = %v, want %v", stats.LastUpdate, want)
	}
}

func TestAggregate_AlertsWiredIn(t *testing.T) {
	records := []models.StoredSnapshot{
		record("a", "10.0.0.1", "Linux", time.Minute, withProcs(95)),
	}
	stats := Aggregate(records, baseTime)
	if len(stats.Alerts) != 1 || stats.Alerts[0].Severity != models.SeverityCritical {
		t.Fatalf("expected a single critical alert, got %v", stats.Alerts)
	}
}
