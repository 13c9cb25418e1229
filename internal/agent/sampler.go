package agent

import (
	"log/slog"
	"os"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/host"
	"github.com/shirou/gopsutil/v4/process"

	"github.com/fleetpulse/fleetpulse/internal/models"
)

// maxProcessSamples bounds the process list carried in every snapshot.
const maxProcessSamples = 10

// cpuWarmup is the pause between the baseline and the real per-process
// CPU read. The first read only seeds the OS accounting delta.
const cpuWarmup = 100 * time.Millisecond

// containerMarker exists inside Docker containers; its presence decides
// the synthetic session's terminal label.
const containerMarker = "/.dockerenv"

// Sampler produces one system Snapshot per call. Sub-collections degrade
// independently: a failed process scan or user enumeration is logged and
// leaves that section empty, never aborting the snapshot.
type Sampler struct {
	log      *slog.Logger
	resolver *IPResolver
	warmup   time.Duration
}

// NewSampler creates a Sampler using the given resolver for the host IP.
func NewSampler(log *slog.Logger, resolver *IPResolver) *Sampler {
	return &Sampler{log: log, resolver: resolver, warmup: cpuWarmup}
}

// Sample captures a point-in-time snapshot for the given agent identity.
func (s *Sampler) Sample(agentID string) *models.Snapshot {
	snap := &models.Snapshot{
		AgentID:   agentID,
		IP:        s.resolver.Resolve(),
		CPU:       s.collectCPU(),
		Processes: s.collectProcesses(),
		OS:        s.collectOS(),
		Timestamp: time.Now(),
	}
	snap.Users = s.collectUsers(snap.OS.Hostname)

	s.log.Info("snapshot collected",
		"agent_id", agentID,
		"ip", snap.IP,
		"processes", len(snap.Processes),
		"users", len(snap.Users),
	)
	return snap
}

func (s *Sampler) collectCPU() models.CPUInfo {
	info := models.CPUInfo{Model: "unknown"}

	if count, err := cpu.Counts(true); err == nil {
		info.Count = count
	} else {
		s.log.Warn("cpu count failed", "error", err)
	}

	stats, err := cpu.Info()
	if err != nil || len(stats) == 0 {
		s.log.Warn("cpu info failed", "error", err)
		return info
	}
	if stats[0].ModelName != "" {
		info.Model = stats[0].ModelName
	}
	if stats[0].Mhz > 0 {
		info.Frequency = &models.CPUFrequency{Current: stats[0].Mhz}
	}
	return info
}

// collectProcesses performs the two-phase per-process CPU read: a first
// discarded Percent call seeds the accounting baseline for every visible
// process, then after a short pause the second call yields the usage
// accumulated in between. Processes that vanish or deny access during
// either phase are skipped.
func (s *Sampler) collectProcesses() []models.ProcessSample {
	procs, err := process.Processes()
	if err != nil {
		s.log.Error("process enumeration failed", "error", err)
		return nil
	}

	for _, p := range procs {
		_, _ = p.Percent(0) // seed baseline
	}
	time.Sleep(s.warmup)

	samples := make([]models.ProcessSample, 0, len(procs))
	for _, p := range procs {
		pct, err := p.Percent(0)
		if err != nil {
			continue
		}
		if pct == 0 {
			// Still zero after the warmup: fall back to a short
			// blocking measurement for this process alone.
			if blocked, err := p.Percent(s.warmup); err == nil {
				pct = blocked
			}
		}

		name, err := p.Name()
		if err != nil {
			continue
		}

		sample := models.ProcessSample{
			PID:        p.Pid,
			Name:       name,
			CPUPercent: pct,
		}
		if mem, err := p.MemoryPercent(); err == nil {
			m := float64(mem)
			sample.MemoryPercent = &m
		}
		if status, err := p.Status(); err == nil && len(status) > 0 {
			sample.Status = status[0]
		}
		samples = append(samples, sample)
	}

	return topProcesses(samples, maxProcessSamples)
}

// topProcesses sorts descending by CPU usage (stable, preserving source
// order for ties) and truncates to n entries.
func topProcesses(samples []models.ProcessSample, n int) []models.ProcessSample {
	sort.SliceStable(samples, func(i, j int) bool {
		return samples[i].CPUPercent > samples[j].CPUPercent
	})
	if len(samples) > n {
		samples = samples[:n]
	}
	return samples
}

// collectUsers enumerates logged-in sessions. Containers usually have
// none, so an empty result degrades to a single synthetic session
// describing the sampler's own process.
func (s *Sampler) collectUsers(hostname string) []models.UserSession {
	users, err := host.Users()
	if err != nil {
		s.log.Warn("user enumeration failed", "error", err)
	}

	sessions := make([]models.UserSession, 0, len(users))
	for _, u := range users {
		sessions = append(sessions, models.UserSession{
			Name:     u.User,
			Terminal: u.Terminal,
			Host:     u.Host,
			Started:  int64(u.Started),
		})
	}
	if len(sessions) > 0 {
		return sessions
	}
	if session, ok := s.ownerSession(hostname); ok {
		return []models.UserSession{session}
	}
	return sessions
}

// ownerSession builds the fallback session from the current process.
func (s *Sampler) ownerSession(hostname string) (models.UserSession, bool) {
	self, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		s.log.Warn("self process lookup failed", "error", err)
		return models.UserSession{}, false
	}
	name, err := self.Username()
	if err != nil {
		s.log.Warn("self username lookup failed", "error", err)
		return models.UserSession{}, false
	}

	terminal := "local"
	if _, err := os.Stat(containerMarker); err == nil {
		terminal = "container"
	}

	var started int64
	if created, err := self.CreateTime(); err == nil {
		started = created / 1000 // ms → s
	}

	return models.UserSession{
		Name:     name,
		Terminal: terminal,
		Host:     hostname,
		Started:  started,
	}, true
}

func (s *Sampler) collectOS() models.OSInfo {
	info, err := host.Info()
	if err != nil {
		s.log.Warn("host info failed", "error", err)
		hostname, _ := os.Hostname()
		return models.OSInfo{Name: runtime.GOOS, Hostname: hostname}
	}
	name := info.OS
	if name == "" {
		name = runtime.GOOS
	}
	return models.OSInfo{
		Name:     titleCase(name),
		Version:  info.PlatformVersion,
		Release:  info.KernelVersion,
		Hostname: info.Hostname,
	}
}

// titleCase capitalizes the OS name the way platform reporters do
// ("linux" → "Linux") so distributions group consistently server-side.
func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
