// Package server implements the FleetPulse collector: record storage,
// aggregation, alerting, and the Gin REST API.
package server

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/fleetpulse/fleetpulse/internal/models"
)

// RecordStore is the durable, append-only home of received snapshots.
// Appends must be atomic with respect to each other, and each List call
// must observe a consistent point-in-time record set.
type RecordStore interface {
	Append(snap *models.StoredSnapshot) (uint, error)
	ListAll() ([]models.StoredSnapshot, error)
	ListByIP(ip string) ([]models.StoredSnapshot, error)
}

type gormStore struct {
	db  *gorm.DB
	log *slog.Logger
}

// OpenStore opens (or creates) the SQLite-backed record store at path.
// ":memory:" is accepted for tests.
func OpenStore(path string, log *slog.Logger) (RecordStore, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.AutoMigrate(&models.Record{}); err != nil {
		return nil, fmt.Errorf("auto-migrate: %w", err)
	}
	log.Info("record store opened", "path", path)
	return &gormStore{db: db, log: log}, nil
}

// Append persists one snapshot, stamping ReceivedAt if the caller left it
// zero, and returns the new record id.
func (s *gormStore) Append(snap *models.StoredSnapshot) (uint, error) {
	if snap.ReceivedAt.IsZero() {
		snap.ReceivedAt = time.Now()
	}
	payload, err := json.Marshal(snap)
	if err != nil {
		return 0, fmt.Errorf("encoding snapshot: %w", err)
	}

	rec := models.Record{
		AgentID:    snap.AgentID,
		IP:         snap.IP,
		Timestamp:  snap.Timestamp,
		ReceivedAt: snap.ReceivedAt,
		Payload:    string(payload),
	}
	if err := s.db.Create(&rec).Error; err != nil {
		return 0, fmt.Errorf("inserting record: %w", err)
	}
	return rec.ID, nil
}

func (s *gormStore) ListAll() ([]models.StoredSnapshot, error) {
	var rows []models.Record
	if err := s.db.Order("id asc").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("listing records: %w", err)
	}
	return s.decode(rows), nil
}

func (s *gormStore) ListByIP(ip string) ([]models.StoredSnapshot, error) {
	var rows []models.Record
	if err := s.db.Where("ip = ?", ip).Order("id asc").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("listing records for %s: %w", ip, err)
	}
	return s.decode(rows), nil
}

// decode unmarshals stored payloads, skipping corrupt rows with a warning
// so one bad record never breaks an aggregation pass.
func (s *gormStore) decode(rows []models.Record) []models.StoredSnapshot {
	snaps := make([]models.StoredSnapshot, 0, len(rows))
	for _, row := range rows {
		var snap models.StoredSnapshot
		if err := json.Unmarshal([]byte(row.Payload), &snap); err != nil {
			s.log.Warn("skipping malformed record", "id", row.ID, "error", err)
			continue
		}
		snaps = append(snaps, snap)
	}
	return snaps
}
