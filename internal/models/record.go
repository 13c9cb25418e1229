package models

import "time"

// Record is the GORM row backing the collector's record store. The full
// snapshot travels as raw JSON in Payload; the indexed columns exist for
// per-IP queries and ordering only.
type Record struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	AgentID    string    `gorm:"index" json:"agent_id"`
	IP         string    `gorm:"index" json:"ip"`
	Timestamp  time.Time `gorm:"index" json:"timestamp"`
	ReceivedAt time.Time `gorm:"index" json:"received_at"`
	Payload    string    `json:"-"`
}
