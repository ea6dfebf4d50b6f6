package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// Severity values
const (
	SeverityLow      = "low"
	SeverityMedium   = "medium"
	SeverityHigh     = "high"
	SeverityCritical = "critical"
)

// Status values
const (
	StatusActive   = "active"
	StatusBlocked  = "blocked"
	StatusResolved = "resolved"
)

// Threat actor types
const (
	ActorNationState  = "nation-state"
	ActorCybercriminal = "cybercriminal"
	ActorHacktivist   = "hacktivist"
	ActorInsider      = "insider"
)

// StringList is stored as a JSON array in a TEXT column
type StringList []string

// Value implements driver.Valuer
func (s StringList) Value() (driver.Value, error) {
	if s == nil {
		return "[]", nil
	}
	data, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// Scan implements sql.Scanner
func (s *StringList) Scan(value interface{}) error {
	if value == nil {
		*s = StringList{}
		return nil
	}
	switch v := value.(type) {
	case string:
		return json.Unmarshal([]byte(v), s)
	case []byte:
		return json.Unmarshal(v, s)
	default:
		return errors.New("unsupported type for StringList")
	}
}

// Attack represents a single normalized attack event
type Attack struct {
	ID            string    `json:"id" gorm:"primaryKey"`
	Timestamp     time.Time `json:"timestamp" gorm:"index"`
	SourceCountry string    `json:"source_country" gorm:"index"`
	TargetCountry string    `json:"target_country"`
	AttackType    string    `json:"attack_type"`
	Severity      string    `json:"severity"`
	Status        string    `json:"status"`
	SourceIP      string    `json:"source_ip"`
	TargetIP      string    `json:"target_ip"`
	Port          int       `json:"port"`
	Protocol      string    `json:"protocol"`
	ThreatActor   string    `json:"threat_actor,omitempty"`
	ThreatFamily  string    `json:"threat_family,omitempty" gorm:"index"`
	MispEventID   string    `json:"misp_event_id,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// ThreatFamily represents a malware/campaign grouping tracked over time
type ThreatFamily struct {
	ID            string     `json:"id" gorm:"primaryKey"`
	Name          string     `json:"name" gorm:"uniqueIndex"`
	Category      string     `json:"category" gorm:"index"`
	FirstSeen     time.Time  `json:"first_seen"`
	LastSeen      time.Time  `json:"last_seen"`
	TotalAttacks  int        `json:"total_attacks"`
	Countries     StringList `json:"countries" gorm:"type:text"`
	Description   string     `json:"description,omitempty"`
	Aliases       StringList `json:"aliases" gorm:"type:text"`
	Techniques    StringList `json:"techniques" gorm:"type:text"`
	TargetSectors StringList `json:"target_sectors" gorm:"type:text"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// ThreatActor represents a named attacker group
type ThreatActor struct {
	ID            string     `json:"id" gorm:"primaryKey"`
	Name          string     `json:"name" gorm:"uniqueIndex"`
	Country       string     `json:"country"`
	Type          string     `json:"type"` // nation-state, cybercriminal, hacktivist, insider
	ActiveAttacks int        `json:"active_attacks"`
	TotalAttacks  int        `json:"total_attacks"`
	LastSeen      time.Time  `json:"last_seen"`
	RiskLevel     string     `json:"risk_level"`
	Families      StringList `json:"associated_families" gorm:"type:text"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// MispEvent stores the raw shape of an ingested MISP event
type MispEvent struct {
	ID            string    `json:"id" gorm:"primaryKey"`
	EventID       string    `json:"event_id" gorm:"uniqueIndex"`
	Info          string    `json:"info"`
	ThreatLevelID int       `json:"threat_level_id"`
	Analysis      int       `json:"analysis"`
	Date          string    `json:"date"`
	Timestamp     time.Time `json:"timestamp" gorm:"index"`
	Attributes    string    `json:"attributes" gorm:"type:text"` // raw JSON
	Tags          string    `json:"tags" gorm:"type:text"`       // raw JSON
	Galaxies      string    `json:"galaxy_clusters" gorm:"type:text"`
	CreatedAt     time.Time `json:"created_at"`
}

// ValidSeverity reports whether s is one of the enumerated severities
func ValidSeverity(s string) bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	}
	return false
}

// ValidStatus reports whether s is one of the enumerated statuses
func ValidStatus(s string) bool {
	switch s {
	case StatusActive, StatusBlocked, StatusResolved:
		return true
	}
	return false
}
