package ledger

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"

	"gorm.io/datatypes"
)

type Source string

const (
	SourcePoll   Source = "poll"
	SourceManual Source = "manual"
)

const EntityTypeMember = "member"

// CompletionRecord marks a remote work item as processed. One row per
// remote key for the lifetime of the ledger; rows are never updated.
type CompletionRecord struct {
	ID           string         `gorm:"column:id;primaryKey" json:"id"`
	RemoteKey    string         `gorm:"column:remote_key;uniqueIndex;not null" json:"remoteKey"`
	MemberID     *string        `gorm:"column:member_id;index" json:"memberId"`
	RewardAmount int64          `gorm:"column:reward_amount" json:"rewardAmount"`
	Source       Source         `gorm:"column:source" json:"source"`
	Summary      string         `gorm:"column:summary" json:"summary"`
	Priority     string         `gorm:"column:priority" json:"priority"`
	AssigneeName string         `gorm:"column:assignee_name" json:"assigneeName,omitempty"`
	ResolvedAt   *time.Time     `gorm:"column:resolved_at" json:"resolvedAt,omitempty"`
	Metadata     datatypes.JSON `gorm:"column:metadata" json:"metadata,omitempty"`
	PreviousHash string         `gorm:"column:previous_hash" json:"-"`
	Hash         string         `gorm:"column:hash" json:"hash"`
	ProcessedAt  time.Time      `gorm:"column:processed_at;index" json:"processedAt"`
}

func (m *CompletionRecord) HashFields() map[string]string {
	member := ""
	if m.MemberID != nil {
		member = *m.MemberID
	}
	return map[string]string{
		"id":            m.ID,
		"remote_key":    m.RemoteKey,
		"member_id":     member,
		"reward_amount": fmt.Sprintf("%d", m.RewardAmount),
		"source":        string(m.Source),
		"processed_at":  m.ProcessedAt.UTC().Format(time.RFC3339Nano),
		"previous_hash": m.PreviousHash,
	}
}

// GenerateHash chains the record to its predecessor so edits to the
// append-only table are detectable.
func (m *CompletionRecord) GenerateHash() string {
	fields := m.HashFields()
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%s", k, fields[k]))
	}

	hash := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(hash[:])
}

type MemberProgress struct {
	MemberID       string    `gorm:"column:member_id;primaryKey" json:"memberId"`
	Points         int64     `gorm:"column:points;not null;default:0" json:"points"`
	Level          int       `gorm:"column:level;not null;default:1" json:"level"`
	Title          string    `gorm:"column:title" json:"title"`
	ItemsCompleted int64     `gorm:"column:items_completed;not null;default:0" json:"itemsCompleted"`
	CreatedAt      time.Time `gorm:"column:created_at" json:"createdAt"`
	UpdatedAt      time.Time `gorm:"column:updated_at" json:"updatedAt"`
}

type LevelUpEvent struct {
	ID             string     `gorm:"column:id;primaryKey" json:"id"`
	EntityID       string     `gorm:"column:entity_id;index" json:"entityId"`
	EntityType     string     `gorm:"column:entity_type" json:"entityType"`
	OldLevel       int        `gorm:"column:old_level" json:"oldLevel"`
	NewLevel       int        `gorm:"column:new_level" json:"newLevel"`
	NewTitle       string     `gorm:"column:new_title" json:"newTitle"`
	Acknowledged   bool       `gorm:"column:acknowledged;index;not null;default:false" json:"acknowledged"`
	AcknowledgedAt *time.Time `gorm:"column:acknowledged_at" json:"acknowledgedAt,omitempty"`
	CreatedAt      time.Time  `gorm:"column:created_at" json:"createdAt"`
}

// Models lists the tables owned by the ledger.
func Models() []any {
	return []any{&CompletionRecord{}, &MemberProgress{}, &LevelUpEvent{}}
}
