package syncer

import (
	"time"

	"gorm.io/datatypes"
)

const singletonID = 1

// SyncState is the single persisted row describing the scheduler and the
// outcome of the latest cycles.
type SyncState struct {
	ID                   int        `gorm:"column:id;primaryKey;autoIncrement:false" json:"-"`
	Enabled              bool       `gorm:"column:enabled;not null;default:false" json:"enabled"`
	IntervalMs           int64      `gorm:"column:interval_ms;not null" json:"intervalMs"`
	LastSyncAt           *time.Time `gorm:"column:last_sync_at" json:"lastSyncAt"`
	LastSuccessfulSyncAt *time.Time `gorm:"column:last_successful_sync_at" json:"lastSuccessfulSyncAt"`
	ErrorCount           int        `gorm:"column:error_count;not null;default:0" json:"errorCount"`
	LastError            *string    `gorm:"column:last_error" json:"lastError"`
	BaselineDate         *time.Time `gorm:"column:baseline_date" json:"baselineDate"`
	UpdatedAt            time.Time  `gorm:"column:updated_at" json:"updatedAt"`
}

// Interval is IntervalMs as a duration.
func (s SyncState) Interval() time.Duration {
	return time.Duration(s.IntervalMs) * time.Millisecond
}

// ActiveTicket caches an open remote work item for the board view.
type ActiveTicket struct {
	RemoteKey         string         `gorm:"column:remote_key;primaryKey" json:"remoteKey"`
	Summary           string         `gorm:"column:summary" json:"summary"`
	Status            string         `gorm:"column:status" json:"status"`
	StatusCategory    string         `gorm:"column:status_category" json:"statusCategory"`
	Priority          string         `gorm:"column:priority" json:"priority"`
	IssueType         string         `gorm:"column:issue_type" json:"issueType"`
	AssigneeAccountID string         `gorm:"column:assignee_account_id" json:"assigneeAccountId,omitempty"`
	AssigneeName      string         `gorm:"column:assignee_name" json:"assigneeName,omitempty"`
	MemberID          *string        `gorm:"column:member_id;index" json:"memberId"`
	Labels            datatypes.JSON `gorm:"column:labels" json:"labels,omitempty"`
	RemoteUpdatedAt   time.Time      `gorm:"column:remote_updated_at" json:"remoteUpdatedAt"`
	SyncedAt          time.Time      `gorm:"column:synced_at;index" json:"syncedAt"`
}

func Models() []any {
	return []any{&SyncState{}, &ActiveTicket{}}
}
