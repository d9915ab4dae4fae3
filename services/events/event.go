package events

import (
	"encoding/json"
	"time"
)

// Kind is the fixed event vocabulary shared by the server and its viewers.
type Kind string

const (
	KindConnected       Kind = "connected"
	KindSyncStarted     Kind = "sync_started"
	KindSyncCompleted   Kind = "sync_completed"
	KindSyncError       Kind = "sync_error"
	KindTicketCompleted Kind = "ticket_completed"
	KindXPAwarded       Kind = "xp_awarded"
	KindLevelUp         Kind = "level_up"
)

type Event struct {
	Type      Kind      `json:"type"`
	Data      any       `json:"data"`
	Timestamp time.Time `json:"timestamp"`
}

func New(kind Kind, data any) Event {
	return Event{Type: kind, Data: data, Timestamp: time.Now().UTC()}
}

// Envelope is the receiving side of Event; Data is decoded per kind.
type Envelope struct {
	Type      Kind            `json:"type"`
	Data      json.RawMessage `json:"data"`
	Timestamp time.Time       `json:"timestamp"`
}

func (e Envelope) Decode(v any) error {
	if len(e.Data) == 0 {
		return nil
	}
	return json.Unmarshal(e.Data, v)
}

type ConnectedData struct {
	ConnectionID string `json:"connectionId"`
}

type SyncStartedData struct {
	CycleID string `json:"cycleId"`
}

type SyncCompletedData struct {
	CycleID      string `json:"cycleId"`
	Processed    int    `json:"processed"`
	TotalReward  int64  `json:"totalReward"`
	Skipped      int    `json:"skipped"`
	Unattributed int    `json:"unattributed"`
}

type SyncErrorData struct {
	CycleID string `json:"cycleId"`
	Message string `json:"message"`
}

type TicketCompletedData struct {
	RemoteKey    string  `json:"remoteKey"`
	Summary      string  `json:"summary,omitempty"`
	MemberID     *string `json:"memberId"`
	RewardAmount int64   `json:"rewardAmount"`
}

type XPAwardedData struct {
	MemberID    string `json:"memberId"`
	RemoteKey   string `json:"remoteKey"`
	Amount      int64  `json:"amount"`
	TotalPoints int64  `json:"totalPoints"`
	Level       int    `json:"level"`
}

type LevelUpData struct {
	EventID  string `json:"eventId"`
	MemberID string `json:"memberId"`
	OldLevel int    `json:"oldLevel"`
	NewLevel int    `json:"newLevel"`
	NewTitle string `json:"newTitle"`
}
