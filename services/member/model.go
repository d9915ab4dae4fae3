package member

import "time"

// TeamMember is the local roster row. Rows are managed elsewhere; this
// package only reads them and back-fills JiraAccountID.
type TeamMember struct {
	ID            string    `gorm:"column:id;primaryKey" json:"id"`
	Name          string    `gorm:"column:name" json:"name"`
	Username      string    `gorm:"column:username;index" json:"username"`
	JiraAccountID string    `gorm:"column:jira_account_id;index" json:"jiraAccountId,omitempty"`
	CreatedAt     time.Time `gorm:"column:created_at" json:"createdAt"`
	UpdatedAt     time.Time `gorm:"column:updated_at" json:"updatedAt"`
}

// Identity is how the remote tracker names an assignee.
type Identity struct {
	AccountID   string
	DisplayName string
	Email       string
}

func (i Identity) IsZero() bool {
	return i.AccountID == "" && i.DisplayName == "" && i.Email == ""
}
