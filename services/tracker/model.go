package tracker

import (
	"encoding/json"
	"strings"
	"time"
)

type Assignee struct {
	AccountID    string `json:"accountId"`
	DisplayName  string `json:"displayName"`
	EmailAddress string `json:"emailAddress"`
}

// Issue is the subset of a remote work item the sync pipeline reads.
type Issue struct {
	Key            string
	Summary        string
	Status         string
	StatusCategory string
	Priority       string
	IssueType      string
	Assignee       *Assignee
	Labels         []string
	Created        time.Time
	Updated        time.Time
	ResolvedAt     *time.Time
}

type searchResponse struct {
	StartAt    int        `json:"startAt"`
	MaxResults int        `json:"maxResults"`
	Total      int        `json:"total"`
	Issues     []rawIssue `json:"issues"`
}

type rawIssue struct {
	Key    string `json:"key"`
	Fields struct {
		Summary string `json:"summary"`
		Status  *struct {
			Name           string `json:"name"`
			StatusCategory *struct {
				Key string `json:"key"`
			} `json:"statusCategory"`
		} `json:"status"`
		Priority *struct {
			Name string `json:"name"`
		} `json:"priority"`
		IssueType *struct {
			Name string `json:"name"`
		} `json:"issuetype"`
		Assignee       *Assignee `json:"assignee"`
		Labels         []string  `json:"labels"`
		Created        Time      `json:"created"`
		Updated        Time      `json:"updated"`
		ResolutionDate *Time     `json:"resolutiondate"`
	} `json:"fields"`
}

func (r rawIssue) issue() Issue {
	f := r.Fields
	out := Issue{
		Key:      r.Key,
		Summary:  f.Summary,
		Assignee: f.Assignee,
		Labels:   f.Labels,
		Created:  f.Created.Time,
		Updated:  f.Updated.Time,
	}
	if f.Status != nil {
		out.Status = f.Status.Name
		if f.Status.StatusCategory != nil {
			out.StatusCategory = f.Status.StatusCategory.Key
		}
	}
	if f.Priority != nil {
		out.Priority = f.Priority.Name
	}
	if f.IssueType != nil {
		out.IssueType = f.IssueType.Name
	}
	if f.ResolutionDate != nil && !f.ResolutionDate.IsZero() {
		t := f.ResolutionDate.Time
		out.ResolvedAt = &t
	}
	return out
}

var timeLayouts = []string{
	"2006-01-02T15:04:05.000-0700",
	"2006-01-02T15:04:05-0700",
	time.RFC3339Nano,
	time.DateOnly,
}

// Time decodes the tracker's timestamp formats. null and "" decode to zero.
type Time struct {
	time.Time
}

func (t *Time) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	s = strings.TrimSpace(s)
	if s == "" {
		t.Time = time.Time{}
		return nil
	}

	var lastErr error
	for _, layout := range timeLayouts {
		parsed, err := time.Parse(layout, s)
		if err == nil {
			t.Time = parsed
			return nil
		}
		lastErr = err
	}
	return lastErr
}

func apiMessage(body []byte) string {
	var payload struct {
		ErrorMessages []string          `json:"errorMessages"`
		Errors        map[string]string `json:"errors"`
		Message       string            `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		parts := append([]string{}, payload.ErrorMessages...)
		for field, msg := range payload.Errors {
			parts = append(parts, field+": "+msg)
		}
		if payload.Message != "" {
			parts = append(parts, payload.Message)
		}
		if len(parts) > 0 {
			return strings.Join(parts, "; ")
		}
	}

	msg := strings.TrimSpace(string(body))
	if len(msg) > 200 {
		msg = msg[:200]
	}
	if msg == "" {
		msg = "empty response"
	}
	return msg
}
