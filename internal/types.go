package internal

import (
	"strings"
	"time"
)

type Status string

const (
	StatusApplied    Status = "Applied"
	StatusAssessment Status = "Assessment"
	StatusInterview  Status = "Interview"
	StatusOffer      Status = "Offer"
	StatusRejected   Status = "Rejected"
)

// Statuses lists the tracker statuses in progression order.
var Statuses = []Status{StatusApplied, StatusAssessment, StatusInterview, StatusOffer, StatusRejected}

// ParseStatus maps a free-form status string onto a known Status, case-insensitively.
func ParseStatus(raw string) (Status, bool) {
	v := strings.TrimSpace(raw)
	for _, s := range Statuses {
		if strings.EqualFold(v, string(s)) {
			return s, true
		}
	}
	return Status(v), false
}

func (s Status) Valid() bool {
	for _, known := range Statuses {
		if s == known {
			return true
		}
	}
	return false
}

// ApplicationRecord is one application as extracted from a single email.
type ApplicationRecord struct {
	Company       string
	JobTitle      string
	Status        Status
	AppliedOn     time.Time
	Notes         string
	ApplicationID string
	SourceEmailID string
	ReceivedAt    time.Time
}

// TrackerRow is a persisted row of the application tracker.
type TrackerRow struct {
	RowID         string
	Company       string
	JobTitle      string
	Status        Status
	AppliedOn     time.Time
	Notes         string
	ApplicationID string
}

// RowUpdate carries the mutable fields of an existing row. Nil fields are left untouched.
type RowUpdate struct {
	Status *Status
	Notes  *string
}

func (u RowUpdate) Empty() bool {
	return u.Status == nil && u.Notes == nil
}

type WeeklyReportRow struct {
	Name      string
	WeekRange string
	Summary   string
	CreatedOn time.Time
}

type FetchedMailMessage struct {
	Provider   string
	MessageID  string
	Subject    string
	From       string
	ReceivedAt time.Time
	Raw        []byte
}

// ParsedEmail is the text view of a fetched message handed to classification and extraction.
type ParsedEmail struct {
	ID              string
	Subject         string
	From            string
	ReceivedAt      time.Time
	Text            string
	AttachmentNames []string
}
