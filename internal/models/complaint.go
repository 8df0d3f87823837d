package models

import "time"

// ComplaintStatus tracks whether staff have replied.
type ComplaintStatus string

const (
	ComplaintOpen      ComplaintStatus = "open"
	ComplaintResponded ComplaintStatus = "responded"
)

// Complaint is raised by a learner and answered by pastoral staff.
type Complaint struct {
	ID          string          `db:"id" json:"id"`
	LearnerID   string          `db:"learner_id" json:"learner_id"`
	Subject     string          `db:"subject" json:"subject"`
	Body        string          `db:"body" json:"body"`
	Status      ComplaintStatus `db:"status" json:"status"`
	Response    *string         `db:"response" json:"response,omitempty"`
	RespondedBy *string         `db:"responded_by" json:"responded_by,omitempty"`
	RespondedAt *time.Time      `db:"responded_at" json:"responded_at,omitempty"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
}

// ComplaintFilter narrows complaint listings.
type ComplaintFilter struct {
	LearnerID string
	Status    ComplaintStatus
}
