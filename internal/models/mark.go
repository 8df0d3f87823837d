package models

import "time"

// Mark is one assessment result for a learner.
type Mark struct {
	ID          string    `db:"id" json:"id"`
	LearnerID   string    `db:"learner_id" json:"learner_id"`
	LearnerName string    `db:"learner_name" json:"learner_name"`
	Subject     string    `db:"subject" json:"subject"`
	Grade       string    `db:"grade" json:"grade"`
	ClassName   string    `db:"class_name" json:"class_name"`
	Assessment  string    `db:"assessment" json:"assessment"`
	Score       float64   `db:"score" json:"score"`
	Total       float64   `db:"total" json:"total"`
	RecordedBy  string    `db:"recorded_by" json:"recorded_by"`
	RecordedAt  time.Time `db:"recorded_at" json:"recorded_at"`
}

// Percentage is the score out of 100; zero when the total is not positive.
func (m Mark) Percentage() float64 {
	if m.Total <= 0 {
		return 0
	}
	return m.Score / m.Total * 100
}

// MarkFilter scopes mark queries. Empty fields match everything.
type MarkFilter struct {
	LearnerID string
	Grade     string
	Subjects  []string
}
