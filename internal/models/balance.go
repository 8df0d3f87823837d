package models

import "time"

// Balance is the outstanding fee amount of a learner. Positive means owing.
type Balance struct {
	LearnerID   string    `db:"learner_id" json:"learner_id"`
	LearnerName string    `db:"learner_name" json:"learner_name"`
	Amount      float64   `db:"amount" json:"amount"`
	UpdatedBy   string    `db:"updated_by" json:"updated_by"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// InArrears reports whether the learner owes money.
func (b Balance) InArrears() bool {
	return b.Amount > 0
}
