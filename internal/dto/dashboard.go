package dto

import (
	"time"

	"github.com/noah-isme/school-portal-api/internal/models"
)

// Dashboard is the payload of one role dashboard. Sections a role does not
// show are omitted.
type Dashboard struct {
	Role        models.Role    `json:"role"`
	Scope       DashboardScope `json:"scope"`
	GeneratedAt time.Time      `json:"generatedAt"`

	Average         *float64         `json:"average,omitempty"`
	PassRate        *float64         `json:"passRate,omitempty"`
	SubjectAverages []GroupAverage   `json:"subjectAverages,omitempty"`
	ClassAverages   []GroupAverage   `json:"classAverages,omitempty"`
	GradeAverages   []GroupAverage   `json:"gradeAverages,omitempty"`
	AtRisk          []LearnerAverage `json:"atRisk,omitempty"`

	Balance       *models.Balance            `json:"balance,omitempty"`
	Finance       *FinanceSummary            `json:"finance,omitempty"`
	Registrations *models.RegistrationCounts `json:"registrations,omitempty"`
	Pending       *int                       `json:"pendingRegistrations,omitempty"`
	Complaints    *ComplaintSummary          `json:"complaints,omitempty"`
	Library       *LibrarySummary            `json:"library,omitempty"`
	Announcements []models.Announcement      `json:"announcements,omitempty"`
}

// DashboardScope is the slice of the school a dashboard covers.
type DashboardScope struct {
	Grade      string   `json:"grade,omitempty"`
	Department string   `json:"department,omitempty"`
	Subjects   []string `json:"subjects,omitempty"`
}

// GroupAverage is the mean percentage of one subject, class or grade.
type GroupAverage struct {
	Key     string  `json:"key"`
	Average float64 `json:"average"`
	Count   int     `json:"count"`
}

// LearnerAverage is a learner's mean percentage.
type LearnerAverage struct {
	LearnerID   string  `json:"learnerId"`
	LearnerName string  `json:"learnerName"`
	Average     float64 `json:"average"`
}

// FinanceSummary aggregates learner balances.
type FinanceSummary struct {
	Outstanding    float64          `json:"outstanding"`
	AverageBalance float64          `json:"averageBalance"`
	InArrears      []models.Balance `json:"inArrears"`
}

// ComplaintSummary counts complaints by status and lists the latest ones.
type ComplaintSummary struct {
	Open      int                `json:"open"`
	Responded int                `json:"responded"`
	Recent    []models.Complaint `json:"recent"`
}

// LibrarySummary counts materials per category.
type LibrarySummary struct {
	Total      int            `json:"total"`
	ByCategory map[string]int `json:"byCategory"`
}
