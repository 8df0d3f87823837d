package models

import (
	"time"

	"github.com/lib/pq"
)

// RegistrationStatus is the review state of a persisted registration.
type RegistrationStatus string

const (
	RegistrationPending  RegistrationStatus = "pending"
	RegistrationApproved RegistrationStatus = "approved"
	RegistrationDeclined RegistrationStatus = "declined"
)

// Valid reports whether s is a known status.
func (s RegistrationStatus) Valid() bool {
	switch s {
	case RegistrationPending, RegistrationApproved, RegistrationDeclined:
		return true
	}
	return false
}

// InitialStatus is the status a fresh or resubmitted registration gets.
func InitialStatus(role Role) RegistrationStatus {
	if role.SelfApproving() {
		return RegistrationApproved
	}
	return RegistrationPending
}

// Registration is the persisted application of one account.
type Registration struct {
	ID             string             `db:"id" json:"id"`
	AccountID      string             `db:"account_id" json:"account_id"`
	Role           Role               `db:"role" json:"role"`
	Status         RegistrationStatus `db:"status" json:"status"`
	FirstName      string             `db:"first_name" json:"first_name"`
	Surname        string             `db:"surname" json:"surname"`
	IDNumber       string             `db:"id_number" json:"id_number"`
	DateOfBirth    *string            `db:"date_of_birth" json:"date_of_birth,omitempty"`
	Email          string             `db:"email" json:"email"`
	Phone          string             `db:"phone" json:"phone"`
	Address        string             `db:"address" json:"address"`
	NextOfKinName  string             `db:"next_of_kin_name" json:"next_of_kin_name"`
	NextOfKinPhone string             `db:"next_of_kin_phone" json:"next_of_kin_phone"`
	Disability     *string            `db:"disability" json:"disability,omitempty"`

	Grade       *string        `db:"grade" json:"grade,omitempty"`
	ClassName   *string        `db:"class_name" json:"class_name,omitempty"`
	Electives   pq.StringArray `db:"electives" json:"electives"`
	ParentName  *string        `db:"parent_name" json:"parent_name,omitempty"`
	ParentPhone *string        `db:"parent_phone" json:"parent_phone,omitempty"`
	ParentEmail *string        `db:"parent_email" json:"parent_email,omitempty"`

	Department  *string        `db:"department" json:"department,omitempty"`
	GradeTaught *string        `db:"grade_taught" json:"grade_taught,omitempty"`
	Subjects    pq.StringArray `db:"subjects" json:"subjects"`

	IDDocumentURL     *string `db:"id_document_url" json:"id_document_url,omitempty"`
	ProofOfAddressURL *string `db:"proof_of_address_url" json:"proof_of_address_url,omitempty"`
	PriorReportURL    *string `db:"prior_report_url" json:"prior_report_url,omitempty"`
	ProofOfPaymentURL *string `db:"proof_of_payment_url" json:"proof_of_payment_url,omitempty"`
	QualificationURL  *string `db:"qualification_url" json:"qualification_url,omitempty"`
	ParentIDURL       *string `db:"parent_id_url" json:"parent_id_url,omitempty"`

	ReviewedBy    *string    `db:"reviewed_by" json:"reviewed_by,omitempty"`
	ReviewedAt    *time.Time `db:"reviewed_at" json:"reviewed_at,omitempty"`
	DeclineReason *string    `db:"decline_reason" json:"decline_reason,omitempty"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at" json:"updated_at"`
}

// FullName joins first name and surname.
func (r Registration) FullName() string {
	if r.Surname == "" {
		return r.FirstName
	}
	return r.FirstName + " " + r.Surname
}

// SetDocumentURL stores the public URL of a document on the matching column.
func (r *Registration) SetDocumentURL(kind DocumentKind, url string) {
	u := &url
	switch kind {
	case DocumentIDDocument:
		r.IDDocumentURL = u
	case DocumentProofOfAddress:
		r.ProofOfAddressURL = u
	case DocumentPriorReport:
		r.PriorReportURL = u
	case DocumentProofOfPayment:
		r.ProofOfPaymentURL = u
	case DocumentQualification:
		r.QualificationURL = u
	case DocumentParentID:
		r.ParentIDURL = u
	}
}

// DocumentURL returns the stored URL for a document kind.
func (r Registration) DocumentURL(kind DocumentKind) string {
	var u *string
	switch kind {
	case DocumentIDDocument:
		u = r.IDDocumentURL
	case DocumentProofOfAddress:
		u = r.ProofOfAddressURL
	case DocumentPriorReport:
		u = r.PriorReportURL
	case DocumentProofOfPayment:
		u = r.ProofOfPaymentURL
	case DocumentQualification:
		u = r.QualificationURL
	case DocumentParentID:
		u = r.ParentIDURL
	}
	if u == nil {
		return ""
	}
	return *u
}

// RegistrationFilter narrows registration listings.
type RegistrationFilter struct {
	Status   RegistrationStatus
	Role     Role
	Page     int
	PageSize int
}

// RegistrationCounts tallies registrations by status and role.
type RegistrationCounts struct {
	ByStatus map[RegistrationStatus]int `json:"by_status"`
	ByRole   map[Role]int               `json:"by_role"`
	Total    int                        `json:"total"`
}
