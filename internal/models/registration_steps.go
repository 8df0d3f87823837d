package models

import (
	"strconv"
	"strings"
)

// Step names one page of the registration wizard.
type Step string

const (
	StepRole         Step = "role"
	StepPersonal     Step = "personal"
	StepContact      Step = "contact"
	StepParent       Step = "parent"
	StepProfessional Step = "professional"
	StepDocuments    Step = "documents"
	StepPayment      Step = "payment"
	StepComplete     Step = "complete"
)

// Steps returns the ordered step list for the shape. ShapeNone uses the
// learner list since it is the widest.
func (s Shape) Steps() []Step {
	switch s {
	case ShapeSupportStaff:
		return []Step{StepRole, StepPersonal, StepContact, StepDocuments, StepComplete}
	case ShapeTeachingStaff:
		return []Step{StepRole, StepPersonal, StepContact, StepProfessional, StepDocuments, StepComplete}
	default:
		return []Step{StepRole, StepPersonal, StepContact, StepParent, StepDocuments, StepPayment, StepComplete}
	}
}

// Steps returns the step list for the role.
func (r Role) Steps() []Step {
	return r.Shape().Steps()
}

// HasLearnerFields reports whether grade, class, electives and parent details apply.
func (s Shape) HasLearnerFields() bool {
	return s == ShapeLearner
}

// HasProfessionalFields reports whether department, grade taught and subjects apply.
func (s Shape) HasProfessionalFields() bool {
	return s == ShapeTeachingStaff
}

// DocumentKind names an uploadable registration document.
type DocumentKind string

const (
	DocumentIDDocument     DocumentKind = "id_document"
	DocumentProofOfAddress DocumentKind = "proof_of_address"
	DocumentPriorReport    DocumentKind = "prior_report"
	DocumentProofOfPayment DocumentKind = "proof_of_payment"
	DocumentQualification  DocumentKind = "qualification"
	DocumentParentID       DocumentKind = "parent_id"
)

// ParseDocumentKind validates a document kind from a path segment.
func ParseDocumentKind(raw string) (DocumentKind, bool) {
	kind := DocumentKind(strings.ToLower(raw))
	switch kind {
	case DocumentIDDocument, DocumentProofOfAddress, DocumentPriorReport,
		DocumentProofOfPayment, DocumentQualification, DocumentParentID:
		return kind, true
	}
	return "", false
}

// Label is the human name of the document.
func (k DocumentKind) Label() string {
	switch k {
	case DocumentIDDocument:
		return "ID document"
	case DocumentProofOfAddress:
		return "proof of address"
	case DocumentPriorReport:
		return "previous school report"
	case DocumentProofOfPayment:
		return "proof of payment"
	case DocumentQualification:
		return "qualification"
	case DocumentParentID:
		return "parent ID document"
	default:
		return string(k)
	}
}

// RequiredDocuments lists the documents a submission must carry.
func (s Shape) RequiredDocuments() []DocumentKind {
	switch s {
	case ShapeLearner:
		return []DocumentKind{DocumentIDDocument, DocumentProofOfAddress, DocumentPriorReport, DocumentProofOfPayment}
	case ShapeSupportStaff, ShapeTeachingStaff:
		return []DocumentKind{DocumentIDDocument, DocumentProofOfAddress, DocumentQualification}
	default:
		return []DocumentKind{DocumentIDDocument, DocumentProofOfAddress}
	}
}

// AcceptsDocument reports whether a document of kind may be attached.
func (s Shape) AcceptsDocument(kind DocumentKind) bool {
	switch kind {
	case DocumentIDDocument, DocumentProofOfAddress:
		return true
	case DocumentPriorReport, DocumentProofOfPayment, DocumentParentID:
		return s == ShapeLearner
	case DocumentQualification:
		return s == ShapeSupportStaff || s == ShapeTeachingStaff
	default:
		return false
	}
}

// Grades that must choose exactly ElectiveCount elective subjects.
const (
	ElectiveCount    = 4
	MinElectiveGrade = 10
	MaxElectiveGrade = 12
)

// GradeLevel extracts the numeric grade from values such as "Grade 10" or "11".
func GradeLevel(grade string) (int, bool) {
	fields := strings.Fields(grade)
	if len(fields) == 0 {
		return 0, false
	}
	n, err := strconv.Atoi(fields[len(fields)-1])
	if err != nil {
		return 0, false
	}
	return n, true
}

// RequiresElectives reports whether the grade must choose electives.
func RequiresElectives(grade string) bool {
	n, ok := GradeLevel(grade)
	return ok && n >= MinElectiveGrade && n <= MaxElectiveGrade
}
