package dto

import (
	"sort"

	"github.com/noah-isme/school-portal-api/internal/models"
)

// WizardState is what the registration wizard endpoints return.
type WizardState struct {
	DraftID           string                `json:"draftId"`
	Role              models.Role           `json:"role,omitempty"`
	Step              int                   `json:"step"`
	StepName          models.Step           `json:"stepName"`
	Steps             []models.Step         `json:"steps"`
	Complete          bool                  `json:"complete"`
	Fields            WizardFields          `json:"fields"`
	Attachments       []models.Attachment   `json:"attachments"`
	RequiredDocuments []models.DocumentKind `json:"requiredDocuments"`
	Message           string                `json:"message,omitempty"`
	RegistrationID    string                `json:"registrationId,omitempty"`
	Status            string                `json:"status,omitempty"`
}

// WizardFields echoes the draft form without credentials.
type WizardFields struct {
	FirstName      string   `json:"firstName"`
	Surname        string   `json:"surname"`
	IDNumber       string   `json:"idNumber"`
	DateOfBirth    string   `json:"dateOfBirth"`
	Disability     string   `json:"disability"`
	PasswordSet    bool     `json:"passwordSet"`
	Email          string   `json:"email"`
	Phone          string   `json:"phone"`
	Address        string   `json:"address"`
	NextOfKinName  string   `json:"nextOfKinName"`
	NextOfKinPhone string   `json:"nextOfKinPhone"`
	Grade          string   `json:"grade,omitempty"`
	ClassName      string   `json:"className,omitempty"`
	Electives      []string `json:"electives,omitempty"`
	ParentName     string   `json:"parentName,omitempty"`
	ParentPhone    string   `json:"parentPhone,omitempty"`
	ParentEmail    string   `json:"parentEmail,omitempty"`
	Department     string   `json:"department,omitempty"`
	GradeTaught    string   `json:"gradeTaught,omitempty"`
	Subjects       []string `json:"subjects,omitempty"`
}

// NewWizardState renders a draft at its current cursor.
func NewWizardState(draft *models.RegistrationDraft) *WizardState {
	steps := draft.Role.Steps()
	step := draft.Step
	if step < 0 {
		step = 0
	}
	if step >= len(steps) {
		step = len(steps) - 1
	}
	f := draft.Fields
	attachments := make([]models.Attachment, 0, len(draft.Attachments))
	for _, a := range draft.Attachments {
		attachments = append(attachments, a)
	}
	sort.Slice(attachments, func(i, j int) bool { return attachments[i].Kind < attachments[j].Kind })

	return &WizardState{
		DraftID:           draft.ID,
		Role:              draft.Role,
		Step:              step,
		StepName:          steps[step],
		Steps:             steps,
		Complete:          steps[step] == models.StepComplete,
		Attachments:       attachments,
		RequiredDocuments: draft.Role.Shape().RequiredDocuments(),
		Fields: WizardFields{
			FirstName:      f.FirstName,
			Surname:        f.Surname,
			IDNumber:       f.IDNumber,
			DateOfBirth:    f.DateOfBirth,
			Disability:     f.Disability,
			PasswordSet:    f.Password != "",
			Email:          f.Email,
			Phone:          f.Phone,
			Address:        f.Address,
			NextOfKinName:  f.NextOfKinName,
			NextOfKinPhone: f.NextOfKinPhone,
			Grade:          f.Grade,
			ClassName:      f.ClassName,
			Electives:      f.Electives,
			ParentName:     f.ParentName,
			ParentPhone:    f.ParentPhone,
			ParentEmail:    f.ParentEmail,
			Department:     f.Department,
			GradeTaught:    f.GradeTaught,
			Subjects:       f.Subjects,
		},
	}
}

// ReviewRequest carries an optional decline reason.
type ReviewRequest struct {
	Reason string `json:"reason" validate:"max=500"`
}
