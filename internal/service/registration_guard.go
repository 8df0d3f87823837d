package service

import (
	"fmt"
	"strings"

	"github.com/noah-isme/school-portal-api/internal/models"
	appErrors "github.com/noah-isme/school-portal-api/pkg/errors"
	"github.com/noah-isme/school-portal-api/pkg/validation"
)

// CheckStep runs the guard of step against the draft. It returns the first
// failing field, or nil when the wizard may move past the step.
func CheckStep(step models.Step, draft *models.RegistrationDraft) *appErrors.Error {
	switch step {
	case models.StepRole:
		return checkRoleStep(draft)
	case models.StepPersonal:
		return checkPersonalStep(draft)
	case models.StepContact:
		return checkContactStep(draft)
	case models.StepParent:
		return checkParentStep(draft)
	case models.StepDocuments:
		return CheckDocuments(draft)
	case models.StepProfessional, models.StepPayment, models.StepComplete:
		return nil
	default:
		return appErrors.Field("step", fmt.Sprintf("unknown step %q", step))
	}
}

// CheckDocuments verifies that every document required for the role is attached.
func CheckDocuments(draft *models.RegistrationDraft) *appErrors.Error {
	for _, kind := range draft.Role.Shape().RequiredDocuments() {
		if _, ok := draft.Attachments[kind]; !ok {
			return appErrors.Field(string(kind), fmt.Sprintf("please upload your %s", kind.Label()))
		}
	}
	return nil
}

func checkRoleStep(draft *models.RegistrationDraft) *appErrors.Error {
	if draft.Role == "" {
		return appErrors.Field("role", "please select a role")
	}
	if !draft.Role.Valid() {
		return appErrors.Field("role", fmt.Sprintf("unknown role %q", draft.Role))
	}
	return nil
}

func checkPersonalStep(draft *models.RegistrationDraft) *appErrors.Error {
	f := draft.Fields
	required := []struct {
		field, value, label string
	}{
		{"first_name", f.FirstName, "first name"},
		{"surname", f.Surname, "surname"},
		{"id_number", f.IDNumber, "ID number"},
		{"password", f.Password, "password"},
		{"confirm_password", f.ConfirmPassword, "password confirmation"},
	}
	for _, r := range required {
		if blank(r.value) {
			return appErrors.Field(r.field, fmt.Sprintf("%s is required", r.label))
		}
	}
	if !validation.IsNationalID(strings.TrimSpace(f.IDNumber)) {
		return appErrors.Field("id_number", "ID number must be exactly 13 digits")
	}
	if f.Password != f.ConfirmPassword {
		return appErrors.Field("confirm_password", "passwords do not match")
	}
	if err := validation.CheckPassword(f.Password); err != nil {
		return appErrors.Field("password", err.Error())
	}

	if !draft.Role.Shape().HasLearnerFields() {
		return nil
	}
	if blank(f.Grade) {
		return appErrors.Field("grade", "please select a grade")
	}
	if blank(f.ClassName) {
		return appErrors.Field("class_name", "please select a class")
	}
	if !models.RequiresElectives(f.Grade) {
		return nil
	}
	electives := nonBlank(f.Electives)
	if len(electives) != models.ElectiveCount {
		return appErrors.Field("electives", fmt.Sprintf("exactly %d elective subjects are required for %s", models.ElectiveCount, f.Grade))
	}
	if distinct(electives) != len(electives) {
		return appErrors.Field("electives", "each elective subject can only be chosen once")
	}
	return nil
}

func checkContactStep(draft *models.RegistrationDraft) *appErrors.Error {
	f := draft.Fields
	switch {
	case blank(f.Email):
		return appErrors.Field("email", "email is required")
	case !validation.IsSchoolEmail(strings.TrimSpace(f.Email)):
		return appErrors.Field("email", "email must be a @gmail.com address")
	case blank(f.Phone):
		return appErrors.Field("phone", "phone number is required")
	case !validation.IsPhone(f.Phone):
		return appErrors.Field("phone", "phone number must be 0XXXXXXXXX or +27XXXXXXXXX")
	case blank(f.Address):
		return appErrors.Field("address", "address is required")
	case blank(f.NextOfKinName):
		return appErrors.Field("next_of_kin_name", "next of kin name is required")
	case !validation.IsPhone(f.NextOfKinPhone):
		return appErrors.Field("next_of_kin_phone", "next of kin phone must be 0XXXXXXXXX or +27XXXXXXXXX")
	}
	return nil
}

func checkParentStep(draft *models.RegistrationDraft) *appErrors.Error {
	if !draft.Role.Shape().HasLearnerFields() {
		return nil
	}
	f := draft.Fields
	if blank(f.ParentName) {
		return appErrors.Field("parent_name", "parent or guardian name is required")
	}
	if blank(f.ParentPhone) {
		return appErrors.Field("parent_phone", "parent or guardian phone is required")
	}
	return nil
}

func blank(s string) bool {
	return strings.TrimSpace(s) == ""
}

// distinct counts values ignoring case and surrounding whitespace.
func distinct(values []string) int {
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		seen[strings.ToLower(strings.TrimSpace(v))] = struct{}{}
	}
	return len(seen)
}

func nonBlank(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if !blank(v) {
			out = append(out, v)
		}
	}
	return out
}
