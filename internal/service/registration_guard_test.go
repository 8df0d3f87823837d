package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/school-portal-api/internal/models"
)

func learnerDraft() *models.RegistrationDraft {
	return &models.RegistrationDraft{
		ID:   "draft-1",
		Role: models.RoleLearner,
		Fields: models.DraftFields{
			FirstName:       "Thandi",
			Surname:         "Mokoena",
			IDNumber:        "8001015009087",
			Password:        "Passw0rd!",
			ConfirmPassword: "Passw0rd!",
			Grade:           "Grade 10",
			ClassName:       "10A",
			Electives:       []string{"Physics", "Life Sciences", "Geography", "Accounting"},
			Email:           "thandi@gmail.com",
			Phone:           "082 123 4567",
			Address:         "12 Main Road",
			NextOfKinName:   "Sipho",
			NextOfKinPhone:  "0821234567",
			ParentName:      "Lerato",
			ParentPhone:     "0831234567",
		},
		Attachments: map[models.DocumentKind]models.Attachment{},
	}
}

func TestCheckStepIsIdempotent(t *testing.T) {
	ok := learnerDraft()
	assert.Nil(t, CheckStep(models.StepPersonal, ok))
	assert.Nil(t, CheckStep(models.StepPersonal, ok))

	bad := learnerDraft()
	bad.Fields.Electives = bad.Fields.Electives[:2]
	first := CheckStep(models.StepPersonal, bad)
	second := CheckStep(models.StepPersonal, bad)
	require.NotNil(t, first)
	assert.Equal(t, first, second)
	assert.Equal(t, "electives", first.Field)
}

func TestCheckPersonalStep(t *testing.T) {
	cases := map[string]struct {
		mutate func(*models.DraftFields)
		field  string
	}{
		"missing surname":    {func(f *models.DraftFields) { f.Surname = "  " }, "surname"},
		"short id":           {func(f *models.DraftFields) { f.IDNumber = "800101500908" }, "id_number"},
		"password mismatch":  {func(f *models.DraftFields) { f.ConfirmPassword = "Passw0rd?" }, "confirm_password"},
		"weak password":      {func(f *models.DraftFields) { f.Password, f.ConfirmPassword = "password", "password" }, "password"},
		"missing grade":      {func(f *models.DraftFields) { f.Grade = "" }, "grade"},
		"blank elective":     {func(f *models.DraftFields) { f.Electives[3] = " " }, "electives"},
		"five electives":     {func(f *models.DraftFields) { f.Electives = append(f.Electives, "Tourism") }, "electives"},
		"repeated elective":  {func(f *models.DraftFields) { f.Electives[3] = " physics" }, "electives"},
		"same elective x4":   {func(f *models.DraftFields) { f.Electives = []string{"Physics", "Physics", "Physics", "Physics"} }, "electives"},
		"grade 8 no classes": {func(f *models.DraftFields) { f.Grade, f.ClassName = "Grade 8", "" }, "class_name"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			draft := learnerDraft()
			tc.mutate(&draft.Fields)
			err := CheckStep(models.StepPersonal, draft)
			require.NotNil(t, err)
			assert.Equal(t, tc.field, err.Field)
		})
	}
}

func TestCheckPersonalStepStaffSkipsLearnerFields(t *testing.T) {
	draft := learnerDraft()
	draft.Role = models.RoleTeacher
	draft.Fields.ClearLearnerFields()
	assert.Nil(t, CheckStep(models.StepPersonal, draft))
}

func TestCheckContactStep(t *testing.T) {
	assert.Nil(t, CheckStep(models.StepContact, learnerDraft()))

	draft := learnerDraft()
	draft.Fields.Email = "thandi@yahoo.com"
	assert.Equal(t, "email", CheckStep(models.StepContact, draft).Field)

	draft = learnerDraft()
	draft.Fields.Phone = "123456"
	assert.Equal(t, "phone", CheckStep(models.StepContact, draft).Field)

	draft = learnerDraft()
	draft.Fields.NextOfKinPhone = ""
	assert.Equal(t, "next_of_kin_phone", CheckStep(models.StepContact, draft).Field)
}

func TestCheckParentStep(t *testing.T) {
	draft := learnerDraft()
	draft.Fields.ParentPhone = ""
	assert.Equal(t, "parent_phone", CheckStep(models.StepParent, draft).Field)

	draft.Role = models.RoleAdmin
	assert.Nil(t, CheckStep(models.StepParent, draft))
}

func TestCheckDocuments(t *testing.T) {
	draft := learnerDraft()
	err := CheckDocuments(draft)
	require.NotNil(t, err)
	assert.Equal(t, string(models.DocumentIDDocument), err.Field)

	for _, kind := range models.ShapeLearner.RequiredDocuments() {
		draft.Attachments[kind] = models.Attachment{Kind: kind}
	}
	assert.Nil(t, CheckDocuments(draft))

	delete(draft.Attachments, models.DocumentProofOfPayment)
	assert.Equal(t, string(models.DocumentProofOfPayment), CheckDocuments(draft).Field)
}

func TestCheckRoleStep(t *testing.T) {
	draft := learnerDraft()
	draft.Role = ""
	assert.Equal(t, "role", CheckStep(models.StepRole, draft).Field)
	draft.Role = "janitor"
	assert.Equal(t, "role", CheckStep(models.StepRole, draft).Field)
}
