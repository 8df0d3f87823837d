package models

import "time"

// RegistrationDraft is the in-progress wizard form, held in redis until
// submission or expiry.
type RegistrationDraft struct {
	ID          string                      `json:"id"`
	Role        Role                        `json:"role"`
	Step        int                         `json:"step"`
	Fields      DraftFields                 `json:"fields"`
	Attachments map[DocumentKind]Attachment `json:"attachments"`
	CreatedAt   time.Time                   `json:"created_at"`
	UpdatedAt   time.Time                   `json:"updated_at"`
}

// DraftFields are the form values collected across the wizard steps.
type DraftFields struct {
	FirstName       string `json:"first_name"`
	Surname         string `json:"surname"`
	IDNumber        string `json:"id_number"`
	DateOfBirth     string `json:"date_of_birth"`
	Disability      string `json:"disability"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`

	Email          string `json:"email"`
	Phone          string `json:"phone"`
	Address        string `json:"address"`
	NextOfKinName  string `json:"next_of_kin_name"`
	NextOfKinPhone string `json:"next_of_kin_phone"`

	Grade     string   `json:"grade"`
	ClassName string   `json:"class_name"`
	Electives []string `json:"electives"`

	ParentName  string `json:"parent_name"`
	ParentPhone string `json:"parent_phone"`
	ParentEmail string `json:"parent_email"`

	Department  string   `json:"department"`
	GradeTaught string   `json:"grade_taught"`
	Subjects    []string `json:"subjects"`
}

// ClearLearnerFields drops grade, class, electives and parent details.
func (f *DraftFields) ClearLearnerFields() {
	f.Grade = ""
	f.ClassName = ""
	f.Electives = nil
	f.ParentName = ""
	f.ParentPhone = ""
	f.ParentEmail = ""
}

// ClearProfessionalFields drops department, grade taught and subjects.
func (f *DraftFields) ClearProfessionalFields() {
	f.Department = ""
	f.GradeTaught = ""
	f.Subjects = nil
}

// DraftPatch is a partial update; nil fields are left untouched and list
// fields replace the stored list wholesale.
type DraftPatch struct {
	FirstName       *string `json:"first_name"`
	Surname         *string `json:"surname"`
	IDNumber        *string `json:"id_number"`
	DateOfBirth     *string `json:"date_of_birth"`
	Disability      *string `json:"disability"`
	Password        *string `json:"password"`
	ConfirmPassword *string `json:"confirm_password"`

	Email          *string `json:"email"`
	Phone          *string `json:"phone"`
	Address        *string `json:"address"`
	NextOfKinName  *string `json:"next_of_kin_name"`
	NextOfKinPhone *string `json:"next_of_kin_phone"`

	Grade     *string   `json:"grade"`
	ClassName *string   `json:"class_name"`
	Electives *[]string `json:"electives"`

	ParentName  *string `json:"parent_name"`
	ParentPhone *string `json:"parent_phone"`
	ParentEmail *string `json:"parent_email"`

	Department  *string   `json:"department"`
	GradeTaught *string   `json:"grade_taught"`
	Subjects    *[]string `json:"subjects"`
}

// TouchesLearnerFields reports the first learner-only field the patch sets.
func (p DraftPatch) TouchesLearnerFields() string {
	switch {
	case p.Grade != nil:
		return "grade"
	case p.ClassName != nil:
		return "class_name"
	case p.Electives != nil:
		return "electives"
	case p.ParentName != nil:
		return "parent_name"
	case p.ParentPhone != nil:
		return "parent_phone"
	case p.ParentEmail != nil:
		return "parent_email"
	}
	return ""
}

// TouchesProfessionalFields reports the first professional field the patch sets.
func (p DraftPatch) TouchesProfessionalFields() string {
	switch {
	case p.Department != nil:
		return "department"
	case p.GradeTaught != nil:
		return "grade_taught"
	case p.Subjects != nil:
		return "subjects"
	}
	return ""
}

// Apply merges the patch into f.
func (p DraftPatch) Apply(f *DraftFields) {
	set := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	set(&f.FirstName, p.FirstName)
	set(&f.Surname, p.Surname)
	set(&f.IDNumber, p.IDNumber)
	set(&f.DateOfBirth, p.DateOfBirth)
	set(&f.Disability, p.Disability)
	set(&f.Password, p.Password)
	set(&f.ConfirmPassword, p.ConfirmPassword)
	set(&f.Email, p.Email)
	set(&f.Phone, p.Phone)
	set(&f.Address, p.Address)
	set(&f.NextOfKinName, p.NextOfKinName)
	set(&f.NextOfKinPhone, p.NextOfKinPhone)
	set(&f.Grade, p.Grade)
	set(&f.ClassName, p.ClassName)
	set(&f.ParentName, p.ParentName)
	set(&f.ParentPhone, p.ParentPhone)
	set(&f.ParentEmail, p.ParentEmail)
	set(&f.Department, p.Department)
	set(&f.GradeTaught, p.GradeTaught)
	if p.Electives != nil {
		f.Electives = append([]string(nil), (*p.Electives)...)
	}
	if p.Subjects != nil {
		f.Subjects = append([]string(nil), (*p.Subjects)...)
	}
}

// Attachment describes a file staged on a draft. The bytes live beside the
// draft in redis.
type Attachment struct {
	Kind        DocumentKind `json:"kind"`
	FileName    string       `json:"file_name"`
	ContentType string       `json:"content_type"`
	Size        int64        `json:"size"`
	AttachedAt  time.Time    `json:"attached_at"`
}
