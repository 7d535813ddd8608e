package model

import (
	"time"
)

// ViewVersion is bumped whenever a view changes shape in a way clients can observe
const ViewVersion = 1

// AccountView is the public projection of an Account
type AccountView struct {
	Version     int        `json:"v"`
	ID          uint       `json:"id"`
	Username    string     `json:"username"`
	Email       string     `json:"email"`
	Role        Role       `json:"role"`
	Active      bool       `json:"active"`
	CreatedAt   time.Time  `json:"created_at"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
}

// ToView builds the AccountView
func (a *Account) ToView() AccountView {
	return AccountView{
		Version:     ViewVersion,
		ID:          a.ID,
		Username:    a.Username,
		Email:       a.Email,
		Role:        a.Role,
		Active:      a.Active,
		CreatedAt:   a.CreatedAt,
		LastLoginAt: a.LastLoginAt,
	}
}

// ApplicantView is the public projection of an Applicant
type ApplicantView struct {
	Version             int        `json:"v"`
	ID                  uint       `json:"id"`
	AccountID           *uint      `json:"account_id,omitempty"`
	FirstName           string     `json:"first_name"`
	LastName            string     `json:"last_name"`
	Email               string     `json:"email"`
	Bio                 string     `json:"bio,omitempty"`
	ProfileImage        string     `json:"profile_image,omitempty"`
	GPA                 *float64   `json:"gpa,omitempty"`
	DateOfBirth         *time.Time `json:"date_of_birth,omitempty"`
	Location            string     `json:"location,omitempty"`
	EducationBackground string     `json:"education_background,omitempty"`
}

// ToView builds the ApplicantView
func (a *Applicant) ToView() ApplicantView {
	return ApplicantView{
		Version:             ViewVersion,
		ID:                  a.ID,
		AccountID:           a.AccountID,
		FirstName:           a.FirstName,
		LastName:            a.LastName,
		Email:               a.Email,
		Bio:                 a.Bio,
		ProfileImage:        a.ProfileImage,
		GPA:                 a.GPA,
		DateOfBirth:         a.DateOfBirth,
		Location:            a.Location,
		EducationBackground: a.EducationBackground,
	}
}

// InstitutionView is the public projection of an Institution
type InstitutionView struct {
	Version          int     `json:"v"`
	ID               uint    `json:"id"`
	AccountID        *uint   `json:"account_id,omitempty"`
	Name             string  `json:"name"`
	Location         string  `json:"location"`
	Description      string  `json:"description,omitempty"`
	AcceptanceRate   float64 `json:"acceptance_rate"`
	Logo             string  `json:"logo,omitempty"`
	Website          string  `json:"website,omitempty"`
	PhoneNumber      string  `json:"phone_number,omitempty"`
	FoundedYear      *int    `json:"founded_year,omitempty"`
	Accreditation    string  `json:"accreditation,omitempty"`
	ProgramCount     int     `json:"program_count"`
	ApplicationCount int     `json:"application_count"`
}

// ToView builds the InstitutionView
func (i *Institution) ToView() InstitutionView {
	return InstitutionView{
		Version:          ViewVersion,
		ID:               i.ID,
		AccountID:        i.AccountID,
		Name:             i.Name,
		Location:         i.Location,
		Description:      i.Description,
		AcceptanceRate:   i.AcceptanceRate,
		Logo:             i.Logo,
		Website:          i.Website,
		PhoneNumber:      i.PhoneNumber,
		FoundedYear:      i.FoundedYear,
		Accreditation:    i.Accreditation,
		ProgramCount:     i.ProgramCount,
		ApplicationCount: i.ApplicationCount,
	}
}

// ProgramView is the public projection of a Program
type ProgramView struct {
	Version       int     `json:"v"`
	ID            uint    `json:"id"`
	InstitutionID uint    `json:"institution_id"`
	Name          string  `json:"name"`
	Degree        string  `json:"degree,omitempty"`
	Duration      string  `json:"duration,omitempty"`
	TuitionFee    float64 `json:"tuition_fee"`
	Description   string  `json:"description,omitempty"`
	Requirements  string  `json:"requirements,omitempty"`
}

// ToView builds the ProgramView
func (p *Program) ToView() ProgramView {
	return ProgramView{
		Version:       ViewVersion,
		ID:            p.ID,
		InstitutionID: p.InstitutionID,
		Name:          p.Name,
		Degree:        p.Degree,
		Duration:      p.Duration,
		TuitionFee:    p.TuitionFee,
		Description:   p.Description,
		Requirements:  p.Requirements,
	}
}

// ApplicationRef is the flattened summary of an entity an application points at
type ApplicationRef struct {
	ID   uint   `json:"id"`
	Name string `json:"name"`
}

// ApplicationView is the public projection of an Application.
// The refs are flat so nothing serializes back into the application.
type ApplicationView struct {
	Version           int               `json:"v"`
	ID                uint              `json:"id"`
	Status            ApplicationStatus `json:"status"`
	PersonalStatement string            `json:"personal_statement,omitempty"`
	Feedback          string            `json:"feedback,omitempty"`
	DocumentPath      string            `json:"document_path,omitempty"`
	SubmittedAt       time.Time         `json:"submitted_at"`
	LastUpdatedAt     time.Time         `json:"last_updated_at"`
	Applicant         ApplicationRef    `json:"applicant"`
	ApplicantEmail    string            `json:"applicant_email,omitempty"`
	Program           ApplicationRef    `json:"program"`
	Institution       ApplicationRef    `json:"institution"`
}

// ToView builds the ApplicationView. Any of the related entities may be nil,
// in which case only the id is filled in.
func (a *Application) ToView(applicant *Applicant, program *Program, institution *Institution) ApplicationView {
	view := ApplicationView{
		Version:           ViewVersion,
		ID:                a.ID,
		Status:            a.Status,
		PersonalStatement: a.PersonalStatement,
		Feedback:          a.Feedback,
		DocumentPath:      a.DocumentPath,
		SubmittedAt:       a.SubmittedAt,
		LastUpdatedAt:     a.LastUpdatedAt,
		Applicant:         ApplicationRef{ID: a.ApplicantID},
		Program:           ApplicationRef{ID: a.ProgramID},
		Institution:       ApplicationRef{ID: a.InstitutionID},
	}
	if applicant != nil {
		view.Applicant.Name = applicant.FullName()
		view.ApplicantEmail = applicant.Email
	}
	if program != nil {
		view.Program.Name = program.Name
	}
	if institution != nil {
		view.Institution.Name = institution.Name
	}
	return view
}
