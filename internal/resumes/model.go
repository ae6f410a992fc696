package resumes

import (
	"time"

	"jobboard-backend/internal/shared/storage/repo"
	"jobboard-backend/internal/vacancies"
)

const dateLayout = "2006-01-02"

var Sexes = []string{"male", "female"}

type Employee struct {
	repo.Base
	UserID     string
	FirstName  string
	LastName   string
	Patronymic *string
	DOB        *time.Time
	Sex        *string
}

type Employer struct {
	repo.Base
	UserID    string
	CompanyID string
}

// Resume belongs to an employee. File* columns describe the optional
// attachment kept in the object store.
type Resume struct {
	repo.Base
	EmployeeID  string
	Position    string
	Speciality  string
	Description *string
	IsPublish   bool
	FileKey     *string
	FileName    *string
	FileMIME    *string
}

type JobPlace struct {
	repo.Base
	ResumeID    string
	Company     string
	Position    string
	Speciality  string
	Description *string
	StartDate   time.Time
	EndDate     *time.Time
}

type ResumeTool struct {
	repo.Base
	ResumeID string
	ToolID   string
}

var EmployeeTable = repo.Table[Employee]{
	Name:    "employees",
	Columns: []string{"user_id", "first_name", "last_name", "patronymic", "dob", "sex"},
	Fields: func(e *Employee) []any {
		return []any{&e.UserID, &e.FirstName, &e.LastName, &e.Patronymic, &e.DOB, &e.Sex}
	},
	Meta:   func(e *Employee) *repo.Base { return &e.Base },
	Unique: [][]string{{"user_id"}},
}

var EmployerTable = repo.Table[Employer]{
	Name:    "employers",
	Columns: []string{"user_id", "company_id"},
	Fields:  func(e *Employer) []any { return []any{&e.UserID, &e.CompanyID} },
	Meta:    func(e *Employer) *repo.Base { return &e.Base },
	Unique:  [][]string{{"user_id", "company_id"}},
}

var ResumeTable = repo.Table[Resume]{
	Name: "resumes",
	Columns: []string{
		"employee_id", "position", "speciality", "description", "is_publish",
		"file_key", "file_name", "file_mime",
	},
	Fields: func(r *Resume) []any {
		return []any{
			&r.EmployeeID, &r.Position, &r.Speciality, &r.Description, &r.IsPublish,
			&r.FileKey, &r.FileName, &r.FileMIME,
		}
	},
	Meta: func(r *Resume) *repo.Base { return &r.Base },
}

var JobPlaceTable = repo.Table[JobPlace]{
	Name:    "job_places",
	Columns: []string{"resume_id", "company", "position", "speciality", "description", "start_date", "end_date"},
	Fields: func(j *JobPlace) []any {
		return []any{&j.ResumeID, &j.Company, &j.Position, &j.Speciality, &j.Description, &j.StartDate, &j.EndDate}
	},
	Meta: func(j *JobPlace) *repo.Base { return &j.Base },
}

var ResumeToolTable = repo.Table[ResumeTool]{
	Name:    "resume_tools",
	Columns: []string{"resume_id", "tool_id"},
	Fields:  func(rt *ResumeTool) []any { return []any{&rt.ResumeID, &rt.ToolID} },
	Meta:    func(rt *ResumeTool) *repo.Base { return &rt.Base },
	Unique:  [][]string{{"resume_id", "tool_id"}},
}

type Stores struct {
	Employees   repo.Store[Employee]
	Employers   repo.Store[Employer]
	Resumes     repo.Store[Resume]
	JobPlaces   repo.Store[JobPlace]
	ResumeTools repo.Store[ResumeTool]
}

func NewMemoryStores() Stores {
	return Stores{
		Employees:   repo.NewMemory(EmployeeTable),
		Employers:   repo.NewMemory(EmployerTable),
		Resumes:     repo.NewMemory(ResumeTable),
		JobPlaces:   repo.NewMemory(JobPlaceTable),
		ResumeTools: repo.NewMemory(ResumeToolTable),
	}
}

func NewPGStores(db repo.DBTX) Stores {
	return Stores{
		Employees:   repo.NewPG(db, EmployeeTable),
		Employers:   repo.NewPG(db, EmployerTable),
		Resumes:     repo.NewPG(db, ResumeTable),
		JobPlaces:   repo.NewPG(db, JobPlaceTable),
		ResumeTools: repo.NewPG(db, ResumeToolTable),
	}
}

type EmployeeOutput struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	FirstName  string    `json:"first_name"`
	LastName   string    `json:"last_name"`
	Patronymic *string   `json:"patronymic"`
	DOB        *string   `json:"dob"`
	Sex        *string   `json:"sex"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (e Employee) Output() EmployeeOutput {
	return EmployeeOutput{
		ID:         e.ID,
		UserID:     e.UserID,
		FirstName:  e.FirstName,
		LastName:   e.LastName,
		Patronymic: e.Patronymic,
		DOB:        formatDate(e.DOB),
		Sex:        e.Sex,
		CreatedAt:  e.CreatedAt,
		UpdatedAt:  e.UpdatedAt,
	}
}

type EmployerOutput struct {
	ID        string                  `json:"id"`
	UserID    string                  `json:"user_id"`
	Company   vacancies.CompanyOutput `json:"company"`
	CreatedAt time.Time               `json:"created_at"`
}

type JobPlaceOutput struct {
	ID          string  `json:"id"`
	Company     string  `json:"company"`
	Position    string  `json:"position"`
	Speciality  string  `json:"speciality"`
	Description *string `json:"description"`
	StartDate   string  `json:"start_date"`
	EndDate     *string `json:"end_date"`
}

func (j JobPlace) Output() JobPlaceOutput {
	return JobPlaceOutput{
		ID:          j.ID,
		Company:     j.Company,
		Position:    j.Position,
		Speciality:  j.Speciality,
		Description: j.Description,
		StartDate:   j.StartDate.Format(dateLayout),
		EndDate:     formatDate(j.EndDate),
	}
}

type FileOutput struct {
	Name string `json:"name"`
	MIME string `json:"mime"`
}

type ResumeOutput struct {
	ID          string                 `json:"id"`
	Position    string                 `json:"position"`
	Speciality  string                 `json:"speciality"`
	Description *string                `json:"description"`
	IsPublish   bool                   `json:"is_publish"`
	Employee    EmployeeOutput         `json:"employee"`
	JobPlace    []JobPlaceOutput       `json:"job_place"`
	Tool        []vacancies.ToolOutput `json:"tool"`
	File        *FileOutput            `json:"file"`
	CreatedAt   time.Time              `json:"created_at"`
	UpdatedAt   time.Time              `json:"updated_at"`
}

func formatDate(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(dateLayout)
	return &s
}
