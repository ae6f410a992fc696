package vacancies

import (
	"time"

	"jobboard-backend/internal/shared/storage/repo"
)

var Languages = []string{"python", "javascript", "java", "go", "php", "c++", "c#", "sql", "rust"}

var Experiences = []string{"без опыта", "от 1 до 3 лет", "от 3 до 5 лет", "более 5 лет"}

var Specialities = []string{
	"разработка",
	"аналитика",
	"devops",
	"системное администрирование",
	"дата-инженерия",
	"машинное обучение",
	"управление проектами",
	"руководство разработкой",
	"архитектура проектов",
	"информационная безопасность",
	"тестирование",
}

type City struct {
	repo.Base
	Name string
}

type Company struct {
	repo.Base
	Name        string
	Description *string
	CityID      string
}

type Tool struct {
	repo.Base
	Name string
}

type Vacancy struct {
	repo.Base
	Title       string
	Description *string
	Language    string
	Speciality  string
	Experience  string
	SalaryFrom  *int
	SalaryTo    *int
	IsPublish   bool
	CompanyID   string
	Link        *string
}

type VacancyTool struct {
	repo.Base
	VacancyID string
	ToolID    string
}

var CityTable = repo.Table[City]{
	Name:    "cities",
	Columns: []string{"name"},
	Fields:  func(c *City) []any { return []any{&c.Name} },
	Meta:    func(c *City) *repo.Base { return &c.Base },
	Unique:  [][]string{{"name"}},
}

var CompanyTable = repo.Table[Company]{
	Name:    "companies",
	Columns: []string{"name", "description", "city_id"},
	Fields:  func(c *Company) []any { return []any{&c.Name, &c.Description, &c.CityID} },
	Meta:    func(c *Company) *repo.Base { return &c.Base },
	Unique:  [][]string{{"name", "city_id"}},
}

var ToolTable = repo.Table[Tool]{
	Name:    "tools",
	Columns: []string{"name"},
	Fields:  func(t *Tool) []any { return []any{&t.Name} },
	Meta:    func(t *Tool) *repo.Base { return &t.Base },
	Unique:  [][]string{{"name"}},
}

var VacancyTable = repo.Table[Vacancy]{
	Name: "vacancies",
	Columns: []string{
		"title", "description", "language", "speciality", "experience",
		"salary_from", "salary_to", "is_publish", "company_id", "link",
	},
	Fields: func(v *Vacancy) []any {
		return []any{
			&v.Title, &v.Description, &v.Language, &v.Speciality, &v.Experience,
			&v.SalaryFrom, &v.SalaryTo, &v.IsPublish, &v.CompanyID, &v.Link,
		}
	},
	Meta:   func(v *Vacancy) *repo.Base { return &v.Base },
	Unique: [][]string{{"company_id", "title"}},
}

var VacancyToolTable = repo.Table[VacancyTool]{
	Name:    "vacancy_tools",
	Columns: []string{"vacancy_id", "tool_id"},
	Fields:  func(vt *VacancyTool) []any { return []any{&vt.VacancyID, &vt.ToolID} },
	Meta:    func(vt *VacancyTool) *repo.Base { return &vt.Base },
	Unique:  [][]string{{"vacancy_id", "tool_id"}},
}

// Stores bundles the tables the vacancy service touches.
type Stores struct {
	Cities       repo.Store[City]
	Companies    repo.Store[Company]
	Tools        repo.Store[Tool]
	Vacancies    repo.Store[Vacancy]
	VacancyTools repo.Store[VacancyTool]
}

// NewMemoryStores returns in-memory stores for dev mode and tests.
func NewMemoryStores() Stores {
	return Stores{
		Cities:       repo.NewMemory(CityTable),
		Companies:    repo.NewMemory(CompanyTable),
		Tools:        repo.NewMemory(ToolTable),
		Vacancies:    repo.NewMemory(VacancyTable),
		VacancyTools: repo.NewMemory(VacancyToolTable),
	}
}

// NewPGStores returns Postgres-backed stores.
func NewPGStores(db repo.DBTX) Stores {
	return Stores{
		Cities:       repo.NewPG(db, CityTable),
		Companies:    repo.NewPG(db, CompanyTable),
		Tools:        repo.NewPG(db, ToolTable),
		Vacancies:    repo.NewPG(db, VacancyTable),
		VacancyTools: repo.NewPG(db, VacancyToolTable),
	}
}

type ToolOutput struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (t Tool) Output() ToolOutput {
	return ToolOutput{ID: t.ID, Name: t.Name, CreatedAt: t.CreatedAt, UpdatedAt: t.UpdatedAt}
}

type CityOutput struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type CompanyOutput struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Description *string    `json:"description"`
	CityID      string     `json:"city_id"`
	City        CityOutput `json:"city"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

type VacancyOutput struct {
	ID          string        `json:"id"`
	Title       string        `json:"title"`
	Experience  string        `json:"experience"`
	Language    string        `json:"language"`
	Speciality  string        `json:"speciality"`
	SalaryFrom  *int          `json:"salary_from"`
	SalaryTo    *int          `json:"salary_to"`
	Description *string       `json:"description"`
	IsPublish   bool          `json:"is_publish"`
	Link        *string       `json:"link"`
	Company     CompanyOutput `json:"company"`
	Tool        []ToolOutput  `json:"tool"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}
