package vacancies

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"jobboard-backend/internal/shared/sanitize"
	"jobboard-backend/internal/shared/storage/repo"
	"jobboard-backend/internal/shared/telemetry"
	"jobboard-backend/internal/shared/validation"
)

// ListLimit is the page size of the public vacancy list.
const ListLimit = 20

func init() {
	validation.RegisterEnum("language", Languages)
	validation.RegisterEnum("experience", Experiences)
	validation.RegisterEnum("speciality", Specialities)
}

type CityInput struct {
	Name string `json:"name" binding:"required,max=128"`
}

type CompanyInput struct {
	Name        string  `json:"name" binding:"required,max=256"`
	Description *string `json:"description"`
}

type VacancyInput struct {
	Title       string  `json:"title" binding:"required,max=256"`
	Description *string `json:"description"`
	Language    string  `json:"language" binding:"required,language"`
	Speciality  string  `json:"speciality" binding:"required,speciality"`
	Experience  string  `json:"experience" binding:"required,experience"`
	IsPublish   *bool   `json:"is_publish"`
	SalaryFrom  *int    `json:"salary_from" binding:"omitempty,gte=0"`
	SalaryTo    *int    `json:"salary_to" binding:"omitempty,gte=0"`
	Link        *string `json:"link" binding:"omitempty,url"`
}

type ToolInput struct {
	Name string `json:"name" binding:"required,max=64"`
}

// CreateInput is the body of POST and PUT /job/vacancy/.
type CreateInput struct {
	City    CityInput    `json:"city" binding:"required"`
	Company CompanyInput `json:"company" binding:"required"`
	Vacancy VacancyInput `json:"vacancy" binding:"required"`
	Tool    []ToolInput  `json:"tool" binding:"omitempty,dive"`
}

// Selectors lists the enum values offered by the vacancy filters.
type Selectors struct {
	Languages    []string `json:"languages"`
	Experiences  []string `json:"experiences"`
	Specialities []string `json:"specialities"`
}

type Service struct {
	Stores
}

func NewService(stores Stores) *Service {
	return &Service{Stores: stores}
}

func (s *Service) Selectors() Selectors {
	return Selectors{Languages: Languages, Experiences: Experiences, Specialities: Specialities}
}

// List returns one page of vacancies, newest first.
func (s *Service) List(ctx context.Context, filters repo.Filters, page int) ([]VacancyOutput, repo.Pagination, error) {
	items, pag, err := repo.FetchPage(ctx, s.Vacancies, repo.Query{
		Filters: filters,
		Page:    &repo.Page{Current: page, Limit: ListLimit},
	})
	if err != nil {
		return nil, repo.Pagination{}, err
	}
	out := make([]VacancyOutput, 0, len(items))
	for _, v := range items {
		o, err := s.output(ctx, v)
		if err != nil {
			return nil, repo.Pagination{}, err
		}
		out = append(out, o)
	}
	return out, pag, nil
}

func (s *Service) Get(ctx context.Context, id string) (VacancyOutput, error) {
	v, err := s.Vacancies.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return VacancyOutput{}, ErrNotFound
		}
		return VacancyOutput{}, err
	}
	return s.output(ctx, v)
}

// Create resolves city, company and tools by name, then gets or creates the
// vacancy keyed by (company, title).
func (s *Service) Create(ctx context.Context, in CreateInput) (VacancyOutput, error) {
	company, err := s.resolveCompany(ctx, in.City, in.Company)
	if err != nil {
		return VacancyOutput{}, err
	}

	title := sanitize.Plain(in.Vacancy.Title)
	vacancy, created, err := repo.GetOrCreate(ctx, s.Vacancies,
		repo.Filters{"company_id": company.ID, "title": title},
		func() Vacancy {
			v := Vacancy{CompanyID: company.ID}
			applyInput(&v, in.Vacancy)
			return v
		})
	if err != nil {
		return VacancyOutput{}, mapWriteError(err)
	}

	if err := s.linkTools(ctx, vacancy.ID, in.Tool, false); err != nil {
		return VacancyOutput{}, err
	}
	if created {
		telemetry.Info("vacancy.created", map[string]any{"vacancy_id": vacancy.ID, "company_id": company.ID})
	}
	return s.output(ctx, vacancy)
}

// Update replaces every field of the vacancy and its tool links.
func (s *Service) Update(ctx context.Context, id string, in CreateInput) (VacancyOutput, error) {
	vacancy, err := s.Vacancies.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return VacancyOutput{}, ErrNotFound
		}
		return VacancyOutput{}, err
	}
	company, err := s.resolveCompany(ctx, in.City, in.Company)
	if err != nil {
		return VacancyOutput{}, err
	}
	vacancy.CompanyID = company.ID
	applyInput(&vacancy, in.Vacancy)
	if err := s.Vacancies.Update(ctx, &vacancy); err != nil {
		return VacancyOutput{}, mapWriteError(err)
	}
	if err := s.linkTools(ctx, vacancy.ID, in.Tool, true); err != nil {
		return VacancyOutput{}, err
	}
	return s.output(ctx, vacancy)
}

func (s *Service) Delete(ctx context.Context, id string) error {
	if _, err := s.VacancyTools.DeleteWhere(ctx, repo.Filters{"vacancy_id": id}); err != nil {
		return err
	}
	if err := s.Vacancies.Delete(ctx, id); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}
	return nil
}

// ResolveTools gets or creates tools by name, skipping duplicates.
func (s *Service) ResolveTools(ctx context.Context, names []string) ([]Tool, error) {
	seen := make(map[string]struct{}, len(names))
	out := make([]Tool, 0, len(names))
	for _, raw := range names {
		name := sanitize.Plain(raw)
		if name == "" {
			continue
		}
		key := strings.ToLower(name)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		tool, _, err := repo.GetOrCreate(ctx, s.Tools, repo.Filters{"name": name}, func() Tool {
			return Tool{Name: name}
		})
		if err != nil {
			return nil, fmt.Errorf("resolve tool %q: %w", name, err)
		}
		out = append(out, tool)
	}
	return out, nil
}

// ToolsByID loads tools for the given ids, preserving order.
func (s *Service) ToolsByID(ctx context.Context, ids []string) ([]Tool, error) {
	if len(ids) == 0 {
		return []Tool{}, nil
	}
	tools, err := s.Tools.Fetch(ctx, repo.Query{
		Filters: repo.Filters{"id": repo.In(ids)},
		Order:   []repo.Order{{Column: "name"}},
	})
	if err != nil {
		return nil, err
	}
	if tools == nil {
		tools = []Tool{}
	}
	return tools, nil
}

// Company returns a company by id.
func (s *Service) Company(ctx context.Context, id string) (Company, error) {
	c, err := s.Companies.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return Company{}, ErrNotFound
		}
		return Company{}, err
	}
	return c, nil
}

func (s *Service) resolveCompany(ctx context.Context, cityIn CityInput, companyIn CompanyInput) (Company, error) {
	cityName := sanitize.Plain(cityIn.Name)
	city, _, err := repo.GetOrCreate(ctx, s.Cities, repo.Filters{"name": cityName}, func() City {
		return City{Name: cityName}
	})
	if err != nil {
		return Company{}, fmt.Errorf("resolve city: %w", err)
	}

	name := sanitize.Plain(companyIn.Name)
	company, _, err := repo.GetOrCreate(ctx, s.Companies, repo.Filters{"name": name, "city_id": city.ID}, func() Company {
		return Company{Name: name, CityID: city.ID, Description: sanitize.RichPtr(companyIn.Description)}
	})
	if err != nil {
		return Company{}, fmt.Errorf("resolve company: %w", err)
	}
	return company, nil
}

func (s *Service) linkTools(ctx context.Context, vacancyID string, in []ToolInput, replace bool) error {
	if replace {
		if _, err := s.VacancyTools.DeleteWhere(ctx, repo.Filters{"vacancy_id": vacancyID}); err != nil {
			return err
		}
	}
	names := make([]string, len(in))
	for i, t := range in {
		names[i] = t.Name
	}
	tools, err := s.ResolveTools(ctx, names)
	if err != nil {
		return err
	}
	for _, t := range tools {
		_, _, err := repo.GetOrCreate(ctx, s.VacancyTools, repo.Filters{"vacancy_id": vacancyID, "tool_id": t.ID}, func() VacancyTool {
			return VacancyTool{VacancyID: vacancyID, ToolID: t.ID}
		})
		if err != nil {
			return fmt.Errorf("link tool: %w", err)
		}
	}
	return nil
}

func (s *Service) output(ctx context.Context, v Vacancy) (VacancyOutput, error) {
	company, err := s.Companies.Get(ctx, v.CompanyID)
	if err != nil {
		return VacancyOutput{}, fmt.Errorf("load company: %w", err)
	}
	companyOut, err := s.CompanyOutput(ctx, company)
	if err != nil {
		return VacancyOutput{}, err
	}
	links, err := s.VacancyTools.Fetch(ctx, repo.Query{Filters: repo.Filters{"vacancy_id": v.ID}})
	if err != nil {
		return VacancyOutput{}, err
	}
	ids := make([]string, len(links))
	for i, l := range links {
		ids[i] = l.ToolID
	}
	tools, err := s.ToolsByID(ctx, ids)
	if err != nil {
		return VacancyOutput{}, err
	}
	toolOut := make([]ToolOutput, len(tools))
	for i, t := range tools {
		toolOut[i] = t.Output()
	}

	return VacancyOutput{
		ID:          v.ID,
		Title:       v.Title,
		Experience:  v.Experience,
		Language:    v.Language,
		Speciality:  v.Speciality,
		SalaryFrom:  v.SalaryFrom,
		SalaryTo:    v.SalaryTo,
		Description: v.Description,
		IsPublish:   v.IsPublish,
		Link:        v.Link,
		Company:     companyOut,
		Tool:        toolOut,
		CreatedAt:   v.CreatedAt,
		UpdatedAt:   v.UpdatedAt,
	}, nil
}

// CompanyOutput renders a company together with its city.
func (s *Service) CompanyOutput(ctx context.Context, company Company) (CompanyOutput, error) {
	city, err := s.Cities.Get(ctx, company.CityID)
	if err != nil {
		return CompanyOutput{}, fmt.Errorf("load city: %w", err)
	}
	return CompanyOutput{
		ID:          company.ID,
		Name:        company.Name,
		Description: company.Description,
		CityID:      company.CityID,
		City: CityOutput{
			ID:        city.ID,
			Name:      city.Name,
			CreatedAt: city.CreatedAt,
			UpdatedAt: city.UpdatedAt,
		},
		CreatedAt: company.CreatedAt,
		UpdatedAt: company.UpdatedAt,
	}, nil
}

func applyInput(v *Vacancy, in VacancyInput) {
	v.Title = sanitize.Plain(in.Title)
	v.Description = sanitize.RichPtr(in.Description)
	v.Language = in.Language
	v.Speciality = in.Speciality
	v.Experience = in.Experience
	v.SalaryFrom = in.SalaryFrom
	v.SalaryTo = in.SalaryTo
	v.IsPublish = true
	if in.IsPublish != nil {
		v.IsPublish = *in.IsPublish
	}
	v.Link = nil
	if in.Link != nil && strings.TrimSpace(*in.Link) != "" {
		link := strings.TrimSpace(*in.Link)
		v.Link = &link
	}
}

func mapWriteError(err error) error {
	if errors.Is(err, repo.ErrConflict) {
		return ErrConflict
	}
	return err
}
