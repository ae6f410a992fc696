package resumes

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"jobboard-backend/internal/extract"
	"jobboard-backend/internal/shared/sanitize"
	"jobboard-backend/internal/shared/storage/object"
	"jobboard-backend/internal/shared/storage/repo"
	"jobboard-backend/internal/shared/telemetry"
	"jobboard-backend/internal/shared/validation"
	"jobboard-backend/internal/vacancies"
)

const (
	ListLimit = 20

	// MaxFileSize bounds resume attachments.
	MaxFileSize = 10 << 20

	filePrefix = "resumes"
)

func init() {
	validation.RegisterEnum("sex", Sexes)
}

// Catalog is the part of the vacancy service resumes share: tools and companies.
type Catalog interface {
	ResolveTools(ctx context.Context, names []string) ([]vacancies.Tool, error)
	ToolsByID(ctx context.Context, ids []string) ([]vacancies.Tool, error)
	Company(ctx context.Context, id string) (vacancies.Company, error)
	CompanyOutput(ctx context.Context, c vacancies.Company) (vacancies.CompanyOutput, error)
}

type EmployeeInput struct {
	FirstName  string  `json:"first_name" binding:"required,max=64"`
	LastName   string  `json:"last_name" binding:"required,max=64"`
	Patronymic *string `json:"patronymic" binding:"omitempty,max=64"`
	DOB        *string `json:"dob" binding:"omitempty,datetime=2006-01-02"`
	Sex        *string `json:"sex" binding:"omitempty,sex"`
}

type EmployerInput struct {
	CompanyID string `json:"company_id" binding:"required,uuid"`
}

type ResumeInput struct {
	Position    string  `json:"position" binding:"required,max=256"`
	Speciality  string  `json:"speciality" binding:"required,speciality"`
	Description *string `json:"description"`
	IsPublish   *bool   `json:"is_publish"`
}

type JobPlaceInput struct {
	Company     string  `json:"company" binding:"required,max=256"`
	Position    string  `json:"position" binding:"required,max=256"`
	Speciality  string  `json:"speciality" binding:"required,speciality"`
	Description *string `json:"description"`
	StartDate   string  `json:"start_date" binding:"required,datetime=2006-01-02"`
	EndDate     *string `json:"end_date" binding:"omitempty,datetime=2006-01-02"`
}

// CreateInput is the body of POST /job/resume/.
type CreateInput struct {
	Resume   ResumeInput           `json:"resume" binding:"required"`
	JobPlace []JobPlaceInput       `json:"job_place" binding:"omitempty,dive"`
	Tool     []vacancies.ToolInput `json:"tool" binding:"omitempty,dive"`
}

type Service struct {
	Stores
	Catalog Catalog
	Files   object.Store
}

func NewService(stores Stores, catalog Catalog, files object.Store) *Service {
	return &Service{Stores: stores, Catalog: catalog, Files: files}
}

// SaveEmployee creates the caller's employee profile or replaces its fields.
func (s *Service) SaveEmployee(ctx context.Context, userID string, in EmployeeInput) (EmployeeOutput, error) {
	dob, err := parseDatePtr(in.DOB)
	if err != nil {
		return EmployeeOutput{}, err
	}
	e, created, err := repo.GetOrCreate(ctx, s.Employees, repo.Filters{"user_id": userID}, func() Employee {
		return Employee{UserID: userID}
	})
	if err != nil {
		return EmployeeOutput{}, err
	}
	e.FirstName = sanitize.Plain(in.FirstName)
	e.LastName = sanitize.Plain(in.LastName)
	e.Patronymic = plainPtr(in.Patronymic)
	e.DOB = dob
	e.Sex = in.Sex
	if err := s.Employees.Update(ctx, &e); err != nil {
		return EmployeeOutput{}, err
	}
	if created {
		telemetry.Info("employee.created", map[string]any{"user_id": userID, "employee_id": e.ID})
	}
	return e.Output(), nil
}

func (s *Service) Employee(ctx context.Context, userID string) (Employee, error) {
	e, err := repo.First(ctx, s.Employees, repo.Filters{"user_id": userID})
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return Employee{}, ErrNoEmployee
		}
		return Employee{}, err
	}
	return e, nil
}

// ProfileNames returns the employee names of a user, or empty strings when
// the user has no employee profile.
func (s *Service) ProfileNames(ctx context.Context, userID string) (string, string, string, error) {
	e, err := s.Employee(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNoEmployee) {
			return "", "", "", nil
		}
		return "", "", "", err
	}
	patronymic := ""
	if e.Patronymic != nil {
		patronymic = *e.Patronymic
	}
	return e.FirstName, e.LastName, patronymic, nil
}

// LinkEmployer attaches the user to an existing company.
func (s *Service) LinkEmployer(ctx context.Context, userID string, in EmployerInput) (EmployerOutput, error) {
	company, err := s.Catalog.Company(ctx, in.CompanyID)
	if err != nil {
		if errors.Is(err, vacancies.ErrNotFound) {
			return EmployerOutput{}, ErrCompanyNotFound
		}
		return EmployerOutput{}, err
	}
	emp, _, err := repo.GetOrCreate(ctx, s.Employers, repo.Filters{"user_id": userID, "company_id": company.ID}, func() Employer {
		return Employer{UserID: userID, CompanyID: company.ID}
	})
	if err != nil {
		return EmployerOutput{}, err
	}
	companyOut, err := s.Catalog.CompanyOutput(ctx, company)
	if err != nil {
		return EmployerOutput{}, err
	}
	return EmployerOutput{ID: emp.ID, UserID: emp.UserID, Company: companyOut, CreatedAt: emp.CreatedAt}, nil
}

func (s *Service) List(ctx context.Context, filters repo.Filters, page int) ([]ResumeOutput, repo.Pagination, error) {
	items, pag, err := repo.FetchPage(ctx, s.Resumes, repo.Query{
		Filters: filters,
		Page:    &repo.Page{Current: page, Limit: ListLimit},
	})
	if err != nil {
		return nil, repo.Pagination{}, err
	}
	out := make([]ResumeOutput, 0, len(items))
	for _, r := range items {
		o, err := s.output(ctx, r)
		if err != nil {
			return nil, repo.Pagination{}, err
		}
		out = append(out, o)
	}
	return out, pag, nil
}

func (s *Service) Get(ctx context.Context, id string) (ResumeOutput, error) {
	r, err := s.resume(ctx, id)
	if err != nil {
		return ResumeOutput{}, err
	}
	return s.output(ctx, r)
}

// Create stores a resume with its job places and tools for the caller's
// employee profile.
func (s *Service) Create(ctx context.Context, userID string, in CreateInput) (ResumeOutput, error) {
	employee, err := s.Employee(ctx, userID)
	if err != nil {
		return ResumeOutput{}, err
	}

	places := make([]JobPlace, 0, len(in.JobPlace))
	for i, jp := range in.JobPlace {
		place, err := buildJobPlace(jp)
		if err != nil {
			return ResumeOutput{}, fmt.Errorf("job_place[%d]: %w", i, err)
		}
		places = append(places, place)
	}

	r := Resume{
		EmployeeID:  employee.ID,
		Position:    sanitize.Plain(in.Resume.Position),
		Speciality:  in.Resume.Speciality,
		Description: sanitize.RichPtr(in.Resume.Description),
		IsPublish:   true,
	}
	if in.Resume.IsPublish != nil {
		r.IsPublish = *in.Resume.IsPublish
	}
	if err := s.Resumes.Create(ctx, &r); err != nil {
		return ResumeOutput{}, err
	}

	for i := range places {
		places[i].ResumeID = r.ID
		if err := s.JobPlaces.Create(ctx, &places[i]); err != nil {
			return ResumeOutput{}, fmt.Errorf("create job place: %w", err)
		}
	}

	names := make([]string, len(in.Tool))
	for i, t := range in.Tool {
		names[i] = t.Name
	}
	tools, err := s.Catalog.ResolveTools(ctx, names)
	if err != nil {
		return ResumeOutput{}, err
	}
	for _, t := range tools {
		if err := s.ResumeTools.Create(ctx, &ResumeTool{ResumeID: r.ID, ToolID: t.ID}); err != nil {
			return ResumeOutput{}, fmt.Errorf("link tool: %w", err)
		}
	}

	telemetry.Info("resume.created", map[string]any{"resume_id": r.ID, "employee_id": employee.ID})
	return s.output(ctx, r)
}

// AttachFile stores a PDF or DOCX for the caller's resume, replacing any
// previous file. Extracted text fills an empty description.
func (s *Service) AttachFile(ctx context.Context, userID, resumeID, fileName string, body io.Reader) (ResumeOutput, error) {
	r, err := s.owned(ctx, userID, resumeID)
	if err != nil {
		return ResumeOutput{}, err
	}
	if strings.TrimSpace(fileName) == "" {
		return ResumeOutput{}, ErrInvalidInput
	}

	data, err := io.ReadAll(io.LimitReader(body, MaxFileSize+1))
	if err != nil {
		return ResumeOutput{}, fmt.Errorf("read upload: %w", err)
	}
	if len(data) > MaxFileSize {
		return ResumeOutput{}, ErrInvalidInput
	}
	sniffed, _, err := object.Sniff(bytes.NewReader(data))
	if err != nil {
		return ResumeOutput{}, err
	}
	mime := extract.Normalize(sniffed, fileName, data)
	if mime != extract.MimePDF && mime != extract.MimeDOCX {
		return ResumeOutput{}, ErrUnsupportedFile
	}

	key, err := object.NewKey(filePrefix, r.ID, fileName)
	if err != nil {
		return ResumeOutput{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if _, err := s.Files.Put(ctx, key, mime, bytes.NewReader(data)); err != nil {
		return ResumeOutput{}, fmt.Errorf("store file: %w", err)
	}

	if r.FileKey != nil {
		for _, old := range []string{*r.FileKey, extract.SidecarKey(*r.FileKey)} {
			if err := s.Files.Delete(ctx, old); err != nil {
				telemetry.Warn("resume.file_cleanup_failed", map[string]any{"resume_id": r.ID, "key": old, "error": err})
			}
		}
	}

	name := fileName
	r.FileKey, r.FileName, r.FileMIME = &key, &name, &mime

	if r.Description == nil {
		text, err := extract.FromObject(ctx, s.Files, key, mime, fileName)
		if err != nil {
			telemetry.Warn("resume.extract_failed", map[string]any{"resume_id": r.ID, "error": err})
		} else {
			r.Description = sanitize.RichPtr(&text)
		}
	}

	if err := s.Resumes.Update(ctx, &r); err != nil {
		return ResumeOutput{}, err
	}
	telemetry.Info("resume.file_attached", map[string]any{"resume_id": r.ID, "mime": mime, "size": len(data)})
	return s.output(ctx, r)
}

// File opens the attachment. Unpublished resumes are visible to their owner only.
func (s *Service) File(ctx context.Context, userID, resumeID string) (io.ReadCloser, FileOutput, error) {
	r, err := s.resume(ctx, resumeID)
	if err != nil {
		return nil, FileOutput{}, err
	}
	if !r.IsPublish {
		if _, err := s.owned(ctx, userID, resumeID); err != nil {
			return nil, FileOutput{}, err
		}
	}
	if r.FileKey == nil {
		return nil, FileOutput{}, ErrNoFile
	}
	rc, err := s.Files.Open(ctx, *r.FileKey)
	if errors.Is(err, object.ErrNotFound) {
		return nil, FileOutput{}, ErrNoFile
	}
	if err != nil {
		return nil, FileOutput{}, fmt.Errorf("open file: %w", err)
	}
	return rc, FileOutput{Name: deref(r.FileName), MIME: deref(r.FileMIME)}, nil
}

func (s *Service) resume(ctx context.Context, id string) (Resume, error) {
	r, err := s.Resumes.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return Resume{}, ErrNotFound
		}
		return Resume{}, err
	}
	return r, nil
}

func (s *Service) owned(ctx context.Context, userID, resumeID string) (Resume, error) {
	r, err := s.resume(ctx, resumeID)
	if err != nil {
		return Resume{}, err
	}
	if userID == "" {
		return Resume{}, ErrForbidden
	}
	e, err := s.Employees.Get(ctx, r.EmployeeID)
	if err != nil {
		return Resume{}, err
	}
	if e.UserID != userID {
		return Resume{}, ErrForbidden
	}
	return r, nil
}

func (s *Service) output(ctx context.Context, r Resume) (ResumeOutput, error) {
	employee, err := s.Employees.Get(ctx, r.EmployeeID)
	if err != nil {
		return ResumeOutput{}, fmt.Errorf("load employee: %w", err)
	}
	places, err := s.JobPlaces.Fetch(ctx, repo.Query{
		Filters: repo.Filters{"resume_id": r.ID},
		Order:   []repo.Order{{Column: "start_date", Desc: true}},
	})
	if err != nil {
		return ResumeOutput{}, err
	}
	links, err := s.ResumeTools.Fetch(ctx, repo.Query{Filters: repo.Filters{"resume_id": r.ID}})
	if err != nil {
		return ResumeOutput{}, err
	}
	ids := make([]string, len(links))
	for i, l := range links {
		ids[i] = l.ToolID
	}
	tools, err := s.Catalog.ToolsByID(ctx, ids)
	if err != nil {
		return ResumeOutput{}, err
	}

	out := ResumeOutput{
		ID:          r.ID,
		Position:    r.Position,
		Speciality:  r.Speciality,
		Description: r.Description,
		IsPublish:   r.IsPublish,
		Employee:    employee.Output(),
		JobPlace:    make([]JobPlaceOutput, len(places)),
		Tool:        make([]vacancies.ToolOutput, len(tools)),
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
	for i, p := range places {
		out.JobPlace[i] = p.Output()
	}
	for i, t := range tools {
		out.Tool[i] = t.Output()
	}
	if r.FileKey != nil {
		out.File = &FileOutput{Name: deref(r.FileName), MIME: deref(r.FileMIME)}
	}
	return out, nil
}

func buildJobPlace(in JobPlaceInput) (JobPlace, error) {
	start, err := time.Parse(dateLayout, in.StartDate)
	if err != nil {
		return JobPlace{}, fmt.Errorf("%w: start_date", ErrInvalidInput)
	}
	end, err := parseDatePtr(in.EndDate)
	if err != nil {
		return JobPlace{}, err
	}
	if end != nil && end.Before(start) {
		return JobPlace{}, fmt.Errorf("%w: end_date before start_date", ErrInvalidInput)
	}
	return JobPlace{
		Company:     sanitize.Plain(in.Company),
		Position:    sanitize.Plain(in.Position),
		Speciality:  in.Speciality,
		Description: sanitize.RichPtr(in.Description),
		StartDate:   start,
		EndDate:     end,
	}, nil
}

func parseDatePtr(raw *string) (*time.Time, error) {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return nil, nil
	}
	t, err := time.Parse(dateLayout, strings.TrimSpace(*raw))
	if err != nil {
		return nil, fmt.Errorf("%w: bad date %q", ErrInvalidInput, *raw)
	}
	return &t, nil
}

func plainPtr(s *string) *string {
	if s == nil {
		return nil
	}
	v := sanitize.Plain(*s)
	if v == "" {
		return nil
	}
	return &v
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
