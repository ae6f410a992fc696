package resumes

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobboard-backend/internal/shared/auth"
	"jobboard-backend/internal/shared/server/middleware"
	"jobboard-backend/internal/shared/storage/object/local"
	"jobboard-backend/internal/shared/storage/repo"
	"jobboard-backend/internal/vacancies"
)

type stubTokens struct{}

// Verify treats the bearer token as the user id.
func (stubTokens) Verify(token, _ string) (auth.Claims, error) {
	if token == "" || token == "bad" {
		return auth.Claims{}, auth.ErrInvalidToken
	}
	return auth.Claims{UserID: token}, nil
}

type stubPrincipals struct{}

func (stubPrincipals) LoadPrincipal(_ context.Context, id string) (auth.Principal, error) {
	return auth.Principal{ID: id, IsActive: true, IsVerified: true}, nil
}

func strPtr(v string) *string { return &v }

type fixture struct {
	svc     *Service
	catalog *vacancies.Service
	router  *gin.Engine
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	catalog := vacancies.NewService(vacancies.NewMemoryStores())
	svc := NewService(NewMemoryStores(), catalog, local.New(t.TempDir()))

	r := gin.New()
	r.Use(middleware.Auth(stubTokens{}, stubPrincipals{}))
	NewHandler(svc).RegisterRoutes(r.Group("/api/v1"))
	return &fixture{svc: svc, catalog: catalog, router: r}
}

func (f *fixture) do(method, path string, body any, token string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func (f *fixture) upload(t *testing.T, path, name string, data []byte, token string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", name)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func docx(t *testing.T, text string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("word/document.xml")
	require.NoError(t, err)
	_, err = w.Write([]byte(`<?xml version="1.0"?><w:document xmlns:w="urn:w"><w:body><w:p><w:r><w:t>` + text + `</w:t></w:r></w:p></w:body></w:document>`))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func sampleResume(tools ...string) CreateInput {
	in := CreateInput{
		Resume: ResumeInput{Position: "Backend developer", Speciality: "разработка"},
		JobPlace: []JobPlaceInput{
			{Company: "Old Co", Position: "Junior", Speciality: "разработка", StartDate: "2018-01-10", EndDate: strPtr("2020-05-01")},
			{Company: "New Co", Position: "Middle", Speciality: "разработка", StartDate: "2020-06-01"},
		},
	}
	for _, name := range tools {
		in.Tool = append(in.Tool, vacancies.ToolInput{Name: name})
	}
	return in
}

func TestSaveEmployeeReplacesProfile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.svc.SaveEmployee(ctx, "user-a", EmployeeInput{FirstName: "Иван", LastName: "Петров", DOB: strPtr("1990-03-04")})
	require.NoError(t, err)
	require.NotNil(t, first.DOB)
	assert.Equal(t, "1990-03-04", *first.DOB)

	second, err := f.svc.SaveEmployee(ctx, "user-a", EmployeeInput{FirstName: "Пётр", LastName: "Иванов", Patronymic: strPtr(" Сергеевич ")})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Nil(t, second.DOB)

	firstName, last, patronymic, err := f.svc.ProfileNames(ctx, "user-a")
	require.NoError(t, err)
	assert.Equal(t, []string{"Пётр", "Иванов", "Сергеевич"}, []string{firstName, last, patronymic})

	firstName, _, _, err = f.svc.ProfileNames(ctx, "nobody")
	require.NoError(t, err)
	assert.Empty(t, firstName)

	_, err = f.svc.SaveEmployee(ctx, "user-a", EmployeeInput{FirstName: "A", LastName: "B", DOB: strPtr("04.03.1990")})
	assert.True(t, errors.Is(err, ErrInvalidInput))
}

func TestCreateResume(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, "user-a", sampleResume())
	require.True(t, errors.Is(err, ErrNoEmployee), "got %v", err)

	_, err = f.svc.SaveEmployee(ctx, "user-a", EmployeeInput{FirstName: "Иван", LastName: "Петров"})
	require.NoError(t, err)

	out, err := f.svc.Create(ctx, "user-a", sampleResume("Go", "PostgreSQL", "go"))
	require.NoError(t, err)
	assert.True(t, out.IsPublish)
	assert.Equal(t, "Иван", out.Employee.FirstName)
	require.Len(t, out.JobPlace, 2)
	assert.Equal(t, "New Co", out.JobPlace[0].Company, "latest job first")
	assert.Nil(t, out.JobPlace[0].EndDate)
	assert.Equal(t, "2020-05-01", *out.JobPlace[1].EndDate)
	require.Len(t, out.Tool, 2)
	assert.Nil(t, out.File)

	n, err := f.catalog.Tools.Count(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, n, "tools are shared with vacancies")

	bad := sampleResume()
	bad.JobPlace[0].EndDate = strPtr("2017-01-01")
	_, err = f.svc.Create(ctx, "user-a", bad)
	assert.True(t, errors.Is(err, ErrInvalidInput))
}

func TestLinkEmployer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	v, err := f.catalog.Create(ctx, vacancies.CreateInput{
		City:    vacancies.CityInput{Name: "Казань"},
		Company: vacancies.CompanyInput{Name: "Acme"},
		Vacancy: vacancies.VacancyInput{Title: "Go", Language: "go", Speciality: "разработка", Experience: "без опыта"},
	})
	require.NoError(t, err)

	out, err := f.svc.LinkEmployer(ctx, "user-a", EmployerInput{CompanyID: v.Company.ID})
	require.NoError(t, err)
	assert.Equal(t, "Acme", out.Company.Name)
	assert.Equal(t, "Казань", out.Company.City.Name)

	again, err := f.svc.LinkEmployer(ctx, "user-a", EmployerInput{CompanyID: v.Company.ID})
	require.NoError(t, err)
	assert.Equal(t, out.ID, again.ID)

	_, err = f.svc.LinkEmployer(ctx, "user-a", EmployerInput{CompanyID: "00000000-0000-4000-8000-000000000000"})
	assert.True(t, errors.Is(err, ErrCompanyNotFound))
}

func TestHandlerResumeFlow(t *testing.T) {
	f := newFixture(t)

	w := f.do(http.MethodPost, "/api/v1/job/resume/", sampleResume("Go"), "user-a")
	require.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())

	w = f.do(http.MethodGet, "/api/v1/job/employee/me/", nil, "user-a")
	require.Equal(t, http.StatusNotFound, w.Code)

	w = f.do(http.MethodPost, "/api/v1/job/employee/", EmployeeInput{FirstName: "Иван", LastName: "Петров", Sex: strPtr("alien")}, "user-a")
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = f.do(http.MethodPost, "/api/v1/job/employee/", EmployeeInput{FirstName: "Иван", LastName: "Петров", Sex: strPtr("male")}, "user-a")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = f.do(http.MethodGet, "/api/v1/job/employee/me/", nil, "user-a")
	require.Equal(t, http.StatusOK, w.Code)

	w = f.do(http.MethodPost, "/api/v1/job/resume/", sampleResume("Go"), "user-a")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created ResumeOutput
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))

	w = f.do(http.MethodGet, "/api/v1/job/resume/?is_publish=true", nil, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var list struct {
		Resumes    []ResumeOutput  `json:"resumes"`
		Pagination repo.Pagination `json:"pagination"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list.Resumes, 1)
	assert.Equal(t, 1, list.Pagination.Count)

	w = f.do(http.MethodGet, "/api/v1/job/resume/"+created.ID+"/", nil, "")
	require.Equal(t, http.StatusOK, w.Code)

	w = f.do(http.MethodGet, "/api/v1/job/resume/missing/", nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandlerFileUpload(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.SaveEmployee(ctx, "user-a", EmployeeInput{FirstName: "Иван", LastName: "Петров"})
	require.NoError(t, err)
	res, err := f.svc.Create(ctx, "user-a", sampleResume())
	require.NoError(t, err)
	path := "/api/v1/job/resume/" + res.ID + "/file/"

	w := f.do(http.MethodGet, path, nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code, "no file yet")

	w = f.upload(t, path, "cv.docx", docx(t, "Опыт с Go и Kafka"), "user-b")
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = f.upload(t, path, "cv.txt", []byte("plain text resume"), "user-a")
	assert.Equal(t, http.StatusUnsupportedMediaType, w.Code)

	payload := docx(t, "Опыт с Go и Kafka")
	w = f.upload(t, path, "cv.docx", payload, "user-a")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var out ResumeOutput
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	require.NotNil(t, out.File)
	assert.Equal(t, "cv.docx", out.File.Name)
	require.NotNil(t, out.Description)
	assert.Equal(t, "Опыт с Go и Kafka", *out.Description)

	w = f.do(http.MethodGet, path, nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, payload, w.Body.Bytes())
	assert.Contains(t, w.Header().Get("Content-Disposition"), "cv.docx")
}

func TestUnpublishedFileIsPrivate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.SaveEmployee(ctx, "user-a", EmployeeInput{FirstName: "Иван", LastName: "Петров"})
	require.NoError(t, err)
	in := sampleResume()
	in.Resume.IsPublish = new(bool)
	in.Resume.Description = strPtr("hand written")
	res, err := f.svc.Create(ctx, "user-a", in)
	require.NoError(t, err)

	out, err := f.svc.AttachFile(ctx, "user-a", res.ID, "cv.docx", bytes.NewReader(docx(t, "from file")))
	require.NoError(t, err)
	assert.Equal(t, "hand written", *out.Description, "existing description is kept")

	_, _, err = f.svc.File(ctx, "user-b", res.ID)
	assert.True(t, errors.Is(err, ErrForbidden))

	rc, meta, err := f.svc.File(ctx, "user-a", res.ID)
	require.NoError(t, err)
	rc.Close()
	assert.Equal(t, "cv.docx", meta.Name)
}
