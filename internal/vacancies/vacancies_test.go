package vacancies

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobboard-backend/internal/shared/auth"
	"jobboard-backend/internal/shared/server/middleware"
	"jobboard-backend/internal/shared/storage/repo"
)

type stubTokens struct{}

func (stubTokens) Verify(token, _ string) (auth.Claims, error) {
	if token != "good" {
		return auth.Claims{}, auth.ErrInvalidToken
	}
	return auth.Claims{UserID: "user-1"}, nil
}

type stubPrincipals struct{}

func (stubPrincipals) LoadPrincipal(_ context.Context, id string) (auth.Principal, error) {
	return auth.Principal{ID: id, IsActive: true, IsVerified: true}, nil
}

func intPtr(v int) *int       { return &v }
func strPtr(v string) *string { return &v }

func sampleInput(title string, tools ...string) CreateInput {
	in := CreateInput{
		City:    CityInput{Name: "Москва"},
		Company: CompanyInput{Name: "Acme", Description: strPtr("<p>Good <script>x</script>place</p>")},
		Vacancy: VacancyInput{
			Title:      title,
			Language:   "go",
			Speciality: "разработка",
			Experience: "от 1 до 3 лет",
			SalaryFrom: intPtr(1000),
		},
	}
	for _, t := range tools {
		in.Tool = append(in.Tool, ToolInput{Name: t})
	}
	return in
}

func TestCreateResolvesRelatedRows(t *testing.T) {
	svc := NewService(NewMemoryStores())
	ctx := context.Background()

	first, err := svc.Create(ctx, sampleInput("Go developer", "Docker", "Postgres", "docker"))
	require.NoError(t, err)
	assert.Equal(t, "Acme", first.Company.Name)
	assert.Equal(t, "Москва", first.Company.City.Name)
	assert.Equal(t, "<p>Good place</p>", *first.Company.Description)
	assert.True(t, first.IsPublish)
	require.Len(t, first.Tool, 2)
	assert.Equal(t, "Docker", first.Tool[0].Name)
	assert.Equal(t, "Postgres", first.Tool[1].Name)

	second, err := svc.Create(ctx, sampleInput("Go developer", "Kafka"))
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID, "same company and title resolves to the existing vacancy")
	assert.Len(t, second.Tool, 3)

	other, err := svc.Create(ctx, sampleInput("Python developer"))
	require.NoError(t, err)
	assert.Equal(t, first.Company.ID, other.Company.ID)

	n, err := svc.Cities.Count(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestUpdateReplacesToolsAndDetectsConflicts(t *testing.T) {
	svc := NewService(NewMemoryStores())
	ctx := context.Background()

	a, err := svc.Create(ctx, sampleInput("Backend", "Go"))
	require.NoError(t, err)
	_, err = svc.Create(ctx, sampleInput("Frontend", "React"))
	require.NoError(t, err)

	in := sampleInput("Backend lead", "Rust")
	in.Vacancy.IsPublish = new(bool)
	updated, err := svc.Update(ctx, a.ID, in)
	require.NoError(t, err)
	assert.Equal(t, "Backend lead", updated.Title)
	assert.False(t, updated.IsPublish)
	require.Len(t, updated.Tool, 1)
	assert.Equal(t, "Rust", updated.Tool[0].Name)

	_, err = svc.Update(ctx, a.ID, sampleInput("Frontend"))
	assert.True(t, errors.Is(err, ErrConflict))

	_, err = svc.Update(ctx, "missing", sampleInput("x"))
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestDeleteRemovesLinks(t *testing.T) {
	svc := NewService(NewMemoryStores())
	ctx := context.Background()

	v, err := svc.Create(ctx, sampleInput("Backend", "Go"))
	require.NoError(t, err)
	require.NoError(t, svc.Delete(ctx, v.ID))

	n, err := svc.VacancyTools.Count(ctx, repo.Filters{"vacancy_id": v.ID})
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.True(t, errors.Is(svc.Delete(ctx, v.ID), ErrNotFound))
}

func TestListPagesAndFilters(t *testing.T) {
	svc := NewService(NewMemoryStores())
	ctx := context.Background()
	for i := 0; i < 23; i++ {
		in := sampleInput("Vacancy " + string(rune('A'+i)))
		if i%2 == 0 {
			in.Vacancy.Language = "python"
		}
		_, err := svc.Create(ctx, in)
		require.NoError(t, err)
	}

	items, pag, err := svc.List(ctx, nil, 2)
	require.NoError(t, err)
	assert.Len(t, items, 3)
	assert.Equal(t, repo.Pagination{Count: 23, MaxPage: 2, CurrentPage: 2, Limit: 20}, pag)

	items, pag, err = svc.List(ctx, repo.Filters{"language": "python"}, 1)
	require.NoError(t, err)
	assert.Len(t, items, 12)
	assert.Equal(t, 12, pag.Count)
	assert.Equal(t, "Vacancy W", items[0].Title, "newest first")
}

func newRouter(svc *Service) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(middleware.Auth(stubTokens{}, stubPrincipals{}))
	NewHandler(svc).RegisterRoutes(r.Group("/api/v1"))
	return r
}

func doJSON(r http.Handler, method, path string, body any, token string) *httptest.ResponseRecorder {
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
	r.ServeHTTP(w, req)
	return w
}

func TestHandlerLifecycle(t *testing.T) {
	svc := NewService(NewMemoryStores())
	r := newRouter(svc)

	w := doJSON(r, http.MethodPost, "/api/v1/job/vacancy/", sampleInput("Go dev", "Go"), "")
	require.Equal(t, http.StatusUnauthorized, w.Code)

	w = doJSON(r, http.MethodPost, "/api/v1/job/vacancy/", sampleInput("Go dev", "Go"), "good")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created VacancyOutput
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))

	w = doJSON(r, http.MethodGet, "/api/v1/job/vacancy/"+created.ID+"/", nil, "")
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(r, http.MethodGet, "/api/v1/job/vacancy/?language=go&salary_from__gte=500&page=1", nil, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var list struct {
		Vacancies  []VacancyOutput `json:"vacancies"`
		Pagination repo.Pagination `json:"pagination"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Len(t, list.Vacancies, 1)
	assert.Equal(t, 1, list.Pagination.MaxPage)

	w = doJSON(r, http.MethodGet, "/api/v1/job/vacancy/?colour=red", nil, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(r, http.MethodGet, "/api/v1/job/vacancy/?salary_from=lots", nil, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(r, http.MethodDelete, "/api/v1/job/vacancy/"+created.ID+"/", nil, "good")
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = doJSON(r, http.MethodGet, "/api/v1/job/vacancy/"+created.ID+"/", nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandlerValidatesEnums(t *testing.T) {
	r := newRouter(NewService(NewMemoryStores()))
	in := sampleInput("Go dev")
	in.Vacancy.Language = "cobol"
	in.Vacancy.Experience = "вечность"

	w := doJSON(r, http.MethodPost, "/api/v1/job/vacancy/", in, "good")
	require.Equal(t, http.StatusUnprocessableEntity, w.Code, w.Body.String())
	var body struct {
		Error struct {
			Details map[string]string `json:"details"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Contains(t, body.Error.Details, "vacancy.language")
	assert.Contains(t, body.Error.Details, "vacancy.experience")
}

func TestSelectors(t *testing.T) {
	r := newRouter(NewService(NewMemoryStores()))
	w := doJSON(r, http.MethodGet, "/api/v1/job/vacancy/selectors/", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	var sel Selectors
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &sel))
	assert.Len(t, sel.Languages, 9)
	assert.Len(t, sel.Experiences, 4)
	assert.Len(t, sel.Specialities, 11)
}
