package repo

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFiltersFromQuery(t *testing.T) {
	values := url.Values{
		"page":             {"2"},
		"language":         {"go"},
		"city":             {""},
		"salary_from__gte": {"1000"},
		"salary_from__lt":  {"5000"},
		"is_publish":       {"true"},
		"experience__in":   {"без опыта, более 5 лет"},
	}
	convert := map[string]Converter{"salary_from": Int, "is_publish": Bool}

	filters, err := FiltersFromQuery(values, convert, "page")
	require.NoError(t, err)
	assert.Equal(t, Filters{
		"language":    "go",
		"salary_from": map[string]any{"gte": 1000, "lt": 5000},
		"is_publish":  true,
		"experience":  map[string]any{"in": []any{"без опыта", "более 5 лет"}},
	}, filters)
}

func TestFiltersFromQueryRejectsBadValues(t *testing.T) {
	_, err := FiltersFromQuery(url.Values{"salary_from": {"lots"}}, map[string]Converter{"salary_from": Int})
	assert.ErrorIs(t, err, ErrBadValue)
}
