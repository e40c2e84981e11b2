package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/leadgen/internal/model"
)

func TestValidEmail(t *testing.T) {
	tests := []struct {
		email string
		want  bool
	}{
		{"jane@acme.com.au", true},
		{"  Jane.Doe+sales@Acme.IO ", true},
		{"jane@acme", false},
		{"jane.acme.com", false},
		{"@acme.com", false},
		{"jane@acme.c", false},
		{"", false},
		{"jane doe@acme.com", false},
	}
	for _, tt := range tests {
		t.Run(tt.email, func(t *testing.T) {
			assert.Equal(t, tt.want, ValidEmail(tt.email))
		})
	}
}

func TestFilter(t *testing.T) {
	cands := []model.CandidateLead{
		{Name: "A", Email: "a@acme.com.au", CompanySize: 120},
		{Name: "B", Email: "not-an-email"},
		{Name: "C", Email: "A@ACME.com.au"},
		{Name: "D", Email: "d@acme.com.au"},
		{Name: "E", Email: "e@tiny.com", CompanySize: 4},
		{Name: "F", Email: "f@unknown-size.com"},
		{Name: "G", Email: "g@acme.com.au", CompanySize: 10},
	}
	existing := map[string]struct{}{"d@acme.com.au": {}}

	out, stats := Filter(cands, existing, 10)

	names := make([]string, 0, len(out))
	for _, c := range out {
		names = append(names, c.Name)
	}
	assert.Equal(t, []string{"A", "F", "G"}, names, "input order is preserved")
	assert.Equal(t, FilterStats{Input: 7, InvalidEmail: 1, Duplicate: 1, Existing: 1, TooSmall: 1, Output: 3}, stats)
	assert.Equal(t, "a@acme.com.au", out[0].Email)
}

func TestFilter_DoesNotMutateInput(t *testing.T) {
	cands := []model.CandidateLead{{Email: " X@Acme.com "}}
	out, _ := Filter(cands, nil, 0)
	assert.Equal(t, "x@acme.com", out[0].Email)
	assert.Equal(t, " X@Acme.com ", cands[0].Email)
}

func TestRank(t *testing.T) {
	cands := []model.CandidateLead{
		{Name: "low", Score: 40},
		{Name: "mid1", Score: 70},
		{Name: "top", Score: 95},
		{Name: "mid2", Score: 70},
		{Name: "edge", Score: 60},
	}
	out := Rank(cands, 60, 3)
	names := make([]string, 0, len(out))
	for _, c := range out {
		names = append(names, c.Name)
	}
	assert.Equal(t, []string{"top", "mid1", "mid2"}, names)
}

func TestSearchParams(t *testing.T) {
	p := SearchParams(model.LeadCriteria{
		Keywords:     "saas",
		MaxResults:   30,
		Locations:    []string{"Sydney"},
		CompanySizes: []string{"small", "large", "42,99"},
	})
	assert.Equal(t, 60, p.PerPage)
	assert.Equal(t, 1, p.Page)
	assert.Equal(t, []string{"11,50", "201,500", "42,99"}, p.EmployeeRange)

	p = SearchParams(model.LeadCriteria{MaxResults: 500})
	assert.Equal(t, 100, p.PerPage)
}
