package pipeline

import (
	"github.com/sells-group/leadgen/internal/model"
)

// maxPerPage is the largest page the people search accepts.
const maxPerPage = 100

// sizeBuckets maps criteria company-size buckets to employee ranges.
var sizeBuckets = map[string]string{
	"startup":    "1,10",
	"small":      "11,50",
	"medium":     "51,200",
	"large":      "201,500",
	"enterprise": "501,1000",
	"very_large": "1001+",
}

// SearchParams translates criteria into a provider search request. It asks
// for twice the wanted results to cover filtering losses.
func SearchParams(c model.LeadCriteria) model.SearchParams {
	p := model.SearchParams{
		Page:       1,
		PerPage:    min(c.MaxResults*2, maxPerPage),
		Keywords:   c.Keywords,
		Locations:  c.Locations,
		Titles:     c.Titles,
		Industries: c.Industries,
	}
	if p.PerPage <= 0 {
		p.PerPage = maxPerPage
	}
	for _, size := range c.CompanySizes {
		if r, ok := sizeBuckets[size]; ok {
			p.EmployeeRange = append(p.EmployeeRange, r)
			continue
		}
		p.EmployeeRange = append(p.EmployeeRange, size)
	}
	return p
}
