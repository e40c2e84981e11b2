package pipeline

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/leadgen/internal/model"
)

// suggestRequest is the result count asked of the provider for previews.
const suggestRequest = 10

// Preview is one scored search hit shown before a client commits to a run.
type Preview struct {
	Name        string `json:"name"`
	Company     string `json:"company"`
	Title       string `json:"title"`
	Location    string `json:"location"`
	Score       int    `json:"score"`
	EmailDomain string `json:"email_domain,omitempty"`
}

// Suggestions is the preview response.
type Suggestions struct {
	Previews       []Preview `json:"suggestions"`
	EstimatedTotal int       `json:"estimated_total"`
}

// Suggest searches a small sample and scores it without verification,
// enrichment, persistence or quota spend.
func (p *Pipeline) Suggest(ctx context.Context, clientID string, criteria model.LeadCriteria) (*Suggestions, error) {
	criteria = criteria.WithDefaults()
	if err := criteria.Validate(); err != nil {
		return nil, err
	}
	if _, err := p.store.GetClient(ctx, clientID); err != nil {
		return nil, eris.Wrap(err, "pipeline: suggest")
	}

	criteria.MaxResults = suggestRequest
	params := SearchParams(criteria)
	params.PerPage = suggestRequest

	cands, err := p.searcher.Search(ctx, params)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: suggest search")
	}
	if len(cands) > p.suggestSample {
		cands = cands[:p.suggestSample]
	}

	out := &Suggestions{Previews: make([]Preview, 0, len(cands)), EstimatedTotal: len(cands)}
	for _, c := range cands {
		score, _ := p.scorer.Score(c)
		out.Previews = append(out.Previews, Preview{
			Name:        c.Name,
			Company:     c.Company,
			Title:       c.Title,
			Location:    c.Location,
			Score:       score,
			EmailDomain: model.EmailDomain(c.Email),
		})
	}
	return out, nil
}
