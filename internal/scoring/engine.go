package scoring

import (
	"strings"

	"golang.org/x/text/cases"

	"github.com/sells-group/leadgen/internal/model"
)

// MaxScore is the score ceiling.
const MaxScore = 100

// Engine scores candidates. It is pure and safe for concurrent use.
type Engine struct {
	rules      Rules
	seniority  []string
	industries []string
	locations  []string
}

// NewEngine builds an engine from rules. Keyword lists are case-folded once.
func NewEngine(rules Rules) *Engine {
	return &Engine{
		rules:      rules,
		seniority:  foldAll(rules.SeniorityKeywords),
		industries: foldAll(rules.TargetIndustries),
		locations:  foldAll(rules.TargetLocations),
	}
}

// Rules returns the engine's rule set.
func (e *Engine) Rules() Rules { return e.rules }

// Score returns the clamped score and the contributions that produced it.
func (e *Engine) Score(c model.CandidateLead) (int, model.ScoreBreakdown) {
	w := e.rules.Weights
	b := model.ScoreBreakdown{}
	add := func(key string, pts int) {
		if pts > 0 {
			b[key] = pts
		}
	}

	if email := model.NormalizeEmail(c.Email); email != "" {
		add(KeyEmailPresent, w.EmailPresent)
		if v := c.Verification; v != nil {
			switch v.Result {
			case model.VerificationDeliverable:
				add(KeyEmailVerified, w.EmailVerified)
			case model.VerificationRisky:
				add(KeyEmailRisky, w.EmailRisky)
			}
		}
		domain := model.EmailDomain(email)
		for _, suf := range e.rules.LocalEmailSuffixes {
			if strings.HasSuffix(domain, strings.ToLower(suf)) {
				add(KeyLocalEmail, w.LocalEmail)
				break
			}
		}
	}

	if strings.TrimSpace(c.Phone) != "" {
		add(KeyPhonePresent, w.PhonePresent)
	}

	if strings.TrimSpace(c.ProfileURL) != "" {
		add(KeyProfilePresent, w.ProfilePresent)
		if c.Profile != nil && c.Profile.IsValid {
			add(KeyProfileValid, w.ProfileValid)
		}
	}

	if strings.TrimSpace(c.Company) != "" {
		add(KeyCompanyPresent, w.CompanyPresent)
		switch {
		case e.rules.OptimalSize.Contains(c.CompanySize):
			add(KeyOptimalCompanySize, w.OptimalCompanySize)
		case e.rules.GoodSize.Contains(c.CompanySize):
			add(KeyGoodCompanySize, w.GoodCompanySize)
		}
	}

	if title := strings.TrimSpace(c.Title); title != "" {
		add(KeyTitlePresent, w.TitlePresent)
		if containsAny(title, e.seniority) {
			add(KeySeniorTitle, w.SeniorTitle)
		}
	}

	if industry := strings.TrimSpace(c.Industry); industry != "" {
		add(KeyIndustryPresent, w.IndustryPresent)
		if containsAny(industry, e.industries) {
			add(KeyTargetIndustry, w.TargetIndustry)
		}
	}

	if loc := strings.TrimSpace(c.Location); loc != "" && containsAny(loc, e.locations) {
		add(KeyTargetLocation, w.TargetLocation)
	}

	return model.ClampScore(b.Sum()), b
}

// ScoreAll annotates each candidate with its score and breakdown in place.
func (e *Engine) ScoreAll(cands []model.CandidateLead) {
	for i := range cands {
		cands[i].Score, cands[i].Breakdown = e.Score(cands[i])
	}
}

func containsAny(text string, folded []string) bool {
	t := cases.Fold().String(text)
	for _, kw := range folded {
		if kw != "" && strings.Contains(t, kw) {
			return true
		}
	}
	return false
}

func foldAll(in []string) []string {
	f := cases.Fold()
	out := make([]string, 0, len(in))
	for _, s := range in {
		out = append(out, f.String(strings.TrimSpace(s)))
	}
	return out
}
