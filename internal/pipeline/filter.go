package pipeline

import (
	"regexp"

	"github.com/sells-group/leadgen/internal/model"
)

// emailPattern is a local@domain.tld check, not full RFC 5322.
var emailPattern = regexp.MustCompile(`^[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}$`)

// ValidEmail reports whether s looks like a deliverable address.
func ValidEmail(s string) bool {
	return emailPattern.MatchString(model.NormalizeEmail(s))
}

// FilterStats counts why candidates were dropped.
type FilterStats struct {
	Input        int `json:"input"`
	InvalidEmail int `json:"invalid_email"`
	Duplicate    int `json:"duplicate"`
	Existing     int `json:"existing"`
	TooSmall     int `json:"too_small"`
	Output       int `json:"output"`
}

// Filter drops candidates without a valid email, repeats within the batch,
// emails the client already has on file, and companies with a known size
// below minCompanySize. Survivors keep their input order.
func Filter(cands []model.CandidateLead, existing map[string]struct{}, minCompanySize int) ([]model.CandidateLead, FilterStats) {
	stats := FilterStats{Input: len(cands)}
	seen := make(map[string]struct{}, len(cands))
	out := make([]model.CandidateLead, 0, len(cands))

	for _, c := range cands {
		email := c.NormalizedEmail()
		if !emailPattern.MatchString(email) {
			stats.InvalidEmail++
			continue
		}
		if _, dup := seen[email]; dup {
			stats.Duplicate++
			continue
		}
		seen[email] = struct{}{}
		if _, onFile := existing[email]; onFile {
			stats.Existing++
			continue
		}
		// Zero means the provider reported no size.
		if c.CompanySize > 0 && c.CompanySize < minCompanySize {
			stats.TooSmall++
			continue
		}
		c.Email = email
		out = append(out, c)
	}

	stats.Output = len(out)
	return out, stats
}
