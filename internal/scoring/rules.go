// Package scoring assigns the authoritative 0-100 quality score to candidate
// leads from weighted contact, verification and firmographic signals.
package scoring

import (
	"fmt"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Breakdown keys, one per contribution.
const (
	KeyEmailPresent       = "email_present"
	KeyEmailVerified      = "email_verified"
	KeyEmailRisky         = "email_risky"
	KeyLocalEmail         = "australian_email"
	KeyPhonePresent       = "phone_present"
	KeyProfilePresent     = "profile_present"
	KeyProfileValid       = "profile_valid"
	KeyCompanyPresent     = "company_present"
	KeyOptimalCompanySize = "optimal_company_size"
	KeyGoodCompanySize    = "good_company_size"
	KeyTitlePresent       = "title_present"
	KeySeniorTitle        = "senior_title"
	KeyIndustryPresent    = "industry_present"
	KeyTargetIndustry     = "target_industry"
	KeyTargetLocation     = "target_location"
)

// Weights are the points each contribution adds.
type Weights struct {
	EmailPresent       int `yaml:"email_present"`
	EmailVerified      int `yaml:"email_verified"`
	EmailRisky         int `yaml:"email_risky"`
	LocalEmail         int `yaml:"local_email"`
	PhonePresent       int `yaml:"phone_present"`
	ProfilePresent     int `yaml:"profile_present"`
	ProfileValid       int `yaml:"profile_valid"`
	CompanyPresent     int `yaml:"company_present"`
	OptimalCompanySize int `yaml:"optimal_company_size"`
	GoodCompanySize    int `yaml:"good_company_size"`
	TitlePresent       int `yaml:"title_present"`
	SeniorTitle        int `yaml:"senior_title"`
	IndustryPresent    int `yaml:"industry_present"`
	TargetIndustry     int `yaml:"target_industry"`
	TargetLocation     int `yaml:"target_location"`
}

// SizeRange is an inclusive employee-count range.
type SizeRange struct {
	Min int `yaml:"min"`
	Max int `yaml:"max"`
}

// Contains reports whether n falls inside the range.
func (r SizeRange) Contains(n int) bool {
	return n >= r.Min && n <= r.Max
}

// Rules configures the engine.
type Rules struct {
	Weights            Weights   `yaml:"weights"`
	OptimalSize        SizeRange `yaml:"optimal_company_size"`
	GoodSize           SizeRange `yaml:"good_company_size"`
	LocalEmailSuffixes []string  `yaml:"local_email_suffixes"`
	SeniorityKeywords  []string  `yaml:"seniority_keywords"`
	TargetIndustries   []string  `yaml:"target_industries"`
	TargetLocations    []string  `yaml:"target_locations"`
}

// DefaultRules returns the built-in rule set, tuned for Australian B2B
// prospecting.
func DefaultRules() Rules {
	return Rules{
		Weights: Weights{
			EmailPresent:       15,
			EmailVerified:      10,
			EmailRisky:         5,
			LocalEmail:         5,
			PhonePresent:       15,
			ProfilePresent:     10,
			ProfileValid:       5,
			CompanyPresent:     10,
			OptimalCompanySize: 10,
			GoodCompanySize:    5,
			TitlePresent:       5,
			SeniorTitle:        10,
			IndustryPresent:    3,
			TargetIndustry:     7,
			TargetLocation:     5,
		},
		OptimalSize:        SizeRange{Min: 50, Max: 500},
		GoodSize:           SizeRange{Min: 20, Max: 1000},
		LocalEmailSuffixes: []string{".com.au", ".org.au", ".net.au", ".gov.au"},
		SeniorityKeywords: []string{
			"ceo", "chief executive", "managing director", "general manager",
			"director", "head of", "manager", "leader", "principal",
			"founder", "owner", "president", "vice president", "vp",
		},
		TargetIndustries: []string{
			"consulting", "professional services", "management", "healthcare",
			"education", "finance", "technology", "manufacturing",
			"construction", "government",
		},
		TargetLocations: []string{
			"sydney", "melbourne", "brisbane", "perth", "adelaide",
			"canberra", "darwin", "hobart", "australia",
		},
	}
}

// LoadRules reads a YAML override on top of DefaultRules. Keys absent from
// the file keep their default; lists present in the file replace the
// default list.
func LoadRules(path string) (Rules, error) {
	rules := DefaultRules()

	data, err := os.ReadFile(path)
	if err != nil {
		return rules, eris.Wrapf(err, "scoring: read rules %s", path)
	}

	var wrapper struct {
		Scoring *Rules `yaml:"scoring"`
	}
	wrapper.Scoring = &rules
	if err := yaml.Unmarshal(data, &wrapper); err != nil {
		return DefaultRules(), eris.Wrap(err, "scoring: parse rules")
	}

	if err := ValidateRules(rules); err != nil {
		return DefaultRules(), err
	}
	return rules, nil
}

// ValidateRules checks that a rule set is internally consistent.
func ValidateRules(r Rules) error {
	var errs []string

	w := r.Weights
	for name, v := range map[string]int{
		KeyEmailPresent: w.EmailPresent, KeyEmailVerified: w.EmailVerified, KeyEmailRisky: w.EmailRisky,
		KeyLocalEmail: w.LocalEmail, KeyPhonePresent: w.PhonePresent, KeyProfilePresent: w.ProfilePresent,
		KeyProfileValid: w.ProfileValid, KeyCompanyPresent: w.CompanyPresent, KeyOptimalCompanySize: w.OptimalCompanySize,
		KeyGoodCompanySize: w.GoodCompanySize, KeyTitlePresent: w.TitlePresent, KeySeniorTitle: w.SeniorTitle,
		KeyIndustryPresent: w.IndustryPresent, KeyTargetIndustry: w.TargetIndustry, KeyTargetLocation: w.TargetLocation,
	} {
		if v < 0 {
			errs = append(errs, fmt.Sprintf("weight %s must not be negative (%d)", name, v))
		}
	}
	if r.OptimalSize.Min > r.OptimalSize.Max {
		errs = append(errs, "optimal_company_size min exceeds max")
	}
	if r.GoodSize.Min > r.GoodSize.Max {
		errs = append(errs, "good_company_size min exceeds max")
	}

	if len(errs) > 0 {
		return eris.Errorf("scoring: invalid rules: %s", strings.Join(errs, "; "))
	}
	return nil
}
