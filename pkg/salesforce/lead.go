package salesforce

import (
	"context"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
)

// LeadObject is the Salesforce sObject name for leads.
const LeadObject = "Lead"

// Lead represents the Salesforce Lead fields read back during export.
type Lead struct {
	ID      string `json:"Id" salesforce:"Id"`
	Email   string `json:"Email" salesforce:"Email"`
	Company string `json:"Company" salesforce:"Company"`
	Status  string `json:"Status" salesforce:"Status"`
}

// FindLeadsByEmail returns the Salesforce Lead ID for each email that already
// exists, keyed by lower-cased email. Lookups are chunked to keep SOQL short.
func FindLeadsByEmail(ctx context.Context, c Client, emails []string) (map[string]string, error) {
	found := make(map[string]string, len(emails))
	for start := 0; start < len(emails); start += maxBatchSize {
		end := min(start+maxBatchSize, len(emails))

		quoted := make([]string, 0, end-start)
		for _, e := range emails[start:end] {
			quoted = append(quoted, "'"+escapeSoql(e)+"'")
		}
		soql := fmt.Sprintf("SELECT Id, Email, Company, Status FROM Lead WHERE Email IN (%s)", strings.Join(quoted, ", "))

		var leads []Lead
		if err := c.Query(ctx, soql, &leads); err != nil {
			return nil, eris.Wrap(err, fmt.Sprintf("sf: find leads batch %d-%d", start, end))
		}
		for _, l := range leads {
			found[strings.ToLower(l.Email)] = l.ID
		}
	}
	return found, nil
}

// InsertLeads creates Lead records in batches of 200.
func InsertLeads(ctx context.Context, c Client, records []map[string]any) ([]CollectionResult, error) {
	if len(records) == 0 {
		return nil, nil
	}

	var all []CollectionResult
	for start := 0; start < len(records); start += maxBatchSize {
		end := min(start+maxBatchSize, len(records))
		results, err := c.InsertCollection(ctx, LeadObject, records[start:end])
		if err != nil {
			return all, eris.Wrap(err, fmt.Sprintf("sf: insert leads batch %d-%d", start, end))
		}
		all = append(all, results...)
	}
	return all, nil
}

// UpdateLeads updates existing Lead records in batches of 200.
func UpdateLeads(ctx context.Context, c Client, records []CollectionRecord) ([]CollectionResult, error) {
	if len(records) == 0 {
		return nil, nil
	}

	var all []CollectionResult
	for start := 0; start < len(records); start += maxBatchSize {
		end := min(start+maxBatchSize, len(records))
		results, err := c.UpdateCollection(ctx, LeadObject, records[start:end])
		if err != nil {
			return all, eris.Wrap(err, fmt.Sprintf("sf: update leads batch %d-%d", start, end))
		}
		all = append(all, results...)
	}
	return all, nil
}

// escapeSoql escapes backslashes and single quotes in SOQL string literals.
func escapeSoql(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, "'", `\'`)
}
