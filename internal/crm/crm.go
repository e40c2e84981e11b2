// Package crm exports saved leads to Salesforce Lead records.
package crm

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/leadgen/internal/apperr"
	"github.com/sells-group/leadgen/internal/config"
	"github.com/sells-group/leadgen/internal/model"
	"github.com/sells-group/leadgen/pkg/salesforce"
)

// Connect reads the JWT key and authenticates against Salesforce.
func Connect(cfg config.SalesforceConfig) (salesforce.Client, error) {
	if cfg.ClientID == "" {
		return nil, eris.Wrap(apperr.ErrConfiguration, "salesforce client id is required (LEADGEN_SALESFORCE_CLIENT_ID)")
	}
	pem, err := os.ReadFile(cfg.KeyPath)
	if err != nil {
		return nil, eris.Wrap(err, "crm: read salesforce JWT private key")
	}
	return salesforce.Connect(salesforce.Creds{
		LoginURL:   cfg.LoginURL,
		Username:   cfg.Username,
		ClientID:   cfg.ClientID,
		PrivateKey: string(pem),
	}, salesforce.WithRateLimit(5))
}

// LeadUpdater persists the CRM id written back onto a lead.
type LeadUpdater interface {
	UpdateLead(ctx context.Context, l *model.Lead) error
}

// PushResult summarizes one export.
type PushResult struct {
	Created int      `json:"created"`
	Updated int      `json:"updated"`
	Failed  int      `json:"failed"`
	Errors  []string `json:"errors,omitempty"`
}

// Exporter upserts leads into Salesforce by email.
type Exporter struct {
	client salesforce.Client
	leads  LeadUpdater

	nowFunc func() time.Time
}

// NewExporter creates an Exporter.
func NewExporter(client salesforce.Client, leads LeadUpdater) *Exporter {
	return &Exporter{client: client, leads: leads, nowFunc: time.Now}
}

// Push creates or updates a Salesforce Lead for each lead and records the
// Salesforce id in the lead's metadata. Per-record failures are counted, not
// returned.
func (e *Exporter) Push(ctx context.Context, leads []model.Lead) (PushResult, error) {
	var res PushResult
	if len(leads) == 0 {
		return res, nil
	}

	emails := make([]string, 0, len(leads))
	for _, l := range leads {
		emails = append(emails, model.NormalizeEmail(l.Email))
	}
	existing, err := salesforce.FindLeadsByEmail(ctx, e.client, emails)
	if err != nil {
		return res, eris.Wrap(err, "crm: look up existing leads")
	}

	var (
		inserts   []map[string]any
		insertIdx []int
		updates   []salesforce.CollectionRecord
		updateIdx []int
	)
	for i, l := range leads {
		fields := Fields(l)
		if id, ok := existing[model.NormalizeEmail(l.Email)]; ok {
			updates = append(updates, salesforce.CollectionRecord{ID: id, Fields: fields})
			updateIdx = append(updateIdx, i)
			continue
		}
		inserts = append(inserts, fields)
		insertIdx = append(insertIdx, i)
	}

	created, err := salesforce.InsertLeads(ctx, e.client, inserts)
	if err != nil {
		return res, eris.Wrap(err, "crm: insert leads")
	}
	updated, err := salesforce.UpdateLeads(ctx, e.client, updates)
	if err != nil {
		return res, eris.Wrap(err, "crm: update leads")
	}

	record := func(results []salesforce.CollectionResult, idx []int, counter *int) {
		for j, r := range results {
			l := &leads[idx[j]]
			if !r.Success {
				res.Failed++
				res.Errors = append(res.Errors, l.Email+": "+strings.Join(r.Errors, "; "))
				continue
			}
			*counter++
			if l.Metadata.CRMID == r.ID {
				continue
			}
			l.Metadata.CRMID = r.ID
			l.UpdatedAt = e.nowFunc().UTC()
			if err := e.leads.UpdateLead(ctx, l); err != nil {
				zap.L().Warn("crm: save salesforce id failed",
					zap.String("lead_id", l.ID),
					zap.Error(err),
				)
			}
		}
	}
	record(created, insertIdx, &res.Created)
	record(updated, updateIdx, &res.Updated)

	zap.L().Info("crm: leads pushed",
		zap.Int("created", res.Created),
		zap.Int("updated", res.Updated),
		zap.Int("failed", res.Failed),
	)
	return res, nil
}

// Fields maps a lead onto Salesforce Lead fields. LastName and Company are
// required by Salesforce and get placeholders when missing.
func Fields(l model.Lead) map[string]any {
	first, last := splitName(l.Name)
	if last == "" {
		last = "Unknown"
	}
	company := l.Company
	if company == "" {
		company = "[not provided]"
	}

	f := map[string]any{
		"FirstName":  first,
		"LastName":   last,
		"Company":    company,
		"Email":      l.Email,
		"LeadSource": "leadgen:" + l.Source,
		"Rating":     Rating(l.Score),
	}
	if l.Phone != "" {
		f["Phone"] = l.Phone
	}
	if l.Title != "" {
		f["Title"] = l.Title
	}
	if l.Industry != "" {
		f["Industry"] = l.Industry
	}
	if l.CompanySize > 0 {
		f["NumberOfEmployees"] = l.CompanySize
	}
	if l.Location != "" {
		f["City"] = l.Location
	}
	if l.ProfileURL != "" {
		f["Website"] = l.ProfileURL
	}
	return f
}

// Rating buckets a lead score into Salesforce's Hot/Warm/Cold picklist.
func Rating(score int) string {
	switch {
	case score >= 80:
		return "Hot"
	case score >= 60:
		return "Warm"
	default:
		return "Cold"
	}
}

func splitName(name string) (first, last string) {
	parts := strings.Fields(name)
	switch len(parts) {
	case 0:
		return "", ""
	case 1:
		return "", parts[0]
	default:
		return strings.Join(parts[:len(parts)-1], " "), parts[len(parts)-1]
	}
}
