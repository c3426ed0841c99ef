package dedup

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/adrg/strutil"
	"github.com/adrg/strutil/metrics"
	"github.com/phuslu/log"

	"leadharvest/internal/domain/company"
)

// Field weights and per-field match thresholds (0-100 scale). The overall
// score is a weighted average over the fields both records carry.
const (
	weightName    = 0.4
	weightAddress = 0.2
	weightPhone   = 0.2
	weightWebsite = 0.2

	thresholdName    = 85.0
	thresholdAddress = 80.0
	thresholdPhone   = 90.0
	thresholdWebsite = 95.0
)

// Thresholds carries the decision cutoffs, expressed as fractions.
type Thresholds struct {
	Candidate float64
	AutoMerge float64
}

// Match is a scored pairing of a new record against an existing company.
type Match struct {
	Company           *company.Company
	NameSimilarity    float64
	AddressSimilarity float64
	PhoneSimilarity   float64
	WebsiteSimilarity float64
	OverallSimilarity float64
}

// CompanyStore is the slice of company persistence the engine needs.
type CompanyStore interface {
	ListActiveByCity(ctx context.Context, city string) ([]*company.Company, error)
	GetByID(ctx context.Context, id int64) (*company.Company, error)
	UpdateFields(ctx context.Context, id int64, fields map[string]any) error
	MarkDuplicate(ctx context.Context, id, duplicateOfID int64) error
}

// CandidateStore persists duplicate candidates pending review.
type CandidateStore interface {
	Create(ctx context.Context, cand *company.DuplicateCandidate) error
	Exists(ctx context.Context, companyAID, companyBID int64) (bool, error)
}

// Engine scores company pairs and either merges them or queues them for
// manual review.
type Engine struct {
	companies  CompanyStore
	candidates CandidateStore
	thresholds Thresholds
	lev        *metrics.Levenshtein
	logger     *log.Logger
}

func NewEngine(companies CompanyStore, candidates CandidateStore, thresholds Thresholds, logger *log.Logger) *Engine {
	if thresholds.Candidate <= 0 {
		thresholds.Candidate = 0.80
	}
	if thresholds.AutoMerge <= 0 {
		thresholds.AutoMerge = 0.95
	}
	lev := metrics.NewLevenshtein()
	lev.CaseSensitive = false
	return &Engine{
		companies:  companies,
		candidates: candidates,
		thresholds: thresholds,
		lev:        lev,
		logger:     logger,
	}
}

func (e *Engine) Thresholds() Thresholds {
	if e == nil {
		return Thresholds{}
	}
	return e.thresholds
}

// FindDuplicates scores c against all active companies in its city and
// returns matches at or above the candidate threshold, best first.
func (e *Engine) FindDuplicates(ctx context.Context, c *company.Company) ([]Match, error) {
	if e == nil || e.companies == nil {
		return nil, fmt.Errorf("dedup engine not configured")
	}
	if c == nil {
		return nil, fmt.Errorf("company is nil")
	}

	existing, err := e.companies.ListActiveByCity(ctx, c.City)
	if err != nil {
		return nil, fmt.Errorf("list companies in %q: %w", c.City, err)
	}

	matches := make([]Match, 0)
	for _, other := range existing {
		if other.ID == c.ID {
			continue
		}
		m := e.score(c, other)
		if m.OverallSimilarity >= e.thresholds.Candidate*100 {
			matches = append(matches, m)
		}
	}

	sort.Slice(matches, func(i, j int) bool {
		return matches[i].OverallSimilarity > matches[j].OverallSimilarity
	})
	return matches, nil
}

// score computes per-field and overall similarity on the 0-100 scale.
// Fields missing on either side drop out of the weighted average; a
// per-field score below its match threshold contributes as-is but never
// rounds up.
func (e *Engine) score(a, b *company.Company) Match {
	m := Match{Company: b}

	type fieldScore struct {
		sim       float64
		weight    float64
		threshold float64
		present   bool
	}

	name := e.fieldSimilarity(a.CompanyName, b.CompanyName)
	address := e.fieldSimilarity(a.Address, b.Address)
	phone := e.fieldSimilarity(normalizeDigits(a.Phone), normalizeDigits(b.Phone))
	website := e.fieldSimilarity(normalizeHost(a.Website), normalizeHost(b.Website))

	scores := []fieldScore{
		{name.sim, weightName, thresholdName, name.present},
		{address.sim, weightAddress, thresholdAddress, address.present},
		{phone.sim, weightPhone, thresholdPhone, phone.present},
		{website.sim, weightWebsite, thresholdWebsite, website.present},
	}

	m.NameSimilarity = name.sim
	m.AddressSimilarity = address.sim
	m.PhoneSimilarity = phone.sim
	m.WebsiteSimilarity = website.sim

	var weighted, totalWeight float64
	for _, s := range scores {
		if !s.present {
			continue
		}
		weighted += s.sim * s.weight
		totalWeight += s.weight
	}
	if totalWeight > 0 {
		m.OverallSimilarity = weighted / totalWeight
	}
	return m
}

type simResult struct {
	sim     float64
	present bool
}

// fieldSimilarity token-sorts both values before the Levenshtein ratio so
// "Bäckerei Müller" and "Müller Bäckerei" compare as equal.
func (e *Engine) fieldSimilarity(a, b string) simResult {
	a, b = strings.TrimSpace(a), strings.TrimSpace(b)
	if a == "" || b == "" {
		return simResult{}
	}
	return simResult{
		sim:     strutil.Similarity(tokenSort(a), tokenSort(b), e.lev) * 100,
		present: true,
	}
}

func tokenSort(s string) string {
	fields := strings.Fields(strings.ToLower(s))
	sort.Strings(fields)
	return strings.Join(fields, " ")
}

func normalizeDigits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func normalizeHost(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.TrimPrefix(s, "https://")
	s = strings.TrimPrefix(s, "http://")
	s = strings.TrimPrefix(s, "www.")
	return strings.TrimSuffix(strings.SplitN(s, "/", 2)[0], "/")
}

// MergeCompanies folds duplicateID into primaryID: empty primary fields are
// filled from the duplicate, extra data is unioned, and the duplicate is
// deactivated with a pointer at the primary.
func (e *Engine) MergeCompanies(ctx context.Context, primaryID, duplicateID int64) error {
	if e == nil || e.companies == nil {
		return fmt.Errorf("dedup engine not configured")
	}
	if primaryID == duplicateID {
		return fmt.Errorf("cannot merge company %d into itself", primaryID)
	}

	primary, err := e.companies.GetByID(ctx, primaryID)
	if err != nil {
		return fmt.Errorf("load primary %d: %w", primaryID, err)
	}
	dup, err := e.companies.GetByID(ctx, duplicateID)
	if err != nil {
		return fmt.Errorf("load duplicate %d: %w", duplicateID, err)
	}

	updates := map[string]any{}
	fill := func(col, primaryVal, dupVal string) {
		if primaryVal == "" && dupVal != "" {
			updates[col] = dupVal
		}
	}
	fill("address", primary.Address, dup.Address)
	fill("postal_code", primary.PostalCode, dup.PostalCode)
	fill("state", primary.State, dup.State)
	fill("phone", primary.Phone, dup.Phone)
	fill("email", primary.Email, dup.Email)
	fill("website", primary.Website, dup.Website)
	fill("description", primary.Description, dup.Description)
	fill("industry", primary.Industry, dup.Industry)
	fill("legal_form", primary.LegalForm, dup.LegalForm)

	if len(dup.ExtraData) > 0 {
		merged := map[string]any{}
		for k, v := range dup.ExtraData {
			merged[k] = v
		}
		for k, v := range primary.ExtraData {
			merged[k] = v
		}
		updates["extra_data"] = merged
	}

	if len(updates) > 0 {
		if err := e.companies.UpdateFields(ctx, primaryID, updates); err != nil {
			return fmt.Errorf("update primary %d: %w", primaryID, err)
		}
	}
	if err := e.companies.MarkDuplicate(ctx, duplicateID, primaryID); err != nil {
		return fmt.Errorf("mark duplicate %d: %w", duplicateID, err)
	}

	if e.logger != nil {
		e.logger.Info().Int64("primary_id", primaryID).Int64("duplicate_id", duplicateID).Msg("companies merged")
	}
	return nil
}

// CreateDuplicateCandidate queues the pair for manual review, skipping
// pairs already recorded.
func (e *Engine) CreateDuplicateCandidate(ctx context.Context, companyAID, companyBID int64, m Match) error {
	if e == nil || e.candidates == nil {
		return fmt.Errorf("dedup engine not configured")
	}

	exists, err := e.candidates.Exists(ctx, companyAID, companyBID)
	if err != nil {
		return fmt.Errorf("check candidate pair: %w", err)
	}
	if exists {
		return nil
	}

	return e.candidates.Create(ctx, &company.DuplicateCandidate{
		CompanyAID:        companyAID,
		CompanyBID:        companyBID,
		NameSimilarity:    m.NameSimilarity,
		AddressSimilarity: m.AddressSimilarity,
		PhoneSimilarity:   m.PhoneSimilarity,
		WebsiteSimilarity: m.WebsiteSimilarity,
		OverallSimilarity: m.OverallSimilarity,
		Status:            "pending",
	})
}
