package repository

import (
	"context"

	"leadharvest/internal/database"
	"leadharvest/internal/domain/company"
)

type DuplicateRepository interface {
	Create(ctx context.Context, cand *company.DuplicateCandidate) error
	Exists(ctx context.Context, companyAID, companyBID int64) (bool, error)
	ListPending(ctx context.Context, limit int) ([]*company.DuplicateCandidate, error)
}

type PostgresDuplicateRepository struct {
	db database.DB
}

func NewPostgresDuplicateRepository(db database.DB) *PostgresDuplicateRepository {
	return &PostgresDuplicateRepository{db: db}
}

func (r *PostgresDuplicateRepository) Create(ctx context.Context, cand *company.DuplicateCandidate) error {
	row := r.db.QueryRow(ctx,
		`INSERT INTO duplicate_candidates
			(company_a_id, company_b_id, name_similarity, address_similarity,
			 phone_similarity, website_similarity, overall_similarity, status, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
		 RETURNING id, created_at`,
		cand.CompanyAID, cand.CompanyBID, cand.NameSimilarity, cand.AddressSimilarity,
		cand.PhoneSimilarity, cand.WebsiteSimilarity, cand.OverallSimilarity, cand.Status,
	)
	return row.Scan(&cand.ID, &cand.CreatedAt)
}

// Exists checks the pair in both orders so (a, b) and (b, a) count as one
// candidate.
func (r *PostgresDuplicateRepository) Exists(ctx context.Context, companyAID, companyBID int64) (bool, error) {
	var exists bool
	row := r.db.QueryRow(ctx,
		`SELECT EXISTS(
			SELECT 1 FROM duplicate_candidates
			WHERE (company_a_id = $1 AND company_b_id = $2)
			   OR (company_a_id = $2 AND company_b_id = $1)
		 )`,
		companyAID, companyBID,
	)
	if err := row.Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

func (r *PostgresDuplicateRepository) ListPending(ctx context.Context, limit int) ([]*company.DuplicateCandidate, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.Query(ctx,
		`SELECT id, company_a_id, company_b_id, name_similarity, address_similarity,
				phone_similarity, website_similarity, overall_similarity, status, created_at
		 FROM duplicate_candidates
		 WHERE status = 'pending'
		 ORDER BY overall_similarity DESC
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]*company.DuplicateCandidate, 0)
	for rows.Next() {
		var c company.DuplicateCandidate
		if err := rows.Scan(
			&c.ID, &c.CompanyAID, &c.CompanyBID, &c.NameSimilarity, &c.AddressSimilarity,
			&c.PhoneSimilarity, &c.WebsiteSimilarity, &c.OverallSimilarity, &c.Status, &c.CreatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, &c)
	}
	return out, rows.Err()
}
