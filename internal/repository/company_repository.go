package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"

	"leadharvest/internal/database"
	"leadharvest/internal/domain/company"
)

var ErrCompanyNotFound = errors.New("company not found")

type CompanyRepository interface {
	GetByID(ctx context.Context, id int64) (*company.Company, error)
	FindByNameCity(ctx context.Context, name, city string) (*company.Company, error)
	Insert(ctx context.Context, fields map[string]any) (int64, error)
	UpdateFields(ctx context.Context, id int64, fields map[string]any) error
	ListActiveByCity(ctx context.Context, city string) ([]*company.Company, error)
	ListCities(ctx context.Context) ([]string, error)
	MarkDuplicate(ctx context.Context, id, duplicateOfID int64) error
}

type PostgresCompanyRepository struct {
	db database.DB
}

func NewPostgresCompanyRepository(db database.DB) *PostgresCompanyRepository {
	return &PostgresCompanyRepository{db: db}
}

const companyColumns = `id, company_name, COALESCE(city, ''), COALESCE(address, ''),
	COALESCE(postal_code, ''), COALESCE(state, ''), COALESCE(phone, ''),
	COALESCE(email, ''), COALESCE(website, ''), COALESCE(description, ''),
	COALESCE(industry, ''), COALESCE(legal_form, ''), is_active, is_duplicate,
	duplicate_of_id, COALESCE(extra_data, '{}'::jsonb), created_at, updated_at`

func scanCompany(row database.Row) (*company.Company, error) {
	var (
		c     company.Company
		extra []byte
	)
	err := row.Scan(
		&c.ID, &c.CompanyName, &c.City, &c.Address,
		&c.PostalCode, &c.State, &c.Phone,
		&c.Email, &c.Website, &c.Description,
		&c.Industry, &c.LegalForm, &c.IsActive, &c.IsDuplicate,
		&c.DuplicateOfID, &extra, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(extra) > 0 {
		if err := json.Unmarshal(extra, &c.ExtraData); err != nil {
			return nil, fmt.Errorf("decode extra_data for company %d: %w", c.ID, err)
		}
	}
	return &c, nil
}

func (r *PostgresCompanyRepository) GetByID(ctx context.Context, id int64) (*company.Company, error) {
	row := r.db.QueryRow(ctx, `SELECT `+companyColumns+` FROM companies WHERE id = $1`, id)
	c, err := scanCompany(row)
	if err != nil {
		if err == sql.ErrNoRows || errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCompanyNotFound
		}
		return nil, err
	}
	return c, nil
}

// FindByNameCity is the upsert key lookup: case-insensitive exact match on
// name and city, duplicates excluded.
func (r *PostgresCompanyRepository) FindByNameCity(ctx context.Context, name, city string) (*company.Company, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+companyColumns+` FROM companies
		 WHERE LOWER(company_name) = LOWER($1) AND LOWER(COALESCE(city, '')) = LOWER($2)
		   AND is_duplicate = FALSE
		 LIMIT 1`,
		name, city,
	)
	c, err := scanCompany(row)
	if err != nil {
		if err == sql.ErrNoRows || errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCompanyNotFound
		}
		return nil, err
	}
	return c, nil
}

// Insert writes a new company from a filtered field map and returns the new
// id. Unknown keys are the caller's bug, not silently dropped here.
func (r *PostgresCompanyRepository) Insert(ctx context.Context, fields map[string]any) (int64, error) {
	if len(fields) == 0 {
		return 0, fmt.Errorf("no fields to insert")
	}

	cols := make([]string, 0, len(fields))
	for col := range fields {
		if !company.IsColumn(col) {
			return 0, fmt.Errorf("unknown company column %q", col)
		}
		cols = append(cols, col)
	}
	sort.Strings(cols)

	placeholders := make([]string, len(cols))
	args := make([]any, len(cols))
	for i, col := range cols {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = encodeValue(col, fields[col])
	}

	var id int64
	row := r.db.QueryRow(ctx,
		fmt.Sprintf(
			`INSERT INTO companies (%s, is_active, created_at, updated_at)
			 VALUES (%s, TRUE, NOW(), NOW())
			 RETURNING id`,
			strings.Join(cols, ", "), strings.Join(placeholders, ", "),
		),
		args...,
	)
	if err := row.Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

func (r *PostgresCompanyRepository) UpdateFields(ctx context.Context, id int64, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}

	cols := make([]string, 0, len(fields))
	for col := range fields {
		if !company.IsColumn(col) {
			return fmt.Errorf("unknown company column %q", col)
		}
		cols = append(cols, col)
	}
	sort.Strings(cols)

	sets := make([]string, len(cols))
	args := make([]any, 0, len(cols)+1)
	for i, col := range cols {
		sets[i] = fmt.Sprintf("%s = $%d", col, i+1)
		args = append(args, encodeValue(col, fields[col]))
	}
	args = append(args, id)

	affected, err := r.db.Exec(ctx,
		fmt.Sprintf(
			`UPDATE companies SET %s, updated_at = NOW() WHERE id = $%d`,
			strings.Join(sets, ", "), len(cols)+1,
		),
		args...,
	)
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrCompanyNotFound
	}
	return nil
}

func (r *PostgresCompanyRepository) ListActiveByCity(ctx context.Context, city string) ([]*company.Company, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+companyColumns+` FROM companies
		 WHERE LOWER(COALESCE(city, '')) = LOWER($1)
		   AND is_active = TRUE AND is_duplicate = FALSE
		 ORDER BY id`,
		city,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]*company.Company, 0)
	for rows.Next() {
		c, err := scanCompany(rowsAdapter{rows})
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *PostgresCompanyRepository) ListCities(ctx context.Context) ([]string, error) {
	rows, err := r.db.Query(ctx,
		`SELECT DISTINCT city FROM companies
		 WHERE city IS NOT NULL AND city <> ''
		   AND is_active = TRUE AND is_duplicate = FALSE
		 ORDER BY city`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]string, 0)
	for rows.Next() {
		var city string
		if err := rows.Scan(&city); err != nil {
			return nil, err
		}
		out = append(out, city)
	}
	return out, rows.Err()
}

func (r *PostgresCompanyRepository) MarkDuplicate(ctx context.Context, id, duplicateOfID int64) error {
	affected, err := r.db.Exec(ctx,
		`UPDATE companies
		 SET is_duplicate = TRUE, is_active = FALSE, duplicate_of_id = $2, updated_at = NOW()
		 WHERE id = $1`,
		id, duplicateOfID,
	)
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrCompanyNotFound
	}
	return nil
}

// encodeValue serializes map-valued columns (extra_data) to JSONB bytes and
// passes scalars through.
func encodeValue(col string, v any) any {
	if col != "extra_data" {
		return v
	}
	data, err := json.Marshal(v)
	if err != nil {
		return []byte("{}")
	}
	return data
}

// rowsAdapter lets the shared scanCompany helper read from a Rows cursor.
type rowsAdapter struct {
	rows database.Rows
}

func (a rowsAdapter) Scan(dest ...any) error {
	return a.rows.Scan(dest...)
}
