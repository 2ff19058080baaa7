package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"aibridge.io/internal/auth"
	"aibridge.io/internal/ids"
)

const (
	pgErrUniqueViolation     = "23505"
	pgErrForeignKeyViolation = "23503"
)

// Store implements the credential store and tenant directory on Postgres.
type Store struct {
	db *sql.DB
}

var (
	_ auth.Store     = (*Store)(nil)
	_ auth.Directory = (*Store)(nil)
)

// PoolConfig tunes the database/sql pool.
type PoolConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

func Open(dsn string, pool PoolConfig) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if pool.MaxOpenConns > 0 {
		db.SetMaxOpenConns(pool.MaxOpenConns)
	}
	if pool.MaxIdleConns > 0 {
		db.SetMaxIdleConns(pool.MaxIdleConns)
	}
	if pool.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(pool.ConnMaxLifetime)
	}
	db.SetConnMaxIdleTime(5 * time.Minute)
	return &Store{db: db}, nil
}

// New wraps an existing handle.
func New(db *sql.DB) *Store { return &Store{db: db} }

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) DB() *sql.DB { return s.db }

const principalColumns = `id, identifier, display_name, secret_hash, status, operator, created_at, updated_at`

func scanPrincipal(row interface{ Scan(...any) error }) (auth.Principal, error) {
	var p auth.Principal
	err := row.Scan(&p.ID, &p.Identifier, &p.DisplayName, &p.SecretHash, &p.Status, &p.Operator, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return auth.Principal{}, auth.ErrNotFound
	}
	return p, err
}

func (s *Store) CreatePrincipal(ctx context.Context, p auth.Principal) (auth.Principal, error) {
	if p.ID == "" {
		p.ID = ids.New()
	}
	row := s.db.QueryRowContext(ctx, `
		insert into principals (id, identifier, display_name, secret_hash, status, operator)
		values ($1, $2, $3, $4, $5, $6)
		returning `+principalColumns,
		p.ID, p.Identifier, p.DisplayName, p.SecretHash, p.Status, p.Operator)
	created, err := scanPrincipal(row)
	if err != nil {
		return auth.Principal{}, mapError(err)
	}
	return created, nil
}

func (s *Store) PrincipalByID(ctx context.Context, id string) (auth.Principal, error) {
	return scanPrincipal(s.db.QueryRowContext(ctx,
		`select `+principalColumns+` from principals where id = $1`, id))
}

func (s *Store) PrincipalByIdentifier(ctx context.Context, identifier string) (auth.Principal, error) {
	return scanPrincipal(s.db.QueryRowContext(ctx,
		`select `+principalColumns+` from principals where identifier = $1`, identifier))
}

func (s *Store) UpdateSecretHash(ctx context.Context, principalID, hash string) error {
	return s.execOne(ctx, `update principals set secret_hash = $2, updated_at = now() where id = $1`, principalID, hash)
}

func (s *Store) SetPrincipalStatus(ctx context.Context, principalID, status string) error {
	return s.execOne(ctx, `update principals set status = $2, updated_at = now() where id = $1`, principalID, status)
}

func (s *Store) Memberships(ctx context.Context, principalID string) ([]auth.Membership, error) {
	rows, err := s.db.QueryContext(ctx, `
		select principal_id, organization_id, role, created_at
		from memberships
		where principal_id = $1
		order by organization_id
	`, principalID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []auth.Membership
	for rows.Next() {
		var (
			m    auth.Membership
			rank int
		)
		if err := rows.Scan(&m.PrincipalID, &m.OrganizationID, &rank, &m.CreatedAt); err != nil {
			return nil, err
		}
		m.Role = auth.Role(rank)
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *Store) Membership(ctx context.Context, principalID, organizationID string) (auth.Membership, error) {
	var (
		m    auth.Membership
		rank int
	)
	err := s.db.QueryRowContext(ctx, `
		select principal_id, organization_id, role, created_at
		from memberships
		where principal_id = $1 and organization_id = $2
	`, principalID, organizationID).Scan(&m.PrincipalID, &m.OrganizationID, &rank, &m.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return auth.Membership{}, auth.ErrNotFound
	}
	if err != nil {
		return auth.Membership{}, err
	}
	m.Role = auth.Role(rank)
	return m, nil
}

func (s *Store) UpsertMembership(ctx context.Context, m auth.Membership) error {
	_, err := s.db.ExecContext(ctx, `
		insert into memberships (principal_id, organization_id, role)
		values ($1, $2, $3)
		on conflict (principal_id, organization_id) do update
		set role = excluded.role
	`, m.PrincipalID, m.OrganizationID, int(m.Role))
	return mapError(err)
}

func (s *Store) DeleteMembership(ctx context.Context, principalID, organizationID string) error {
	return s.execOne(ctx, `delete from memberships where principal_id = $1 and organization_id = $2`, principalID, organizationID)
}

func (s *Store) Organization(ctx context.Context, id string) (auth.Organization, error) {
	var org auth.Organization
	err := s.db.QueryRowContext(ctx, `
		select id, name, status, created_at from organizations where id = $1
	`, id).Scan(&org.ID, &org.Name, &org.Status, &org.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return auth.Organization{}, auth.ErrNotFound
	}
	return org, err
}

func (s *Store) Project(ctx context.Context, id string) (auth.Project, error) {
	var p auth.Project
	err := s.db.QueryRowContext(ctx, `
		select id, organization_id, name, status, created_at from projects where id = $1
	`, id).Scan(&p.ID, &p.OrganizationID, &p.Name, &p.Status, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return auth.Project{}, auth.ErrNotFound
	}
	return p, err
}

func (s *Store) Dataset(ctx context.Context, id string) (auth.Dataset, error) {
	var d auth.Dataset
	err := s.db.QueryRowContext(ctx, `
		select id, project_id, name, item_count, created_at from datasets where id = $1
	`, id).Scan(&d.ID, &d.ProjectID, &d.Name, &d.ItemCount, &d.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return auth.Dataset{}, auth.ErrNotFound
	}
	return d, err
}

func (s *Store) ProjectsByOrganization(ctx context.Context, organizationID string) ([]auth.Project, error) {
	rows, err := s.db.QueryContext(ctx, `
		select id, organization_id, name, status, created_at
		from projects
		where organization_id = $1
		order by id
	`, organizationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []auth.Project
	for rows.Next() {
		var p auth.Project
		if err := rows.Scan(&p.ID, &p.OrganizationID, &p.Name, &p.Status, &p.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) DatasetsByProject(ctx context.Context, projectID string) ([]auth.Dataset, error) {
	rows, err := s.db.QueryContext(ctx, `
		select id, project_id, name, item_count, created_at
		from datasets
		where project_id = $1
		order by id
	`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []auth.Dataset
	for rows.Next() {
		var d auth.Dataset
		if err := rows.Scan(&d.ID, &d.ProjectID, &d.Name, &d.ItemCount, &d.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *Store) CreateOrganization(ctx context.Context, org auth.Organization) (auth.Organization, error) {
	if org.ID == "" {
		org.ID = ids.New()
	}
	if org.Status == "" {
		org.Status = auth.StatusActive
	}
	err := s.db.QueryRowContext(ctx, `
		insert into organizations (id, name, status)
		values ($1, $2, $3)
		returning created_at
	`, org.ID, strings.TrimSpace(org.Name), org.Status).Scan(&org.CreatedAt)
	if err != nil {
		return auth.Organization{}, mapError(err)
	}
	return org, nil
}

func (s *Store) CreateProject(ctx context.Context, p auth.Project) (auth.Project, error) {
	if p.ID == "" {
		p.ID = ids.New()
	}
	if p.Status == "" {
		p.Status = auth.StatusActive
	}
	err := s.db.QueryRowContext(ctx, `
		insert into projects (id, organization_id, name, status)
		values ($1, $2, $3, $4)
		returning created_at
	`, p.ID, p.OrganizationID, strings.TrimSpace(p.Name), p.Status).Scan(&p.CreatedAt)
	if err != nil {
		return auth.Project{}, mapError(err)
	}
	return p, nil
}

func (s *Store) CreateDataset(ctx context.Context, d auth.Dataset) (auth.Dataset, error) {
	if d.ID == "" {
		d.ID = ids.New()
	}
	err := s.db.QueryRowContext(ctx, `
		insert into datasets (id, project_id, name, item_count)
		values ($1, $2, $3, $4)
		returning created_at
	`, d.ID, d.ProjectID, strings.TrimSpace(d.Name), d.ItemCount).Scan(&d.CreatedAt)
	if err != nil {
		return auth.Dataset{}, mapError(err)
	}
	return d, nil
}

// SetOrganizationStatus suspends or reactivates an organization.
func (s *Store) SetOrganizationStatus(ctx context.Context, id, status string) error {
	return s.execOne(ctx, `update organizations set status = $2 where id = $1`, id, status)
}

func (s *Store) execOne(ctx context.Context, query string, args ...any) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return mapError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return auth.ErrNotFound
	}
	return nil
}

func mapError(err error) error {
	if err == nil {
		return nil
	}
	if pgErr, ok := maybePgError(err); ok {
		switch pgErr.Code {
		case pgErrUniqueViolation:
			return fmt.Errorf("%w: %s", auth.ErrAlreadyExists, pgErr.ConstraintName)
		case pgErrForeignKeyViolation:
			return fmt.Errorf("%w: %s", auth.ErrNotFound, pgErr.ConstraintName)
		}
	}
	return err
}

func maybePgError(err error) (*pgconn.PgError, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr, true
	}
	return nil, false
}
