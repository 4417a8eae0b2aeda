package sqlite

import (
	"context"
	"database/sql"

	"github.com/tenantkit/tenantkit/internal/tenancy/domain"
	"github.com/tenantkit/tenantkit/internal/tenancy/store"
)

type organizationsRepo struct {
	db dbtx
}

func (r *organizationsRepo) CreateOrganization(ctx context.Context, org domain.Organization) error {
	metadata, err := marshalMetadata(org.Metadata)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO organizations (id, name, slug, logo, metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		org.ID, org.Name, org.Slug, mapStringNull(org.Logo), metadata, org.CreatedAt,
	)
	return mapConstraint(err)
}

func (r *organizationsRepo) GetOrganizationByID(ctx context.Context, id string) (domain.Organization, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, name, slug, logo, metadata, created_at
		FROM organizations WHERE id = ?`, id)
	return scanOrganization(row)
}

func (r *organizationsRepo) GetOrganizationBySlug(ctx context.Context, slug string) (domain.Organization, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, name, slug, logo, metadata, created_at
		FROM organizations WHERE slug = ?`, slug)
	return scanOrganization(row)
}

func (r *organizationsRepo) UpdateOrganization(ctx context.Context, org domain.Organization) error {
	metadata, err := marshalMetadata(org.Metadata)
	if err != nil {
		return err
	}

	res, err := r.db.ExecContext(ctx, `
		UPDATE organizations SET name = ?, slug = ?, logo = ?, metadata = ?
		WHERE id = ?`,
		org.Name, org.Slug, mapStringNull(org.Logo), metadata, org.ID,
	)
	if err != nil {
		return mapConstraint(err)
	}
	return requireRow(res)
}

func (r *organizationsRepo) DeleteOrganization(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM organizations WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r *organizationsRepo) ListOrganizationsByUser(ctx context.Context, userID string) ([]domain.Organization, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT o.id, o.name, o.slug, o.logo, o.metadata, o.created_at
		FROM organizations o
		JOIN members m ON m.organization_id = o.id
		WHERE m.user_id = ?
		ORDER BY o.created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Organization
	for rows.Next() {
		org, err := scanOrganization(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, org)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrganization(row rowScanner) (domain.Organization, error) {
	var (
		org      domain.Organization
		logo     sql.NullString
		metadata string
	)
	if err := row.Scan(&org.ID, &org.Name, &org.Slug, &logo, &metadata, &org.CreatedAt); err != nil {
		return domain.Organization{}, mapNotFound(err)
	}
	org.Logo = mapNullString(logo)

	m, err := unmarshalMetadata(metadata)
	if err != nil {
		return domain.Organization{}, err
	}
	org.Metadata = m
	return org, nil
}

// requireRow maps a zero-row update/delete to ErrNotFound.
func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}
