package sqlite

import (
	"context"
	"database/sql"

	"github.com/tenantkit/tenantkit/internal/tenancy/domain"
)

type membersRepo struct {
	db dbtx
}

func (r *membersRepo) CreateMember(ctx context.Context, m domain.Member) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO members (id, user_id, organization_id, roles, team_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		m.ID, m.UserID, m.OrganizationID, joinRoles(m.Roles), mapStringNull(m.TeamID), m.CreatedAt,
	)
	return mapConstraint(err)
}

func (r *membersRepo) GetMemberByID(ctx context.Context, id string) (domain.Member, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, organization_id, roles, team_id, created_at
		FROM members WHERE id = ?`, id)
	return scanMember(row)
}

func (r *membersRepo) GetMemberByUserAndOrganization(ctx context.Context, userID, organizationID string) (domain.Member, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, organization_id, roles, team_id, created_at
		FROM members WHERE user_id = ? AND organization_id = ?`, userID, organizationID)
	return scanMember(row)
}

func (r *membersRepo) UpdateMemberRoles(ctx context.Context, memberID string, roles []string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE members SET roles = ? WHERE id = ?`, joinRoles(roles), memberID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r *membersRepo) SetMemberTeam(ctx context.Context, memberID, teamID string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE members SET team_id = ? WHERE id = ?`, mapStringNull(teamID), memberID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r *membersRepo) DeleteMember(ctx context.Context, memberID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM members WHERE id = ?`, memberID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r *membersRepo) ListMembersByOrganization(ctx context.Context, organizationID string) ([]domain.Member, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, organization_id, roles, team_id, created_at
		FROM members WHERE organization_id = ?
		ORDER BY created_at ASC, id ASC`, organizationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Member
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (r *membersRepo) CountMembersByOrganization(ctx context.Context, organizationID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM members WHERE organization_id = ?`, organizationID).Scan(&count)
	return count, err
}

func (r *membersRepo) CountMembersByTeam(ctx context.Context, teamID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM members WHERE team_id = ?`, teamID).Scan(&count)
	return count, err
}

func (r *membersRepo) CountMembershipsByUser(ctx context.Context, userID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM members WHERE user_id = ?`, userID).Scan(&count)
	return count, err
}

func scanMember(row rowScanner) (domain.Member, error) {
	var (
		m      domain.Member
		roles  string
		teamID sql.NullString
	)
	if err := row.Scan(&m.ID, &m.UserID, &m.OrganizationID, &roles, &teamID, &m.CreatedAt); err != nil {
		return domain.Member{}, mapNotFound(err)
	}
	m.Roles = splitRoles(roles)
	m.TeamID = mapNullString(teamID)
	return m, nil
}
