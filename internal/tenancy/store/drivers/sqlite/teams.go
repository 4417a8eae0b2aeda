package sqlite

import (
	"context"
	"time"

	"github.com/tenantkit/tenantkit/internal/tenancy/domain"
)

type teamsRepo struct {
	db dbtx
}

func (r *teamsRepo) CreateTeam(ctx context.Context, team domain.Team) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO teams (id, name, organization_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)`,
		team.ID, team.Name, team.OrganizationID, team.CreatedAt, team.UpdatedAt,
	)
	return mapConstraint(err)
}

func (r *teamsRepo) GetTeamByID(ctx context.Context, id string) (domain.Team, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, name, organization_id, created_at, updated_at
		FROM teams WHERE id = ?`, id)

	var team domain.Team
	if err := row.Scan(&team.ID, &team.Name, &team.OrganizationID, &team.CreatedAt, &team.UpdatedAt); err != nil {
		return domain.Team{}, mapNotFound(err)
	}
	return team, nil
}

func (r *teamsRepo) UpdateTeamName(ctx context.Context, teamID, name string, updatedAt time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE teams SET name = ?, updated_at = ? WHERE id = ?`, name, updatedAt, teamID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r *teamsRepo) DeleteTeam(ctx context.Context, teamID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM teams WHERE id = ?`, teamID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r *teamsRepo) ListTeamsByOrganization(ctx context.Context, organizationID string) ([]domain.Team, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, organization_id, created_at, updated_at
		FROM teams WHERE organization_id = ?
		ORDER BY created_at ASC, id ASC`, organizationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Team
	for rows.Next() {
		var team domain.Team
		if err := rows.Scan(&team.ID, &team.Name, &team.OrganizationID, &team.CreatedAt, &team.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, team)
	}
	return out, rows.Err()
}

func (r *teamsRepo) CountTeamsByOrganization(ctx context.Context, organizationID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM teams WHERE organization_id = ?`, organizationID).Scan(&count)
	return count, err
}
