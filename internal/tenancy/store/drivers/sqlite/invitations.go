package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/tenantkit/tenantkit/internal/tenancy/domain"
)

type invitationsRepo struct {
	db dbtx
}

func (r *invitationsRepo) CreateInvitation(ctx context.Context, inv domain.Invitation) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO invitations
			(id, email, inviter_id, organization_id, roles, team_id, status, expires_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		inv.ID, inv.Email, inv.InviterID, inv.OrganizationID, joinRoles(inv.Roles),
		mapStringNull(inv.TeamID), string(inv.Status), inv.ExpiresAt, inv.CreatedAt, inv.UpdatedAt,
	)
	return mapConstraint(err)
}

func (r *invitationsRepo) GetInvitationByID(ctx context.Context, id string) (domain.Invitation, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, email, inviter_id, organization_id, roles, team_id, status, expires_at, created_at, updated_at
		FROM invitations WHERE id = ?`, id)
	return scanInvitation(row)
}

func (r *invitationsRepo) GetPendingInvitationByEmail(ctx context.Context, organizationID, email string) (domain.Invitation, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, email, inviter_id, organization_id, roles, team_id, status, expires_at, created_at, updated_at
		FROM invitations
		WHERE organization_id = ? AND email = ? AND status = ?`,
		organizationID, email, string(domain.InvitationPending))
	return scanInvitation(row)
}

// UpdateInvitationStatus is a compare-and-set on the status column. When the
// invitation already left the from status zero rows change and ErrNotFound
// surfaces, which is how racing transitions are decided.
func (r *invitationsRepo) UpdateInvitationStatus(ctx context.Context, id string, from, to domain.InvitationStatus) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE invitations SET status = ?, updated_at = ?
		WHERE id = ? AND status = ?`,
		string(to), time.Now().UTC(), id, string(from),
	)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r *invitationsRepo) RefreshInvitationExpiry(ctx context.Context, id string, expiresAt time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE invitations SET expires_at = ?, updated_at = ?
		WHERE id = ? AND status = ?`,
		expiresAt, time.Now().UTC(), id, string(domain.InvitationPending),
	)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r *invitationsRepo) ListInvitationsByOrganization(ctx context.Context, organizationID string) ([]domain.Invitation, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, email, inviter_id, organization_id, roles, team_id, status, expires_at, created_at, updated_at
		FROM invitations WHERE organization_id = ?
		ORDER BY created_at DESC, id DESC`, organizationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectInvitations(rows)
}

func (r *invitationsRepo) ListInvitationsByEmail(ctx context.Context, email string) ([]domain.Invitation, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, email, inviter_id, organization_id, roles, team_id, status, expires_at, created_at, updated_at
		FROM invitations WHERE email = ?
		ORDER BY created_at DESC, id DESC`, email)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectInvitations(rows)
}

func (r *invitationsRepo) CountPendingInvitationsByInviter(ctx context.Context, inviterID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM invitations WHERE inviter_id = ? AND status = ?`,
		inviterID, string(domain.InvitationPending)).Scan(&count)
	return count, err
}

func (r *invitationsRepo) CancelExpiredInvitations(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE invitations SET status = ?, updated_at = ?
		WHERE status = ? AND expires_at < ?`,
		string(domain.InvitationCanceled), now, string(domain.InvitationPending), now,
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func scanInvitation(row rowScanner) (domain.Invitation, error) {
	var (
		inv    domain.Invitation
		roles  string
		teamID sql.NullString
		status string
	)
	err := row.Scan(
		&inv.ID, &inv.Email, &inv.InviterID, &inv.OrganizationID, &roles,
		&teamID, &status, &inv.ExpiresAt, &inv.CreatedAt, &inv.UpdatedAt,
	)
	if err != nil {
		return domain.Invitation{}, mapNotFound(err)
	}
	inv.Roles = splitRoles(roles)
	inv.TeamID = mapNullString(teamID)
	inv.Status = domain.InvitationStatus(status)
	return inv, nil
}

func collectInvitations(rows *sql.Rows) ([]domain.Invitation, error) {
	var out []domain.Invitation
	for rows.Next() {
		inv, err := scanInvitation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, inv)
	}
	return out, rows.Err()
}
