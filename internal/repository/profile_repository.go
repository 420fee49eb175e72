package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/lms-api/internal/models"
)

const profileColumns = `id, email, password_hash, full_name, role, approved, last_login, created_at, updated_at`

// ProfileRepository provides database access for user profiles, sessions and audit logs.
type ProfileRepository struct {
	db *sqlx.DB
}

// NewProfileRepository creates a new instance of ProfileRepository.
func NewProfileRepository(db *sqlx.DB) *ProfileRepository {
	return &ProfileRepository{db: db}
}

// FindByEmail returns a profile by email address.
func (r *ProfileRepository) FindByEmail(ctx context.Context, email string) (*models.Profile, error) {
	const query = `SELECT ` + profileColumns + ` FROM profiles WHERE LOWER(email) = LOWER($1) LIMIT 1`
	var p models.Profile
	if err := r.db.GetContext(ctx, &p, query, email); err != nil {
		return nil, classify("find profile by email", err)
	}
	return &p, nil
}

// FindByID returns a profile by identifier.
func (r *ProfileRepository) FindByID(ctx context.Context, id string) (*models.Profile, error) {
	const query = `SELECT ` + profileColumns + ` FROM profiles WHERE id = $1 LIMIT 1`
	var p models.Profile
	if err := r.db.GetContext(ctx, &p, query, id); err != nil {
		return nil, classify("find profile by id", err)
	}
	return &p, nil
}

// Create inserts a new profile.
func (r *ProfileRepository) Create(ctx context.Context, p *models.Profile) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now
	const query = `INSERT INTO profiles (id, email, password_hash, full_name, role, approved, created_at, updated_at) VALUES (:id, :email, :password_hash, :full_name, :role, :approved, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, p); err != nil {
		return classify("create profile", err)
	}
	return nil
}

// List returns profiles matching the filter with the total count.
func (r *ProfileRepository) List(ctx context.Context, filter models.ProfileFilter) ([]models.Profile, int, error) {
	var conditions []string
	var args []interface{}

	if filter.Role != "" {
		args = append(args, filter.Role)
		conditions = append(conditions, fmt.Sprintf("role = $%d", len(args)))
	}
	if filter.Approved != nil {
		args = append(args, *filter.Approved)
		conditions = append(conditions, fmt.Sprintf("approved = $%d", len(args)))
	}
	if filter.Search != "" {
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
		conditions = append(conditions, fmt.Sprintf("(LOWER(email) LIKE $%d OR LOWER(full_name) LIKE $%d)", len(args), len(args)))
	}

	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	page, size := normalisePage(filter.Page, filter.PageSize)
	listQuery := fmt.Sprintf("SELECT %s FROM profiles%s ORDER BY created_at DESC LIMIT %d OFFSET %d", profileColumns, where, size, (page-1)*size)

	profiles := []models.Profile{}
	if err := r.db.SelectContext(ctx, &profiles, listQuery, args...); err != nil {
		return nil, 0, classify("list profiles", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM profiles"+where, args...); err != nil {
		return nil, 0, classify("count profiles", err)
	}
	return profiles, total, nil
}

// SetApproved flips a teacher's approval flag.
func (r *ProfileRepository) SetApproved(ctx context.Context, id string, approved bool) error {
	const query = `UPDATE profiles SET approved = $2, updated_at = $3 WHERE id = $1 AND role = 'teacher'`
	res, err := r.db.ExecContext(ctx, query, id, approved, time.Now().UTC())
	if err != nil {
		return classify("set profile approval", err)
	}
	return requireAffected("set profile approval", res)
}

// DeletePendingTeacher removes a teacher that was never approved.
func (r *ProfileRepository) DeletePendingTeacher(ctx context.Context, id string) error {
	const query = `DELETE FROM profiles WHERE id = $1 AND role = 'teacher' AND approved = FALSE`
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return classify("delete pending teacher", err)
	}
	return requireAffected("delete pending teacher", res)
}

// CountByRole returns how many profiles exist per role, plus unapproved teachers.
func (r *ProfileRepository) CountByRole(ctx context.Context) (map[models.Role]int, int, error) {
	const query = `SELECT role, COUNT(*) AS total, COUNT(*) FILTER (WHERE role = 'teacher' AND approved = FALSE) AS pending FROM profiles GROUP BY role`
	var rows []struct {
		Role    models.Role `db:"role"`
		Total   int         `db:"total"`
		Pending int         `db:"pending"`
	}
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, 0, classify("count profiles by role", err)
	}
	counts := make(map[models.Role]int, len(rows))
	pending := 0
	for _, row := range rows {
		counts[row.Role] = row.Total
		pending += row.Pending
	}
	return counts, pending, nil
}

// FindSummaries loads public projections for the given ids.
func (r *ProfileRepository) FindSummaries(ctx context.Context, ids []string) ([]models.ProfileSummary, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	const query = `SELECT id, full_name, email FROM profiles WHERE id = ANY($1)`
	var out []models.ProfileSummary
	if err := r.db.SelectContext(ctx, &out, query, stringArray(ids)); err != nil {
		return nil, classify("find profile summaries", err)
	}
	return out, nil
}

// UpdateLastLogin updates the last_login timestamp for a profile.
func (r *ProfileRepository) UpdateLastLogin(ctx context.Context, id string, ts time.Time) error {
	const query = `UPDATE profiles SET last_login = $2, updated_at = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, ts); err != nil {
		return classify("update last login", err)
	}
	return nil
}

// UpdatePassword updates the stored password hash.
func (r *ProfileRepository) UpdatePassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) error {
	const query = `UPDATE profiles SET password_hash = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, passwordHash, updatedAt); err != nil {
		return classify("update password", err)
	}
	return nil
}

// CreateRefreshToken persists a refresh token entry.
func (r *ProfileRepository) CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	if token.ID == "" {
		token.ID = uuid.NewString()
	}
	if token.CreatedAt.IsZero() {
		token.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO refresh_tokens (id, user_id, token, expires_at, created_at, revoked, revoked_at, ip_address, user_agent) VALUES (:id, :user_id, :token, :expires_at, :created_at, :revoked, :revoked_at, :ip_address, :user_agent)`
	if _, err := r.db.NamedExecContext(ctx, query, token); err != nil {
		return classify("create refresh token", err)
	}
	return nil
}

// FindRefreshToken returns a refresh token by token string.
func (r *ProfileRepository) FindRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	const query = `SELECT id, user_id, token, expires_at, created_at, revoked, revoked_at, ip_address, user_agent FROM refresh_tokens WHERE token = $1 LIMIT 1`
	var rt models.RefreshToken
	if err := r.db.GetContext(ctx, &rt, query, token); err != nil {
		return nil, classify("find refresh token", err)
	}
	return &rt, nil
}

// RevokeRefreshToken marks a token as revoked.
func (r *ProfileRepository) RevokeRefreshToken(ctx context.Context, id string, revokedAt time.Time) error {
	const query = `UPDATE refresh_tokens SET revoked = TRUE, revoked_at = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, revokedAt); err != nil {
		return classify("revoke refresh token", err)
	}
	return nil
}

// RevokeUserRefreshTokens revokes all refresh tokens for a user.
func (r *ProfileRepository) RevokeUserRefreshTokens(ctx context.Context, userID string) error {
	const query = `UPDATE refresh_tokens SET revoked = TRUE, revoked_at = $2 WHERE user_id = $1 AND revoked = FALSE`
	if _, err := r.db.ExecContext(ctx, query, userID, time.Now().UTC()); err != nil {
		return classify("revoke user refresh tokens", err)
	}
	return nil
}

// CreateAuditLog stores an audit log entry.
func (r *ProfileRepository) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	if log.ID == "" {
		log.ID = uuid.NewString()
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO audit_logs (id, user_id, action, resource, resource_id, new_values, ip_address, user_agent, created_at) VALUES (:id, :user_id, :action, :resource, :resource_id, :new_values, :ip_address, :user_agent, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, log); err != nil {
		return classify("create audit log", err)
	}
	return nil
}
