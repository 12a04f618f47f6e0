package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/daylinehq/dayline/internal/database"
	"github.com/daylinehq/dayline/internal/models"
)

type SessionRepository struct {
	db *database.DB
}

func NewSessionRepository(db *database.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

func (r *SessionRepository) Create(ctx context.Context, session *models.Session) error {
	query := `
		INSERT INTO sessions (id, account_id, last_activity)
		VALUES ($1, $2, now())
	`

	if _, err := r.db.Pool.Exec(ctx, query, session.ID, session.AccountID); err != nil {
		return database.MapPostgresError(err)
	}
	return nil
}

func (r *SessionRepository) GetByID(ctx context.Context, id string) (*models.Session, error) {
	query := `
		SELECT id, account_id, last_activity, created_at
		FROM sessions WHERE id = $1
	`

	var session models.Session
	err := r.db.Pool.QueryRow(ctx, query, id).Scan(
		&session.ID, &session.AccountID, &session.LastActivity, &session.CreatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return &session, nil
}

// ListByAccount returns every session row owned by the account.
func (r *SessionRepository) ListByAccount(ctx context.Context, accountID string) ([]*models.Session, error) {
	query := `
		SELECT id, account_id, last_activity, created_at
		FROM sessions WHERE account_id = $1
	`

	rows, err := r.db.Pool.Query(ctx, query, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	sessions := make([]*models.Session, 0)
	for rows.Next() {
		var session models.Session
		if err := rows.Scan(&session.ID, &session.AccountID, &session.LastActivity, &session.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, &session)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return sessions, nil
}

// DeleteByID removes a session row. Deleting an absent row is not an
// error; a superseded session may already be gone.
func (r *SessionRepository) DeleteByID(ctx context.Context, id string) error {
	query := `DELETE FROM sessions WHERE id = $1`

	if _, err := r.db.Pool.Exec(ctx, query, id); err != nil {
		return database.MapPostgresError(err)
	}
	return nil
}

// Touch updates the last-activity timestamp.
func (r *SessionRepository) Touch(ctx context.Context, id string) error {
	query := `UPDATE sessions SET last_activity = now() WHERE id = $1`

	if _, err := r.db.Pool.Exec(ctx, query, id); err != nil {
		return database.MapPostgresError(err)
	}
	return nil
}

// DeleteIdleBefore reaps sessions whose last activity predates the
// cutoff. Used by the background sweeper; this is the session store's
// own GC.
func (r *SessionRepository) DeleteIdleBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `DELETE FROM sessions WHERE last_activity < $1`

	tag, err := r.db.Pool.Exec(ctx, query, cutoff)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}
	return tag.RowsAffected(), nil
}
