package repositories

import (
	"context"
	"time"

	"github.com/daylinehq/dayline/internal/database"
	"github.com/daylinehq/dayline/internal/models"
)

type AccountRepository struct {
	db *database.DB
}

func NewAccountRepository(db *database.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

const accountSelect = `
	SELECT a.id, a.email, a.username, a.password_hash, a.password_changed_at, a.created_at, a.updated_at,
	       COALESCE(array_agg(l.provider) FILTER (WHERE l.provider IS NOT NULL), '{}') AS providers
	FROM accounts a
	LEFT JOIN account_social_links l ON l.account_id = a.id
`

// rowScanner covers both pgx.Row and pgx.Rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAccountRow(scanner rowScanner) (*models.Account, error) {
	var account models.Account
	var username, passwordHash *string
	var passwordChangedAt *time.Time

	err := scanner.Scan(
		&account.ID, &account.Email, &username, &passwordHash,
		&passwordChangedAt, &account.CreatedAt, &account.UpdatedAt,
		&account.SocialProviders,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	if username != nil {
		account.Username = *username
	}
	if passwordHash != nil {
		account.PasswordHash = *passwordHash
	}
	account.PasswordChangedAt = passwordChangedAt

	return &account, nil
}

func (r *AccountRepository) GetByID(ctx context.Context, id string) (*models.Account, error) {
	query := accountSelect + `WHERE a.id = $1 GROUP BY a.id`
	return scanAccountRow(r.db.Pool.QueryRow(ctx, query, id))
}

func (r *AccountRepository) GetByEmail(ctx context.Context, email string) (*models.Account, error) {
	query := accountSelect + `WHERE a.email = $1 GROUP BY a.id`
	return scanAccountRow(r.db.Pool.QueryRow(ctx, query, email))
}

// GetByLogin resolves an account by either login handle: the email or
// the secondary username.
func (r *AccountRepository) GetByLogin(ctx context.Context, login string) (*models.Account, error) {
	query := accountSelect + `WHERE a.email = $1 OR a.username = $1 GROUP BY a.id`
	return scanAccountRow(r.db.Pool.QueryRow(ctx, query, login))
}

// GetBySocialIdentity resolves an account by a linked provider subject.
func (r *AccountRepository) GetBySocialIdentity(ctx context.Context, provider, subject string) (*models.Account, error) {
	query := accountSelect + `
		WHERE a.id = (SELECT account_id FROM account_social_links WHERE provider = $1 AND subject = $2)
		GROUP BY a.id`
	return scanAccountRow(r.db.Pool.QueryRow(ctx, query, provider, subject))
}

func (r *AccountRepository) Create(ctx context.Context, account *models.Account) (*models.Account, error) {
	query := `
		INSERT INTO accounts (email, username, password_hash, password_changed_at)
		VALUES ($1, NULLIF($2, ''), NULLIF($3, ''), $4)
		RETURNING id, created_at, updated_at
	`

	err := r.db.Pool.QueryRow(ctx, query,
		account.Email, account.Username, account.PasswordHash, account.PasswordChangedAt,
	).Scan(&account.ID, &account.CreatedAt, &account.UpdatedAt)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return account, nil
}

// LinkSocial attaches an external provider identity to an account.
func (r *AccountRepository) LinkSocial(ctx context.Context, link *models.SocialLink) error {
	query := `
		INSERT INTO account_social_links (provider, subject, account_id)
		VALUES ($1, $2, $3)
	`

	if _, err := r.db.Pool.Exec(ctx, query, link.Provider, link.Subject, link.AccountID); err != nil {
		return database.MapPostgresError(err)
	}
	return nil
}

// UpdatePasswordHash replaces the stored hash and stamps the change time.
func (r *AccountRepository) UpdatePasswordHash(ctx context.Context, id, passwordHash string) error {
	query := `
		UPDATE accounts
		SET password_hash = $2, password_changed_at = now(), updated_at = now()
		WHERE id = $1
	`

	tag, err := r.db.Pool.Exec(ctx, query, id, passwordHash)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}
