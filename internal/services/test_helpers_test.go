package services

import (
	"context"
	"sync"
	"time"

	"github.com/daylinehq/dayline/internal/models"
)

// mockAccountStore implements SocialAccountResolver and
// PasswordAccountStore with overridable functions.
type mockAccountStore struct {
	GetByLoginFunc          func(ctx context.Context, login string) (*models.Account, error)
	GetByEmailFunc          func(ctx context.Context, email string) (*models.Account, error)
	GetBySocialIdentityFunc func(ctx context.Context, provider, subject string) (*models.Account, error)
	UpdatePasswordHashFunc  func(ctx context.Context, id, passwordHash string) error
}

func (m *mockAccountStore) GetByLogin(ctx context.Context, login string) (*models.Account, error) {
	if m.GetByLoginFunc != nil {
		return m.GetByLoginFunc(ctx, login)
	}
	return nil, models.ErrNotFound
}

func (m *mockAccountStore) GetByEmail(ctx context.Context, email string) (*models.Account, error) {
	if m.GetByEmailFunc != nil {
		return m.GetByEmailFunc(ctx, email)
	}
	return nil, models.ErrNotFound
}

func (m *mockAccountStore) GetBySocialIdentity(ctx context.Context, provider, subject string) (*models.Account, error) {
	if m.GetBySocialIdentityFunc != nil {
		return m.GetBySocialIdentityFunc(ctx, provider, subject)
	}
	return nil, models.ErrNotFound
}

func (m *mockAccountStore) UpdatePasswordHash(ctx context.Context, id, passwordHash string) error {
	if m.UpdatePasswordHashFunc != nil {
		return m.UpdatePasswordHashFunc(ctx, id, passwordHash)
	}
	return nil
}

// mockSessionStore keeps session rows in memory.
type mockSessionStore struct {
	mu       sync.Mutex
	sessions map[string]*models.Session
	deleted  []string
}

func newMockSessionStore(seed ...*models.Session) *mockSessionStore {
	store := &mockSessionStore{sessions: make(map[string]*models.Session)}
	for _, session := range seed {
		store.sessions[session.ID] = session
	}
	return store
}

func (m *mockSessionStore) Create(ctx context.Context, session *models.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[session.ID] = session
	return nil
}

func (m *mockSessionStore) GetByID(ctx context.Context, id string) (*models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	session, ok := m.sessions[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return session, nil
}

func (m *mockSessionStore) ListByAccount(ctx context.Context, accountID string) ([]*models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]*models.Session, 0)
	for _, session := range m.sessions {
		if session.AccountID == accountID {
			result = append(result, session)
		}
	}
	return result, nil
}

func (m *mockSessionStore) DeleteByID(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	m.deleted = append(m.deleted, id)
	return nil
}

// mockEmailService signals each dispatched message so tests can wait for
// the asynchronous send.
type mockEmailService struct {
	sent chan sentEmail
}

type sentEmail struct {
	To   string
	Code string
}

func newMockEmailService() *mockEmailService {
	return &mockEmailService{sent: make(chan sentEmail, 4)}
}

func (m *mockEmailService) SendUnlockCode(ctx context.Context, email, code string, validFor time.Duration) error {
	m.sent <- sentEmail{To: email, Code: code}
	return nil
}

func (m *mockEmailService) SendPasswordResetCode(ctx context.Context, email, code string) error {
	m.sent <- sentEmail{To: email, Code: code}
	return nil
}

func (m *mockEmailService) waitForSend(timeout time.Duration) (sentEmail, bool) {
	select {
	case email := <-m.sent:
		return email, true
	case <-time.After(timeout):
		return sentEmail{}, false
	}
}
