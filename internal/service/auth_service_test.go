package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/forma-labs/corsi-admin-api/internal/models"
	appErrors "github.com/forma-labs/corsi-admin-api/pkg/errors"
)

type mockAuthUserRepo struct {
	users         map[string]*models.User
	refreshTokens map[string]*models.RefreshToken
	auditLogs     []*models.AuditLog
	revoked       []string
}

func newMockAuthUserRepo() *mockAuthUserRepo {
	return &mockAuthUserRepo{
		users:         make(map[string]*models.User),
		refreshTokens: make(map[string]*models.RefreshToken),
	}
}

func (m *mockAuthUserRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuthUserRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	if u, ok := m.users[id]; ok {
		return u, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuthUserRepo) UpdateLastLogin(ctx context.Context, id string, ts time.Time) error {
	return nil
}

func (m *mockAuthUserRepo) CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	m.refreshTokens[token.Token] = token
	return nil
}

func (m *mockAuthUserRepo) FindRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	if t, ok := m.refreshTokens[token]; ok {
		return t, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuthUserRepo) RevokeRefreshToken(ctx context.Context, id string, revokedAt time.Time) error {
	m.revoked = append(m.revoked, id)
	for _, t := range m.refreshTokens {
		if t.ID == id {
			t.Revoked = true
		}
	}
	return nil
}

func (m *mockAuthUserRepo) RevokeUserRefreshTokens(ctx context.Context, userID string) error {
	return nil
}

func (m *mockAuthUserRepo) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	m.auditLogs = append(m.auditLogs, log)
	return nil
}

func testAuthService(repo *mockAuthUserRepo) *AuthService {
	return NewAuthService(repo, nil, nil, AuthConfig{
		AccessTokenSecret:  "test-secret",
		AccessTokenExpiry:  15 * time.Minute,
		RefreshTokenExpiry: 24 * time.Hour,
		Issuer:             "corsi-admin-api",
		Audience:           []string{"corsi-admin"},
	})
}

func seedUser(repo *mockAuthUserRepo, password string, active bool) *models.User {
	hash, _ := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	user := &models.User{
		ID:           "user-1",
		Email:        "admin@example.com",
		PasswordHash: string(hash),
		FullName:     "Admin",
		Role:         models.RoleAdmin,
		Active:       active,
	}
	repo.users[user.ID] = user
	return user
}

func TestLoginSuccess(t *testing.T) {
	repo := newMockAuthUserRepo()
	seedUser(repo, "password123", true)
	svc := testAuthService(repo)

	resp, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "admin@example.com",
		Password: "password123",
	})
	require.NoError(t, err)

	assert.NotEmpty(t, resp.AccessToken)
	assert.NotEmpty(t, resp.RefreshToken)
	assert.Equal(t, "user-1", resp.User.ID)
	assert.Contains(t, repo.refreshTokens, resp.RefreshToken)
	require.Len(t, repo.auditLogs, 1)
	assert.Equal(t, models.AuditActionLogin, repo.auditLogs[0].Action)

	claims, err := svc.ValidateToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, models.RoleAdmin, claims.Role)
}

func TestLoginWrongPassword(t *testing.T) {
	repo := newMockAuthUserRepo()
	seedUser(repo, "password123", true)
	svc := testAuthService(repo)

	_, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "admin@example.com",
		Password: "nope",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)
}

func TestLoginUnknownEmailSameError(t *testing.T) {
	svc := testAuthService(newMockAuthUserRepo())

	_, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "ghost@example.com",
		Password: "whatever",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)
}

func TestLoginInactiveAccount(t *testing.T) {
	repo := newMockAuthUserRepo()
	seedUser(repo, "password123", false)
	svc := testAuthService(repo)

	_, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "admin@example.com",
		Password: "password123",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInactiveAccount.Code, appErrors.FromError(err).Code)
}

func TestRefreshTokenRotates(t *testing.T) {
	repo := newMockAuthUserRepo()
	seedUser(repo, "password123", true)
	svc := testAuthService(repo)

	login, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "admin@example.com",
		Password: "password123",
	})
	require.NoError(t, err)

	refreshed, err := svc.RefreshToken(context.Background(), models.RefreshTokenRequest{
		RefreshToken: login.RefreshToken,
	})
	require.NoError(t, err)
	assert.NotEqual(t, login.RefreshToken, refreshed.RefreshToken)
	assert.True(t, repo.refreshTokens[login.RefreshToken].Revoked, "used refresh token must be revoked")
}

func TestRefreshTokenExpiredRejected(t *testing.T) {
	repo := newMockAuthUserRepo()
	seedUser(repo, "password123", true)
	repo.refreshTokens["stale"] = &models.RefreshToken{
		ID:        "token-1",
		UserID:    "user-1",
		Token:     "stale",
		ExpiresAt: time.Now().UTC().Add(-time.Hour),
	}
	svc := testAuthService(repo)

	_, err := svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: "stale"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}

func TestLogoutRevokesToken(t *testing.T) {
	repo := newMockAuthUserRepo()
	seedUser(repo, "password123", true)
	svc := testAuthService(repo)

	login, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "admin@example.com",
		Password: "password123",
	})
	require.NoError(t, err)

	err = svc.Logout(context.Background(), login.RefreshToken, "user-1", models.LoginRequest{})
	require.NoError(t, err)
	assert.True(t, repo.refreshTokens[login.RefreshToken].Revoked)
}

func TestLogoutForeignTokenForbidden(t *testing.T) {
	repo := newMockAuthUserRepo()
	seedUser(repo, "password123", true)
	repo.refreshTokens["other"] = &models.RefreshToken{ID: "token-2", UserID: "user-2", Token: "other", ExpiresAt: time.Now().Add(time.Hour)}
	svc := testAuthService(repo)

	err := svc.Logout(context.Background(), "other", "user-1", models.LoginRequest{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestValidateTokenRejectsTampered(t *testing.T) {
	repo := newMockAuthUserRepo()
	seedUser(repo, "password123", true)
	svc := testAuthService(repo)

	login, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "admin@example.com",
		Password: "password123",
	})
	require.NoError(t, err)

	other := NewAuthService(repo, nil, nil, AuthConfig{AccessTokenSecret: "different", AccessTokenExpiry: time.Minute})
	_, err = other.ValidateToken(login.AccessToken)
	require.Error(t, err)
}

func TestRecordImportAudit(t *testing.T) {
	repo := newMockAuthUserRepo()
	svc := testAuthService(repo)

	svc.RecordImportAudit(context.Background(), "user-1", []byte(`{"imported":3}`), "127.0.0.1", "test-agent")
	require.Len(t, repo.auditLogs, 1)
	assert.Equal(t, models.AuditActionParticipantImport, repo.auditLogs[0].Action)
	assert.Equal(t, "participants", repo.auditLogs[0].Resource)
}
