package identity_test

import (
	"context"
	"database/sql"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/penstand/go-identity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

type integrationEnv struct {
	auther *identity.Auther
	repo   identity.RepositoryManager
	codes  chan string
}

func setupIntegration(t *testing.T) *integrationEnv {
	t.Helper()

	sqldb, err := sql.Open(sqliteshim.ShimName, ":memory:")
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)
	t.Cleanup(func() { sqldb.Close() })

	db := bun.NewDB(sqldb, sqlitedialect.New())

	schema, err := identity.GetMigrationsFS().
		ReadFile("data/sql/migrations/20250101000000_create_users_table.up.sql")
	require.NoError(t, err)

	for _, stmt := range strings.Split(string(schema), ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		_, err := db.Exec(stmt)
		require.NoError(t, err)
	}

	repo := identity.NewRepositoryManager(db)
	challenges := identity.NewChallengeManager()
	t.Cleanup(challenges.Stop)

	codes := make(chan string, 8)
	auther := identity.NewAuthenticator(repo, challenges, newMockConfig()).
		WithNotifier(identity.NotifierFunc(func(ctx context.Context, id identity.Identity, code string) error {
			codes <- code
			return nil
		}))

	return &integrationEnv{
		auther: auther,
		repo:   repo,
		codes:  codes,
	}
}

// waitForCode receives the asynchronously delivered verification code.
func (e *integrationEnv) waitForCode(t *testing.T) string {
	t.Helper()

	select {
	case code := <-e.codes:
		return code
	case <-time.After(5 * time.Second):
		t.Fatal("verification code was never delivered")
		return ""
	}
}

func TestAccountLifecycle(t *testing.T) {
	env := setupIntegration(t)
	ctx := context.Background()

	const password = "long-enough-password"

	user, err := env.auther.Register(ctx, identity.RegisterAccountMessage{
		Username: "writer",
		Email:    "Writer@Example.com",
		Password: password,
		Role:     identity.RoleAuthor,
	})
	require.NoError(t, err)
	require.NotNil(t, user)

	assert.Equal(t, "writer", user.Username)
	assert.Equal(t, "writer@example.com", user.Email)
	assert.Equal(t, identity.RoleAuthor, user.Role)
	assert.False(t, user.EmailVerified)
	assert.NotEqual(t, uuid.Nil, user.ID)

	code := env.waitForCode(t)
	require.Len(t, code, identity.CodeDigits)

	t.Run("duplicate registration rejected", func(t *testing.T) {
		_, err := env.auther.Register(ctx, identity.RegisterAccountMessage{
			Username: "writer",
			Email:    "writer@example.com",
			Password: password,
		})
		assert.ErrorIs(t, err, identity.ErrDuplicateIdentity)
	})

	t.Run("login before verification", func(t *testing.T) {
		_, err := env.auther.Login(ctx, "writer@example.com", password)
		assert.ErrorIs(t, err, identity.ErrAccountUnverified)
	})

	t.Run("wrong code keeps the challenge", func(t *testing.T) {
		wrong := "000000"
		if wrong == code {
			wrong = "000001"
		}

		_, err := env.auther.VerifyAccount(ctx, "writer@example.com", wrong)
		assert.ErrorIs(t, err, identity.ErrChallengeMismatch)
	})

	t.Run("correct code issues a session", func(t *testing.T) {
		verified, err := env.auther.VerifyAccount(ctx, "writer@example.com", code)
		require.NoError(t, err)
		require.NotNil(t, verified)

		assert.NotEmpty(t, verified.Token)
		require.NotNil(t, verified.Profile)
		assert.Equal(t, "writer", verified.Profile.Username)
		assert.True(t, verified.Profile.Verified)

		claims, err := env.auther.TokenService().Validate(verified.Token)
		require.NoError(t, err)
		assert.Equal(t, user.ID.String(), claims.UserID())
	})

	t.Run("code is single use", func(t *testing.T) {
		_, err := env.auther.VerifyAccount(ctx, "writer@example.com", code)
		assert.ErrorIs(t, err, identity.ErrChallengeNotFound)
	})

	t.Run("resend after verification", func(t *testing.T) {
		err := env.auther.ResendCode(ctx, "writer@example.com")
		assert.ErrorIs(t, err, identity.ErrAlreadyVerified)
	})

	t.Run("login round trip", func(t *testing.T) {
		token, err := env.auther.Login(ctx, "writer@example.com", password)
		require.NoError(t, err)

		session, err := env.auther.SessionFromToken(token)
		require.NoError(t, err)
		assert.Equal(t, user.ID.String(), session.GetUserID())
		assert.Equal(t, identity.RoleAuthor, session.GetRole())

		id, err := env.auther.IdentityFromSession(ctx, session)
		require.NoError(t, err)
		assert.Equal(t, "writer@example.com", id.Email())
		assert.Equal(t, "author", id.Role())
	})

	t.Run("login by username", func(t *testing.T) {
		_, err := env.auther.Login(ctx, "writer", password)
		assert.NoError(t, err)
	})
}

func TestResendSupersedesChallenge(t *testing.T) {
	env := setupIntegration(t)
	ctx := context.Background()

	_, err := env.auther.Register(ctx, identity.RegisterAccountMessage{
		Email:    "resend@example.com",
		Password: "long-enough-password",
	})
	require.NoError(t, err)
	first := env.waitForCode(t)

	require.NoError(t, env.auther.ResendCode(ctx, "resend@example.com"))
	second := env.waitForCode(t)

	if first != second {
		_, err := env.auther.VerifyAccount(ctx, "resend@example.com", first)
		assert.ErrorIs(t, err, identity.ErrChallengeMismatch)
	}

	verified, err := env.auther.VerifyAccount(ctx, "resend@example.com", second)
	require.NoError(t, err)
	assert.NotEmpty(t, verified.Token)
}

func TestResendUnknownAccount(t *testing.T) {
	env := setupIntegration(t)

	err := env.auther.ResendCode(context.Background(), "ghost@example.com")
	assert.ErrorIs(t, err, identity.ErrIdentityNotFound)
}

func TestRegisterRejectsNonSelfAssignableRole(t *testing.T) {
	env := setupIntegration(t)

	_, err := env.auther.Register(context.Background(), identity.RegisterAccountMessage{
		Email:    "boss@example.com",
		Password: "long-enough-password",
		Role:     identity.RoleAdmin,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not self-assignable")
}

// seedVerifiedUser inserts a verified account without the challenge flow.
func seedVerifiedUser(t *testing.T, env *integrationEnv, email string, role identity.Role, password string) *identity.User {
	t.Helper()

	hash, err := identity.HashPassword(password)
	require.NoError(t, err)

	user, err := env.repo.Users().Register(context.Background(), &identity.User{
		Email:         email,
		Role:          role,
		PasswordHash:  hash,
		EmailVerified: true,
	})
	require.NoError(t, err)

	return user
}

func TestChangeRolePersistence(t *testing.T) {
	env := setupIntegration(t)
	ctx := context.Background()

	admin := seedVerifiedUser(t, env, "admin@example.com", identity.RoleAdmin, "admin-password-123")
	target := seedVerifiedUser(t, env, "reader@example.com", identity.RoleReader, "reader-password-12")

	actor := TestIdentity{
		id:    admin.ID.String(),
		email: admin.Email,
		role:  "admin",
	}

	t.Run("admin promotes a reader", func(t *testing.T) {
		require.NoError(t, env.auther.ChangeRole(ctx, actor, target.ID, identity.RoleAuthor))

		reloaded, err := env.repo.Users().GetByIdentifier(ctx, target.ID.String())
		require.NoError(t, err)
		assert.Equal(t, identity.RoleAuthor, reloaded.Role)
	})

	t.Run("unknown target", func(t *testing.T) {
		err := env.auther.ChangeRole(ctx, actor, uuid.New(), identity.RoleAuthor)
		assert.ErrorIs(t, err, identity.ErrIdentityNotFound)
	})

	t.Run("admin cannot change own role", func(t *testing.T) {
		err := env.auther.ChangeRole(ctx, actor, admin.ID, identity.RoleReader)
		assert.ErrorIs(t, err, identity.ErrForbidden)
	})
}

func TestChangePasswordPersistence(t *testing.T) {
	env := setupIntegration(t)
	ctx := context.Background()

	const oldPassword = "original-password-1"
	const newPassword = "rotated-password-22"

	user := seedVerifiedUser(t, env, "rotate@example.com", identity.RoleReader, oldPassword)

	t.Run("wrong current password", func(t *testing.T) {
		err := env.auther.ChangePassword(ctx, user.ID, "not-the-password-00", newPassword)
		assert.ErrorIs(t, err, identity.ErrInvalidCredentials)
	})

	t.Run("rotation takes effect", func(t *testing.T) {
		require.NoError(t, env.auther.ChangePassword(ctx, user.ID, oldPassword, newPassword))

		_, err := env.auther.Login(ctx, "rotate@example.com", oldPassword)
		assert.ErrorIs(t, err, identity.ErrInvalidCredentials)

		token, err := env.auther.Login(ctx, "rotate@example.com", newPassword)
		require.NoError(t, err)
		assert.NotEmpty(t, token)
	})
}

func TestLoginAttemptLockout(t *testing.T) {
	env := setupIntegration(t)
	ctx := context.Background()

	const password = "locked-out-password"
	seedVerifiedUser(t, env, "lockout@example.com", identity.RoleReader, password)

	for i := 0; i <= identity.MaxLoginAttempts; i++ {
		_, err := env.auther.Login(ctx, "lockout@example.com", "wrong-password-123")
		require.ErrorIs(t, err, identity.ErrInvalidCredentials)
	}

	// the counter is past the threshold; even the right password cools off
	_, err := env.auther.Login(ctx, "lockout@example.com", password)
	assert.ErrorIs(t, err, identity.ErrTooManyLoginAttempts)
}
