package services_test

import (
	"context"
	"errors"
	"net/url"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/carepath-academy/carepath/app/models"
	"github.com/carepath-academy/carepath/app/services"
	"github.com/carepath-academy/carepath/pkg/auth"
	"github.com/carepath-academy/carepath/pkg/cache"
	"github.com/carepath-academy/carepath/pkg/oauth"
	"github.com/carepath-academy/carepath/pkg/testkit"
)

type fakeGoogle struct {
	user *oauth.GoogleUser
	err  error
}

func (g *fakeGoogle) Configured() bool { return true }

func (g *fakeGoogle) AuthCodeURL(state string) string {
	return "https://accounts.test/auth?state=" + url.QueryEscape(state)
}

func (g *fakeGoogle) Exchange(context.Context, string) (*oauth.GoogleUser, error) {
	return g.user, g.err
}

func TestRegisterAndLogin(t *testing.T) {
	db := testkit.NewDB(t)
	ctx := context.Background()
	svc := services.NewAuthService(db, cache.NewDBStore(db), nil)

	res, err := svc.Register(ctx, services.RegisterInput{Name: "Jo", Email: "Jo@Example.com", Password: "longenough"})
	require.NoError(t, err)
	assert.Equal(t, "jo@example.com", res.User.Email)
	assert.Equal(t, models.RoleUser, res.User.Role)

	claims, err := auth.ValidateToken(res.Token)
	require.NoError(t, err)
	assert.Equal(t, res.User.ID, claims.UserID)

	_, err = svc.Register(ctx, services.RegisterInput{Name: "Jo", Email: "jo@example.com", Password: "longenough"})
	assert.ErrorIs(t, err, services.ErrConflict)

	_, err = svc.Login(ctx, services.LoginInput{Email: "jo@example.com", Password: "wrong-password"})
	assert.ErrorIs(t, err, services.ErrUnauthorized)
	_, err = svc.Login(ctx, services.LoginInput{Email: "nobody@example.com", Password: "longenough"})
	assert.ErrorIs(t, err, services.ErrUnauthorized)

	ok, err := svc.Login(ctx, services.LoginInput{Email: "JO@example.com", Password: "longenough"})
	require.NoError(t, err)
	assert.Equal(t, res.User.ID, ok.User.ID)
}

func TestConcurrentRegisterKeepsEmailUnique(t *testing.T) {
	db := testkit.NewDB(t)
	svc := services.NewAuthService(db, cache.NewDBStore(db), nil)

	const n = 8
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = svc.Register(context.Background(), services.RegisterInput{Name: "Jo", Email: "jo@example.com", Password: "longenough"})
		}()
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		assert.ErrorIs(t, err, services.ErrConflict)
	}
	assert.Equal(t, 1, ok)

	var live int64
	require.NoError(t, db.Model(&models.User{}).Where("email = ? AND is_deleted = ?", "jo@example.com", false).Count(&live).Error)
	assert.EqualValues(t, 1, live)
}

func TestGoogleSignInReusesLiveAccount(t *testing.T) {
	db := testkit.NewDB(t)
	ctx := context.Background()
	existing := seedUser(t, db, "ana@example.com", models.RoleUser)

	// A second live row with the same email must be refused by the schema.
	err := db.Create(&models.User{Name: "Dup", Email: "ana@example.com", Provider: models.ProviderGoogle, Role: models.RoleUser}).Error
	require.ErrorIs(t, err, gorm.ErrDuplicatedKey)

	svc := services.NewAuthService(db, cache.NewDBStore(db), &fakeGoogle{user: &oauth.GoogleUser{Email: "ana@example.com", EmailVerified: true}})
	authURL, err := svc.GoogleAuthURL(ctx)
	require.NoError(t, err)
	u, err := url.Parse(authURL)
	require.NoError(t, err)

	res, err := svc.GoogleCallback(ctx, u.Query().Get("state"), "code")
	require.NoError(t, err)
	assert.Equal(t, existing.ID, res.User.ID)
}

func TestDeletedUsersCannotAuthenticate(t *testing.T) {
	db := testkit.NewDB(t)
	ctx := context.Background()
	svc := services.NewAuthService(db, cache.NewDBStore(db), nil)
	u := seedUser(t, db, "gone@example.com", models.RoleUser)
	require.NoError(t, db.Model(&u).Update("is_deleted", true).Error)

	_, err := svc.Login(ctx, services.LoginInput{Email: u.Email, Password: "password123"})
	assert.ErrorIs(t, err, services.ErrUnauthorized)
	assert.ErrorIs(t, svc.EnsureActive(ctx, u.ID), services.ErrUnauthorized)
	_, err = svc.Me(ctx, u.ID)
	assert.ErrorIs(t, err, services.ErrNotFound)

	// The address is free again once the old account is deleted.
	_, err = svc.Register(ctx, services.RegisterInput{Name: "New", Email: u.Email, Password: "longenough"})
	assert.NoError(t, err)
}

func TestGoogleFlow(t *testing.T) {
	db := testkit.NewDB(t)
	ctx := context.Background()
	google := &fakeGoogle{user: &oauth.GoogleUser{Subject: "1", Email: "g@example.com", EmailVerified: true, Name: "Gee"}}
	svc := services.NewAuthService(db, cache.NewDBStore(db), google)

	redirect, err := svc.GoogleAuthURL(ctx)
	require.NoError(t, err)
	u, err := url.Parse(redirect)
	require.NoError(t, err)
	state := u.Query().Get("state")
	require.NotEmpty(t, state)

	_, err = svc.GoogleCallback(ctx, "forged", "code")
	assert.ErrorIs(t, err, services.ErrInvalidArgument)

	res, err := svc.GoogleCallback(ctx, state, "code")
	require.NoError(t, err)
	assert.Equal(t, models.ProviderGoogle, res.User.Provider)
	assert.Equal(t, "Gee", res.User.Name)

	_, err = svc.GoogleCallback(ctx, state, "code")
	assert.ErrorIs(t, err, services.ErrInvalidArgument, "state is single use")

	// A second sign-in reuses the account.
	redirect, err = svc.GoogleAuthURL(ctx)
	require.NoError(t, err)
	u, _ = url.Parse(redirect)
	again, err := svc.GoogleCallback(ctx, u.Query().Get("state"), "code")
	require.NoError(t, err)
	assert.Equal(t, res.User.ID, again.User.ID)

	// Password login is refused for OAuth-only accounts.
	_, err = svc.Login(ctx, services.LoginInput{Email: "g@example.com", Password: "anything"})
	assert.ErrorIs(t, err, services.ErrUnauthorized)
}

func TestGoogleExchangeFailure(t *testing.T) {
	db := testkit.NewDB(t)
	ctx := context.Background()
	svc := services.NewAuthService(db, cache.NewDBStore(db), &fakeGoogle{err: errors.New("bad code")})

	redirect, err := svc.GoogleAuthURL(ctx)
	require.NoError(t, err)
	u, _ := url.Parse(redirect)
	_, err = svc.GoogleCallback(ctx, u.Query().Get("state"), "code")
	assert.ErrorIs(t, err, services.ErrUnauthorized)
}

func TestGoogleNotConfigured(t *testing.T) {
	db := testkit.NewDB(t)
	svc := services.NewAuthService(db, cache.NewDBStore(db), nil)
	_, err := svc.GoogleAuthURL(context.Background())
	assert.ErrorIs(t, err, services.ErrInvalidState)
}
