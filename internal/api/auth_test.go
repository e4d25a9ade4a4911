package api_test

import (
	"context"
	"net/http"
	"sync"
	"testing"

	"github.com/alexanderramin/examdesk/internal/api"
	"github.com/alexanderramin/examdesk/internal/session"
	"github.com/alexanderramin/examdesk/internal/testutil"
	"github.com/alexanderramin/examdesk/internal/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type harness struct {
	platform *testutil.Platform
	store    *session.MemoryStore
	auth     *api.AuthService
	client   *api.Client
	tr       *transport.AuthTransport
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	p := testutil.NewPlatform(t)
	store := session.NewMemoryStore()
	public := api.New(p.URL, nil)
	h := &harness{platform: p, store: store}
	h.auth = api.NewAuthService(public, nil, store)
	h.tr = transport.New(nil, store, h.auth)
	h.client = api.New(p.URL, &http.Client{Transport: h.tr})
	h.auth.Authed = h.client
	return h
}

func (h *harness) login(t *testing.T) {
	t.Helper()
	_, err := h.auth.Login(context.Background(), testutil.AdminEmail, testutil.AdminPassword)
	require.NoError(t, err)
}

func TestLogin_StoresSessionAndAuthorizes(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	user, err := h.auth.Login(ctx, testutil.AdminEmail, testutil.AdminPassword)
	require.NoError(t, err)
	assert.Equal(t, "Admin", user.Name)

	creds, _ := h.store.Credentials(ctx)
	assert.NotEmpty(t, creds.AccessToken)
	assert.NotEmpty(t, creds.RefreshToken)
	cached, err := h.store.User(ctx)
	require.NoError(t, err)
	assert.Equal(t, testutil.AdminEmail, cached.Email)

	_, err = h.client.ListFaculty(ctx)
	assert.NoError(t, err)
}

func TestLogin_WrongPasswordStoresNothing(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.auth.Login(ctx, testutil.AdminEmail, "wrong")
	var envErr *api.EnvelopeError
	require.ErrorAs(t, err, &envErr)
	assert.Equal(t, "Invalid email or password", api.Message(err))

	creds, _ := h.store.Credentials(ctx)
	assert.True(t, creds.Empty())
	_, err = h.store.User(ctx)
	assert.ErrorIs(t, err, session.ErrNoSession)

	_, err = h.client.ListFaculty(ctx)
	assert.ErrorIs(t, err, transport.ErrSessionExpired, "no refresh token to recover with")
}

func TestExpiredAccessToken_RefreshedTransparently(t *testing.T) {
	h := newHarness(t)
	h.login(t)
	ctx := context.Background()
	before, _ := h.store.Credentials(ctx)

	h.platform.ExpireAccessTokens()
	_, err := h.client.ListBatches(ctx)
	require.NoError(t, err)

	after, _ := h.store.Credentials(ctx)
	assert.NotEqual(t, before.AccessToken, after.AccessToken)
	assert.NotEqual(t, before.RefreshToken, after.RefreshToken)
	assert.EqualValues(t, 1, h.platform.RefreshCalls.Load())
}

func TestExpiredAccessToken_ConcurrentCallsShareOneRefresh(t *testing.T) {
	h := newHarness(t)
	h.login(t)
	h.platform.SeedHierarchy()
	h.platform.ExpireAccessTokens()

	ctx := context.Background()
	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.client.ListBatches(ctx)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
	// Requests that see the 401 after the first cycle has finished may start
	// another, but never one per request.
	assert.LessOrEqual(t, h.platform.RefreshCalls.Load(), int32(8))
	assert.GreaterOrEqual(t, h.platform.RefreshCalls.Load(), int32(1))
}

func TestRevokedRefreshToken_ClearsSession(t *testing.T) {
	h := newHarness(t)
	h.login(t)
	ctx := context.Background()

	h.platform.ExpireAccessTokens()
	h.platform.RevokeRefreshTokens()

	_, err := h.client.ListStudents(ctx)
	assert.ErrorIs(t, err, transport.ErrSessionExpired)

	creds, _ := h.store.Credentials(ctx)
	assert.True(t, creds.Empty())
	_, err = h.store.User(ctx)
	assert.ErrorIs(t, err, session.ErrNoSession)
}

func TestLogout_ClearsSessionEvenWhenServerFails(t *testing.T) {
	h := newHarness(t)
	h.login(t)
	ctx := context.Background()

	h.platform.FailNext(http.MethodPost, "/auth/logout", http.StatusInternalServerError)
	err := h.auth.Logout(ctx)
	var apiErr *api.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusInternalServerError, apiErr.Status)

	creds, _ := h.store.Credentials(ctx)
	assert.True(t, creds.Empty())
}

func TestChangePassword(t *testing.T) {
	h := newHarness(t)
	h.login(t)
	ctx := context.Background()

	_, err := h.auth.ChangePassword(ctx, "nope", "new-pass-123")
	assert.Equal(t, "Current password is incorrect", api.Message(err))

	msg, err := h.auth.ChangePassword(ctx, testutil.AdminPassword, "new-pass-123")
	require.NoError(t, err)
	assert.Equal(t, "Password changed", msg)

	_, err = h.auth.Login(ctx, testutil.AdminEmail, "new-pass-123")
	assert.NoError(t, err)
}
