// Package transport attaches the session's bearer token to outbound
// requests and recovers from expired access tokens with a single-flight
// refresh.
package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/alexanderramin/examdesk/internal/session"
)

var (
	// ErrSessionExpired means the refresh cycle failed and the stored
	// session was wiped. The user has to log in again.
	ErrSessionExpired = errors.New("session expired, please log in again")

	errNoRefreshToken = errors.New("no refresh token stored")
)

// Refresher exchanges a refresh token for a new token pair.
type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (session.Credentials, error)
}

// RefresherFunc adapts a function to Refresher.
type RefresherFunc func(ctx context.Context, refreshToken string) (session.Credentials, error)

func (f RefresherFunc) Refresh(ctx context.Context, refreshToken string) (session.Credentials, error) {
	return f(ctx, refreshToken)
}

// AuthTransport is an http.RoundTripper that injects
// "Authorization: Bearer <access>" and transparently refreshes once on 401.
//
// The refresh endpoint must not be reached through this transport.
type AuthTransport struct {
	Base        http.RoundTripper
	Store       session.Store
	Refresher   Refresher
	Coordinator *RefreshCoordinator
	Observer    Observer

	// OnSessionExpired runs after an irrecoverable refresh failure, once the
	// store has been cleared. It replaces the browser's redirect to login.
	OnSessionExpired func()
}

// New builds an AuthTransport with its own coordinator.
func New(base http.RoundTripper, store session.Store, refresher Refresher) *AuthTransport {
	return &AuthTransport{
		Base:        base,
		Store:       store,
		Refresher:   refresher,
		Coordinator: NewRefreshCoordinator(),
		Observer:    NoopObserver{},
	}
}

type bodyFunc func() (io.ReadCloser, error)

type refreshResult struct {
	token string
	err   error
}

func (t *AuthTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()

	body, err := replayableBody(req)
	if err != nil {
		return nil, err
	}

	creds, err := t.Store.Credentials(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading credentials: %w", err)
	}

	resp, err := t.send(req, body, creds.AccessToken)
	if err != nil || resp.StatusCode != http.StatusUnauthorized {
		return resp, err
	}
	drainAndClose(resp)

	// A refresh may have settled while this request was in flight. Its token
	// is already stored, so resend with it instead of starting another cycle.
	current, err := t.Store.Credentials(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading credentials: %w", err)
	}
	switch {
	case current.AccessToken != "" && current.AccessToken != creds.AccessToken:
		return t.send(req, body, current.AccessToken)
	case creds.AccessToken != "" && current.Empty():
		return nil, fmt.Errorf("%w: session cleared while the request was in flight", ErrSessionExpired)
	}

	token, err := t.awaitToken(ctx)
	if err != nil {
		return nil, err
	}

	// The resend is marked retried by construction: a second 401 is returned
	// to the caller as-is.
	return t.send(req, body, token)
}

// awaitToken either leads a refresh or waits behind the one in flight.
func (t *AuthTransport) awaitToken(ctx context.Context) (string, error) {
	result := make(chan refreshResult, 1)
	leader := t.Coordinator.Join(func(token string, err error) {
		result <- refreshResult{token: token, err: err}
	})
	if leader {
		return t.refresh(ctx)
	}

	select {
	case r := <-result:
		return r.token, r.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// refresh runs one refresh cycle as the leader and settles the coordinator.
// Cancellation of the leading request does not abort the cycle; other
// requests are waiting on it.
func (t *AuthTransport) refresh(ctx context.Context) (string, error) {
	ctx = context.WithoutCancel(ctx)
	start := time.Now()

	outcome := RefreshOK
	fresh, err := t.exchange(ctx)
	if errors.Is(err, errNoRefreshToken) {
		outcome = RefreshNoSession
	} else if err != nil {
		outcome = RefreshFailed
	}

	event := RefreshEvent{Outcome: outcome, Waiters: t.Coordinator.Pending()}

	if err != nil {
		expired := fmt.Errorf("%w: %v", ErrSessionExpired, err)
		if clearErr := t.Store.Clear(ctx); clearErr != nil {
			expired = fmt.Errorf("%w (clearing session: %v)", expired, clearErr)
		}
		t.Coordinator.Finish("", expired)

		event.Duration, event.Err = time.Since(start), err
		t.observer().OnRefresh(event)
		if t.OnSessionExpired != nil {
			t.OnSessionExpired()
		}
		return "", expired
	}

	t.Coordinator.Finish(fresh.AccessToken, nil)
	event.Duration = time.Since(start)
	t.observer().OnRefresh(event)
	return fresh.AccessToken, nil
}

// exchange trades the stored refresh token for a new pair and persists it.
func (t *AuthTransport) exchange(ctx context.Context) (session.Credentials, error) {
	creds, err := t.Store.Credentials(ctx)
	if err != nil {
		return session.Credentials{}, fmt.Errorf("reading credentials: %w", err)
	}
	if creds.RefreshToken == "" {
		return session.Credentials{}, errNoRefreshToken
	}

	fresh, err := t.Refresher.Refresh(ctx, creds.RefreshToken)
	if err != nil {
		return session.Credentials{}, fmt.Errorf("refreshing token: %w", err)
	}
	if fresh.AccessToken == "" {
		return session.Credentials{}, errors.New("refresh returned no access token")
	}
	if fresh.RefreshToken == "" {
		fresh.RefreshToken = creds.RefreshToken
	}
	if err := t.Store.SaveCredentials(ctx, fresh); err != nil {
		return session.Credentials{}, fmt.Errorf("saving refreshed credentials: %w", err)
	}
	return fresh, nil
}

func (t *AuthTransport) send(req *http.Request, body bodyFunc, token string) (*http.Response, error) {
	out := req.Clone(req.Context())
	if body != nil {
		rc, err := body()
		if err != nil {
			return nil, fmt.Errorf("rewinding request body: %w", err)
		}
		out.Body = rc
	}
	if token != "" {
		out.Header.Set("Authorization", "Bearer "+token)
	} else {
		out.Header.Del("Authorization")
	}
	return t.base().RoundTrip(out)
}

func (t *AuthTransport) base() http.RoundTripper {
	if t.Base != nil {
		return t.Base
	}
	return http.DefaultTransport
}

func (t *AuthTransport) observer() Observer {
	if t.Observer != nil {
		return t.Observer
	}
	return NoopObserver{}
}

// replayableBody returns a function producing a fresh copy of the request
// body for every attempt. The original body is consumed and closed.
func replayableBody(req *http.Request) (bodyFunc, error) {
	if req.Body == nil || req.Body == http.NoBody {
		return nil, nil
	}
	if req.GetBody != nil {
		req.Body.Close()
		return req.GetBody, nil
	}

	data, err := io.ReadAll(req.Body)
	req.Body.Close()
	if err != nil {
		return nil, fmt.Errorf("buffering request body: %w", err)
	}
	return func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(data)), nil
	}, nil
}

func drainAndClose(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	resp.Body.Close()
}
