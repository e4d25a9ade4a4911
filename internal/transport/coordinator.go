package transport

import "sync"

// RefreshState is the coordinator's position in the refresh protocol.
type RefreshState int

const (
	StateIdle RefreshState = iota
	StateRefreshing
)

func (s RefreshState) String() string {
	if s == StateRefreshing {
		return "REFRESHING"
	}
	return "IDLE"
}

// Continuation resumes a request suspended behind an in-flight refresh. It
// receives the new access token, or the error that ended the refresh.
// Continuations run while the coordinator lock is held and must not block.
type Continuation func(token string, err error)

// RefreshCoordinator guarantees that at most one token refresh runs at a
// time. Requests that hit 401 while a refresh is in flight queue a
// continuation instead of starting another one.
type RefreshCoordinator struct {
	mu      sync.Mutex
	state   RefreshState
	waiters []Continuation
}

// NewRefreshCoordinator returns an idle coordinator.
func NewRefreshCoordinator() *RefreshCoordinator {
	return &RefreshCoordinator{}
}

// Join enters the refresh protocol. When idle, it moves to REFRESHING and
// returns true: the caller is the leader and must call Finish. When a
// refresh is already running, fn is queued and Join returns false.
func (c *RefreshCoordinator) Join(fn Continuation) (leader bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateRefreshing {
		c.waiters = append(c.waiters, fn)
		return false
	}
	c.state = StateRefreshing
	return true
}

// Finish settles the in-flight refresh: every queued continuation runs once,
// in arrival order, the queue is cleared, and only then the coordinator
// returns to IDLE.
func (c *RefreshCoordinator) Finish(token string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	waiters := c.waiters
	c.waiters = nil
	for _, fn := range waiters {
		fn(token, err)
	}
	c.state = StateIdle
}

// State returns the current protocol state.
func (c *RefreshCoordinator) State() RefreshState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Pending returns the number of queued continuations.
func (c *RefreshCoordinator) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.waiters)
}

// Refreshing reports whether a refresh cycle is in flight.
func (c *RefreshCoordinator) Refreshing() bool {
	return c.State() == StateRefreshing
}
