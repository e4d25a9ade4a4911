// Package cascade keeps the dependent option lists of the audience picker
// (batch → course → branch → section) and the faculty list consistent with
// the current selections.
package cascade

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Level is one dropdown of the chain.
type Level int

const (
	LevelBatch Level = iota
	LevelCourse
	LevelBranch
	LevelSection
	// LevelFaculty has no parent. It is only used by proctored exams.
	LevelFaculty
)

const numLevels = int(LevelFaculty) + 1

var levelNames = [numLevels]string{"batch", "course", "branch", "section", "faculty"}

func (l Level) String() string {
	if l < 0 || int(l) >= numLevels {
		return fmt.Sprintf("level(%d)", int(l))
	}
	return levelNames[l]
}

// ErrStale is returned by a Fetch whose result was discarded because the
// parent selection changed while it was in flight.
var ErrStale = errors.New("cascade: parent selection changed")

// Option is one entry of a dropdown.
type Option struct {
	ID    string
	Label string
}

// Loader returns the options of a level for the given parent ID. Root
// levels are called with an empty parent.
type Loader func(ctx context.Context, parentID string) ([]Option, error)

// Loaders supplies a Loader per level.
type Loaders struct {
	Batches  Loader
	Courses  Loader
	Branches Loader
	Sections Loader
	Faculty  Loader
}

func (l Loaders) of(level Level) Loader {
	switch level {
	case LevelBatch:
		return l.Batches
	case LevelCourse:
		return l.Courses
	case LevelBranch:
		return l.Branches
	case LevelSection:
		return l.Sections
	case LevelFaculty:
		return l.Faculty
	}
	return nil
}

// LevelState is what a dropdown renders. Failed means the last fetch
// errored and the list is empty because of it.
type LevelState struct {
	Selected string
	Options  []Option
	Loading  bool
	Failed   bool
}

// Fetch loads one level's options and applies them unless they went stale.
type Fetch func(ctx context.Context) error

func noFetch(context.Context) error { return nil }

// Chain holds the state of every level. It is safe for concurrent use.
type Chain struct {
	mu             sync.Mutex
	loaders        Loaders
	levels         [numLevels]LevelState
	gen            [numLevels]uint64
	facultyEnabled bool
	logger         *slog.Logger
}

// New creates an empty chain. logger may be nil.
func New(loaders Loaders, logger *slog.Logger) *Chain {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Chain{loaders: loaders, logger: logger}
}

// Select sets level's value. Every descendant's selection and options are
// cleared before Select returns; the child is marked loading and the
// returned Fetch loads its options for value. Selecting the section or the
// faculty level, or clearing a value, returns a Fetch that does nothing.
// Selecting faculty while the faculty list is disabled is ignored.
func (c *Chain) Select(level Level, value string) Fetch {
	c.mu.Lock()
	defer c.mu.Unlock()

	if level == LevelFaculty {
		if !c.facultyEnabled {
			c.logger.Debug("cascade_select_ignored", "level", "faculty", "reason", "disabled")
			return noFetch
		}
		c.levels[level].Selected = value
		return noFetch
	}
	c.levels[level].Selected = value
	for d := level + 1; d <= LevelSection; d++ {
		c.levels[d] = LevelState{}
		c.gen[d]++
	}
	if level == LevelSection || value == "" {
		return noFetch
	}
	return c.fetchLocked(level+1, value)
}

// SelectAsync is Select with the fetch run on its own goroutine. done, if
// not nil, is called with the fetch result.
func (c *Chain) SelectAsync(ctx context.Context, level Level, value string, done func(error)) {
	fetch := c.Select(level, value)
	go func() {
		err := fetch(ctx)
		if done != nil {
			done(err)
		}
	}()
}

// SetFacultyEnabled switches the faculty list on or off. Enabling returns
// the Fetch that loads it; disabling clears it.
func (c *Chain) SetFacultyEnabled(enabled bool) Fetch {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.facultyEnabled = enabled
	if !enabled {
		c.levels[LevelFaculty] = LevelState{}
		c.gen[LevelFaculty]++
		return noFetch
	}
	return c.fetchLocked(LevelFaculty, "")
}

// FacultyEnabled reports whether the faculty list is in use.
func (c *Chain) FacultyEnabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.facultyEnabled
}

// LoadRoots loads the batch list and, when enabled, the faculty list
// concurrently. It returns the first error; failed levels stay empty.
func (c *Chain) LoadRoots(ctx context.Context) error {
	c.mu.Lock()
	fetches := []Fetch{c.fetchLocked(LevelBatch, "")}
	if c.facultyEnabled {
		fetches = append(fetches, c.fetchLocked(LevelFaculty, ""))
	}
	c.mu.Unlock()

	g, ctx := errgroup.WithContext(ctx)
	for _, fetch := range fetches {
		g.Go(func() error { return fetch(ctx) })
	}
	return g.Wait()
}

// fetchLocked marks level as loading and returns the Fetch for parentID.
// The result is applied only if the generation of level has not moved on.
func (c *Chain) fetchLocked(level Level, parentID string) Fetch {
	c.gen[level]++
	gen := c.gen[level]
	c.levels[level].Options = nil
	c.levels[level].Loading = true
	c.levels[level].Failed = false

	load := c.loaders.of(level)
	return func(ctx context.Context) error {
		var opts []Option
		err := fmt.Errorf("no loader for %s", level)
		if load != nil {
			opts, err = load(ctx, parentID)
		}

		c.mu.Lock()
		defer c.mu.Unlock()
		if c.gen[level] != gen {
			return ErrStale
		}
		st := &c.levels[level]
		st.Loading = false
		if err != nil {
			st.Options = nil
			st.Failed = true
			c.logger.Warn("options_fetch_failed", "level", level.String(), "parent", parentID, "error", err.Error())
			return fmt.Errorf("loading %s options: %w", level, err)
		}
		st.Options = opts
		c.logger.Debug("options_loaded", "level", level.String(), "parent", parentID, "count", len(opts))
		return nil
	}
}

// State returns a copy of one level.
func (c *Chain) State(level Level) LevelState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return cloneState(c.levels[level])
}

// Snapshot returns a copy of every level.
func (c *Chain) Snapshot() map[Level]LevelState {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[Level]LevelState, numLevels)
	for i, st := range c.levels {
		out[Level(i)] = cloneState(st)
	}
	return out
}

// Selection returns the selected IDs of the four audience levels.
func (c *Chain) Selection() (batch, course, branch, section string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.levels[LevelBatch].Selected, c.levels[LevelCourse].Selected,
		c.levels[LevelBranch].Selected, c.levels[LevelSection].Selected
}

func cloneState(st LevelState) LevelState {
	st.Options = slices.Clone(st.Options)
	return st
}
