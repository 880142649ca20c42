package explorer

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/yanqian/chargemap/internal/domain/site"
	apperrors "github.com/yanqian/chargemap/pkg/errors"
)

// Phase is the coarse state of the detail panel.
type Phase string

const (
	PhaseIdle    Phase = "idle"
	PhaseLoading Phase = "loading"
	PhaseLoaded  Phase = "loaded"
	PhaseFailed  Phase = "failed"
)

// State is one snapshot of the selection state machine. Token identifies the request
// that produced it; it only grows.
type State struct {
	Phase  Phase
	SiteID string
	Detail *site.SiteDetail
	Err    error
	Token  uint64
}

// DetailLoader fetches a single site's detail.
type DetailLoader interface {
	LoadSiteDetail(ctx context.Context, citySlug, siteID string) (site.SiteDetail, error)
}

// Coordinator tracks which site is selected and makes sure only the most recent
// detail request can change what is visible.
type Coordinator struct {
	loader   DetailLoader
	citySlug string
	logger   *slog.Logger

	mu         sync.Mutex
	seq        uint64
	state      State
	lastLoaded *site.SiteDetail
	cancel     context.CancelFunc
	changed    chan struct{}
	closed     bool

	inflight sync.WaitGroup
}

// NewCoordinator returns a coordinator in the Idle state.
func NewCoordinator(loader DetailLoader, citySlug string, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		loader:   loader,
		citySlug: citySlug,
		logger:   logger.With("component", "explorer.selection", "city", citySlug),
		state:    State{Phase: PhaseIdle},
		changed:  make(chan struct{}),
	}
}

// Select moves to Loading(siteID) and starts fetching its detail in the background.
// Any previous in-flight request is cancelled and its result will be ignored.
func (c *Coordinator) Select(siteID string) (uint64, error) {
	if siteID == "" {
		return 0, site.InvalidArgumentError("site id cannot be empty")
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return 0, apperrors.New(CodeSessionNotFound, "session closed")
	}
	c.cancelLocked()
	c.seq++
	token := c.seq
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.setLocked(State{Phase: PhaseLoading, SiteID: siteID, Token: token})
	c.inflight.Add(1)
	c.mu.Unlock()

	go c.fetch(ctx, token, siteID)
	return token, nil
}

// Close returns to Idle and abandons any in-flight request.
func (c *Coordinator) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeLocked()
}

func (c *Coordinator) closeLocked() {
	c.cancelLocked()
	c.seq++
	c.lastLoaded = nil
	c.setLocked(State{Phase: PhaseIdle, Token: c.seq})
}

// State returns the current snapshot.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// LastLoaded is the most recent detail that reached Loaded since the last Close.
func (c *Coordinator) LastLoaded() *site.SiteDetail {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastLoaded
}

// Settled blocks until the coordinator leaves Loading or ctx is done.
func (c *Coordinator) Settled(ctx context.Context) (State, error) {
	for {
		c.mu.Lock()
		st, changed := c.state, c.changed
		c.mu.Unlock()
		if st.Phase != PhaseLoading {
			return st, nil
		}
		select {
		case <-changed:
		case <-ctx.Done():
			return st, ctx.Err()
		}
	}
}

// Shutdown closes the selection, rejects later selects and waits for background
// fetches to return.
func (c *Coordinator) Shutdown() {
	c.mu.Lock()
	c.closed = true
	c.closeLocked()
	c.mu.Unlock()
	c.inflight.Wait()
}

func (c *Coordinator) fetch(ctx context.Context, token uint64, siteID string) {
	defer c.inflight.Done()
	detail, err := c.loader.LoadSiteDetail(ctx, c.citySlug, siteID)
	c.complete(token, siteID, detail, err)
}

func (c *Coordinator) complete(token uint64, siteID string, detail site.SiteDetail, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if token != c.seq || c.state.Phase != PhaseLoading {
		c.logger.Debug("discarding stale detail response", "site_id", siteID, "token", token, "current", c.seq)
		return
	}
	c.cancelLocked()

	if err == nil && detail.ID != siteID {
		err = site.DecodeError(fmt.Sprintf("detail for %q returned site %q", siteID, detail.ID), nil)
	}
	if err != nil {
		c.logger.Warn("site detail load failed", "site_id", siteID, "error", err)
		c.setLocked(State{Phase: PhaseFailed, SiteID: siteID, Err: err, Token: token})
		return
	}

	loaded := detail
	c.lastLoaded = &loaded
	c.setLocked(State{Phase: PhaseLoaded, SiteID: siteID, Detail: &loaded, Token: token})
}

func (c *Coordinator) cancelLocked() {
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
}

func (c *Coordinator) setLocked(st State) {
	c.state = st
	close(c.changed)
	c.changed = make(chan struct{})
}
