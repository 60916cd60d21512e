// Package validatorgroup provides a concrete, testable implementation
// of the ValidatorGroup contract the manager treats as opaque: a
// per-shard consensus session handle whose status moves through the
// lattice Created < Countdown < Active < Stopping < Stopped. The
// consensus algorithm itself (catchain/round voting) is external to
// this module; Group only owns the lifecycle and the bookkeeping the
// manager depends on (last-validation-time, last-collation-time).
package validatorgroup

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tos-network/shardvalidator/log"
	"github.com/tos-network/shardvalidator/shardtypes"
)

// Status is a position in the ValidatorGroup lattice.
type Status int

const (
	Created Status = iota
	Countdown
	Active
	Stopping
	Stopped
)

func (s Status) String() string {
	switch s {
	case Created:
		return "created"
	case Countdown:
		return "countdown"
	case Active:
		return "active"
	case Stopping:
		return "stopping"
	case Stopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Session is the external consensus session a Group drives once
// started. Implementations live outside this module (the catchain /
// validator-session wire protocol); Run must block until ctx is
// canceled or the session concludes on its own.
type Session interface {
	Run(ctx context.Context) error
}

// Group is one shard's consensus session handle.
type Group struct {
	SessionID     shardtypes.Hash256
	Shard         shardtypes.ShardID
	ValidatorList shardtypes.Hash256

	mu                sync.Mutex
	status            Status
	lastValidationSec int64
	lastCollationSec  int64

	session Session
	cancel  context.CancelFunc
	eg      *errgroup.Group
	doneErr error
}

// New creates a Group in the Created status. It is not yet running a
// session — Start must be called to advance it.
func New(sessionID shardtypes.Hash256, shard shardtypes.ShardID, validatorList shardtypes.Hash256, session Session) *Group {
	return &Group{
		SessionID:     sessionID,
		Shard:         shard,
		ValidatorList: validatorList,
		status:        Created,
		session:       session,
	}
}

// Status returns the group's current lattice position.
func (g *Group) Status() Status {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.status
}

// Start transitions a Created group to initial (Countdown or Active),
// spawning the supervised session goroutine. Calling Start on a group
// that is not Created is a programming error in the caller (the
// manager only calls Start after checking group.Status() == Created).
//
// When initial is Countdown, countdownDur is the delay after which the
// group self-promotes to Active (the start_at = now + min(mc_catchain_lifetime,
// shard_catchain_lifetime)/2 of §4.4.3) — in the original node this
// elapses inside the external consensus session itself; our concrete
// Group times it directly since it owns the lattice. countdownDur is
// ignored when initial is Active.
func (g *Group) Start(ctx context.Context, initial Status, countdownDur time.Duration) error {
	g.mu.Lock()
	if g.status != Created {
		g.mu.Unlock()
		return ErrAlreadyStarted
	}
	if initial != Countdown && initial != Active {
		g.mu.Unlock()
		return ErrInvalidInitialStatus
	}
	g.status = initial
	runCtx, cancel := context.WithCancel(ctx)
	g.cancel = cancel
	eg, runCtx := errgroup.WithContext(runCtx)
	g.eg = eg
	g.mu.Unlock()

	eg.Go(func() error {
		err := g.session.Run(runCtx)
		g.mu.Lock()
		g.doneErr = err
		g.status = Stopped
		g.mu.Unlock()
		return err
	})

	if initial == Countdown && countdownDur > 0 {
		go g.runCountdown(runCtx, countdownDur)
	}

	log.Info("validator group started", "session", g.SessionID.String(), "shard", g.Shard.Shard, "status", initial.String())
	return nil
}

// runCountdown self-promotes a Countdown group to Active once dur has
// elapsed, unless the session is canceled first.
func (g *Group) runCountdown(ctx context.Context, dur time.Duration) {
	t := time.NewTimer(dur)
	defer t.Stop()
	select {
	case <-t.C:
		g.PromoteActive()
	case <-ctx.Done():
	}
}

// PromoteActive advances a Countdown group to Active once its local
// countdown timer elapses; it is a no-op for any other status.
func (g *Group) PromoteActive() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.status == Countdown {
		g.status = Active
	}
}

// RequestStop transitions the group to Stopping and cancels its
// session context. Calling RequestStop more than once is harmless.
func (g *Group) RequestStop() error {
	g.mu.Lock()
	if g.status == Stopping || g.status == Stopped {
		g.mu.Unlock()
		return nil
	}
	g.status = Stopping
	cancel := g.cancel
	g.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	return nil
}

// Wait blocks until the session goroutine has exited, after which
// Status() reports Stopped.
func (g *Group) Wait() error {
	g.mu.Lock()
	eg := g.eg
	g.mu.Unlock()
	if eg == nil {
		return nil
	}
	return eg.Wait()
}

// MarkValidated records that this group validated a block at t.
func (g *Group) MarkValidated(t time.Time) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.lastValidationSec = t.Unix()
}

// MarkCollated records that this group collated a block at t.
func (g *Group) MarkCollated(t time.Time) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.lastCollationSec = t.Unix()
}

// LastValidation returns the last-validation unix time, or 0 if never.
func (g *Group) LastValidation() int64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.lastValidationSec
}

// LastCollation returns the last-collation unix time, or 0 if never.
func (g *Group) LastCollation() int64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.lastCollationSec
}
