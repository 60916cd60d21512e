// Package validatormanager implements the main scheduler: it tracks
// which validator lists this node belongs to, decides which shards it
// must run a consensus session for now and soon, and starts, promotes,
// and retires ValidatorGroup instances to match.
package validatormanager

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/tos-network/shardvalidator/engineiface"
	"github.com/tos-network/shardvalidator/log"
	"github.com/tos-network/shardvalidator/metrics"
	"github.com/tos-network/shardvalidator/shardtypes"
	"github.com/tos-network/shardvalidator/validatorgroup"
	"github.com/tos-network/shardvalidator/validatorlist"
)

// DefaultUpdateInterval is the default wait timeout between iterations
// of the main loop.
const DefaultUpdateInterval = 3 * time.Second

// CheckValidatorTimeout is the poll interval Run uses to ask the engine
// whether this node is configured to validate at all before it ever
// resolves a masterchain handle or enters the main loop. A node started
// with no validator keys configured sits here indefinitely instead of
// spinning the scheduler.
const CheckValidatorTimeout = 60 * time.Second

// nearFutureWindow is how far ahead of now a scheduled split/merge must
// be to still be treated as "pre" rather than "post" in future_shards.
const nearFutureWindow = 60 * time.Second

// SessionFactory builds the external consensus Session a new
// ValidatorGroup will drive once started. Supplied by the process
// wiring the manager to a real catchain/validator-session transport.
type SessionFactory func(shard shardtypes.ShardID, sessionID shardtypes.Hash256) (validatorgroup.Session, error)

// Manager is the ValidatorManager control loop.
type Manager struct {
	engine         engineiface.Engine
	keyRing        engineiface.KeyRing
	nodeConfig     engineiface.NodeConfigHandler
	sessionFactory SessionFactory
	metrics        *metrics.Set
	updateInterval time.Duration

	validatorPollInterval time.Duration

	mu               sync.Mutex
	listStatus       *validatorlist.Status
	sessions         map[shardtypes.Hash256]*validatorgroup.Group
	validationStatus ValidationStatus
}

// Config bundles a Manager's external collaborators.
type Config struct {
	Engine         engineiface.Engine
	KeyRing        engineiface.KeyRing
	NodeConfig     engineiface.NodeConfigHandler
	SessionFactory SessionFactory
	Metrics        *metrics.Set
	UpdateInterval time.Duration

	// ValidatorPollInterval overrides CheckValidatorTimeout, the poll
	// period Run uses while waiting for the engine to report this node
	// is configured to validate. Tests shorten it; production leaves it
	// at zero to take the default.
	ValidatorPollInterval time.Duration
}

// New constructs a Manager in the Disabled status with no sessions.
func New(cfg Config) *Manager {
	interval := cfg.UpdateInterval
	if interval <= 0 {
		interval = DefaultUpdateInterval
	}
	pollInterval := cfg.ValidatorPollInterval
	if pollInterval <= 0 {
		pollInterval = CheckValidatorTimeout
	}
	m := &Manager{
		engine:                cfg.Engine,
		keyRing:               cfg.KeyRing,
		nodeConfig:            cfg.NodeConfig,
		sessionFactory:        cfg.SessionFactory,
		metrics:               cfg.Metrics,
		updateInterval:        interval,
		validatorPollInterval: pollInterval,
		listStatus:            validatorlist.New(),
		sessions:              make(map[shardtypes.Hash256]*validatorgroup.Group),
	}
	return m
}

// ValidationStatus returns the manager's current lattice position.
func (m *Manager) ValidationStatus() ValidationStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.validationStatus
}

// Run is the main loop (§ main loop): on startup it resolves the
// rotation pointer, falling back to the last applied masterchain
// block, then repeats update_shards/wait forever until ctx is
// canceled or a FatalManager error bubbles up.
func (m *Manager) Run(ctx context.Context) error {
	if err := m.waitForValidatorStatus(ctx); err != nil {
		return err
	}

	handle, err := m.resolveStartHandle()
	if err != nil {
		return fmt.Errorf("validatormanager: %w: %v", ErrStateUnreachable, err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		state, err := m.engine.LoadState(handle)
		if err != nil {
			log.Error("failed to load masterchain state", "err", err)
			handle, err = m.waitNext(ctx, handle)
			if err != nil {
				return err
			}
			continue
		}

		if err := m.updateShards(ctx, state); err != nil {
			log.Error("update_shards failed", "err", err)
		}
		if m.metrics != nil {
			m.metrics.UpdateShardsTotal.Inc()
		}

		nextHandle, err := m.waitNext(ctx, handle)
		if err != nil {
			return err
		}
		handle = nextHandle
	}
}

// waitForValidatorStatus blocks until the engine reports this node is
// configured to validate, polling every CheckValidatorTimeout. A node
// with no validator keys configured never pays the cost of resolving a
// masterchain handle or running the scheduler loop.
func (m *Manager) waitForValidatorStatus(ctx context.Context) error {
	for {
		ready, err := m.engine.GetValidatorStatus()
		if err != nil {
			return fmt.Errorf("validatormanager: %w: %v", ErrFatalManager, err)
		}
		if ready {
			return nil
		}

		t := time.NewTimer(m.validatorPollInterval)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
}

func (m *Manager) resolveStartHandle() (engineiface.BlockHandle, error) {
	if id, ok, err := m.engine.GetLastRotationBlockID(); err == nil && ok {
		if h, found, err := m.engine.LoadBlockHandle(id); err == nil && found {
			return h, nil
		}
	}

	id, err := m.engine.LoadLastAppliedMcBlockID()
	if err != nil {
		return nil, fmt.Errorf("load last applied mc block id: %w", err)
	}
	h, found, err := m.engine.LoadBlockHandle(id)
	if err != nil {
		return nil, fmt.Errorf("load block handle: %w", err)
	}
	if !found {
		return nil, ErrStateUnreachable
	}
	return h, nil
}

func (m *Manager) waitNext(ctx context.Context, handle engineiface.BlockHandle) (engineiface.BlockHandle, error) {
	next, ok, err := m.engine.WaitNextAppliedMcBlock(ctx, handle, m.updateInterval)
	if err != nil {
		return nil, fmt.Errorf("validatormanager: %w: %v", ErrFatalManager, err)
	}
	if !ok {
		log.Info("timed out waiting for next applied masterchain block, retrying")
		return handle, nil
	}
	return next, nil
}

// sessionCount returns the number of tracked sessions, used for Stats
// and metrics.
func (m *Manager) sessionCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}
