package validatormanager

import (
	"context"
	"time"

	"github.com/tos-network/shardvalidator/engineiface"
	"github.com/tos-network/shardvalidator/log"
	"github.com/tos-network/shardvalidator/sessioncodec"
	"github.com/tos-network/shardvalidator/shardtypes"
	"github.com/tos-network/shardvalidator/validatorgroup"
)

// countdownDelay computes the §4.4.3 start_at offset: half the smaller
// of the masterchain and shard catchain lifetimes. The engine contract
// exposes a single catchain lifetime figure (§6), so mcLifetimeSec and
// shardLifetimeSec are the same value at every call site today; the
// two parameters are kept distinct so a future engine exposing
// per-shard lifetimes only needs to change the call site.
func countdownDelay(mcLifetimeSec, shardLifetimeSec uint32) time.Duration {
	lifetime := mcLifetimeSec
	if shardLifetimeSec < lifetime {
		lifetime = shardLifetimeSec
	}
	return time.Duration(lifetime) * time.Second / 2
}

// startSessions implements §4.4.3: for every shard this node must run
// now, compute the subset, and if this node is a member, create
// (and possibly start) the ValidatorGroup.
func (m *Manager) startSessions(ctx context.Context, extra engineiface.McStateExtra, newShards []shardSlot, lastMcBlock shardtypes.BlockIDExt, keyBlockSeqno uint32, needed map[shardtypes.Hash256]struct{}) {
	localKey := m.listStatus.GetLocalKey()
	if localKey == nil {
		return
	}
	selfID := localKey.Descriptor.ShortID()

	optHash, err := sessioncodec.HashSessionOptions(extra.ConsensusConfig)
	if err != nil {
		log.Error("cannot start sessions: session options hash unavailable", "err", err)
		return
	}

	for _, slot := range newShards {
		subset := computeValidatorSubset(extra.CurrentValidators, slot.shard, slot.ccSeqno, extra.CurrentValidators.Main)
		if !inSubset(subset, selfID) {
			continue
		}

		listID := sessioncodec.HashValidatorList(extra.CurrentValidators.List)
		sessionID := sessioncodec.DeriveSessionID(sessioncodec.SessionIDInput{
			Shard:             slot.shard,
			Subset:            subset,
			CatchainSeqno:     slot.ccSeqno,
			KeyBlockSeqno:     keyBlockSeqno,
			SessionOptionHash: optHash,
			MainValidators:    extra.CurrentValidators.Main,
		})
		needed[sessionID] = struct{}{}

		m.mu.Lock()
		group, exists := m.sessions[sessionID]
		if !exists {
			group = m.newGroup(slot.shard, sessionID, listID)
			m.sessions[sessionID] = group
		}
		status := m.validationStatus
		m.mu.Unlock()

		if group.Status() != validatorgroup.Created {
			if group.Status() >= validatorgroup.Stopping {
				log.Error("session start refused: group already stopping", "session", sessionID.String())
			}
			continue
		}

		initial := validatorgroup.Active
		var countdownDur time.Duration
		if status == Countdown {
			initial = validatorgroup.Countdown
			countdownDur = countdownDelay(extra.CCLifetimeSec, extra.CCLifetimeSec)
		}
		if err := group.Start(ctx, initial, countdownDur); err != nil {
			log.Error("failed to start validator group", "session", sessionID.String(), "err", err)
		} else {
			log.Info("validator group started", "session", sessionID.String(), "shard", slot.shard.Shard, "from_mc_seqno", lastMcBlock.SeqNo)
		}
	}

	if m.metrics != nil {
		m.metrics.ActiveSessions.Set(float64(m.sessionCount()))
	}
}

func (m *Manager) newGroup(shard shardtypes.ShardID, sessionID, listID shardtypes.Hash256) *validatorgroup.Group {
	var session validatorgroup.Session
	if m.sessionFactory != nil {
		s, err := m.sessionFactory(shard, sessionID)
		if err != nil {
			log.Error("session factory failed", "shard", shard.Shard, "err", err)
			session = noopSession{}
		} else {
			session = s
		}
	} else {
		session = noopSession{}
	}
	return validatorgroup.New(sessionID, shard, listID, session)
}

// noopSession is used when no SessionFactory is configured (e.g. in
// tests exercising the scheduling logic without a real transport): it
// blocks until canceled, like a session that never produces a fault.
type noopSession struct{}

func (noopSession) Run(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}

// prepareFutureSessions implements §4.4.2 step 7: for every shard
// expected to need a session soon, decide whether the validator set
// will rotate before it starts, compute the subset against cc_seqno+1,
// and create (but do not start) a group if this node will be a member.
func (m *Manager) prepareFutureSessions(extra engineiface.McStateExtra, futureShards []shardtypes.ShardID, keyBlockSeqno uint32, needed map[shardtypes.Hash256]struct{}) {
	localKey := m.listStatus.GetLocalKey()
	if localKey == nil {
		return
	}
	selfID := localKey.Descriptor.ShortID()

	optHash, err := sessioncodec.HashSessionOptions(extra.ConsensusConfig)
	if err != nil {
		return
	}

	lifetime := extra.CCLifetimeSec
	if lifetime == 0 {
		lifetime = 60
	}
	mcNow := extra.GenUTime

	useNext := false
	if extra.HasNextValidators {
		window := (mcNow/lifetime + 1) * lifetime
		useNext = extra.NextValidators.UtimeSince <= window
	}
	vs := extra.CurrentValidators
	listID := sessioncodec.HashValidatorList(vs.List)
	if useNext {
		vs = extra.NextValidators
		listID = sessioncodec.HashValidatorList(vs.List)
	}

	for _, shard := range futureShards {
		ccSeqno := extra.CatchainSeqno + 1
		subset := computeValidatorSubset(vs, shard, ccSeqno, vs.Main)
		if !inSubset(subset, selfID) {
			continue
		}

		sessionID := sessioncodec.DeriveSessionID(sessioncodec.SessionIDInput{
			Shard:             shard,
			Subset:            subset,
			CatchainSeqno:     ccSeqno,
			KeyBlockSeqno:     keyBlockSeqno,
			SessionOptionHash: optHash,
			MainValidators:    vs.Main,
		})
		needed[sessionID] = struct{}{}

		m.mu.Lock()
		if _, exists := m.sessions[sessionID]; !exists {
			m.sessions[sessionID] = m.newGroup(shard, sessionID, listID)
		}
		m.mu.Unlock()
	}
}

// stopAndRemoveSessions implements §4.4.4's retirement policy: a group
// is only dropped from the index once it reports Stopped, so a new
// session can never be created under the same id while the old one is
// still tearing down.
func (m *Manager) stopAndRemoveSessions(gc map[shardtypes.Hash256]struct{}) {
	for id := range gc {
		m.mu.Lock()
		group, ok := m.sessions[id]
		m.mu.Unlock()
		if !ok {
			log.Error("stop_and_remove_sessions: unknown session id", "session", id.String())
			continue
		}

		switch group.Status() {
		case validatorgroup.Stopping:
			continue
		case validatorgroup.Stopped:
			m.dropSession(id, group)
		default:
			if err := group.RequestStop(); err != nil {
				log.Error("failed to stop validator group, dropping anyway", "session", id.String(), "err", err)
				m.dropSession(id, group)
			}
		}
	}
}

func (m *Manager) dropSession(id shardtypes.Hash256, group *validatorgroup.Group) {
	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()

	// Persist the group's last activity before discarding it, so Stats
	// keeps reporting "N sec ago" for a shard this node just stopped
	// validating rather than silently resetting to "never".
	if lv := group.LastValidation(); lv > 0 {
		m.engine.ValidationStatus().Set(group.Shard, uint64(lv))
	} else {
		m.engine.ValidationStatus().Delete(group.Shard)
	}
	if lc := group.LastCollation(); lc > 0 {
		m.engine.CollationStatus().Set(group.Shard, uint64(lc))
	} else {
		m.engine.CollationStatus().Delete(group.Shard)
	}

	if m.metrics != nil {
		m.metrics.ActiveSessions.Set(float64(m.sessionCount()))
	}
}

// reapStoppedSessions sweeps sessions that transitioned to Stopped on
// their own (session-initiated exit, not a manager-requested stop) so
// they don't linger in the index waiting for the next gc round to
// notice. Called at the end of each loop iteration.
func (m *Manager) reapStoppedSessions() {
	m.mu.Lock()
	stopped := make([]shardtypes.Hash256, 0)
	for id, g := range m.sessions {
		if g.Status() == validatorgroup.Stopped {
			stopped = append(stopped, id)
		}
	}
	m.mu.Unlock()

	for _, id := range stopped {
		m.mu.Lock()
		g := m.sessions[id]
		m.mu.Unlock()
		if g != nil {
			m.dropSession(id, g)
		}
	}
}
