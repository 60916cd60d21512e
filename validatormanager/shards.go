package validatormanager

import (
	"context"
	"time"

	"github.com/tos-network/shardvalidator/engineiface"
	"github.com/tos-network/shardvalidator/log"
	"github.com/tos-network/shardvalidator/sessioncodec"
	"github.com/tos-network/shardvalidator/shardtypes"
	"github.com/tos-network/shardvalidator/validatorgroup"
	"github.com/tos-network/shardvalidator/validatorlist"
)

// shardSlot is one entry of new_shards: the prev-block references a
// session for this shard must be started against (1 entry normally, 2
// for a just-completed merge).
type shardSlot struct {
	shard      shardtypes.ShardID
	prevBlocks []shardtypes.BlockIDExt
	ccSeqno    uint32
}

// updateShards is the control loop's per-block decision function
// (§4.4.2): refresh validator list membership, advance validation
// status, compute the shard sets effective now and soon, and
// start/retire ValidatorGroup instances to match.
func (m *Manager) updateShards(ctx context.Context, state engineiface.McState) error {
	extra := state.Extra()

	disabled, err := m.refreshValidatorLists(extra)
	if err != nil {
		return err
	}
	if disabled {
		m.disableValidation()
		return nil
	}

	m.enableValidation()
	m.advanceValidationStatus(extra)

	if !extra.HasConsensusConfig {
		return ErrConfigAbsent
	}
	if _, err := sessioncodec.HashSessionOptions(extra.ConsensusConfig); err != nil {
		return err
	}

	isMaster, _ := m.engine.ProcessedWorkchain()
	newShards, futureShards, lastMcBlock := m.buildShardSets(extra, isMaster)

	keyBlockSeqno := lastMcBlock.SeqNo
	if !extra.AfterKeyBlock {
		keyBlockSeqno = extra.LastKeyBlockSeqno
	}

	needed := make(map[shardtypes.Hash256]struct{})

	allowsValidate := m.ValidationStatus().AllowsValidate()
	if allowsValidate {
		m.startSessions(ctx, extra, newShards, lastMcBlock, keyBlockSeqno, needed)
	}

	m.prepareFutureSessions(extra, futureShards, keyBlockSeqno, needed)

	if extra.NxCCUpdated {
		if err := m.engine.SetLastRotationBlockID(lastMcBlock); err != nil {
			log.Error("failed to persist rotation pointer", "err", err)
		}
	}

	gc := m.sessionsNotIn(needed)
	m.stopAndRemoveSessions(gc)

	m.garbageCollectLists(needed)
	m.reapStoppedSessions()
	m.logStats(lastMcBlock, extra.GenUTime)
	return nil
}

// refreshValidatorLists implements §4.4.2 step 1. It returns
// disabled=true if neither the current nor the next validator set
// yields a local key, in which case the caller must transition to
// Disabled and stop every session.
func (m *Manager) refreshValidatorLists(extra engineiface.McStateExtra) (disabled bool, err error) {
	currID := sessioncodec.HashValidatorList(extra.CurrentValidators.List)
	haveCurrKey, err := m.ensureListRegistered(currID, extra.CurrentValidators.List)
	if err != nil {
		return false, err
	}
	m.listStatus.SetCurr(currID)
	if err := m.engine.ActivateValidatorList(currID); err != nil {
		log.Error("failed to activate validator list", "list", currID.String(), "err", err)
	}

	haveNextKey := false
	if extra.HasNextValidators {
		nextID := sessioncodec.HashValidatorList(extra.NextValidators.List)
		haveNextKey, err = m.ensureListRegistered(nextID, extra.NextValidators.List)
		if err != nil {
			return false, err
		}
		m.listStatus.SetNext(nextID)
	} else {
		m.listStatus.ClearNext()
	}

	if m.metrics != nil {
		m.metrics.SetMembership(haveCurrKey, haveNextKey)
	}

	if haveCurrKey && m.nodeConfig != nil {
		m.checkLocalAdnlRegistered()
	}

	return !haveCurrKey && !haveNextKey, nil
}

// checkLocalAdnlRegistered warns if this node's current-list adnl
// address was not among the node config's registered validator adnl
// ids, which would leave the catchain transport unable to address us.
func (m *Manager) checkLocalAdnlRegistered() {
	local := m.listStatus.GetLocalKey()
	if local == nil || !local.Descriptor.HasAdnl {
		return
	}
	actual, err := m.nodeConfig.GetActualValidatorAdnlIDs()
	if err != nil {
		log.Error("failed to read actual validator adnl ids", "err", err)
		return
	}
	if _, ok := actual[local.Descriptor.AdnlAddr]; !ok {
		log.Warn("local validator adnl address not registered in node config", "adnl", local.Descriptor.AdnlAddr.String())
	}
}

func (m *Manager) ensureListRegistered(id shardtypes.Hash256, nodes []shardtypes.ValidatorDescriptor) (haveKey bool, err error) {
	if m.listStatus.ContainsList(id) {
		return m.listStatus.GetList(id) != nil, nil
	}
	local, err := m.engine.SetValidatorList(id, nodes)
	if err != nil {
		return false, err
	}
	if local == nil {
		m.listStatus.AddList(id, nil)
		return false, nil
	}
	m.listStatus.AddList(id, &validatorlist.LocalKey{Descriptor: *local})
	return true, nil
}

func (m *Manager) disableValidation() {
	m.mu.Lock()
	m.validationStatus = Disabled
	sessions := make(map[shardtypes.Hash256]struct{}, len(m.sessions))
	for id := range m.sessions {
		sessions[id] = struct{}{}
	}
	m.mu.Unlock()

	m.stopAndRemoveSessions(sessions)
	if err := m.engine.ClearLastRotationBlockID(); err != nil {
		log.Error("failed to clear rotation pointer", "err", err)
	}
	m.engine.SetWillValidate(false)
	if m.metrics != nil {
		m.metrics.ValidationStatus.Set(float64(Disabled))
	}
	log.Warn("validator manager disabled: no local key in current or next validator list")
}

func (m *Manager) enableValidation() {
	m.engine.SetWillValidate(true)
	m.mu.Lock()
	if m.validationStatus < Waiting {
		m.validationStatus = Waiting
	}
	status := m.validationStatus
	m.mu.Unlock()
	if m.metrics != nil {
		m.metrics.ValidationStatus.Set(float64(status))
	}
}

// advanceValidationStatus implements §4.4.2 step 3.
func (m *Manager) advanceValidationStatus(extra engineiface.McStateExtra) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch m.validationStatus {
	case Waiting:
		synced, err := m.engine.CheckSync()
		if err != nil || !synced {
			return
		}
		rotated := extra.SeqNo == 0 || extra.NxCCUpdated
		if !rotated {
			return
		}
		lastFork, err := m.engine.GetLastForkMasterchainSeqno()
		if err == nil && extra.SeqNo < lastFork {
			return
		}
		m.validationStatus = Countdown
	case Countdown:
		for _, g := range m.sessions {
			if g.Status() >= validatorgroup.Active {
				m.validationStatus = Active
				return
			}
		}
	}
}

// buildShardSets implements §4.4.2 step 5.
func (m *Manager) buildShardSets(extra engineiface.McStateExtra, isMaster bool) (newShards []shardSlot, futureShards []shardtypes.ShardID, lastMcBlock shardtypes.BlockIDExt) {
	mc := shardtypes.FullShard(-1)
	lastMcBlock = shardtypes.BlockIDExt{Shard: mc, SeqNo: extra.SeqNo}
	if isMaster {
		return []shardSlot{{shard: mc, prevBlocks: []shardtypes.BlockIDExt{lastMcBlock}, ccSeqno: extra.CatchainSeqno}}, []shardtypes.ShardID{mc}, lastMcBlock
	}

	now := time.Now()
	newMap := make(map[shardtypes.ShardID][]shardtypes.BlockIDExt)
	ccSeqnoMap := make(map[shardtypes.ShardID]uint32)
	var future []shardtypes.ShardID

	for _, descr := range extra.Shards {
		switch {
		case descr.BeforeSplit:
			left, right, err := descr.Shard.Split()
			if err != nil {
				log.Error("shard split arithmetic failed", "shard", descr.Shard.Shard, "err", err)
				continue
			}
			newMap[left] = []shardtypes.BlockIDExt{descr.TopBlock}
			newMap[right] = []shardtypes.BlockIDExt{descr.TopBlock}
			ccSeqnoMap[left] = descr.CatchainSeqno
			ccSeqnoMap[right] = descr.CatchainSeqno
		case descr.BeforeMerge:
			parent, err := descr.Shard.Merge()
			if err != nil {
				log.Error("shard merge arithmetic failed", "shard", descr.Shard.Shard, "err", err)
				continue
			}
			if _, ok := newMap[parent]; !ok {
				newMap[parent] = make([]shardtypes.BlockIDExt, 2)
			}
			idx := siblingIndex(descr.Shard)
			newMap[parent][idx] = descr.TopBlock
			ccSeqnoMap[parent] = descr.CatchainSeqno
		default:
			newMap[descr.Shard] = []shardtypes.BlockIDExt{descr.TopBlock}
			ccSeqnoMap[descr.Shard] = descr.CatchainSeqno
		}

		if descr.HasThreshold && time.Unix(int64(descr.SplitMergeAt), 0).Sub(now) <= nearFutureWindow {
			if descr.BeforeSplit {
				left, right, err := descr.Shard.Split()
				if err == nil {
					future = append(future, left, right)
					continue
				}
			}
			if descr.BeforeMerge {
				parent, err := descr.Shard.Merge()
				if err == nil {
					future = append(future, parent)
					continue
				}
			}
		}
		future = append(future, descr.Shard)
	}

	for shard, blocks := range newMap {
		newShards = append(newShards, shardSlot{shard: shard, prevBlocks: blocks, ccSeqno: ccSeqnoMap[shard]})
	}
	return newShards, future, lastMcBlock
}

// siblingIndex returns 0 for the left child of a merge pair and 1 for
// the right child, determined by which half of the parent's address
// space the shard's lowest set bit places it in.
func siblingIndex(shard shardtypes.ShardID) int {
	parent, err := shard.Merge()
	if err != nil {
		return 0
	}
	left, _, err := parent.Split()
	if err != nil {
		return 0
	}
	if left == shard {
		return 0
	}
	return 1
}

func (m *Manager) sessionsNotIn(needed map[shardtypes.Hash256]struct{}) map[shardtypes.Hash256]struct{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	gc := make(map[shardtypes.Hash256]struct{})
	for id := range m.sessions {
		if _, ok := needed[id]; !ok {
			gc[id] = struct{}{}
		}
	}
	return gc
}

// garbageCollectLists implements §4.4.2 step 10: any list id not
// referenced by a surviving session and not curr/next is dropped.
func (m *Manager) garbageCollectLists(needed map[shardtypes.Hash256]struct{}) {
	m.mu.Lock()
	surviving := make(map[shardtypes.Hash256]struct{}, len(needed))
	for id := range needed {
		surviving[id] = struct{}{}
	}
	listsInUse := make(map[shardtypes.Hash256]struct{})
	for id, g := range m.sessions {
		if _, ok := surviving[id]; ok {
			listsInUse[g.ValidatorList] = struct{}{}
		}
	}
	m.mu.Unlock()

	evicted := m.listStatus.GarbageCollect(listsInUse)
	for _, id := range evicted {
		if err := m.engine.RemoveValidatorList(id); err != nil {
			log.Error("failed to release evicted validator list", "list", id.String(), "err", err)
		}
	}
}
