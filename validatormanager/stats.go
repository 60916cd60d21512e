package validatormanager

import (
	"fmt"
	"strings"
	"time"

	"github.com/tos-network/shardvalidator/log"
	"github.com/tos-network/shardvalidator/params"
	"github.com/tos-network/shardvalidator/shardtypes"
	"github.com/tos-network/shardvalidator/validatorgroup"
)

// Stats is the manager's contribution to the ControlQuery Stats
// structure: fixed, order-irrelevant (key, value) string pairs.
type Stats struct {
	MasterchainBlockTime   string
	MasterchainBlockNumber string
	TimeDiff               string
	InCurrentVsetP34       string
	InNextVsetP36          string
	LastAppliedMcBlockID   string
	ProcessedWorkchain     string
	ValidationStats        string
	CollationStats         string
}

// Pairs returns Stats as an ordered list of (key, value) pairs using
// the exact key names spec.md names.
func (s Stats) Pairs() [][2]string {
	return [][2]string{
		{"masterchainblocktime", s.MasterchainBlockTime},
		{"masterchainblocknumber", s.MasterchainBlockNumber},
		{"timediff", s.TimeDiff},
		{"in_current_vset_p34", s.InCurrentVsetP34},
		{"in_next_vset_p36", s.InNextVsetP36},
		{"last applied masterchain block id", s.LastAppliedMcBlockID},
		{"processed workchain", s.ProcessedWorkchain},
		{"validation_stats", s.ValidationStats},
		{"collation_stats", s.CollationStats},
	}
}

// BuildStats assembles Stats from the manager's live state plus the
// caller-supplied last masterchain block id/gen_utime/now, which come
// from the engine and are not cached on Manager itself.
func (m *Manager) BuildStats(lastMcBlock shardtypes.BlockIDExt, genUTime uint32, nowUnix int64) Stats {
	curr, hasCurr := m.listStatus.Curr()
	next, hasNext := m.listStatus.Next()
	inCurr := hasCurr && m.listStatus.GetList(curr) != nil
	inNext := hasNext && m.listStatus.GetList(next) != nil

	isMaster, workchain := m.engine.ProcessedWorkchain()

	genTime := params.UnixTimestampToTime(uint64(genUTime) * 1000)

	return Stats{
		MasterchainBlockTime:   fmt.Sprintf("%d (%s)", genUTime, genTime.UTC().Format(time.RFC3339)),
		MasterchainBlockNumber: fmt.Sprintf("%d", lastMcBlock.SeqNo),
		TimeDiff:               fmt.Sprintf("%d", nowUnix-int64(genUTime)),
		InCurrentVsetP34:       fmt.Sprintf("%v", inCurr),
		InNextVsetP36:          fmt.Sprintf("%v", inNext),
		LastAppliedMcBlockID:   fmt.Sprintf("(%d,%x,%d)", lastMcBlock.Shard.Shard, lastMcBlock.RootHash[:4], lastMcBlock.SeqNo),
		ProcessedWorkchain:     fmt.Sprintf("is_master=%v workchain=%d", isMaster, workchain),
		ValidationStats:        m.formatStatusMap(m.engine.ValidationStatus(), nowUnix),
		CollationStats:         m.formatStatusMap(m.engine.CollationStatus(), nowUnix),
	}
}

// logStats logs the same table getStats assembles, once per loop
// iteration right before the manager waits on the next masterchain
// block, and mirrors every live group's last-validation/last-collation
// time into the engine's status maps so a control query answered
// between loop iterations sees current figures rather than only
// whatever a session last reported at drop time.
func (m *Manager) logStats(lastMcBlock shardtypes.BlockIDExt, genUTime uint32) {
	m.mirrorGroupActivity()
	stats := m.BuildStats(lastMcBlock, genUTime, time.Now().Unix())
	args := make([]any, 0, len(stats.Pairs())*2)
	for _, kv := range stats.Pairs() {
		args = append(args, kv[0], kv[1])
	}
	log.Info("validator manager stats", args...)
}

func (m *Manager) mirrorGroupActivity() {
	m.mu.Lock()
	groups := make([]*validatorgroup.Group, 0, len(m.sessions))
	for _, g := range m.sessions {
		groups = append(groups, g)
	}
	m.mu.Unlock()

	for _, g := range groups {
		if g.Status() < validatorgroup.Active {
			continue
		}
		if lv := g.LastValidation(); lv > 0 {
			m.engine.ValidationStatus().Set(g.Shard, uint64(lv))
		}
		if lc := g.LastCollation(); lc > 0 {
			m.engine.CollationStatus().Set(g.Shard, uint64(lc))
		}
	}
}

func (m *Manager) formatStatusMap(sm interface {
	Range(func(shard shardtypes.ShardID, unixTime uint64) bool)
}, nowUnix int64) string {
	var lines []string
	sm.Range(func(shard shardtypes.ShardID, unixTime uint64) bool {
		var ago string
		if unixTime == 0 {
			ago = "never"
		} else {
			ago = fmt.Sprintf("%d sec ago", nowUnix-int64(unixTime))
		}
		lines = append(lines, fmt.Sprintf("shard: %d - (%s)", shard.Shard, ago))
		return true
	})
	return strings.Join(lines, "\n")
}
