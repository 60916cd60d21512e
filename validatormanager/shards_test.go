package validatormanager

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tos-network/shardvalidator/engineiface"
	"github.com/tos-network/shardvalidator/shardtypes"
)

func fullShard(wc int32) shardtypes.ShardID { return shardtypes.FullShard(wc) }

func testDescriptor(seed byte, weight uint64) shardtypes.ValidatorDescriptor {
	var pk shardtypes.PublicKey
	pk[0] = seed
	return shardtypes.ValidatorDescriptor{PublicKey: pk, Weight: weight}
}

// TestBuildShardSetsSplitPendingSoon is boundary scenario S3: a shard
// with a split scheduled 30s from now must contribute both children to
// future_shards, not the pre-split parent.
func TestBuildShardSetsSplitPendingSoon(t *testing.T) {
	m := New(Config{})
	shard := fullShard(0)
	left, right, err := shard.Split()
	require.NoError(t, err)

	extra := engineiface.McStateExtra{
		Shards: []engineiface.ShardDescr{
			{
				Shard:        shard,
				BeforeSplit:  true,
				HasThreshold: true,
				SplitMergeAt: uint32(time.Now().Add(30 * time.Second).Unix()),
			},
		},
	}

	_, future, _ := m.buildShardSets(extra, false)
	require.ElementsMatch(t, []shardtypes.ShardID{left, right}, future)
}

// TestBuildShardSetsMergePendingFar is boundary scenario S4: a shard
// with a merge scheduled 2h from now must contribute only the pre-merge
// shard itself to future_shards, not the post-merge parent.
func TestBuildShardSetsMergePendingFar(t *testing.T) {
	m := New(Config{})
	parent := fullShard(0)
	left, _, err := parent.Split()
	require.NoError(t, err)

	extra := engineiface.McStateExtra{
		Shards: []engineiface.ShardDescr{
			{
				Shard:        left,
				BeforeMerge:  true,
				HasThreshold: true,
				SplitMergeAt: uint32(time.Now().Add(2 * time.Hour).Unix()),
			},
		},
	}

	_, future, _ := m.buildShardSets(extra, false)
	require.ElementsMatch(t, []shardtypes.ShardID{left}, future)
}

// TestBuildShardSetsMasterchain covers the masterchain branch of §4.4.2
// step 5: new_shards and future_shards both collapse to the single
// masterchain shard.
func TestBuildShardSetsMasterchain(t *testing.T) {
	m := New(Config{})
	extra := engineiface.McStateExtra{SeqNo: 42, CatchainSeqno: 7}

	newShards, future, lastMcBlock := m.buildShardSets(extra, true)
	require.Len(t, newShards, 1)
	require.True(t, newShards[0].shard.IsFull())
	require.Equal(t, int32(-1), newShards[0].shard.WorkchainID)
	require.Equal(t, uint32(42), lastMcBlock.SeqNo)
	require.Equal(t, []shardtypes.ShardID{fullShard(-1)}, future)
}

// TestComputeValidatorSubsetDeterministic is boundary scenario S6: the
// same (shard, validator set, cc_seqno) must always derive the same
// subset, independent of the original list order — the property two
// independent nodes rely on to agree on a session id.
func TestComputeValidatorSubsetDeterministic(t *testing.T) {
	vs := shardtypes.ValidatorSet{
		List: []shardtypes.ValidatorDescriptor{
			testDescriptor(1, 10),
			testDescriptor(2, 20),
			testDescriptor(3, 30),
		},
		Main: 2,
	}
	shard := fullShard(0)

	a := computeValidatorSubset(vs, shard, 5, vs.Main)
	b := computeValidatorSubset(vs, shard, 5, vs.Main)
	require.Equal(t, a, b)
	require.Len(t, a, 2)

	reversed := shardtypes.ValidatorSet{
		List: []shardtypes.ValidatorDescriptor{vs.List[2], vs.List[1], vs.List[0]},
		Main: 2,
	}
	c := computeValidatorSubset(reversed, shard, 5, reversed.Main)
	require.Equal(t, a, c)
}

// TestComputeValidatorSubsetVariesByCatchainSeqno confirms the subset
// draw is actually seeded by (shard, cc_seqno) and not a fixed order.
func TestComputeValidatorSubsetVariesByCatchainSeqno(t *testing.T) {
	vs := shardtypes.ValidatorSet{
		List: []shardtypes.ValidatorDescriptor{
			testDescriptor(1, 10),
			testDescriptor(2, 20),
			testDescriptor(3, 30),
			testDescriptor(4, 40),
		},
		Main: 2,
	}
	shard := fullShard(0)

	seenDifferent := false
	base := computeValidatorSubset(vs, shard, 0, vs.Main)
	for cc := uint32(1); cc < 20; cc++ {
		next := computeValidatorSubset(vs, shard, cc, vs.Main)
		if !sameMembers(base, next) {
			seenDifferent = true
			break
		}
	}
	require.True(t, seenDifferent, "expected subset membership to vary across catchain seqnos")
}

func sameMembers(a, b []shardtypes.ValidatorDescriptor) bool {
	if len(a) != len(b) {
		return false
	}
	seen := make(map[shardtypes.Hash256]struct{}, len(a))
	for _, d := range a {
		seen[d.ShortID()] = struct{}{}
	}
	for _, d := range b {
		if _, ok := seen[d.ShortID()]; !ok {
			return false
		}
	}
	return true
}
