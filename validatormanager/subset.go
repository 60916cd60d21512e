package validatormanager

import (
	"encoding/binary"

	sha256simd "github.com/minio/sha256-simd"

	"github.com/tos-network/shardvalidator/shardtypes"
)

// computeValidatorSubset deterministically selects the members of vs
// that take part in consensus for (shard, ccSeqno): a pseudo-random
// choice seeded by the shard and catchain sequence number, so every node
// presented with the same ValidatorSet and the same (shard, ccSeqno)
// derives the identical subset. Each member's draw key depends only on
// the seed and its short id; descriptor weights do not affect selection.
// The result is ordered by descending draw key. maxMain bounds the
// subset size (0 means "all").
func computeValidatorSubset(vs shardtypes.ValidatorSet, shard shardtypes.ShardID, ccSeqno uint32, maxMain uint32) []shardtypes.ValidatorDescriptor {
	sorted := vs.SortedByShortID()
	if len(sorted) == 0 {
		return nil
	}
	limit := len(sorted)
	if maxMain > 0 && int(maxMain) < limit {
		limit = int(maxMain)
	}

	type weighted struct {
		d      shardtypes.ValidatorDescriptor
		weight uint64
	}
	seed := subsetSeed(shard, ccSeqno)
	entries := make([]weighted, len(sorted))
	for i, d := range sorted {
		entries[i] = weighted{d: d, weight: drawWeight(seed, d.ShortID())}
	}
	// Stable sort by descending draw weight; ties broken by ShortID
	// (already the input order) to keep selection deterministic.
	for i := 1; i < len(entries); i++ {
		for j := i; j > 0 && entries[j].weight > entries[j-1].weight; j-- {
			entries[j], entries[j-1] = entries[j-1], entries[j]
		}
	}

	out := make([]shardtypes.ValidatorDescriptor, 0, limit)
	for i := 0; i < limit; i++ {
		out = append(out, entries[i].d)
	}
	return out
}

func subsetSeed(shard shardtypes.ShardID, ccSeqno uint32) [32]byte {
	var buf [16]byte
	binary.LittleEndian.PutUint32(buf[0:4], uint32(shard.WorkchainID))
	binary.LittleEndian.PutUint64(buf[4:12], shard.Shard)
	binary.LittleEndian.PutUint32(buf[12:16], ccSeqno)
	return sha256simd.Sum256(buf[:])
}

// drawWeight derives a pseudo-random sort key for one validator from
// seed and its short id.
func drawWeight(seed [32]byte, shortID shardtypes.Hash256) uint64 {
	var buf [64]byte
	copy(buf[:32], seed[:])
	copy(buf[32:], shortID[:])
	sum := sha256simd.Sum256(buf[:])
	return binary.LittleEndian.Uint64(sum[:8])
}

// inSubset reports whether selfID appears in subset.
func inSubset(subset []shardtypes.ValidatorDescriptor, selfID shardtypes.Hash256) bool {
	for i := range subset {
		if subset[i].ShortID() == selfID {
			return true
		}
	}
	return false
}
