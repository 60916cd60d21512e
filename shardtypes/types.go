// Package shardtypes holds the value types shared by the validator
// scheduling core: validator descriptors and sets, shard identities,
// block references, and the session options a consensus round is
// configured with.
package shardtypes

import (
	"bytes"
	"sort"

	"golang.org/x/crypto/sha3"
)

// Hash256 is a content hash: a session id, a validator-list hash, a
// public key hash, or a block id's root hash.
type Hash256 [32]byte

// Bytes returns the hash's big-endian byte representation.
func (h Hash256) Bytes() []byte { return h[:] }

func (h Hash256) String() string {
	const hextable = "0123456789abcdef"
	buf := make([]byte, 64)
	for i, b := range h {
		buf[i*2] = hextable[b>>4]
		buf[i*2+1] = hextable[b&0x0f]
	}
	return string(buf)
}

// PublicKey is an opaque Ed25519-shaped validator public key.
type PublicKey [32]byte

// ValidatorDescriptor is one entry of a validator set: a public key,
// its weight (hashed into list ids and session ids), and an optional
// ADNL routing address.
type ValidatorDescriptor struct {
	PublicKey   PublicKey
	Weight      uint64
	AdnlAddr    Hash256
	HasAdnl     bool
	shortIDOnce Hash256
	shortIDSet  bool
}

// ShortID is the validator's node id, computed by hashing its public
// key. The value is memoized after first use; ValidatorDescriptor is
// otherwise an immutable value type once placed in a ValidatorSet.
func (d *ValidatorDescriptor) ShortID() Hash256 {
	if d.shortIDSet {
		return d.shortIDOnce
	}
	h := sha3.NewLegacyKeccak256()
	h.Write(d.PublicKey[:])
	var out Hash256
	copy(out[:], h.Sum(nil))
	d.shortIDOnce = out
	d.shortIDSet = true
	return out
}

// ValidatorSet is a catchain_seqno-scoped, ordered set of validator
// descriptors plus the unix-time window it is valid for.
type ValidatorSet struct {
	UtimeSince    uint32
	UtimeUntil    uint32
	Total         uint32
	Main          uint32
	List          []ValidatorDescriptor
	CatchainSeqno uint32
}

// TotalWeight sums the set's validator weights.
func (vs *ValidatorSet) TotalWeight() uint64 {
	var total uint64
	for _, v := range vs.List {
		total += v.Weight
	}
	return total
}

// SortedByShortID returns a copy of List ordered ascending by ShortID,
// the canonical order the boxed encoding and subset selection require.
func (vs *ValidatorSet) SortedByShortID() []ValidatorDescriptor {
	out := make([]ValidatorDescriptor, len(vs.List))
	copy(out, vs.List)
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].ShortID(), out[j].ShortID()
		return bytes.Compare(a[:], b[:]) < 0
	})
	return out
}

// ShardID identifies a shard within a workchain by its prefix and
// prefix bit length, encoded the way the original packs them into a
// single 64-bit "shard" word (a 1 bit marks the end of the prefix).
type ShardID struct {
	WorkchainID int32
	Shard       uint64
}

const shardFullMask = uint64(1) << 63

// FullShard is the unsplit, whole-workchain shard identifier.
func FullShard(workchain int32) ShardID {
	return ShardID{WorkchainID: workchain, Shard: shardFullMask}
}

// IsFull reports whether s spans the entire workchain.
func (s ShardID) IsFull() bool { return s.Shard == shardFullMask }

// PrefixLen returns the number of significant prefix bits.
func (s ShardID) PrefixLen() int {
	if s.Shard == 0 {
		return 0
	}
	n := 0
	for x := s.Shard; x&1 == 0; x >>= 1 {
		n++
	}
	return 63 - n
}

// Split returns the two child shards obtained by appending a 0 and a
// 1 bit to s's prefix, failing if s is already at maximum depth.
func (s ShardID) Split() (left, right ShardID, err error) {
	pl := s.PrefixLen()
	if pl >= 60 {
		return ShardID{}, ShardID{}, ErrShardArithmetic
	}
	base := clearLowBit(s.Shard)
	bit := uint64(1) << (63 - pl - 1)
	left = ShardID{WorkchainID: s.WorkchainID, Shard: base | bit}
	right = ShardID{WorkchainID: s.WorkchainID, Shard: base | bit | (bit << 1)}
	return left, right, nil
}

func clearLowBit(shard uint64) uint64 {
	lowBit := shard & (^shard + 1)
	return shard - lowBit
}

// Merge returns the parent shard of a sibling pair, failing if s is
// already the full, unsplit shard.
func (s ShardID) Merge() (ShardID, error) {
	if s.IsFull() {
		return ShardID{}, ErrShardArithmetic
	}
	lowBit := s.Shard & (^s.Shard + 1)
	return ShardID{WorkchainID: s.WorkchainID, Shard: (s.Shard - lowBit) | (lowBit << 1)}, nil
}

// IsSiblingOf reports whether s and other split from the same parent.
func (s ShardID) IsSiblingOf(other ShardID) bool {
	if s.WorkchainID != other.WorkchainID {
		return false
	}
	p1, err1 := s.Merge()
	p2, err2 := other.Merge()
	return err1 == nil && err2 == nil && p1 == p2 && s != other
}

// BlockIDExt identifies a block by (shard, seqno, root hash, file hash).
type BlockIDExt struct {
	Shard    ShardID
	SeqNo    uint32
	RootHash Hash256
	FileHash Hash256
}

// SessionOptions is the consensus-round tuning the manager derives from
// a block's ConsensusConfig and hashes into the session identifier.
type SessionOptions struct {
	CatchainIdleTimeoutMs    uint32
	CatchainMaxDepsMs        uint32
	RoundCandidates          uint32
	NextCandidateDelayMs     uint32
	RoundAttemptDurationSec  uint32
	MaxRoundAttempts         uint32
	MaxBlockSizeBytes        uint32
	MaxCollatedDataSizeBytes uint32
	NewCatchainIds           bool
}

// ShardSplitMerge carries the pending split/merge schedule read off a
// shard description: the threshold seqno at which the shard must
// split or merge, mirroring before_split/before_merge/split_merge_at.
type ShardSplitMerge struct {
	BeforeSplit  bool
	BeforeMerge  bool
	SplitMergeAt uint32
	HasThreshold bool
}
