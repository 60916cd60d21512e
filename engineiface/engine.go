// Package engineiface declares the external collaborator contracts the
// validator manager consumes: the node Engine, the KeyRing holding
// validator private keys, and the NodeConfigHandler persisting
// validator configuration. Implementations live outside this module;
// tests use hand-written fakes defined in their own _test.go files.
package engineiface

import (
	"context"
	"time"

	"github.com/tos-network/shardvalidator/shardtypes"
)

// BlockHandle is an opaque reference to a masterchain block the engine
// has applied. The manager never inspects its fields directly.
type BlockHandle interface {
	BlockID() shardtypes.BlockIDExt
}

// McState is the masterchain state loaded for a given handle: the
// extra fields the control loop reads (validator sets, shard
// descriptions, config params).
type McState interface {
	Extra() McStateExtra
}

// McStateExtra mirrors the masterchain extra data the loop consumes.
type McStateExtra struct {
	GenUTime           uint32
	SeqNo              uint32
	CurrentValidators  shardtypes.ValidatorSet
	NextValidators     shardtypes.ValidatorSet
	HasNextValidators  bool
	NxCCUpdated        bool
	CatchainSeqno      uint32
	ConsensusConfig    shardtypes.SessionOptions
	HasConsensusConfig bool
	Shards             []ShardDescr
	CCLifetimeSec      uint32

	// AfterKeyBlock and LastKeyBlockSeqno resolve the key_seqno hashed
	// into every session id (spec §3 SessionIdentifier, §4.2): when the
	// current masterchain block is itself a key block, that block's own
	// sequence number is used; otherwise the sequence number of the most
	// recent preceding key block is used.
	AfterKeyBlock     bool
	LastKeyBlockSeqno uint32
}

// ShardDescr is one shard's entry in the masterchain extra's shard
// description list.
type ShardDescr struct {
	Shard        shardtypes.ShardID
	TopBlock     shardtypes.BlockIDExt
	BeforeSplit  bool
	BeforeMerge  bool
	SplitMergeAt uint32
	HasThreshold bool
	CatchainSeqno uint32
}

// Engine is the collaborator contract described in spec §6.
type Engine interface {
	LoadLastAppliedMcBlockID() (shardtypes.BlockIDExt, error)
	LoadBlockHandle(id shardtypes.BlockIDExt) (BlockHandle, bool, error)
	LoadState(handle BlockHandle) (McState, error)
	WaitNextAppliedMcBlock(ctx context.Context, handle BlockHandle, timeout time.Duration) (BlockHandle, bool, error)
	CheckSync() (bool, error)
	GetLastForkMasterchainSeqno() (uint32, error)
	GetValidatorStatus() (bool, error)

	SetValidatorList(listID shardtypes.Hash256, nodes []shardtypes.ValidatorDescriptor) (*shardtypes.ValidatorDescriptor, error)
	ActivateValidatorList(listID shardtypes.Hash256) error
	RemoveValidatorList(listID shardtypes.Hash256) error

	SetLastRotationBlockID(id shardtypes.BlockIDExt) error
	GetLastRotationBlockID() (shardtypes.BlockIDExt, bool, error)
	ClearLastRotationBlockID() error

	SetWillValidate(bool)
	ProcessedWorkchain() (isMaster bool, workchainID int32)

	ValidationStatus() StatusMap
	CollationStatus() StatusMap

	RedirectExternalMessage(msg []byte) error
	AdjustStatesGCInterval(d time.Duration) error
}

// StatusMap is the engine's concurrent map from shard to a last-acted
// unix timestamp (0 meaning "never"), used to build Stats.
type StatusMap interface {
	Get(shard shardtypes.ShardID) (unixTime uint64, ok bool)
	Set(shard shardtypes.ShardID, unixTime uint64)
	Delete(shard shardtypes.ShardID)
	Range(func(shard shardtypes.ShardID, unixTime uint64) bool)
}

// KeyRing is the private-key collaborator contract.
type KeyRing interface {
	Generate() (shardtypes.Hash256, error)
	Find(keyHash shardtypes.Hash256) (exists bool, err error)
	SignData(keyHash shardtypes.Hash256, data []byte) ([]byte, error)
}

// NodeConfigHandler persists validator key/adnl configuration.
type NodeConfigHandler interface {
	GetActualValidatorAdnlIDs() (map[shardtypes.Hash256]struct{}, error)
	AddValidatorKey(key shardtypes.Hash256, electedFrom, electedUntil uint32) error
	AddValidatorAdnlKey(key shardtypes.Hash256, ttl uint32) error
	StoreStatesGCInterval(d time.Duration) error
}
