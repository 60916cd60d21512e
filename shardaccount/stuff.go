// Package shardaccount implements the per-account transaction-chaining
// state machine used while assembling a block: each account's
// transactions are threaded into a linked list via prev_trans_hash/lt,
// the account's state_update(old_hash, new_hash) pair is tracked across
// the block, and the account's public-library publisher index is kept
// referentially consistent.
package shardaccount

import (
	"math/big"
	"sync/atomic"

	"github.com/tos-network/shardvalidator/shardtypes"
)

// AccountRoot is the account's cryptographic root cell. The underlying
// storage/trie representation is out of scope here; only its own
// content hash is needed to thread state_update and library keys.
type AccountRoot interface {
	Hash() shardtypes.Hash256
	// IsEmpty reports whether this root represents a destroyed or
	// never-existing account.
	IsEmpty() bool
}

// Transaction is the minimal shape add_transaction needs: it mutates
// PrevTransHash/PrevTransLT in place (threading the linked list) and
// reports its own logical time, serialized root, and total fees.
type Transaction struct {
	LogicalTime   uint64
	PrevTransHash shardtypes.Hash256
	PrevTransLT   uint64
	Root          shardtypes.Hash256 // tr_root, the serialized transaction's hash
	TotalFees     *big.Int
}

// StateUpdate is the (old_hash, new_hash) pair for an account's root
// across one block. OldHash is fixed at construction and never mutates.
type StateUpdate struct {
	OldHash shardtypes.Hash256
	NewHash shardtypes.Hash256
}

// TxEntry is one augmented entry of the transactions map: a
// transaction root plus its total fees, mirroring the original's
// HashmapAugType fee aggregation.
type TxEntry struct {
	Root      shardtypes.Hash256
	TotalFees *big.Int
}

// AccountBlock is returned by UpdateShardState: the account's address
// plus everything recorded against it during the block.
type AccountBlock struct {
	AccountAddr  shardtypes.Hash256
	Transactions map[uint64]TxEntry
	StateUpdate  StateUpdate
}

// SharedLT is the ascending logical-time counter shared by every
// account touched within one block.
type SharedLT struct {
	v *uint64
}

// NewSharedLT returns a counter starting at start.
func NewSharedLT(start uint64) SharedLT {
	v := start
	return SharedLT{v: &v}
}

// Next atomically advances the counter and returns the new value.
func (s SharedLT) Next() uint64 { return atomic.AddUint64(s.v, 1) }

// Stuff is the per-account state machine: ShardAccountStuff.
type Stuff struct {
	AccountAddr   shardtypes.Hash256
	AccountRoot   AccountRoot
	LastTransHash shardtypes.Hash256
	LastTransLT   uint64
	LT            SharedLT
	Transactions  map[uint64]TxEntry
	StateUpdate   StateUpdate
	OrigLibs      map[shardtypes.Hash256]struct{}
}

// FromShardState builds the state machine for addr from the caller-
// supplied current root, snapshots origLibs, and initializes
// state_update with old_hash = new_hash = root.Hash(). It performs no
// account lookup and supplies no empty-account default: root must be
// non-nil.
func FromShardState(addr shardtypes.Hash256, root AccountRoot, lt SharedLT, origLibs map[shardtypes.Hash256]struct{}) *Stuff {
	h := root.Hash()
	libs := make(map[shardtypes.Hash256]struct{}, len(origLibs))
	for k := range origLibs {
		libs[k] = struct{}{}
	}
	return &Stuff{
		AccountAddr:  addr,
		AccountRoot:  root,
		LT:           lt,
		Transactions: make(map[uint64]TxEntry),
		StateUpdate:  StateUpdate{OldHash: h, NewHash: h},
		OrigLibs:     libs,
	}
}

// AddTransaction threads tx into this account's chain: tx.PrevTransHash
// and tx.PrevTransLT are set from the account's current tail, the
// account root is replaced by newRoot, state_update.new_hash is
// recomputed, and the transaction is recorded in the transactions map
// keyed by its logical time. The account's last_trans_hash/lt are
// advanced to tx's identity.
func (s *Stuff) AddTransaction(tx *Transaction, newRoot AccountRoot) {
	tx.PrevTransHash = s.LastTransHash
	tx.PrevTransLT = s.LastTransLT

	s.AccountRoot = newRoot
	s.StateUpdate.NewHash = newRoot.Hash()

	fees := tx.TotalFees
	if fees == nil {
		fees = new(big.Int)
	}
	s.Transactions[tx.LogicalTime] = TxEntry{Root: tx.Root, TotalFees: fees}

	s.LastTransHash = tx.Root
	s.LastTransLT = tx.LogicalTime
}

// UpdateShardState writes this account back into newAccounts (removing
// it if the account root reads as destroyed/empty) and returns the
// AccountBlock recorded for it during the block.
func (s *Stuff) UpdateShardState(newAccounts map[shardtypes.Hash256]AccountRoot) AccountBlock {
	if s.AccountRoot.IsEmpty() {
		delete(newAccounts, s.AccountAddr)
	} else {
		newAccounts[s.AccountAddr] = s.AccountRoot
	}
	return AccountBlock{
		AccountAddr:  s.AccountAddr,
		Transactions: s.Transactions,
		StateUpdate:  s.StateUpdate,
	}
}

// libraryDiff is the three-way classification update_public_libraries
// performs between orig_libs and the account's current library set.
type libraryDiff struct {
	BecamePublic []shardtypes.Hash256
	LostPublic   []shardtypes.Hash256
}

func diffLibraries(orig, current map[shardtypes.Hash256]struct{}) libraryDiff {
	var d libraryDiff
	for k := range current {
		if _, had := orig[k]; !had {
			d.BecamePublic = append(d.BecamePublic, k)
		}
	}
	for k := range orig {
		if _, has := current[k]; !has {
			d.LostPublic = append(d.LostPublic, k)
		}
	}
	return d
}

// UpdatePublicLibraries compares current against OrigLibs and applies
// add/remove to libs for every key that became or lost public status.
// roots supplies the current root for each library key the account
// publishes (looked up only for BecamePublic keys).
func (s *Stuff) UpdatePublicLibraries(current map[shardtypes.Hash256]struct{}, roots map[shardtypes.Hash256]LibRoot, libs *Libraries) error {
	diff := diffLibraries(s.OrigLibs, current)
	for _, key := range diff.BecamePublic {
		root, ok := roots[key]
		if !ok {
			return ErrLibraryHashMismatch
		}
		if err := libs.AddPublicLibrary(key, root, s.AccountAddr); err != nil {
			return err
		}
	}
	for _, key := range diff.LostPublic {
		if err := libs.RemovePublicLibrary(key, s.AccountAddr); err != nil {
			return err
		}
	}
	return nil
}
