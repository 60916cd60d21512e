package shardaccount

import (
	"sync"

	"github.com/tos-network/shardvalidator/shardtypes"
)

// LibRoot is a library's root cell: anything that can report its own
// content hash, exactly like AccountRoot.
type LibRoot interface {
	Hash() shardtypes.Hash256
}

// LibDescr carries a library's root plus the set of account addresses
// currently publishing it.
type LibDescr struct {
	Root       LibRoot
	Publishers map[shardtypes.Hash256]struct{}
}

// Libraries is the PublicLibraryIndex: mapping from 32-byte library key
// to LibDescr. Invariant: LibDescr.Root.Hash() == key; an account
// appears in a library's publisher set iff that library is currently
// marked public in that account's state.
type Libraries struct {
	mu   sync.Mutex
	libs map[shardtypes.Hash256]*LibDescr
}

// NewLibraries returns an empty index.
func NewLibraries() *Libraries {
	return &Libraries{libs: make(map[shardtypes.Hash256]*LibDescr)}
}

// AddPublicLibrary implements add_public_library(key, root, libs).
func (l *Libraries) AddPublicLibrary(key shardtypes.Hash256, root LibRoot, account shardtypes.Hash256) error {
	if root.Hash() != key {
		return ErrLibraryHashMismatch
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	existing, ok := l.libs[key]
	if !ok {
		l.libs[key] = &LibDescr{
			Root:       root,
			Publishers: map[shardtypes.Hash256]struct{}{account: {}},
		}
		return nil
	}

	if existing.Root.Hash() != key {
		return ErrLibraryHashMismatch
	}
	if _, already := existing.Publishers[account]; already {
		return ErrAlreadyPublisher
	}
	existing.Publishers[account] = struct{}{}
	return nil
}

// RemovePublicLibrary implements remove_public_library(key, libs).
func (l *Libraries) RemovePublicLibrary(key shardtypes.Hash256, account shardtypes.Hash256) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	existing, ok := l.libs[key]
	if !ok {
		return ErrLibraryNotPublished
	}
	if existing.Root.Hash() != key {
		return ErrLibraryCorruptDescriptor
	}
	if _, member := existing.Publishers[account]; !member {
		return ErrLibraryNotPublisher
	}
	delete(existing.Publishers, account)
	if len(existing.Publishers) == 0 {
		delete(l.libs, key)
	}
	return nil
}

// Get returns the descriptor for key, if present.
func (l *Libraries) Get(key shardtypes.Hash256) (LibDescr, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	d, ok := l.libs[key]
	if !ok {
		return LibDescr{}, false
	}
	publishers := make(map[shardtypes.Hash256]struct{}, len(d.Publishers))
	for k := range d.Publishers {
		publishers[k] = struct{}{}
	}
	return LibDescr{Root: d.Root, Publishers: publishers}, true
}
