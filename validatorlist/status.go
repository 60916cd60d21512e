// Package validatorlist tracks the validator lists the manager knows
// about and which of them, if any, this node has a local key for.
package validatorlist

import (
	"sync"

	"github.com/tos-network/shardvalidator/shardtypes"
)

// LocalKey identifies this node's entry within a validator list: the
// ValidatorDescriptor the KeyRing confirmed as belonging to us.
type LocalKey struct {
	Descriptor shardtypes.ValidatorDescriptor
}

// Status is the index of known validator lists with current/next
// markers. It mirrors the original ValidatorListStatus: a mapping from
// list id to local key (if any), plus curr/next pointers into that
// mapping. All operations are total queries — there is no failure mode,
// matching spec.md's "Failure mode: none".
type Status struct {
	mu    sync.RWMutex
	lists map[shardtypes.Hash256]*LocalKey
	curr  *shardtypes.Hash256
	next  *shardtypes.Hash256
}

// New returns an empty Status with no curr/next pointer set.
func New() *Status {
	return &Status{lists: make(map[shardtypes.Hash256]*LocalKey)}
}

// AddList records id with the given local key (nil if this node is not
// a member of that list), overwriting any existing entry for id.
func (s *Status) AddList(id shardtypes.Hash256, key *LocalKey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lists[id] = key
}

// ContainsList reports whether id is known.
func (s *Status) ContainsList(id shardtypes.Hash256) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.lists[id]
	return ok
}

// RemoveList drops id from the index. If id is currently pointed to by
// curr or next, those pointers are cleared as well — a removed list
// can no longer be "actual or coming".
func (s *Status) RemoveList(id shardtypes.Hash256) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.lists, id)
	if s.curr != nil && *s.curr == id {
		s.curr = nil
	}
	if s.next != nil && *s.next == id {
		s.next = nil
	}
}

// GetList returns the local key recorded for id, or nil if id is
// unknown or this node has no key in that list.
func (s *Status) GetList(id shardtypes.Hash256) *LocalKey {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lists[id]
}

// SetCurr sets the current validator-list pointer. The caller is
// responsible for having already called AddList for id.
func (s *Status) SetCurr(id shardtypes.Hash256) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := id
	s.curr = &v
}

// SetNext sets the next validator-list pointer.
func (s *Status) SetNext(id shardtypes.Hash256) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := id
	s.next = &v
}

// ClearNext clears the next pointer, used once a "next" list becomes
// "curr" and there is no further list already known to replace it.
func (s *Status) ClearNext() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next = nil
}

// Curr returns the current validator-list id, if any.
func (s *Status) Curr() (shardtypes.Hash256, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.curr == nil {
		return shardtypes.Hash256{}, false
	}
	return *s.curr, true
}

// Next returns the next validator-list id, if any.
func (s *Status) Next() (shardtypes.Hash256, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.next == nil {
		return shardtypes.Hash256{}, false
	}
	return *s.next, true
}

// GetLocalKey returns get_list(curr): the local key for the current
// validator list, or nil if curr is unset or we are not a member.
func (s *Status) GetLocalKey() *LocalKey {
	s.mu.RLock()
	curr := s.curr
	s.mu.RUnlock()
	if curr == nil {
		return nil
	}
	return s.GetList(*curr)
}

// ActualOrComing reports whether id equals curr or next.
func (s *Status) ActualOrComing(id shardtypes.Hash256) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.curr != nil && *s.curr == id {
		return true
	}
	if s.next != nil && *s.next == id {
		return true
	}
	return false
}

// KnownHashes returns every list id currently indexed.
func (s *Status) KnownHashes() []shardtypes.Hash256 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]shardtypes.Hash256, 0, len(s.lists))
	for id := range s.lists {
		out = append(out, id)
	}
	return out
}

// GarbageCollect removes every known list id not present in keep and
// not equal to curr or next, mirroring the manager's
// garbage_collect_lists step. It returns the evicted ids so the caller
// can release any engine-side resources keyed on them.
func (s *Status) GarbageCollect(keep map[shardtypes.Hash256]struct{}) []shardtypes.Hash256 {
	s.mu.Lock()
	defer s.mu.Unlock()
	var evicted []shardtypes.Hash256
	for id := range s.lists {
		if _, ok := keep[id]; ok {
			continue
		}
		if s.curr != nil && *s.curr == id {
			continue
		}
		if s.next != nil && *s.next == id {
			continue
		}
		delete(s.lists, id)
		evicted = append(evicted, id)
	}
	return evicted
}
