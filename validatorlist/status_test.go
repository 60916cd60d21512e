package validatorlist_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tos-network/shardvalidator/shardtypes"
	"github.com/tos-network/shardvalidator/validatorlist"
)

func id(b byte) shardtypes.Hash256 {
	var h shardtypes.Hash256
	h[0] = b
	return h
}

func TestStatusTotalQueries(t *testing.T) {
	s := validatorlist.New()
	a := id(1)

	require.False(t, s.ContainsList(a))
	require.Nil(t, s.GetList(a))
	require.False(t, s.ActualOrComing(a))
	require.Nil(t, s.GetLocalKey())
	require.Empty(t, s.KnownHashes())

	s.RemoveList(a) // removing an unknown id must not panic or error
}

func TestCurrNextAndLocalKey(t *testing.T) {
	s := validatorlist.New()
	a, b := id(1), id(2)
	key := &validatorlist.LocalKey{}

	s.AddList(a, key)
	s.AddList(b, nil)
	s.SetCurr(a)
	s.SetNext(b)

	require.True(t, s.ActualOrComing(a))
	require.True(t, s.ActualOrComing(b))
	require.False(t, s.ActualOrComing(id(3)))
	require.Same(t, key, s.GetLocalKey())

	curr, ok := s.Curr()
	require.True(t, ok)
	require.Equal(t, a, curr)
}

func TestRemoveListClearsCurrNext(t *testing.T) {
	s := validatorlist.New()
	a := id(1)
	s.AddList(a, nil)
	s.SetCurr(a)
	s.RemoveList(a)

	_, ok := s.Curr()
	require.False(t, ok)
	require.False(t, s.ContainsList(a))
}

func TestGarbageCollectKeepsCurrNext(t *testing.T) {
	s := validatorlist.New()
	a, b, c := id(1), id(2), id(3)
	s.AddList(a, nil)
	s.AddList(b, nil)
	s.AddList(c, nil)
	s.SetCurr(a)
	s.SetNext(b)

	s.GarbageCollect(map[shardtypes.Hash256]struct{}{})

	require.True(t, s.ContainsList(a))
	require.True(t, s.ContainsList(b))
	require.False(t, s.ContainsList(c))
}
