package shardaccount_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tos-network/shardvalidator/shardaccount"
	"github.com/tos-network/shardvalidator/shardtypes"
)

type libRoot struct{ h shardtypes.Hash256 }

func (l libRoot) Hash() shardtypes.Hash256 { return l.h }

func key(b byte) shardtypes.Hash256 {
	var h shardtypes.Hash256
	h[0] = b
	return h
}

func TestAddPublicLibraryHashMismatch(t *testing.T) {
	libs := shardaccount.NewLibraries()
	err := libs.AddPublicLibrary(key(1), libRoot{h: key(2)}, addr(1))
	require.ErrorIs(t, err, shardaccount.ErrLibraryHashMismatch)
}

func TestAddPublicLibraryCreatesThenRejectsDuplicatePublisher(t *testing.T) {
	libs := shardaccount.NewLibraries()
	k := key(1)
	require.NoError(t, libs.AddPublicLibrary(k, libRoot{h: k}, addr(1)))

	err := libs.AddPublicLibrary(k, libRoot{h: k}, addr(1))
	require.ErrorIs(t, err, shardaccount.ErrAlreadyPublisher)

	require.NoError(t, libs.AddPublicLibrary(k, libRoot{h: k}, addr(2)))
	d, ok := libs.Get(k)
	require.True(t, ok)
	require.Len(t, d.Publishers, 2)
}

func TestRemovePublicLibraryNotPublished(t *testing.T) {
	libs := shardaccount.NewLibraries()
	err := libs.RemovePublicLibrary(key(1), addr(1))
	require.ErrorIs(t, err, shardaccount.ErrLibraryNotPublished)
}

func TestRemovePublicLibraryNotPublisher(t *testing.T) {
	libs := shardaccount.NewLibraries()
	k := key(1)
	require.NoError(t, libs.AddPublicLibrary(k, libRoot{h: k}, addr(1)))

	err := libs.RemovePublicLibrary(k, addr(2))
	require.ErrorIs(t, err, shardaccount.ErrLibraryNotPublisher)
}

func TestRemovePublicLibraryErasesWhenEmpty(t *testing.T) {
	libs := shardaccount.NewLibraries()
	k := key(1)
	require.NoError(t, libs.AddPublicLibrary(k, libRoot{h: k}, addr(1)))
	require.NoError(t, libs.RemovePublicLibrary(k, addr(1)))

	_, ok := libs.Get(k)
	require.False(t, ok)
}

func TestRemovePublicLibraryKeepsRemainingPublishers(t *testing.T) {
	libs := shardaccount.NewLibraries()
	k := key(1)
	require.NoError(t, libs.AddPublicLibrary(k, libRoot{h: k}, addr(1)))
	require.NoError(t, libs.AddPublicLibrary(k, libRoot{h: k}, addr(2)))
	require.NoError(t, libs.RemovePublicLibrary(k, addr(1)))

	d, ok := libs.Get(k)
	require.True(t, ok)
	require.Len(t, d.Publishers, 1)
}
