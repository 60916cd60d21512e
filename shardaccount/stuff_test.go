package shardaccount_test

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tos-network/shardvalidator/shardaccount"
	"github.com/tos-network/shardvalidator/shardtypes"
)

type fakeRoot struct {
	h     shardtypes.Hash256
	empty bool
}

func (f fakeRoot) Hash() shardtypes.Hash256 { return f.h }
func (f fakeRoot) IsEmpty() bool            { return f.empty }

func root(b byte) fakeRoot {
	var h shardtypes.Hash256
	h[0] = b
	return fakeRoot{h: h}
}

func addr(b byte) shardtypes.Hash256 {
	var h shardtypes.Hash256
	h[31] = b
	return h
}

func TestFromShardStateInitializesStateUpdate(t *testing.T) {
	lt := shardaccount.NewSharedLT(0)
	s := shardaccount.FromShardState(addr(1), root(0xA), lt, nil)
	require.Equal(t, s.StateUpdate.OldHash, s.StateUpdate.NewHash)
}

func TestAddTransactionThreadsChainAndAdvancesLT(t *testing.T) {
	lt := shardaccount.NewSharedLT(0)
	s := shardaccount.FromShardState(addr(1), root(0xA), lt, nil)

	tx1 := &shardaccount.Transaction{LogicalTime: lt.Next(), Root: hashOf(1), TotalFees: big.NewInt(5)}
	s.AddTransaction(tx1, root(0xB))
	require.Equal(t, shardtypes.Hash256{}, tx1.PrevTransHash)
	require.Equal(t, uint64(0), tx1.PrevTransLT)
	require.Equal(t, root(0xB).Hash(), s.StateUpdate.NewHash)
	require.Equal(t, root(0xA).Hash(), s.StateUpdate.OldHash)

	tx2 := &shardaccount.Transaction{LogicalTime: lt.Next(), Root: hashOf(2), TotalFees: big.NewInt(1)}
	s.AddTransaction(tx2, root(0xC))
	require.Equal(t, tx1.Root, tx2.PrevTransHash)
	require.Equal(t, tx1.LogicalTime, tx2.PrevTransLT)
	require.Equal(t, root(0xC).Hash(), s.StateUpdate.NewHash)
	require.Len(t, s.Transactions, 2)
}

func TestUpdateShardStateRemovesDestroyedAccount(t *testing.T) {
	lt := shardaccount.NewSharedLT(0)
	s := shardaccount.FromShardState(addr(1), root(0xA), lt, nil)
	s.AccountRoot = fakeRoot{empty: true}

	accounts := map[shardtypes.Hash256]shardaccount.AccountRoot{addr(1): root(0xA)}
	block := s.UpdateShardState(accounts)

	require.Equal(t, addr(1), block.AccountAddr)
	_, present := accounts[addr(1)]
	require.False(t, present)
}

func TestUpdateShardStateKeepsLiveAccount(t *testing.T) {
	lt := shardaccount.NewSharedLT(0)
	s := shardaccount.FromShardState(addr(1), root(0xA), lt, nil)

	accounts := map[shardtypes.Hash256]shardaccount.AccountRoot{}
	s.UpdateShardState(accounts)

	_, present := accounts[addr(1)]
	require.True(t, present)
}

func hashOf(b byte) shardtypes.Hash256 {
	var h shardtypes.Hash256
	h[1] = b
	return h
}
