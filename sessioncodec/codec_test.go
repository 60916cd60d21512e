package sessioncodec_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tos-network/shardvalidator/sessioncodec"
	"github.com/tos-network/shardvalidator/shardtypes"
)

func sampleOptions() shardtypes.SessionOptions {
	return shardtypes.SessionOptions{
		CatchainIdleTimeoutMs:    400,
		CatchainMaxDepsMs:        600,
		RoundCandidates:          3,
		NextCandidateDelayMs:     2000,
		RoundAttemptDurationSec:  16,
		MaxRoundAttempts:         4,
		MaxBlockSizeBytes:        2 << 20,
		MaxCollatedDataSizeBytes: 2 << 20,
		NewCatchainIds:           true,
	}
}

func TestHashSessionOptionsDeterministic(t *testing.T) {
	opt := sampleOptions()
	h1, err := sessioncodec.HashSessionOptions(opt)
	require.NoError(t, err)
	h2, err := sessioncodec.HashSessionOptions(opt)
	require.NoError(t, err)
	require.Equal(t, h1, h2)
}

func TestHashSessionOptionsChangesWithFields(t *testing.T) {
	opt := sampleOptions()
	h1, err := sessioncodec.HashSessionOptions(opt)
	require.NoError(t, err)

	opt.RoundCandidates++
	h2, err := sessioncodec.HashSessionOptions(opt)
	require.NoError(t, err)
	require.NotEqual(t, h1, h2)
}

func TestEncodeSessionOptionsRejectsLegacy(t *testing.T) {
	opt := sampleOptions()
	opt.NewCatchainIds = false
	_, err := sessioncodec.EncodeSessionOptions(opt)
	require.ErrorIs(t, err, sessioncodec.ErrLegacyCatchainIDsUnsupported)
}

func descriptor(seed byte, weight uint64) shardtypes.ValidatorDescriptor {
	var pk shardtypes.PublicKey
	pk[0] = seed
	return shardtypes.ValidatorDescriptor{PublicKey: pk, Weight: weight}
}

func TestDeriveSessionIDDeterministicAndVariesByCatchainSeqno(t *testing.T) {
	// DeriveSessionID hashes the subset in the order it is given and does
	// not sort it, so callers pass the subset in a canonical order (as
	// start_sessions does with computeValidatorSubset's result); this test
	// pins that the id is a pure function of its inputs and that it
	// changes with the catchain seqno.
	shard := shardtypes.FullShard(0)
	optHash, err := sessioncodec.HashSessionOptions(sampleOptions())
	require.NoError(t, err)

	subset := []shardtypes.ValidatorDescriptor{descriptor(1, 10), descriptor(2, 20)}
	in := sessioncodec.SessionIDInput{
		Shard:             shard,
		Subset:            subset,
		CatchainSeqno:     5,
		SessionOptionHash: optHash,
		MainValidators:    2,
	}
	id1 := sessioncodec.DeriveSessionID(in)
	id2 := sessioncodec.DeriveSessionID(in)
	require.Equal(t, id1, id2)

	in.CatchainSeqno++
	id3 := sessioncodec.DeriveSessionID(in)
	require.NotEqual(t, id1, id3)
}

// TestDeriveSessionIDVariesByKeyBlockSeqno guards against two
// masterchain states from different key-block epochs, but with
// otherwise identical shard/subset/catchain-seqno/options-hash,
// colliding on the same session id.
func TestDeriveSessionIDVariesByKeyBlockSeqno(t *testing.T) {
	shard := shardtypes.FullShard(0)
	optHash, err := sessioncodec.HashSessionOptions(sampleOptions())
	require.NoError(t, err)

	in := sessioncodec.SessionIDInput{
		Shard:             shard,
		Subset:            []shardtypes.ValidatorDescriptor{descriptor(1, 10)},
		CatchainSeqno:     5,
		KeyBlockSeqno:     100,
		SessionOptionHash: optHash,
		MainValidators:    1,
	}
	id1 := sessioncodec.DeriveSessionID(in)

	in.KeyBlockSeqno = 200
	id2 := sessioncodec.DeriveSessionID(in)
	require.NotEqual(t, id1, id2)
}

func TestHashValidatorListOrderInvariant(t *testing.T) {
	a := []shardtypes.ValidatorDescriptor{descriptor(1, 10), descriptor(2, 20)}
	b := []shardtypes.ValidatorDescriptor{descriptor(2, 20), descriptor(1, 10)}
	require.Equal(t, sessioncodec.HashValidatorList(a), sessioncodec.HashValidatorList(b))

	c := []shardtypes.ValidatorDescriptor{descriptor(1, 10), descriptor(2, 21)}
	require.NotEqual(t, sessioncodec.HashValidatorList(a), sessioncodec.HashValidatorList(c))
}
