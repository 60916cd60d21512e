package validatorgroup_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tos-network/shardvalidator/shardtypes"
	"github.com/tos-network/shardvalidator/validatorgroup"
)

type blockingSession struct {
	started chan struct{}
}

func (s *blockingSession) Run(ctx context.Context) error {
	close(s.started)
	<-ctx.Done()
	return ctx.Err()
}

func TestGroupLattice(t *testing.T) {
	sess := &blockingSession{started: make(chan struct{})}
	g := validatorgroup.New(shardtypes.Hash256{}, shardtypes.FullShard(0), shardtypes.Hash256{}, sess)
	require.Equal(t, validatorgroup.Created, g.Status())

	require.NoError(t, g.Start(context.Background(), validatorgroup.Countdown, time.Hour))
	require.Equal(t, validatorgroup.Countdown, g.Status())

	<-sess.started
	g.PromoteActive()
	require.Equal(t, validatorgroup.Active, g.Status())

	require.NoError(t, g.RequestStop())
	require.Equal(t, validatorgroup.Stopping, g.Status())

	err := g.Wait()
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, validatorgroup.Stopped, g.Status())
}

func TestGroupStartTwiceFails(t *testing.T) {
	sess := &blockingSession{started: make(chan struct{})}
	g := validatorgroup.New(shardtypes.Hash256{}, shardtypes.FullShard(0), shardtypes.Hash256{}, sess)
	require.NoError(t, g.Start(context.Background(), validatorgroup.Active, 0))
	err := g.Start(context.Background(), validatorgroup.Active, 0)
	require.ErrorIs(t, err, validatorgroup.ErrAlreadyStarted)
	_ = g.RequestStop()
	_ = g.Wait()
}

func TestMarkValidatedAndCollated(t *testing.T) {
	sess := &blockingSession{started: make(chan struct{})}
	g := validatorgroup.New(shardtypes.Hash256{}, shardtypes.FullShard(0), shardtypes.Hash256{}, sess)
	require.Equal(t, int64(0), g.LastValidation())

	now := time.Now()
	g.MarkValidated(now)
	require.Equal(t, now.Unix(), g.LastValidation())
	g.MarkCollated(now)
	require.Equal(t, now.Unix(), g.LastCollation())
}

func TestGroupCountdownAutoPromotes(t *testing.T) {
	sess := &blockingSession{started: make(chan struct{})}
	g := validatorgroup.New(shardtypes.Hash256{}, shardtypes.FullShard(0), shardtypes.Hash256{}, sess)
	require.NoError(t, g.Start(context.Background(), validatorgroup.Countdown, 10*time.Millisecond))
	require.Eventually(t, func() bool {
		return g.Status() == validatorgroup.Active
	}, time.Second, 2*time.Millisecond)
	_ = g.RequestStop()
	_ = g.Wait()
}
