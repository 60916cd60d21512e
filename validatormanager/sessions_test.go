package validatormanager

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCountdownDelayTakesTheSmallerLifetime(t *testing.T) {
	require.Equal(t, 30*time.Second, countdownDelay(60, 120))
	require.Equal(t, 30*time.Second, countdownDelay(120, 60))
	require.Equal(t, 0*time.Second, countdownDelay(0, 60))
}
