package validatormanager

import (
	"context"

	"github.com/tos-network/shardvalidator/engineiface"
	"github.com/tos-network/shardvalidator/shardtypes"
)

// TestUpdateShards exposes updateShards to external tests.
func (m *Manager) TestUpdateShards(state engineiface.McState) error {
	return m.updateShards(context.Background(), state)
}

// TestSessionIDs exposes the tracked session id set to external tests.
func (m *Manager) TestSessionIDs() []shardtypes.Hash256 {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]shardtypes.Hash256, 0, len(m.sessions))
	for id := range m.sessions {
		out = append(out, id)
	}
	return out
}
