package main

import (
	"errors"

	"github.com/tos-network/shardvalidator/engineiface"
)

// errConfigAbsent mirrors the ConfigAbsent taxonomy entry for the
// process-level configuration file itself (distinct from
// validatormanager.ErrConfigAbsent, which covers in-chain config
// params read from the masterchain state).
var errConfigAbsent = errors.New("shardvalidator: node configuration file not found")

// errNoEngineWiring is returned by wireCollaborators: the concrete
// Engine/KeyRing/NodeConfigHandler implementations (the ADNL
// transport, the persistent state/trie storage, the key management
// backend) are external collaborators this module only declares the
// contract for (spec §1, §6) — a deployment links this binary against
// a package providing a real wireCollaborators before it can run
// against a live network.
var errNoEngineWiring = errors.New("shardvalidator: no concrete Engine/KeyRing/NodeConfigHandler wiring linked into this build")

func wireCollaborators(cfg *NodeConfig) (engineiface.Engine, engineiface.KeyRing, engineiface.NodeConfigHandler, error) {
	return nil, nil, nil, errNoEngineWiring
}
