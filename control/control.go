// Package control implements the ControlQuery boundary: a tagged-
// variant dispatcher over decoded request envelopes, replacing the
// original's sequential type-downcast chain. Rejected is the default
// arm for any request kind the dispatcher does not recognize.
package control

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/tos-network/shardvalidator/engineiface"
	"github.com/tos-network/shardvalidator/log"
	"github.com/tos-network/shardvalidator/shardtypes"
	"github.com/tos-network/shardvalidator/validatormanager"
)

// Kind tags a decoded Request's concrete variant.
type Kind string

const (
	KindGenerateKeyPair       Kind = "generate_keypair"
	KindExportPublicKey       Kind = "export_public_key"
	KindSignData              Kind = "sign_data"
	KindAddValidatorPermKey   Kind = "add_validator_permanent_key"
	KindAddValidatorTempKey   Kind = "add_validator_temp_key"
	KindAddValidatorAdnlAddr  Kind = "add_validator_adnl_address"
	KindAddAdnlAddress        Kind = "add_adnl_address"
	KindPrepareBundle         Kind = "prepare_bundle"
	KindPrepareFutureBundle   Kind = "prepare_future_bundle"
	KindRedirectExternalMsg   Kind = "redirect_external_message"
	KindSetStatesGCInterval   Kind = "set_states_gc_interval"
	KindGetStats              Kind = "get_stats"
)

// Request is a decoded ControlQuery envelope: a kind tag plus its
// opaque JSON payload, parsed further by the matching handler method.
type Request struct {
	Kind    Kind
	Payload json.RawMessage
}

// Response is either a successful, kind-tagged result or Rejected.
type Response struct {
	Rejected bool
	Kind     Kind
	Result   any
	Err      error
}

// Dispatcher routes decoded Requests to the manager/engine/keyring
// operations they name.
type Dispatcher struct {
	Manager    *validatormanager.Manager
	Engine     engineiface.Engine
	KeyRing    engineiface.KeyRing
	NodeConfig engineiface.NodeConfigHandler

	// Now lets tests pin the clock; defaults to time.Now in production.
	Now func() time.Time

	bundles BundleStore
}

// SetBundleStore installs the BundleStore that prepare_bundle/
// prepare_future_bundle requests require; without one they fail with
// ErrBundleStoreUnavailable. Those requests never call Save.
func (d *Dispatcher) SetBundleStore(s BundleStore) { d.bundles = s }

func (d *Dispatcher) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

// Dispatch routes req to its handler, returning Rejected for any Kind
// this dispatcher does not recognize — the tagged-variant replacement
// for the original's sequential downcast chain, whose final arm was
// always "reject unknown types".
func (d *Dispatcher) Dispatch(req Request) Response {
	switch req.Kind {
	case KindGenerateKeyPair:
		return d.generateKeyPair()
	case KindExportPublicKey:
		return d.exportPublicKey(req.Payload)
	case KindSignData:
		return d.signData(req.Payload)
	case KindAddValidatorPermKey:
		return d.addValidatorPermanentKey(req.Payload)
	case KindAddValidatorTempKey:
		// Accepted, no side effects — mirrors the original's stub
		// behavior for this request kind; whether that is intentional
		// or an unfinished stub is an open question the source leaves
		// unresolved, so we reproduce the observed behavior rather than
		// invent a new one.
		return Response{Kind: req.Kind, Result: struct{}{}}
	case KindAddValidatorAdnlAddr:
		return d.addValidatorAdnlAddress(req.Payload)
	case KindAddAdnlAddress:
		// Same stub status as KindAddValidatorTempKey.
		return Response{Kind: req.Kind, Result: struct{}{}}
	case KindPrepareBundle, KindPrepareFutureBundle:
		return d.prepareBundle(req.Kind, req.Payload)
	case KindRedirectExternalMsg:
		return d.redirectExternalMessage(req.Payload)
	case KindSetStatesGCInterval:
		return d.setStatesGCInterval(req.Payload)
	case KindGetStats:
		return d.getStats(req.Payload)
	default:
		log.Warn("control query rejected: unrecognized kind", "kind", req.Kind)
		return Response{Rejected: true, Kind: req.Kind}
	}
}

func errResponse(kind Kind, err error) Response {
	return Response{Kind: kind, Err: err}
}

func (d *Dispatcher) generateKeyPair() Response {
	hash, err := d.KeyRing.Generate()
	if err != nil {
		return errResponse(KindGenerateKeyPair, err)
	}
	return Response{Kind: KindGenerateKeyPair, Result: hash}
}

type keyHashPayload struct {
	KeyHash shardtypes.Hash256 `json:"key_hash"`
}

func (d *Dispatcher) exportPublicKey(payload json.RawMessage) Response {
	var p keyHashPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return errResponse(KindExportPublicKey, fmt.Errorf("decode payload: %w", err))
	}
	exists, err := d.KeyRing.Find(p.KeyHash)
	if err != nil {
		return errResponse(KindExportPublicKey, err)
	}
	if !exists {
		return errResponse(KindExportPublicKey, ErrKeyNotFound)
	}
	return Response{Kind: KindExportPublicKey, Result: p.KeyHash}
}

type signDataPayload struct {
	KeyHash shardtypes.Hash256 `json:"key_hash"`
	Data    []byte             `json:"data"`
}

func (d *Dispatcher) signData(payload json.RawMessage) Response {
	var p signDataPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return errResponse(KindSignData, fmt.Errorf("decode payload: %w", err))
	}
	sig, err := d.KeyRing.SignData(p.KeyHash, p.Data)
	if err != nil {
		return errResponse(KindSignData, err)
	}
	return Response{Kind: KindSignData, Result: sig}
}

type addValidatorKeyPayload struct {
	Key          shardtypes.Hash256 `json:"key"`
	ElectedFrom  uint32             `json:"elected_from"`
	ElectedUntil uint32             `json:"elected_until"`
}

func (d *Dispatcher) addValidatorPermanentKey(payload json.RawMessage) Response {
	var p addValidatorKeyPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return errResponse(KindAddValidatorPermKey, fmt.Errorf("decode payload: %w", err))
	}
	if err := d.NodeConfig.AddValidatorKey(p.Key, p.ElectedFrom, p.ElectedUntil); err != nil {
		return errResponse(KindAddValidatorPermKey, err)
	}
	return Response{Kind: KindAddValidatorPermKey, Result: struct{}{}}
}

type addAdnlKeyPayload struct {
	Key shardtypes.Hash256 `json:"key"`
	TTL uint32             `json:"ttl"`
}

func (d *Dispatcher) addValidatorAdnlAddress(payload json.RawMessage) Response {
	var p addAdnlKeyPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return errResponse(KindAddValidatorAdnlAddr, fmt.Errorf("decode payload: %w", err))
	}
	if err := d.NodeConfig.AddValidatorAdnlKey(p.Key, p.TTL); err != nil {
		return errResponse(KindAddValidatorAdnlAddr, err)
	}
	return Response{Kind: KindAddValidatorAdnlAddr, Result: struct{}{}}
}

type prepareBundlePayload struct {
	BlockID shardtypes.BlockIDExt `json:"block_id"`
}

// BundleStore persists a captured debug bundle. The original writes to
// a fixed on-disk directory ("target/bundles"); storage is out of
// scope here. The dispatcher only checks that a store is installed: it
// assembles no bundle bytes and does not call Save.
type BundleStore interface {
	Save(id shardtypes.BlockIDExt, bundle []byte) error
}

func (d *Dispatcher) prepareBundle(kind Kind, payload json.RawMessage) Response {
	var p prepareBundlePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return errResponse(kind, fmt.Errorf("decode payload: %w", err))
	}
	if d.bundleStore() == nil {
		return errResponse(kind, ErrBundleStoreUnavailable)
	}
	// The actual bundle bytes are assembled by the engine from block
	// data; that assembly is out of scope, so this only validates and
	// routes the request.
	return Response{Kind: kind, Result: p.BlockID}
}

func (d *Dispatcher) bundleStore() BundleStore { return d.bundles }

type redirectPayload struct {
	Message []byte `json:"message"`
}

func (d *Dispatcher) redirectExternalMessage(payload json.RawMessage) Response {
	var p redirectPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return errResponse(KindRedirectExternalMsg, fmt.Errorf("decode payload: %w", err))
	}
	if err := d.Engine.RedirectExternalMessage(p.Message); err != nil {
		return errResponse(KindRedirectExternalMsg, err)
	}
	return Response{Kind: KindRedirectExternalMsg, Result: struct{}{}}
}

type gcIntervalPayload struct {
	IntervalMs uint64 `json:"interval_ms"`
}

func (d *Dispatcher) setStatesGCInterval(payload json.RawMessage) Response {
	var p gcIntervalPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return errResponse(KindSetStatesGCInterval, fmt.Errorf("decode payload: %w", err))
	}
	interval := time.Duration(p.IntervalMs) * time.Millisecond
	if err := d.Engine.AdjustStatesGCInterval(interval); err != nil {
		return errResponse(KindSetStatesGCInterval, err)
	}
	if d.NodeConfig != nil {
		if err := d.NodeConfig.StoreStatesGCInterval(interval); err != nil {
			return errResponse(KindSetStatesGCInterval, err)
		}
	}
	return Response{Kind: KindSetStatesGCInterval, Result: struct{}{}}
}

type getStatsPayload struct {
	LastMcBlock shardtypes.BlockIDExt `json:"last_mc_block"`
	GenUTime    uint32                `json:"gen_utime"`
}

func (d *Dispatcher) getStats(payload json.RawMessage) Response {
	var p getStatsPayload
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &p); err != nil {
			return errResponse(KindGetStats, fmt.Errorf("decode payload: %w", err))
		}
	}
	stats := d.Manager.BuildStats(p.LastMcBlock, p.GenUTime, d.now().Unix())
	return Response{Kind: KindGetStats, Result: stats}
}
