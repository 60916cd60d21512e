package control

import "errors"

var (
	// ErrKeyNotFound is returned by export_public_key for an unknown
	// key hash.
	ErrKeyNotFound = errors.New("control: key hash not found in key ring")
	// ErrBundleStoreUnavailable is returned by prepare_bundle/
	// prepare_future_bundle when no BundleStore has been configured.
	ErrBundleStoreUnavailable = errors.New("control: no bundle store configured")
	// ErrMissingKind is returned by Decode for an envelope with no kind tag.
	ErrMissingKind = errors.New("control: envelope missing kind")
)
