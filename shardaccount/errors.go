package shardaccount

import "errors"

var (
	// ErrLibraryHashMismatch is returned when a library key does not
	// equal the hash of the root being published under it.
	ErrLibraryHashMismatch = errors.New("shardaccount: library key does not match root hash")
	// ErrAlreadyPublisher is returned when an account tries to publish
	// a library it is already a publisher of.
	ErrAlreadyPublisher = errors.New("shardaccount: account is already a publisher of this library")
	// ErrLibraryNotPublished is returned when removing a library key
	// that has no descriptor at all.
	ErrLibraryNotPublished = errors.New("shardaccount: library is not published")
	// ErrLibraryCorruptDescriptor is returned when a stored descriptor's
	// root hash does not match its own key.
	ErrLibraryCorruptDescriptor = errors.New("shardaccount: library descriptor is corrupt")
	// ErrLibraryNotPublisher is returned when removing an account from a
	// library's publisher set that it is not a member of.
	ErrLibraryNotPublisher = errors.New("shardaccount: account is not a publisher of this library")
)
