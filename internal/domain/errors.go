package domain

import "errors"

var (
	// ErrFormat means a signed-request text did not match any of the
	// accepted wire formats. Rejected, never retried.
	ErrFormat = errors.New("malformed signed request")
	// ErrDecode means base64 or DER decoding of a key/signature failed.
	ErrDecode = errors.New("undecodable key or signature")
	// ErrInput means the sizer was handed an invalid budget or ask ladder.
	ErrInput = errors.New("invalid sizer input")

	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrRateLimited   = errors.New("rate limited")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrLockHeld      = errors.New("lock already held")
	ErrContextDone   = errors.New("context cancelled")
)
