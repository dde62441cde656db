package domain

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrStalePrice    = errors.New("price sample is stale")
	ErrInvalidPrice  = errors.New("invalid price")
	ErrBundleExists  = errors.New("bundle already queued")
	ErrBundleExpired = errors.New("bundle expired")
	ErrRateLimited   = errors.New("rate limited")
	ErrWSDisconnect  = errors.New("websocket disconnected")
)
