package rates

import "errors"

var (
	// ErrInvalidFeed is returned by Ingest for structurally unusable feeds.
	ErrInvalidFeed = errors.New("invalid feed")
	// ErrSeedUnavailable is returned when every read tier is empty and the
	// seed dataset cannot be loaded.
	ErrSeedUnavailable = errors.New("seed dataset unavailable")

	ErrCurrencyNotFound = errors.New("currency not found")
	ErrCurrencyExists   = errors.New("currency already exists")
	ErrInvalidCurrency  = errors.New("invalid currency")
	ErrCurrencyInUse    = errors.New("currency referenced by stored rates")
)
