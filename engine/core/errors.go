package core

import (
	"errors"
)

var (
	// ErrCacheMiss is returned by the cache codec when no usable cache file exists.
	ErrCacheMiss = errors.New("mesh cache miss")
	// ErrCacheVersion marks a cache file written by a different codec version.
	ErrCacheVersion = errors.New("mesh cache version mismatch")

	ErrImportFailed       = errors.New("mesh import failed")
	ErrUnsupportedFormat  = errors.New("unsupported mesh format")
	ErrNotAnimated        = errors.New("mesh asset is not animated")
	ErrAnimationIndex     = errors.New("animation index out of range")
	ErrAssetNotFound      = errors.New("asset not found")
	ErrInvalidImportFlags = errors.New("invalid import flags")
	ErrUnknown            = errors.New("unknown")
)
