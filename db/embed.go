package db

import "embed"

// SQLEmbeddedFS holds the runnable sql files compiled into the binary. The
// application mounts this (or an on-disk sql directory during development)
// via internal/mounts and passes the result to NewConnection.
//
//go:embed sql
var SQLEmbeddedFS embed.FS
