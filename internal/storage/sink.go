package storage

import (
	"context"
	"fmt"
	"sync"

	"moonwalketl/internal/table"
)

// Config is the minimal configuration needed to create a sink.
//
// When to use:
//   - Use Config when constructing a Sink via New.
//
// Edge cases:
//   - Kind must be non-empty and must match a registered backend kind.
//   - DSN is passed through to the backend factory; validation is backend-specific.
//   - EncryptionKey is only meaningful to backends that store contact details;
//     others ignore it.
//
// Errors:
//   - New returns an error if Kind is empty or unsupported.
type Config struct {
	Kind          string
	DSN           string
	EncryptionKey string
}

// Sink is a backend-agnostic destination for the staging tables.
//
// IMPORTANT: This interface is intentionally minimal and focused on the
// operations the loader needs. Each backend implements the semantics in its
// own idiomatic way (SQLite atomic file swap, Postgres truncate-and-reload).
type Sink interface {
	// Close releases any backend resources (connections, file handles, etc).
	//
	// When to use:
	//   - Always call Close when you are done with the sink to avoid leaks.
	//
	// Edge cases:
	//   - Implementations should be safe to call once at process shutdown.
	Close()

	// Load replaces the sink's copy of every given table. A load is
	// all-or-nothing per run: on error the previously loaded data stays
	// untouched.
	Load(ctx context.Context, tables []*table.Table) error
}

type factory func(ctx context.Context, cfg Config) (Sink, error)

var (
	mu        sync.RWMutex
	factories = map[string]factory{}
)

// Register registers a sink backend under a kind (e.g. "postgres", "sqlite").
//
// When to use:
//   - Call Register from an init() function in a backend package.
//   - The `kind` string becomes the lookup key used by New.
//
// Edge cases:
//   - kind must be non-empty.
//   - f must be non-nil.
//   - Registering the same kind more than once panics. This is intentional to
//     fail fast and avoid ambiguous backend selection.
//
// Panics:
//   - If kind is empty.
//   - If f is nil.
//   - If kind is already registered.
func Register(kind string, f factory) {
	mu.Lock()
	defer mu.Unlock()

	if kind == "" {
		panic("storage: Register called with empty kind")
	}
	if f == nil {
		panic("storage: Register called with nil factory")
	}
	if _, exists := factories[kind]; exists {
		panic(fmt.Sprintf("storage: factory already registered for kind=%q", kind))
	}

	factories[kind] = f
}

// New constructs a Sink using the registered backend factory.
//
// When to use:
//   - Call New when a pipeline run needs a destination for the configured
//     backend kind.
//
// Edge cases:
//   - If cfg.Kind is empty, New returns an error.
//   - If cfg.Kind is not registered, New returns an error.
//
// Concurrency:
//   - Safe for concurrent use with Register. New takes a read lock while
//     selecting the factory.
//
// Errors:
//   - Returns an error if cfg.Kind is empty or unsupported.
//   - Returns whatever error the registered factory returns.
func New(ctx context.Context, cfg Config) (Sink, error) {
	if cfg.Kind == "" {
		return nil, fmt.Errorf("storage: missing sink.Kind")
	}

	mu.RLock()
	f := factories[cfg.Kind]
	mu.RUnlock()

	if f == nil {
		return nil, fmt.Errorf("unsupported storage.kind=%s", cfg.Kind)
	}
	return f(ctx, cfg)
}
