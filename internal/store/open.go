package store

import (
	"context"
	"fmt"
)

// Open returns the backend named by backend ("file" or "sqlite").
func Open(ctx context.Context, backend, dir, sqlitePath string) (Store, error) {
	switch backend {
	case "", "file":
		return NewFileStore(dir)
	case "sqlite":
		return NewSQLiteStore(ctx, sqlitePath)
	default:
		return nil, fmt.Errorf("unknown cache backend %q", backend)
	}
}
