// Package blob is a thin object-store abstraction used as the target of
// CSV snapshot exports.
package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
)

// Driver identifies a blob backend.
type Driver string

const (
	DriverFilesystem Driver = "fs"
	DriverS3         Driver = "s3"
	DriverMemory     Driver = "memory"
)

// ErrNotFound is returned by Get for a missing key.
var ErrNotFound = errors.New("blob: not found")

// Info describes a stored object.
type Info struct {
	Key          string    `json:"key"`
	Size         int64     `json:"size_bytes"`
	ContentType  string    `json:"content_type,omitempty"`
	LastModified time.Time `json:"last_modified"`
}

// Store writes and reads whole objects. Put overwrites an existing key.
type Store interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (Info, error)
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	// List returns objects under prefix ordered by key.
	List(ctx context.Context, prefix string) ([]Info, error)
	Driver() Driver
}

type Config struct {
	Driver Driver
	Root   string // filesystem root
	S3     S3Config
}

// Open selects a Store implementation from cfg.
func Open(ctx context.Context, cfg Config) (Store, error) {
	switch Driver(strings.ToLower(string(cfg.Driver))) {
	case "", DriverFilesystem:
		return NewFilesystem(cfg.Root)
	case DriverS3:
		return NewS3(ctx, cfg.S3)
	case DriverMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown blob driver %s", cfg.Driver)
	}
}

// sanitizeKey rejects keys that could escape a filesystem root.
func sanitizeKey(key string) (string, error) {
	if strings.TrimSpace(key) == "" {
		return "", fmt.Errorf("empty key")
	}
	if strings.Contains(key, "..") {
		return "", fmt.Errorf("invalid key contains '..'")
	}
	if strings.HasPrefix(key, "/") {
		return "", fmt.Errorf("invalid absolute key")
	}
	return key, nil
}
