// Package cache provides a small key/value abstraction with two backends:
// in-process (development, tests) and Redis (production, multi-instance).
//
// The authorization flow uses it for short-lived consent challenges; the
// entries are opaque strings with a TTL and nothing here interprets them.
package cache

import (
	"context"
	"time"
)

// Client is the operation set shared by all backends.
type Client interface {
	// Get returns the value for key, or ErrNotFound.
	Get(ctx context.Context, key string) (string, error)

	// Set stores value under key. A zero ttl means no expiry.
	Set(ctx context.Context, key, value string, ttl time.Duration) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Take returns the value for key and removes it in one atomic
	// step, so concurrent takers see at most one winner. Returns
	// ErrNotFound for a missing (or already-taken) key.
	Take(ctx context.Context, key string) (string, error)

	// Ping reports backend reachability.
	Ping(ctx context.Context) error

	Close() error
}

// Config selects and parameterizes a backend.
type Config struct {
	Driver   string `yaml:"driver"` // "memory" | "redis"
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"` // prepended to every key
}

var ErrNotFound = errNotFound{}

type errNotFound struct{}

func (errNotFound) Error() string { return "cache: key not found" }

// IsNotFound reports whether err means the key does not exist.
func IsNotFound(err error) bool {
	_, ok := err.(errNotFound)
	return ok
}

// New builds a cache client for cfg. An unknown or empty driver falls
// back to the in-process backend.
func New(cfg Config) (Client, error) {
	switch cfg.Driver {
	case "redis":
		return NewRedis(cfg)
	default:
		return NewMemory(cfg.Prefix), nil
	}
}

func prefixed(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + ":" + key
}
