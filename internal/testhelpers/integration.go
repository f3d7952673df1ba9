//go:build integration
// +build integration

// Package testhelpers builds the session backend used by integration tests.
package testhelpers

import (
	"os"
	"testing"
	"time"

	"github.com/kjstillabower/project-tracker-service/internal/session"
)

// IntegrationTestConfig holds configuration for integration tests.
type IntegrationTestConfig struct {
	SessionBackend string // "in_memory" or "memcached"
	MemcachedAddr  string
}

// GetIntegrationConfig loads integration test configuration from environment.
// INTEGRATION_SESSION_BACKEND selects the backend; MEMCACHED_ADDRS its address.
func GetIntegrationConfig(t *testing.T) IntegrationTestConfig {
	t.Helper()
	backend := os.Getenv("INTEGRATION_SESSION_BACKEND")
	if backend == "" {
		backend = "memcached"
	}
	addr := os.Getenv("MEMCACHED_ADDRS")
	if addr == "" {
		addr = "localhost:11211"
	}
	return IntegrationTestConfig{SessionBackend: backend, MemcachedAddr: addr}
}

// SetupSessionStore returns the configured session store and a cleanup function.
// A memcached backend that does not answer Ping skips the test.
func SetupSessionStore(t *testing.T, cfg IntegrationTestConfig) (session.Store, func() error, func()) {
	t.Helper()
	if cfg.SessionBackend != "memcached" {
		return session.NewInMemoryStore(), nil, func() {}
	}
	store := session.NewMemcachedStore(cfg.MemcachedAddr, 500*time.Millisecond, 2)
	if err := store.Ping(); err != nil {
		_ = store.Close()
		t.Skipf("memcached not available at %s: %v", cfg.MemcachedAddr, err)
	}
	t.Logf("Using memcached sessions at %s", cfg.MemcachedAddr)
	return store, store.Ping, func() { _ = store.Close() }
}
