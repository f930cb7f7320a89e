package db

import (
	"database/sql"
	"errors"
	"sync"
)

// Registry owns one connection pool per store path. It is created once at startup
// and passed to whatever needs a store; Close releases every pool it opened.
type Registry struct {
	mu    sync.Mutex
	pools map[string]*sql.DB
	open  func(string) (*sql.DB, error)
}

// NewRegistry returns an empty registry that opens stores with Open.
func NewRegistry() *Registry {
	return &Registry{pools: map[string]*sql.DB{}, open: Open}
}

// Get returns the pool for path, opening and migrating it on first use.
func (r *Registry) Get(path string) (*sql.DB, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.pools == nil {
		return nil, errors.New("registry closed")
	}
	if d, ok := r.pools[path]; ok {
		return d, nil
	}
	d, err := r.open(path)
	if err != nil {
		return nil, err
	}
	r.pools[path] = d
	return d, nil
}

// Close closes every pool. The registry cannot be used afterwards.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var errs []error
	for _, d := range r.pools {
		errs = append(errs, d.Close())
	}
	r.pools = nil
	return errors.Join(errs...)
}
