// Package dbpool provides the per-worker database connection affinity
// described in spec.md §5: each scheduler worker owns one *sqlx.DB handle
// for its lifetime, created lazily and serialized across workers so the
// driver never races on connection setup.
package dbpool

import (
	"fmt"
	"sync"

	"github.com/jmoiron/sqlx"

	"github.com/asksbj/jpstamp-pipeline/pool"
)

// Config names the DSN a Pool dials when it needs a new connection.
type Config struct {
	Driver string
	DSN    string
}

// Pool hands out one *sqlx.DB per worker ID, reusing the same handle for
// the worker's entire lifetime and creating new handles lazily and under
// a single creation lock, mirroring the teacher's generic
// pool.Pool[T]/objectCache[T] checkout discipline applied to DB handles
// instead of arbitrary pooled objects.
type Pool struct {
	backing pool.Pool[*sqlx.DB]

	mu      sync.Mutex
	byOwner map[int]*sqlx.DB
}

// New builds a Pool that dials cfg.DSN on demand, capped at maxWorkers
// live connections.
func New(cfg Config, maxWorkers int) (*Pool, error) {
	return NewWithFactory(func() (*sqlx.DB, error) {
		db, err := sqlx.Connect(cfg.Driver, cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("dbpool: connect: %w", err)
		}
		return db, nil
	}, maxWorkers)
}

// NewWithFactory builds a Pool from an explicit connection factory,
// bypassing sqlx.Connect. Production code uses New; tests substitute a
// factory that hands out sqlmock-backed handles.
func NewWithFactory(creator pool.ObjectCreator[*sqlx.DB], maxWorkers int) (*Pool, error) {
	destroyer := func(db *sqlx.DB) error {
		return db.Close()
	}

	backing, err := pool.NewPool[*sqlx.DB](creator, destroyer, 0, maxWorkers, 30)
	if err != nil {
		return nil, err
	}
	if err := backing.Start(); err != nil {
		return nil, err
	}

	return &Pool{backing: backing, byOwner: make(map[int]*sqlx.DB)}, nil
}

// Get returns the connection owned by workerID, checking one out of the
// backing pool on first use. A handle the worker already owns is pinged
// first and replaced if the ping fails.
func (p *Pool) Get(workerID int) (*sqlx.DB, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if db, ok := p.byOwner[workerID]; ok {
		if err := db.Ping(); err == nil {
			return db, nil
		}
		p.backing.Delete(db)
		delete(p.byOwner, workerID)
	}

	db, err := p.backing.Checkout()
	if err != nil {
		return nil, fmt.Errorf("dbpool: checkout for worker %d: %w", workerID, err)
	}
	p.byOwner[workerID] = db
	return db, nil
}

// Release returns workerID's connection to the backing pool without
// closing it. Call on worker shutdown.
func (p *Pool) Release(workerID int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	db, ok := p.byOwner[workerID]
	if !ok {
		return
	}
	delete(p.byOwner, workerID)
	p.backing.Checkin(db)
}

// Close shuts down every pooled connection.
func (p *Pool) Close() error {
	p.mu.Lock()
	p.byOwner = make(map[int]*sqlx.DB)
	p.mu.Unlock()
	return p.backing.Close()
}
