package pipeline

import (
	"context"

	"podbase/internal/store"
)

var _ EpisodeStore = (*store.Client)(nil)

type storePoolSource struct {
	pool *store.Pool
}

// PoolSource adapts a store.Pool to the orchestrator's StorePool
// interface. Size the pool at least as large as the worker count so
// episode processing never queues on client acquisition.
func PoolSource(p *store.Pool) StorePool {
	return &storePoolSource{pool: p}
}

func (s *storePoolSource) Acquire(ctx context.Context) (EpisodeStore, error) {
	c, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (s *storePoolSource) Release(es EpisodeStore) {
	if c, ok := es.(*store.Client); ok {
		s.pool.Release(c)
	}
}
