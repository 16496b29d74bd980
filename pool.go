package stagepipe

import (
	"fmt"

	"github.com/panjf2000/ants/v2"
	"github.com/samber/lo"
)

// Pools defines the goroutine pools backing the stages of a pipeline, one pool per stage.
type Pools struct {
	pools []*ants.Pool
}

// Release releases all the pools.
func (p *Pools) Release() {
	if p == nil {
		return
	}
	for _, pool := range p.pools {
		if pool == nil {
			continue
		}
		pool.Release()
	}
}

// Len returns the number of pools.
func (p *Pools) Len() int {
	if p == nil {
		return 0
	}
	return len(p.pools)
}

// NewPoolsWithOptions builds one pool per size in parameters. Every size must be positive:
// a stage worker never leaves its goroutine, so the pool size is the stage worker count.
func NewPoolsWithOptions(poolSizes []int, opts ...ants.Option) (*Pools, error) {
	var err error
	result := &Pools{
		pools: lo.FilterMap(poolSizes, func(size, i int) (pool *ants.Pool, ok bool) {
			if err != nil {
				return nil, false
			}
			pool, err = newPool(size, opts...)
			if err != nil {
				err = fmt.Errorf("pool %d: %w", i, err)
			}
			return pool, err == nil
		}),
	}
	if err != nil {
		result.Release() // release eventually created pools
		return nil, err
	}
	return result, nil
}

// NewPools builds one pool per size in parameters.
func NewPools(poolSizes ...int) (*Pools, error) {
	return NewPoolsWithOptions(poolSizes)
}

func (p *Pools) at(i int) *ants.Pool {
	if p == nil || i < 0 || i >= len(p.pools) {
		return nil
	}
	return p.pools[i]
}

func newPool(size int, opts ...ants.Option) (*ants.Pool, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidWorkerCount, size)
	}
	// workers live as long as their stage: they must never be purged as idle
	opts = append([]ants.Option{ants.WithDisablePurge(true)}, opts...)
	return ants.NewPool(size, opts...)
}
