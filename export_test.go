package stagepipe

import "github.com/panjf2000/ants/v2"

// Pools returns the underlying pools
func (p *Pools) Pools() []*ants.Pool {
	if p == nil {
		return nil
	}
	return p.pools
}

// Pool returns the pool hosting the stage workers
func (s *Stage[In, Out]) Pool() *ants.Pool {
	return s.pool
}
