package gleval

import (
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/soypat/glpbr/glbuild"
)

// BatcherConfig configures a [Batcher].
type BatcherConfig struct {
	// Workers is the amount of goroutines evaluating fragments. If zero runtime.NumCPU is used.
	Workers int
	// MinBatch is the least amount of fragments given to a worker. If zero 64 is used.
	MinBatch int
}

// Batcher evaluates a graph over many fragments concurrently. Each worker
// owns an [Evaluator] reading the shared bindings.
type Batcher struct {
	cfg   BatcherConfig
	b     *Bindings
	evals atomic.Uint64
	hits  atomic.Uint64
}

// Configure sets the bindings and configuration of the batcher. Bindings
// must not be modified while an evaluation is in progress.
func (bt *Batcher) Configure(b *Bindings, cfg BatcherConfig) error {
	if b == nil {
		return errors.New("nil bindings")
	} else if cfg.Workers < 0 || cfg.MinBatch < 0 {
		return errors.New("negative batcher configuration")
	}
	if cfg.Workers == 0 {
		cfg.Workers = runtime.NumCPU()
	}
	if cfg.MinBatch == 0 {
		cfg.MinBatch = 64
	}
	bt.b = b
	bt.cfg = cfg
	return nil
}

// Evaluate evaluates root for every fragment in frags and stores the results in dst.
func (bt *Batcher) Evaluate(root *glbuild.Node, frags []Fragment, dst []Value) error {
	if bt.b == nil {
		return errors.New("batcher not configured")
	} else if len(frags) != len(dst) {
		return errMismatchBufferLength
	} else if len(frags) == 0 {
		return errEmptyBuffers
	}
	workers := min(bt.cfg.Workers, (len(frags)+bt.cfg.MinBatch-1)/bt.cfg.MinBatch)
	chunk := (len(frags) + workers - 1) / workers
	var wg sync.WaitGroup
	errs := make([]error, workers)
	for w := range workers {
		start := w * chunk
		end := min(start+chunk, len(frags))
		if start >= end {
			break
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			e := NewEvaluator(bt.b)
			err := e.EvaluateFragments(root, frags[start:end], dst[start:end])
			if err != nil {
				errs[w] = fmt.Errorf("batch at %d: %w", start, err)
			}
			bt.evals.Add(e.Evaluations())
			bt.hits.Add(e.CacheHits())
		}()
	}
	wg.Wait()
	return errors.Join(errs...)
}

// Evaluations returns total node evaluations performed by all workers, including memoized.
func (bt *Batcher) Evaluations() uint64 { return bt.evals.Load() }

// CacheHits returns total amount of memoized node evaluations of all workers.
func (bt *Batcher) CacheHits() uint64 { return bt.hits.Load() }
