/*
Package trainpool implements the BaseTrainerPool of §4.3: a bounded
worker pool that trains one base.Learner per node in parallel and
streams the results, in node-index order, to a single weights file.

The pool is deliberately dumb about what a "node" means - it only
knows about integer job indices, target/feature slices and a
base.Factory - so both the PLT/HSM/BR node assigner pipeline and the
tree package's top-down build strategy (which trains one classifier
per label-subset while it grows the tree) can share it.

The worker-pool shape (channel of jobs fanned out to N goroutines,
results reassembled by index) follows the same pattern used by
pbanos/botanic's in-process queue and by wlattner/rf's forest
trainer, adapted here to guarantee node-index ordering on write
instead of leaving it to happen to line up.
*/
package trainpool

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"sync"

	"github.com/pbanos/napkinxc/base"
	"github.com/pbanos/napkinxc/vector"
)

// Job is one node's binary sub-problem: parallel Targets/Features (and
// optional per-example Weights) plus the node Index the trained
// learner belongs to.
type Job struct {
	Index    int
	Targets  []float64
	Features []*vector.Sparse
	Weights  []float64
}

// Pool trains base learners for a batch of Jobs on a bounded number of
// worker goroutines.
type Pool struct {
	threads int
	factory base.Factory
	args    base.Args
}

// New returns a Pool that will run at most threads jobs concurrently
// (threads < 1 means unbounded-by-the-pool, capped at len(jobs)).
func New(threads int, factory base.Factory, args base.Args) *Pool {
	return &Pool{threads: threads, factory: factory, args: args}
}

type result struct {
	index   int
	learner base.Learner
	err     error
}

// Train trains every job concurrently and returns the resulting
// learners indexed by their position in the returned slice, which is
// sized to 1 + the maximum job Index. Jobs whose Index has no entry
// (skipped nodes) are left nil.
func (p *Pool) Train(jobs []Job) ([]base.Learner, error) {
	if len(jobs) == 0 {
		return nil, nil
	}
	maxIndex := 0
	for _, j := range jobs {
		if j.Index > maxIndex {
			maxIndex = j.Index
		}
	}
	learners := make([]base.Learner, maxIndex+1)

	workers := p.threads
	if workers < 1 || workers > len(jobs) {
		workers = len(jobs)
	}

	in := make(chan Job)
	out := make(chan result)
	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			for j := range in {
				learner := p.factory()
				err := learner.Train(j.Targets, j.Features, j.Weights, p.args)
				out <- result{index: j.Index, learner: learner, err: err}
			}
		}()
	}
	go func() {
		for _, j := range jobs {
			in <- j
		}
		close(in)
	}()
	go func() {
		wg.Wait()
		close(out)
	}()

	var firstErr error
	for r := range out {
		if r.err != nil && firstErr == nil {
			firstErr = fmt.Errorf("training node %d: %w", r.index, r.err)
			continue
		}
		learners[r.index] = r.learner
	}
	if firstErr != nil {
		return nil, firstErr
	}
	return learners, nil
}

// TrainStream trains every job concurrently, as Train does, but writes
// the resulting learners to w in strictly increasing node-index order
// instead of returning them: an int32 size followed by that many
// serialized bases in node-index order, with no per-base presence
// flag (model.Model.Save's weights.bin carries one before each base,
// so the two layouts differ). This is the "completion map keyed by index, drained in
// order" the design notes call for: results land on a channel as they
// finish, are stashed in a small map, and are flushed to disk as soon
// as the next expected index becomes available.
func (p *Pool) TrainStream(jobs []Job, w io.Writer, size int) error {
	workers := p.threads
	if workers < 1 || workers > len(jobs) {
		workers = len(jobs)
	}
	if workers == 0 {
		workers = 1
	}

	in := make(chan Job)
	out := make(chan result)
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for j := range in {
				learner := p.factory()
				err := learner.Train(j.Targets, j.Features, j.Weights, p.args)
				out <- result{index: j.Index, learner: learner, err: err}
			}
		}()
	}
	go func() {
		for _, j := range jobs {
			in <- j
		}
		close(in)
	}()
	go func() {
		wg.Wait()
		close(out)
	}()

	bw := bufio.NewWriter(w)
	if err := binary.Write(bw, binary.LittleEndian, int32(size)); err != nil {
		return err
	}

	pending := make(map[int]base.Learner)
	next := 0
	flush := func() error {
		for {
			l, ok := pending[next]
			if !ok {
				return nil
			}
			if l == nil {
				return fmt.Errorf("streaming weights: node %d has no trained base", next)
			}
			if err := l.Save(bw); err != nil {
				return err
			}
			delete(pending, next)
			next++
		}
	}

	var firstErr error
	for r := range out {
		if r.err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("training node %d: %w", r.index, r.err)
			}
			continue
		}
		pending[r.index] = r.learner
		if firstErr == nil {
			if err := flush(); err != nil {
				firstErr = err
			}
		}
	}
	if firstErr != nil {
		return firstErr
	}
	if next != size {
		return fmt.Errorf("streaming weights: expected %d nodes, wrote %d", size, next)
	}
	return bw.Flush()
}
