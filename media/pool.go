package media

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"mediakeyd/log"
)

// Job is one fired binding waiting to be dispatched.
type Job struct {
	Source string
	Action Action
	Chord  string
}

type PoolOptions struct {
	// Timeout bounds each resolve+invoke. Zero means 5s.
	Timeout time.Duration
	// QueueSize is the inbox length per key. Zero means 8.
	QueueSize int
	// OnResult, if set, is called after every job on the job's worker.
	OnResult func(Job, error)
}

type PoolStats struct {
	Done    int64
	Failed  int64
	Dropped int64
}

// Pool runs jobs off the hook thread. Jobs submitted under the same key run
// one at a time in submission order; different keys run concurrently.
type Pool struct {
	dispatcher Dispatcher
	opts       PoolOptions
	ctx        context.Context
	cancel     context.CancelFunc

	mu      sync.Mutex
	workers map[string]chan Job
	closed  bool
	wg      sync.WaitGroup

	done    atomic.Int64
	failed  atomic.Int64
	dropped atomic.Int64
}

func NewPool(d Dispatcher, opts PoolOptions) *Pool {
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 8
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Pool{
		dispatcher: d,
		opts:       opts,
		ctx:        ctx,
		cancel:     cancel,
		workers:    make(map[string]chan Job),
	}
}

// Submit queues job under key without blocking. It reports false when the
// pool is closed or the key's inbox is full.
func (p *Pool) Submit(key string, job Job) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return false
	}
	inbox, ok := p.workers[key]
	if !ok {
		inbox = make(chan Job, p.opts.QueueSize)
		p.workers[key] = inbox
		p.wg.Add(1)
		go p.work(inbox)
	}
	select {
	case inbox <- job:
		return true
	default:
		p.dropped.Add(1)
		log.Warnf("dispatch queue full for %s, dropping %s", key, job.Action)
		return false
	}
}

// Retire stops the worker for key once its queued jobs have run.
func (p *Pool) Retire(key string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if inbox, ok := p.workers[key]; ok {
		close(inbox)
		delete(p.workers, key)
	}
}

// Close runs the queued jobs, then stops every worker.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	for key, inbox := range p.workers {
		close(inbox)
		delete(p.workers, key)
	}
	p.mu.Unlock()

	p.wg.Wait()
	p.cancel()
}

func (p *Pool) Stats() PoolStats {
	return PoolStats{
		Done:    p.done.Load(),
		Failed:  p.failed.Load(),
		Dropped: p.dropped.Load(),
	}
}

func (p *Pool) work(inbox <-chan Job) {
	defer p.wg.Done()
	for job := range inbox {
		p.run(job)
	}
}

func (p *Pool) run(job Job) {
	start := time.Now()
	err := p.dispatch(job)
	log.DispatchResult(job.Source, job.Action.String(), time.Since(start), err)
	if err != nil {
		p.failed.Add(1)
	} else {
		p.done.Add(1)
	}
	if p.opts.OnResult != nil {
		p.opts.OnResult(job, err)
	}
}

func (p *Pool) dispatch(job Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &DispatchError{Source: job.Source, Action: job.Action, Err: fmt.Errorf("panic: %v", r)}
			log.Errorf("dispatch %s %s panicked: %v\n%s", job.Source, job.Action, r, debug.Stack())
		}
	}()
	ctx, cancel := context.WithTimeout(p.ctx, p.opts.Timeout)
	defer cancel()
	return Run(ctx, p.dispatcher, job.Source, job.Action)
}
