package workerpool

import (
	"sync"

	"github.com/netsec-ml/netsec/netsec-golib/errors"
)

// Job is a unit of work run by the pool
type Job func() error

// Pool runs jobs on a fixed number of goroutines.
type Pool struct {
	jobs chan Job
	wg   sync.WaitGroup
	stop chan struct{}
	once sync.Once

	m    sync.Mutex
	errs error
	quit sync.WaitGroup
}

// New creates a pool with n workers (at least one).
func New(n int) *Pool {
	if n < 1 {
		n = 1
	}
	p := &Pool{
		jobs: make(chan Job),
		stop: make(chan struct{}),
	}
	p.quit.Add(n)
	for i := 0; i < n; i++ {
		go p.work()
	}
	return p
}

func (p *Pool) work() {
	defer p.quit.Done()
	for {
		select {
		case <-p.stop:
			return
		case job := <-p.jobs:
			p.run(job)
		}
	}
}

func (p *Pool) run(job Job) {
	defer p.wg.Done()
	select {
	case <-p.stop:
		return
	default:
	}
	if err := job(); err != nil {
		p.m.Lock()
		p.errs = errors.Append(p.errs, err)
		p.m.Unlock()
	}
}

// Add queues jobs. It does not block on their completion.
func (p *Pool) Add(jobs []Job) {
	p.wg.Add(len(jobs))
	go func() {
		for _, job := range jobs {
			select {
			case p.jobs <- job:
			case <-p.stop:
				p.wg.Done()
			}
		}
	}()
}

// Wait blocks until all queued jobs are done (or skipped after Stop) and
// returns the errors they produced.
func (p *Pool) Wait() error {
	p.wg.Wait()
	p.m.Lock()
	defer p.m.Unlock()
	return p.errs
}

// Stop prevents queued jobs that have not started from running. Running jobs finish.
func (p *Pool) Stop() {
	p.once.Do(func() { close(p.stop) })
}

// Close stops the workers once all jobs are done.
func (p *Pool) Close() error {
	err := p.Wait()
	p.Stop()
	p.quit.Wait()
	return err
}
