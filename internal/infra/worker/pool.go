package worker

import (
	"context"
	"errors"
	"runtime"
	"sync"

	"github.com/rs/zerolog"
)

// Task is a unit of background work executed by the pool.
type Task func(ctx context.Context) error

// Pool runs submitted tasks on a fixed set of workers. Submissions beyond the
// queue capacity are not dropped: Schedule parks them on a goroutine that
// waits for a free slot, so accepted jobs always run eventually.
type Pool struct {
	wg   sync.WaitGroup
	jobs chan Task
	quit chan struct{}
	n    int
	log  *zerolog.Logger
}

func NewPool(workers, queueCapacity int, logger *zerolog.Logger) *Pool {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if queueCapacity <= 0 {
		queueCapacity = workers * 4
	}
	l := logger.With().Str("component", "worker-pool").Logger()
	return &Pool{jobs: make(chan Task, queueCapacity), quit: make(chan struct{}), n: workers, log: &l}
}

func (p *Pool) Start(ctx context.Context) {
	for i := 0; i < p.n; i++ {
		p.wg.Add(1)
		go func(id int) {
			defer p.wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case <-p.quit:
					return
				case task := <-p.jobs:
					if task == nil {
						continue
					}
					if err := task(ctx); err != nil {
						p.log.Error().Err(err).Int("worker", id).Msg("task failed")
					}
				}
			}
		}(i)
	}
}

func (p *Pool) Stop() {
	close(p.quit)
	p.wg.Wait()
}

// Submit enqueues a task, failing fast when the queue is full.
func (p *Pool) Submit(task Task) error {
	if task == nil {
		return errors.New("nil task")
	}
	if p.stopped() {
		return errors.New("pool stopped")
	}
	select {
	case p.jobs <- task:
		return nil
	default:
		return errors.New("worker queue full")
	}
}

func (p *Pool) stopped() bool {
	select {
	case <-p.quit:
		return true
	default:
		return false
	}
}

// Schedule enqueues a run, spilling to a waiting goroutine when the queue is
// full so the caller never blocks and the job is never lost.
func (p *Pool) Schedule(run func(ctx context.Context)) error {
	if run == nil {
		return errors.New("nil run")
	}
	task := Task(func(ctx context.Context) error {
		run(ctx)
		return nil
	})
	if p.stopped() {
		return errors.New("pool stopped")
	}
	select {
	case p.jobs <- task:
		return nil
	default:
	}
	p.log.Warn().Msg("queue saturated, parking job")
	go func() {
		select {
		case <-p.quit:
		case p.jobs <- task:
		}
	}()
	return nil
}
