package dispatcher

import (
	"fmt"
	"sync"

	log "github.com/sirupsen/logrus"
)

// TaskRunner executes handler work off the HTTP request path.
type TaskRunner interface {
	Submit(task func()) error
}

// Pool is a fixed-size worker pool with a bounded queue. Submit never blocks
// the caller: when the queue is full the task is dropped with an error, so a
// burst of handler work can delay replies but can never stall the sub-3-second
// acknowledgement back to Slack.
type Pool struct {
	tasks chan func()
	wg    sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

const defaultQueueDepth = 256

func NewPool(workers int) *Pool {
	if workers <= 0 {
		workers = 1
	}

	p := &Pool{
		tasks: make(chan func(), defaultQueueDepth),
	}

	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for task := range p.tasks {
				task()
			}
		}()
	}

	return p
}

func (p *Pool) Submit(task func()) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return fmt.Errorf("Pool.Submit: pool is stopped")
	}

	select {
	case p.tasks <- task:
		return nil
	default:
		return fmt.Errorf("Pool.Submit: queue full, dropping task")
	}
}

// Stop closes the queue and waits for in-flight tasks to drain. Tasks are not
// cancellable once started; a slow third-party call simply delays shutdown.
func (p *Pool) Stop() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.tasks)
	p.mu.Unlock()

	p.wg.Wait()
	log.Info("worker pool drained")
}
