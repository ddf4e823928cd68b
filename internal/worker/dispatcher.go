package worker

import (
	"container/list"
	"errors"
	"sync"
	"time"
)

var (
	// ErrDispatcherBusy is returned when the inbound queue is full.
	ErrDispatcherBusy = errors.New("dispatcher queue full")
	// ErrDispatcherClosed is returned for jobs submitted or pending after Close.
	ErrDispatcherClosed = errors.New("dispatcher closed")
)

type keyQueue struct {
	jobs     []Job
	enqueued bool
}

// Dispatcher runs long background jobs on a bounded pool of workers.
type Dispatcher struct {
	pool     *jobChannelPool
	JobQueue chan Job // interface for outer jobs get in the dispatcher

	mu        sync.Mutex
	queues    map[string]*keyQueue // pending jobs per key
	ready     *list.List           // round-robin queue of keys
	positions map[string]*list.Element

	quit      chan struct{}
	closeOnce sync.Once
}

func NewDispatcher(minWorkers, maxWorkers, queueSize int, idleTimeout time.Duration) *Dispatcher {
	if queueSize < 1 {
		queueSize = 1
	}
	d := &Dispatcher{
		pool:      newJobChannelPool(minWorkers, maxWorkers, idleTimeout),
		JobQueue:  make(chan Job, queueSize),
		queues:    make(map[string]*keyQueue),
		ready:     list.New(),
		positions: make(map[string]*list.Element),
		quit:      make(chan struct{}),
	}

	for i := 0; i < minWorkers; i++ {
		d.pool.spawnWorker()
	}

	go d.run()
	return d
}

// Submit queues job without blocking.
func (d *Dispatcher) Submit(job Job) error {
	if job.Run == nil {
		return errors.New("job has no run function")
	}
	select {
	case <-d.quit:
		return ErrDispatcherClosed
	default:
	}
	select {
	case d.JobQueue <- job:
		return nil
	default:
		return ErrDispatcherBusy
	}
}

func (d *Dispatcher) run() {
	for {
		// dispatch one job of the key in front of the round-robin queue
		if !d.dispatchOne() {
			select {
			case job := <-d.JobQueue: // wait for work
				d.enqueueJob(job)
			case <-d.quit:
				d.drain()
				return
			}
			continue
		}
		select {
		case <-d.quit:
			d.drain()
			return
		case job := <-d.JobQueue:
			d.enqueueJob(job)
		default:
		}
	}
}

// CancelKey drops every pending job for key. Running jobs are not affected.
func (d *Dispatcher) CancelKey(key string) {
	d.mu.Lock()
	q := d.queues[key]
	delete(d.queues, key)
	if elem, ok := d.positions[key]; ok {
		d.ready.Remove(elem)
		delete(d.positions, key)
	}
	d.mu.Unlock()

	if q != nil {
		for _, job := range q.jobs {
			job.finish(ErrDispatcherClosed)
		}
	}
}

func (d *Dispatcher) enqueueJob(job Job) {
	d.mu.Lock()
	defer d.mu.Unlock()

	q := d.queues[job.Key]
	if q == nil {
		q = &keyQueue{}
		d.queues[job.Key] = q
	}
	q.jobs = append(q.jobs, job)
	if q.enqueued {
		return
	}
	q.enqueued = true
	d.positions[job.Key] = d.ready.PushBack(job.Key)
}

// dispatchOne hands the next job of the first key to a worker
func (d *Dispatcher) dispatchOne() bool {
	d.mu.Lock()
	elem := d.ready.Front()
	if elem == nil {
		d.mu.Unlock()
		return false
	}
	key := elem.Value.(string)
	q := d.queues[key]
	job := q.jobs[0]
	q.jobs = q.jobs[1:]
	if len(q.jobs) == 0 {
		q.enqueued = false
		d.ready.Remove(elem)
		delete(d.positions, key)
		delete(d.queues, key)
	} else {
		d.ready.MoveToBack(elem)
	}
	d.mu.Unlock()

	workerChan := d.pool.acquire()
	if workerChan == nil {
		job.finish(ErrDispatcherClosed)
		return true
	}
	debugLog("dispatch job", "job", job.Name, "key", key)
	workerChan <- job
	return true
}

// drain fails every job still waiting in the dispatcher.
func (d *Dispatcher) drain() {
	d.mu.Lock()
	var pending []Job
	for e := d.ready.Front(); e != nil; e = e.Next() {
		pending = append(pending, d.queues[e.Value.(string)].jobs...)
	}
	d.queues = make(map[string]*keyQueue)
	d.positions = make(map[string]*list.Element)
	d.ready.Init()
	d.mu.Unlock()

	for {
		select {
		case job := <-d.JobQueue:
			pending = append(pending, job)
		default:
			for _, job := range pending {
				job.finish(ErrDispatcherClosed)
			}
			return
		}
	}
}

// Close stops accepting jobs, fails pending ones and cancels the context
// handed to running ones.
func (d *Dispatcher) Close() {
	d.closeOnce.Do(func() {
		close(d.quit)
		d.pool.close()
	})
}

// Stats reports the number of live and idle workers.
func (d *Dispatcher) Stats() (running, idle int) {
	return d.pool.size()
}
