package common

import (
	"sync"

	"github.com/rs/zerolog/log"
)

// KeyedQueue runs submitted tasks one at a time per key, in the order
// they were submitted. Tasks for different keys run concurrently
type KeyedQueue struct {
	mu     sync.Mutex
	send   sync.RWMutex
	queues map[string]chan func()
	size   int
	closed bool
	wg     sync.WaitGroup
}

func NewKeyedQueue(size int) *KeyedQueue {
	if size <= 0 {
		size = 1
	}
	return &KeyedQueue{queues: make(map[string]chan func()), size: size}
}

// Submit a task for the key. Blocks while the queue of the key is full.
// Returns false if the queue has been closed
func (q *KeyedQueue) Submit(key string, task func()) bool {
	// Close waits for in-flight sends before closing the channels
	q.send.RLock()
	defer q.send.RUnlock()

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}
	queue, ok := q.queues[key]
	if !ok {
		queue = make(chan func(), q.size)
		q.queues[key] = queue
		q.wg.Add(1)
		go q.work(key, queue)
	}
	q.mu.Unlock()

	queue <- task
	return true
}

func (q *KeyedQueue) work(key string, queue chan func()) {
	defer q.wg.Done()
	for task := range queue {
		q.run(key, task)
	}
}

func (q *KeyedQueue) run(key string, task func()) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("key", key).Interface("panic", r).Msg("Queued task panicked")
		}
	}()
	task()
}

// Close stops accepting tasks and waits for the queued ones to finish
func (q *KeyedQueue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	q.mu.Unlock()

	q.send.Lock()
	for _, queue := range q.queues {
		close(queue)
	}
	q.send.Unlock()
	q.wg.Wait()
}
