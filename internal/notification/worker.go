package notification

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"
)

var (
	// ErrQueueFull is returned when the dispatch queue cannot take another message.
	ErrQueueFull = errors.New("notification queue is full")
	// ErrPoolClosed is returned after Shutdown.
	ErrPoolClosed = errors.New("notification pool is closed")
)

// Broadcaster fans an event out to staff.
type Broadcaster interface {
	Broadcast(ctx context.Context, kind Kind, payload Payload) error
}

// Message is one queued notification.
type Message struct {
	Contact string
	Kind    Kind
	Payload Payload
}

// WorkerPool delivers notifications in the background. It implements Notifier.
type WorkerPool struct {
	size        int
	jobs        chan Message
	sms         Sender
	staff       Broadcaster
	sendTimeout time.Duration

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// NewWorkerPool creates a new worker pool. sms and staff may be nil to disable a channel.
func NewWorkerPool(size, queueSize int, sms Sender, staff Broadcaster, sendTimeout time.Duration) *WorkerPool {
	if size <= 0 {
		size = 1
	}
	if queueSize <= 0 {
		queueSize = size
	}
	if sendTimeout <= 0 {
		sendTimeout = 10 * time.Second
	}
	return &WorkerPool{
		size:        size,
		jobs:        make(chan Message, queueSize),
		sms:         sms,
		staff:       staff,
		sendTimeout: sendTimeout,
	}
}

// Start launches the worker goroutines.
func (wp *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < wp.size; i++ {
		wp.wg.Add(1)
		go wp.worker(ctx, i)
	}
}

// worker is the actual worker goroutine. It drains the queue until Shutdown.
func (wp *WorkerPool) worker(ctx context.Context, id int) {
	defer wp.wg.Done()
	log.Printf("Notification worker %d started", id)
	for msg := range wp.jobs {
		wp.deliver(ctx, msg)
	}
	log.Printf("Notification worker %d shutting down", id)
}

// Notify enqueues a message without blocking.
func (wp *WorkerPool) Notify(ctx context.Context, contact string, kind Kind, payload Payload) error {
	wp.mu.RLock()
	defer wp.mu.RUnlock()
	if wp.closed {
		return ErrPoolClosed
	}
	select {
	case wp.jobs <- Message{Contact: contact, Kind: kind, Payload: payload}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return ErrQueueFull
	}
}

// Jobs returns the jobs channel for testing.
func (wp *WorkerPool) Jobs() chan Message {
	return wp.jobs
}

// Shutdown stops accepting messages and waits for queued ones to be delivered.
func (wp *WorkerPool) Shutdown() {
	wp.mu.Lock()
	if wp.closed {
		wp.mu.Unlock()
		return
	}
	wp.closed = true
	close(wp.jobs)
	wp.mu.Unlock()
	wp.wg.Wait()
}

func (wp *WorkerPool) deliver(ctx context.Context, msg Message) {
	if ctx.Err() != nil {
		// drain queued messages on the way out
		ctx = context.WithoutCancel(ctx)
	}

	switch {
	case wp.sms == nil:
		log.Printf("SMS disabled; %s for order %s not sent", msg.Kind, msg.Payload["transactionId"])
	case msg.Contact == "":
		log.Printf("No contact on order %s; %s not sent", msg.Payload["transactionId"], msg.Kind)
	default:
		sendCtx, cancel := context.WithTimeout(ctx, wp.sendTimeout)
		err := wp.sms.Send(sendCtx, msg.Contact, msg.Kind, msg.Payload)
		cancel()
		if err != nil {
			log.Printf("Error sending %s sms for order %s: %v", msg.Kind, msg.Payload["transactionId"], err)
		}
	}

	if wp.staff != nil && msg.Kind == KindLoadCompleted {
		if err := wp.staff.Broadcast(ctx, msg.Kind, msg.Payload); err != nil {
			log.Printf("Error broadcasting %s for order %s: %v", msg.Kind, msg.Payload["transactionId"], err)
		}
	}
}
