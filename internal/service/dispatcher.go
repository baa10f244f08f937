package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"vocalsilence/internal/cache"
	"vocalsilence/internal/config"
	"vocalsilence/internal/logging"
	"vocalsilence/internal/model"
)

var ErrDispatcherClosed = errors.New("dispatcher closed")

// MessageHandler turns one inbound message into the replies to send.
type MessageHandler interface {
	HandleMessage(ctx context.Context, msg model.InboundMessage) []string
}

// Dispatcher runs inbound messages in the background after the webhook has
// been acknowledged. Messages of one participant are serialized through the
// participant lock; replies go out in order with a small gap between them.
type Dispatcher struct {
	handler   MessageHandler
	messenger Messenger
	lock      cache.ParticipantLock
	cfg       config.DispatchConfig
	sem       *semaphore.Weighted
	logger    *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.Mutex
	closed bool
}

// NewDispatcher creates a dispatcher. lock may be nil for a single process.
func NewDispatcher(handler MessageHandler, messenger Messenger, lock cache.ParticipantLock, cfg config.DispatchConfig, logger *zap.Logger) *Dispatcher {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Dispatcher{
		handler:   handler,
		messenger: messenger,
		lock:      lock,
		cfg:       cfg,
		sem:       semaphore.NewWeighted(int64(cfg.Workers)),
		logger:    logger.With(zap.String("component", "dispatcher")),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Submit queues msg for processing and returns immediately.
func (d *Dispatcher) Submit(msg model.InboundMessage) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrDispatcherClosed
	}
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		if err := d.sem.Acquire(d.ctx, 1); err != nil {
			d.logger.Warn("message dropped on shutdown", logging.Participant(msg.ParticipantID))
			return
		}
		defer d.sem.Release(1)
		d.Process(d.ctx, msg)
	}()
	return nil
}

// Process handles msg synchronously and sends the replies. It returns the
// replies that were produced, sent or not.
func (d *Dispatcher) Process(ctx context.Context, msg model.InboundMessage) (replies []string) {
	if d.cfg.MessageTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.cfg.MessageTimeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("dispatch panicked", logging.Participant(msg.ParticipantID), zap.Any("panic", r))
		}
	}()

	release, err := d.acquire(ctx, msg.ParticipantID)
	if err != nil {
		d.logger.Error("participant lock failed", logging.Participant(msg.ParticipantID), zap.Error(err))
		replies = []string{GenericErrorReply}
		d.send(ctx, msg.ParticipantID, replies)
		return replies
	}
	defer release()

	replies = d.handler.HandleMessage(ctx, msg)
	d.send(ctx, msg.ParticipantID, replies)
	return replies
}

// Close stops accepting messages and waits for in-flight ones until ctx ends,
// at which point the remaining work is cancelled.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.cancel()
		return nil
	case <-ctx.Done():
		d.cancel()
		<-done
		return fmt.Errorf("dispatcher drain: %w", ctx.Err())
	}
}

func (d *Dispatcher) acquire(ctx context.Context, participantID string) (func(), error) {
	if d.lock == nil {
		return func() {}, nil
	}
	unlock, err := d.lock.Acquire(ctx, participantID)
	if err != nil {
		return nil, err
	}
	return func() {
		// the turn context may already be done
		if err := unlock(context.Background()); err != nil {
			d.logger.Warn("release lock failed", logging.Participant(participantID), zap.Error(err))
		}
	}, nil
}

func (d *Dispatcher) send(ctx context.Context, to string, replies []string) {
	if d.messenger == nil {
		return
	}
	for i, body := range replies {
		if body == "" {
			continue
		}
		if i > 0 && d.cfg.InterMessageDelay > 0 {
			select {
			case <-ctx.Done():
				d.logger.Warn("reply cancelled", logging.Participant(to), zap.Int("remaining", len(replies)-i))
				return
			case <-time.After(d.cfg.InterMessageDelay):
			}
		}
		if _, err := d.messenger.Send(ctx, to, body); err != nil {
			d.logger.Error("send reply failed", logging.Participant(to), zap.Int("part", i+1), zap.Error(err))
			return
		}
	}
}
