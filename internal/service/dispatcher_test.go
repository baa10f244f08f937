package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"vocalsilence/internal/config"
	"vocalsilence/internal/model"
)

// memLock is an in-process participant lock.
type memLock struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
	err   error
}

func (l *memLock) Acquire(_ context.Context, id string) (func(context.Context) error, error) {
	if l.err != nil {
		return nil, l.err
	}
	l.mu.Lock()
	if l.locks == nil {
		l.locks = map[string]*sync.Mutex{}
	}
	m, ok := l.locks[id]
	if !ok {
		m = &sync.Mutex{}
		l.locks[id] = m
	}
	l.mu.Unlock()

	m.Lock()
	return func(context.Context) error {
		m.Unlock()
		return nil
	}, nil
}

// overlapHandler fails the test if two turns of one participant overlap.
type overlapHandler struct {
	t      *testing.T
	mu     sync.Mutex
	active map[string]int
	seen   map[string]int
}

func (h *overlapHandler) HandleMessage(_ context.Context, msg model.InboundMessage) []string {
	h.mu.Lock()
	if h.active == nil {
		h.active, h.seen = map[string]int{}, map[string]int{}
	}
	h.active[msg.ParticipantID]++
	assert.Equal(h.t, 1, h.active[msg.ParticipantID], "concurrent turns for %s", msg.ParticipantID)
	h.mu.Unlock()

	time.Sleep(5 * time.Millisecond)

	h.mu.Lock()
	h.active[msg.ParticipantID]--
	h.seen[msg.ParticipantID]++
	h.mu.Unlock()
	return []string{msg.Body + "-a", msg.Body + "-b"}
}

type handlerFunc func(ctx context.Context, msg model.InboundMessage) []string

func (f handlerFunc) HandleMessage(ctx context.Context, msg model.InboundMessage) []string {
	return f(ctx, msg)
}

func testDispatchConfig() config.DispatchConfig {
	return config.DispatchConfig{Workers: 4, MessageTimeout: time.Second, InterMessageDelay: time.Millisecond}
}

func TestDispatcherSerializesParticipants(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	handler := &overlapHandler{t: t}
	messenger := &recordingMessenger{}
	d := NewDispatcher(handler, messenger, &memLock{}, testDispatchConfig(), zap.NewNop())

	for i := 0; i < 10; i++ {
		for _, p := range []string{"p1", "p2"} {
			require.NoError(t, d.Submit(model.InboundMessage{ParticipantID: p, Body: fmt.Sprintf("%s-%d", p, i)}))
		}
	}
	require.NoError(t, d.Close(context.Background()))

	assert.Equal(t, map[string]int{"p1": 10, "p2": 10}, handler.seen)
	sent := messenger.all()
	assert.Len(t, sent, 40)

	// replies of one turn stay adjacent and ordered for that participant
	last := map[string]string{}
	for _, m := range sent {
		if prev, ok := last[m.to]; ok && prev[len(prev)-2:] == "-a" {
			assert.Equal(t, prev[:len(prev)-2]+"-b", m.body)
		}
		last[m.to] = m.body
	}

	assert.ErrorIs(t, d.Submit(model.InboundMessage{ParticipantID: "p1"}), ErrDispatcherClosed)
}

func TestDispatcherLockFailureSendsRetryReply(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	messenger := &recordingMessenger{}
	called := false
	d := NewDispatcher(handlerFunc(func(context.Context, model.InboundMessage) []string {
		called = true
		return nil
	}), messenger, &memLock{err: errors.New("redis down")}, testDispatchConfig(), zap.NewNop())
	defer d.Close(context.Background())

	out := d.Process(context.Background(), model.InboundMessage{ParticipantID: "p1", Body: "oi"})
	assert.Equal(t, []string{GenericErrorReply}, out)
	assert.False(t, called)
	assert.Equal(t, []sentMessage{{"p1", GenericErrorReply}}, messenger.all())
}

func TestDispatcherRecoversHandlerPanic(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	d := NewDispatcher(handlerFunc(func(context.Context, model.InboundMessage) []string {
		panic("boom")
	}), &recordingMessenger{}, nil, testDispatchConfig(), zap.NewNop())

	require.NoError(t, d.Submit(model.InboundMessage{ParticipantID: "p1"}))
	require.NoError(t, d.Close(context.Background()))
}

func TestDispatcherCloseCancelsSlowTurns(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	started := make(chan struct{})
	cfg := testDispatchConfig()
	cfg.MessageTimeout = time.Minute
	d := NewDispatcher(handlerFunc(func(ctx context.Context, _ model.InboundMessage) []string {
		close(started)
		<-ctx.Done()
		return nil
	}), &recordingMessenger{}, nil, cfg, zap.NewNop())

	require.NoError(t, d.Submit(model.InboundMessage{ParticipantID: "p1"}))
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := d.Close(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
