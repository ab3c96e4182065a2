package transport

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dyluth/keyhunt/pkg/blackboard"
)

// DefaultWaitTimeout bounds a single BLPOP so that Recv notices context
// cancellation. Redis timeouts have one second granularity.
const DefaultWaitTimeout = time.Second

// RedisEndpoint is a participant endpoint backed by per-participant mailbox
// lists on the blackboard.
type RedisEndpoint struct {
	client      *blackboard.Client
	sessionID   string
	id          ParticipantID
	size        int
	waitTimeout time.Duration
	closed      chan struct{}
	closeOnce   sync.Once
}

// NewRedisEndpoint returns the endpoint of participant id in a session with
// size participants.
func NewRedisEndpoint(client *blackboard.Client, sessionID string, id ParticipantID, size int) (*RedisEndpoint, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("session ID cannot be empty")
	}
	if size < 1 {
		return nil, fmt.Errorf("session needs at least one participant, got %d", size)
	}
	if err := checkPeer(id, size); err != nil {
		return nil, err
	}
	return &RedisEndpoint{
		client:      client,
		sessionID:   sessionID,
		id:          id,
		size:        size,
		waitTimeout: DefaultWaitTimeout,
		closed:      make(chan struct{}),
	}, nil
}

func (e *RedisEndpoint) ID() ParticipantID { return e.id }

func (e *RedisEndpoint) Size() int { return e.size }

func (e *RedisEndpoint) isClosed() bool {
	select {
	case <-e.closed:
		return true
	default:
		return false
	}
}

func (e *RedisEndpoint) Send(ctx context.Context, to ParticipantID, msg Message) error {
	if e.isClosed() {
		return ErrClosed
	}
	if err := checkPeer(to, e.size); err != nil {
		return err
	}
	msg.From = e.id
	return e.client.PushMessage(ctx, e.sessionID, to, msg)
}

func (e *RedisEndpoint) Recv(ctx context.Context) (Message, error) {
	for {
		if e.isClosed() {
			return Message{}, ErrClosed
		}
		if err := ctx.Err(); err != nil {
			return Message{}, err
		}

		msg, ok, err := e.client.WaitMessage(ctx, e.sessionID, e.id, e.waitTimeout)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return Message{}, ctxErr
			}
			return Message{}, err
		}
		if ok {
			return msg, nil
		}
	}
}

func (e *RedisEndpoint) TryRecv(ctx context.Context) (Message, bool, error) {
	if e.isClosed() {
		return Message{}, false, ErrClosed
	}
	return e.client.PopMessage(ctx, e.sessionID, e.id)
}

// Close marks the endpoint closed. The mailbox list is left in place for
// inspection and removed with the session.
func (e *RedisEndpoint) Close() error {
	e.closeOnce.Do(func() { close(e.closed) })
	return nil
}
