// Package transport carries coordination messages between the participants of
// a search session. Two implementations exist: an in-process network of
// mailboxes for participants hosted as goroutines, and a Redis-backed endpoint
// for participants running in separate processes.
//
// Delivery is point-to-point and FIFO per sender/receiver pair. Sends never
// block on the receiver.
package transport

import (
	"context"
	"errors"
	"fmt"

	"github.com/dyluth/keyhunt/pkg/blackboard"
)

// ParticipantID identifies a participant within a session, in [0, N).
type ParticipantID = blackboard.ParticipantID

// Message is a coordination message.
type Message = blackboard.Message

var (
	// ErrClosed is returned by operations on a closed endpoint.
	ErrClosed = errors.New("transport closed")

	// ErrUnknownParticipant is returned when a message is addressed outside [0, N).
	ErrUnknownParticipant = errors.New("unknown participant")
)

// Transport is one participant's endpoint.
type Transport interface {
	// ID returns the participant this endpoint belongs to.
	ID() ParticipantID

	// Size returns the number of participants in the session.
	Size() int

	// Send delivers msg to participant to. The sender field is set by the
	// endpoint.
	Send(ctx context.Context, to ParticipantID, msg Message) error

	// Recv blocks until a message arrives or ctx is done.
	Recv(ctx context.Context) (Message, error)

	// TryRecv returns the oldest pending message without blocking.
	// ok is false when nothing is pending.
	TryRecv(ctx context.Context) (msg Message, ok bool, err error)

	// Close releases the endpoint. Pending and future messages are dropped.
	Close() error
}

func checkPeer(to ParticipantID, size int) error {
	if to < 0 || int(to) >= size {
		return fmt.Errorf("%w: %d (session has %d)", ErrUnknownParticipant, to, size)
	}
	return nil
}
