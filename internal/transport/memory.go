package transport

import (
	"context"
	"fmt"
	"sync"
)

// Network is an in-process set of mailboxes, one per participant.
type Network struct {
	boxes []*mailbox
}

// NewNetwork creates a network for n participants.
func NewNetwork(n int) (*Network, error) {
	if n < 1 {
		return nil, fmt.Errorf("network needs at least one participant, got %d", n)
	}
	boxes := make([]*mailbox, n)
	for i := range boxes {
		boxes[i] = newMailbox()
	}
	return &Network{boxes: boxes}, nil
}

// Size returns the number of participants.
func (n *Network) Size() int {
	return len(n.boxes)
}

// Endpoint returns the transport of participant id.
func (n *Network) Endpoint(id ParticipantID) (Transport, error) {
	if err := checkPeer(id, len(n.boxes)); err != nil {
		return nil, err
	}
	return &memoryEndpoint{net: n, id: id}, nil
}

// mailbox is an unbounded FIFO queue. notify has capacity one and is
// signalled after every append, so a waiting receiver always wakes up.
type mailbox struct {
	mu     sync.Mutex
	queue  []Message
	closed bool
	notify chan struct{}
}

func newMailbox() *mailbox {
	return &mailbox{notify: make(chan struct{}, 1)}
}

func (m *mailbox) put(msg Message) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.queue = append(m.queue, msg)
	m.mu.Unlock()

	select {
	case m.notify <- struct{}{}:
	default:
	}
}

func (m *mailbox) take() (Message, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return Message{}, false, ErrClosed
	}
	if len(m.queue) == 0 {
		return Message{}, false, nil
	}
	msg := m.queue[0]
	m.queue[0] = Message{}
	m.queue = m.queue[1:]
	return msg, true, nil
}

func (m *mailbox) close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.queue = nil
	// Wake a receiver blocked in Recv.
	select {
	case m.notify <- struct{}{}:
	default:
	}
}

type memoryEndpoint struct {
	net *Network
	id  ParticipantID
}

func (e *memoryEndpoint) ID() ParticipantID { return e.id }

func (e *memoryEndpoint) Size() int { return len(e.net.boxes) }

// Send copies msg into the recipient's mailbox. Messages to a closed
// mailbox are dropped.
func (e *memoryEndpoint) Send(ctx context.Context, to ParticipantID, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := checkPeer(to, len(e.net.boxes)); err != nil {
		return err
	}

	msg = msg.Clone()
	msg.From = e.id
	if err := msg.Validate(); err != nil {
		return fmt.Errorf("invalid message: %w", err)
	}
	e.net.boxes[to].put(msg)
	return nil
}

func (e *memoryEndpoint) Recv(ctx context.Context) (Message, error) {
	box := e.net.boxes[e.id]
	for {
		msg, ok, err := box.take()
		if err != nil {
			return Message{}, err
		}
		if ok {
			return msg, nil
		}

		select {
		case <-box.notify:
		case <-ctx.Done():
			return Message{}, ctx.Err()
		}
	}
}

func (e *memoryEndpoint) TryRecv(ctx context.Context) (Message, bool, error) {
	if err := ctx.Err(); err != nil {
		return Message{}, false, err
	}
	return e.net.boxes[e.id].take()
}

func (e *memoryEndpoint) Close() error {
	e.net.boxes[e.id].close()
	return nil
}
