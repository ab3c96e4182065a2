package blackboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dyluth/keyhunt/pkg/keyspace"
	"github.com/redis/go-redis/v9"
)

var (
	// ErrAlreadyJoined is returned by JoinSession when the participant ID is
	// already taken in the session.
	ErrAlreadyJoined = errors.New("participant already joined")

	// ErrDuplicateUnit is returned by RecordUnit when a unit with the same
	// bounds was already issued in the session.
	ErrDuplicateUnit = errors.New("unit already issued")
)

// Client provides namespaced Redis operations for the blackboard.
// All keys and channels are automatically prefixed with the namespace.
// The client is thread-safe and can be used concurrently from multiple goroutines.
type Client struct {
	rdb       *redis.Client
	namespace string
}

// NewClient creates a new blackboard client for the specified namespace.
//
// Parameters:
//   - redisOpts: Redis connection options (address, password, DB, etc.)
//   - namespace: deployment identifier (must not be empty)
//
// Returns an error if namespace is empty.
func NewClient(redisOpts *redis.Options, namespace string) (*Client, error) {
	if namespace == "" {
		return nil, fmt.Errorf("namespace cannot be empty")
	}

	return &Client{
		rdb:       redis.NewClient(redisOpts),
		namespace: namespace,
	}, nil
}

// Namespace returns the namespace all keys are prefixed with.
func (c *Client) Namespace() string {
	return c.namespace
}

// Close closes the Redis connection. Implements io.Closer.
// After calling Close(), the client should not be used.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Ping verifies Redis connectivity. Useful for health checks.
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// CreateSession writes a new session to Redis and publishes an event.
// Validates the session before writing. Fails if a session with the same ID exists.
func (c *Client) CreateSession(ctx context.Context, s *Session) error {
	exists, err := c.SessionExists(ctx, s.ID)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("session %s already exists", s.ID)
	}
	return c.writeSession(ctx, s)
}

// UpdateSession replaces an existing session record (full HSET replacement)
// and publishes an event.
func (c *Client) UpdateSession(ctx context.Context, s *Session) error {
	return c.writeSession(ctx, s)
}

func (c *Client) writeSession(ctx context.Context, s *Session) error {
	if err := s.Validate(); err != nil {
		return fmt.Errorf("invalid session: %w", err)
	}

	hash, err := SessionToHash(s)
	if err != nil {
		return fmt.Errorf("failed to serialize session: %w", err)
	}

	key := SessionKey(c.namespace, s.ID)
	if err := c.rdb.HSet(ctx, key, hash).Err(); err != nil {
		return fmt.Errorf("failed to write session to Redis: %w", err)
	}

	sessionJSON, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to marshal session for event: %w", err)
	}

	channel := SessionEventsChannel(c.namespace)
	if err := c.rdb.Publish(ctx, channel, sessionJSON).Err(); err != nil {
		return fmt.Errorf("failed to publish session event: %w", err)
	}

	return nil
}

// GetSession retrieves a session by ID.
// Returns (nil, redis.Nil) if the session doesn't exist.
// Use IsNotFound() to check for not-found errors.
func (c *Client) GetSession(ctx context.Context, sessionID string) (*Session, error) {
	key := SessionKey(c.namespace, sessionID)

	hashData, err := c.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read session from Redis: %w", err)
	}

	// HGetAll returns an empty map for non-existent keys
	if len(hashData) == 0 {
		return nil, redis.Nil
	}

	session, err := HashToSession(hashData)
	if err != nil {
		return nil, fmt.Errorf("failed to deserialize session: %w", err)
	}

	return session, nil
}

// SessionExists checks if a session exists without fetching it.
func (c *Client) SessionExists(ctx context.Context, sessionID string) (bool, error) {
	key := SessionKey(c.namespace, sessionID)
	exists, err := c.rdb.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check session existence: %w", err)
	}
	return exists > 0, nil
}

// ScanSessions returns the IDs of all sessions whose ID starts with prefix,
// sorted. An empty prefix lists every session in the namespace.
// Uses SCAN so the server is never blocked.
func (c *Client) ScanSessions(ctx context.Context, prefix string) ([]string, error) {
	keyPrefix := SessionKey(c.namespace, "")
	iter := c.rdb.Scan(ctx, 0, SessionKey(c.namespace, prefix+"*"), 0).Iterator()

	var ids []string
	for iter.Next(ctx) {
		id := strings.TrimPrefix(iter.Val(), keyPrefix)
		// Skip sub-keys such as :members and :inbox:N
		if strings.Contains(id, ":") {
			continue
		}
		ids = append(ids, id)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan sessions: %w", err)
	}

	sort.Strings(ids)
	return ids, nil
}

// DeleteSession removes a session record together with its members set,
// mailboxes and unit ledger.
func (c *Client) DeleteSession(ctx context.Context, sessionID string) error {
	keys := []string{SessionKey(c.namespace, sessionID)}

	iter := c.rdb.Scan(ctx, 0, SessionKey(c.namespace, sessionID)+":*", 0).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to scan session keys: %w", err)
	}

	if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// JoinSession registers a participant in the session's members set and
// returns the number of members after joining.
// Returns ErrAlreadyJoined if the participant ID is taken.
func (c *Client) JoinSession(ctx context.Context, sessionID string, participant ParticipantID) (int64, error) {
	key := MembersKey(c.namespace, sessionID)

	added, err := c.rdb.SAdd(ctx, key, int(participant)).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to join session: %w", err)
	}
	if added == 0 {
		return 0, fmt.Errorf("%w: %d", ErrAlreadyJoined, participant)
	}

	return c.MemberCount(ctx, sessionID)
}

// MemberCount returns the number of participants that joined the session.
func (c *Client) MemberCount(ctx context.Context, sessionID string) (int64, error) {
	n, err := c.rdb.SCard(ctx, MembersKey(c.namespace, sessionID)).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to count session members: %w", err)
	}
	return n, nil
}

// RecordUnit adds an issued unit to the session's unit ledger.
// Returns ErrDuplicateUnit if a unit with the same bounds was recorded before.
func (c *Client) RecordUnit(ctx context.Context, sessionID string, unit keyspace.WorkUnit) error {
	if unit.Seq >= maxExactScore {
		return fmt.Errorf("unit sequence %d exceeds ledger precision", unit.Seq)
	}

	z := redis.Z{
		Score:  UnitScore(unit.Seq),
		Member: unitMember(unit.Start, unit.End),
	}

	added, err := c.rdb.ZAddNX(ctx, UnitsKey(c.namespace, sessionID), z).Result()
	if err != nil {
		return fmt.Errorf("failed to record unit: %w", err)
	}
	if added == 0 {
		return fmt.Errorf("%w: %s", ErrDuplicateUnit, unit)
	}

	return nil
}

// IssuedUnits returns every recorded unit of the session in issue order.
func (c *Client) IssuedUnits(ctx context.Context, sessionID string) ([]keyspace.WorkUnit, error) {
	results, err := c.rdb.ZRangeWithScores(ctx, UnitsKey(c.namespace, sessionID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read unit ledger: %w", err)
	}

	units := make([]keyspace.WorkUnit, 0, len(results))
	for _, z := range results {
		member, ok := z.Member.(string)
		if !ok {
			return nil, fmt.Errorf("unexpected unit member type %T", z.Member)
		}
		unit, err := parseUnitMember(member, z.Score)
		if err != nil {
			return nil, err
		}
		units = append(units, unit)
	}

	return units, nil
}

// PushMessage appends a message to a participant's mailbox.
func (c *Client) PushMessage(ctx context.Context, sessionID string, to ParticipantID, msg Message) error {
	if err := msg.Validate(); err != nil {
		return fmt.Errorf("invalid message: %w", err)
	}

	raw, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	if err := c.rdb.RPush(ctx, InboxKey(c.namespace, sessionID, to), raw).Err(); err != nil {
		return fmt.Errorf("failed to push message: %w", err)
	}
	return nil
}

// PopMessage removes and returns the oldest message in a participant's
// mailbox without blocking. ok is false when the mailbox is empty.
func (c *Client) PopMessage(ctx context.Context, sessionID string, participant ParticipantID) (msg Message, ok bool, err error) {
	raw, err := c.rdb.LPop(ctx, InboxKey(c.namespace, sessionID, participant)).Result()
	if err != nil {
		if IsNotFound(err) {
			return Message{}, false, nil
		}
		return Message{}, false, fmt.Errorf("failed to pop message: %w", err)
	}

	msg, err = decodeMessage(raw)
	if err != nil {
		return Message{}, false, err
	}
	return msg, true, nil
}

// WaitMessage blocks for up to timeout until a message is available in the
// participant's mailbox. ok is false when the timeout elapsed first.
func (c *Client) WaitMessage(ctx context.Context, sessionID string, participant ParticipantID, timeout time.Duration) (msg Message, ok bool, err error) {
	res, err := c.rdb.BLPop(ctx, timeout, InboxKey(c.namespace, sessionID, participant)).Result()
	if err != nil {
		if IsNotFound(err) {
			return Message{}, false, nil
		}
		return Message{}, false, fmt.Errorf("failed to wait for message: %w", err)
	}

	// BLPOP replies with [key, value]
	if len(res) != 2 {
		return Message{}, false, fmt.Errorf("unexpected BLPOP reply length %d", len(res))
	}

	msg, err = decodeMessage(res[1])
	if err != nil {
		return Message{}, false, err
	}
	return msg, true, nil
}

func decodeMessage(raw string) (Message, error) {
	var msg Message
	if err := json.Unmarshal([]byte(raw), &msg); err != nil {
		return Message{}, fmt.Errorf("failed to unmarshal message: %w", err)
	}
	if err := msg.Validate(); err != nil {
		return Message{}, fmt.Errorf("invalid message: %w", err)
	}
	return msg, nil
}

// Subscription represents an active Pub/Sub subscription to session events.
// Caller must call Close() when done to clean up resources.
type Subscription struct {
	events <-chan *Session
	errors <-chan error
	cancel func()
	once   sync.Once
}

// Events returns the channel of session updates.
// The channel will be closed when the subscription is closed or the context is cancelled.
func (s *Subscription) Events() <-chan *Session {
	return s.events
}

// Errors returns the channel of subscription errors.
// The subscription continues after errors - messages are skipped.
func (s *Subscription) Errors() <-chan error {
	return s.errors
}

// Close stops the subscription and cleans up resources. Implements io.Closer.
// Safe to call multiple times - subsequent calls are no-ops.
func (s *Subscription) Close() error {
	s.once.Do(s.cancel)
	return nil
}

// SubscribeSessionEvents subscribes to session updates in this namespace.
// Every CreateSession and UpdateSession publishes the full session.
//
// Events are delivered on a buffered channel (size 10). Redis Pub/Sub is
// at-most-once, so slow subscribers may miss updates; callers that need the
// latest state should re-read it with GetSession.
func (c *Client) SubscribeSessionEvents(ctx context.Context) (*Subscription, error) {
	channel := SessionEventsChannel(c.namespace)
	pubsub := c.rdb.Subscribe(ctx, channel)

	// Wait for the subscription to be confirmed so no event published after
	// this call returns is lost.
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to session events: %w", err)
	}

	eventsChan := make(chan *Session, 10)
	errorsChan := make(chan error, 10)

	subCtx, cancelFunc := context.WithCancel(ctx)

	go func() {
		defer close(eventsChan)
		defer close(errorsChan)
		defer pubsub.Close()

		ch := pubsub.Channel()

		for {
			select {
			case <-subCtx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}

				var session Session
				if err := json.Unmarshal([]byte(msg.Payload), &session); err != nil {
					select {
					case errorsChan <- fmt.Errorf("failed to unmarshal session event: %w", err):
					case <-subCtx.Done():
						return
					}
					continue
				}

				select {
				case eventsChan <- &session:
				case <-subCtx.Done():
					return
				}
			}
		}
	}()

	return &Subscription{
		events: eventsChan,
		errors: errorsChan,
		cancel: cancelFunc,
	}, nil
}

// IsNotFound returns true if the error is a Redis "key not found" error (redis.Nil).
// Use this to check if GetSession returned "not found".
func IsNotFound(err error) bool {
	return errors.Is(err, redis.Nil)
}
