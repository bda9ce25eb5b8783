// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package broker

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/flowmq/broker/brokererr"
	"github.com/flowmq/broker/storage"
	"github.com/flowmq/broker/storage/messages"
)

// Session holds the durable, protocol-agnostic state of one MQTT client
// identity: its inflight QoS 1/2 tables, offline queue, subscription set and
// topic-alias tables. A Session outlives any single TCP connection; a
// reconnecting client with the same ClientID resumes the same Session
// unless CleanStart discards it.
type Session struct {
	mu sync.RWMutex

	ClientID string
	Version  byte

	conn *Connection

	connectedAt    time.Time
	disconnectedAt time.Time
	lastActivity   time.Time

	CleanStart     bool
	ExpiryInterval uint32
	ReceiveMaximum uint16
	MaxPacketSize  uint32
	TopicAliasMax  uint16
	KeepAlive      uint16
	keepAliveDur   time.Duration

	Will *storage.WillMessage

	Inflight     messages.Inflight
	OfflineQueue messages.Queue

	nextPacketID uint32

	subscriptions map[string]storage.SubscribeOptions

	outboundAliases map[string]uint16
	inboundAliases  map[uint16]string
}

// SessionOptions configures a new Session, mirroring the fields a CONNECT
// packet carries regardless of protocol version.
type SessionOptions struct {
	CleanStart     bool
	ExpiryInterval uint32
	ReceiveMaximum uint16
	MaxPacketSize  uint32
	TopicAliasMax  uint16
	KeepAlive      uint16
	Will           *storage.WillMessage

	// MaxOfflineQueueSize bounds the number of QoS>0 messages queued while
	// the session is disconnected. Zero falls back to a conservative
	// default rather than an unbounded queue.
	MaxOfflineQueueSize int
}

// NewSession creates a Session in the disconnected state; a Connection
// attaches to it via Attach once the CONNECT handshake completes.
func NewSession(clientID string, version byte, opts SessionOptions) *Session {
	receiveMax := opts.ReceiveMaximum
	if receiveMax == 0 {
		receiveMax = 65535
	}
	offlineQueueSize := opts.MaxOfflineQueueSize
	if offlineQueueSize <= 0 {
		offlineQueueSize = 1000
	}

	s := &Session{
		ClientID:        clientID,
		Version:         version,
		CleanStart:      opts.CleanStart,
		ExpiryInterval:  opts.ExpiryInterval,
		ReceiveMaximum:  receiveMax,
		MaxPacketSize:   opts.MaxPacketSize,
		TopicAliasMax:   opts.TopicAliasMax,
		KeepAlive:       opts.KeepAlive,
		Will:            opts.Will,
		Inflight:        messages.NewInflightTracker(int(receiveMax)),
		OfflineQueue:    messages.NewMessageQueue(offlineQueueSize),
		subscriptions:   make(map[string]storage.SubscribeOptions),
		outboundAliases: make(map[string]uint16),
		inboundAliases:  make(map[uint16]string),
		lastActivity:    time.Now(),
	}
	if opts.KeepAlive > 0 {
		s.keepAliveDur = time.Duration(opts.KeepAlive) * time.Second * 3 / 2
	}
	return s
}

// Attach binds a live Connection to the session, marking it connected. Any
// previously attached Connection is left for the caller to close (session
// takeover is the Broker's responsibility, not the Session's).
func (s *Session) Attach(conn *Connection) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conn = conn
	s.connectedAt = time.Now()
	s.lastActivity = time.Now()
}

// Detach clears the live connection, marking the session disconnected while
// preserving all durable state (inflight, offline queue, subscriptions).
func (s *Session) Detach() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conn = nil
	s.disconnectedAt = time.Now()
}

// Connection returns the currently attached Connection, or nil if the
// session is offline.
func (s *Session) Connection() *Connection {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.conn
}

// IsConnected reports whether a live Connection is attached.
func (s *Session) IsConnected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.conn != nil
}

// TouchActivity records a read/write on the connection for keep-alive
// timeout purposes.
func (s *Session) TouchActivity() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastActivity = time.Now()
}

// KeepAliveExpired reports whether the session has gone silent longer than
// 1.5x its negotiated keep-alive interval. A zero keep-alive disables the
// check.
func (s *Session) KeepAliveExpired() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.keepAliveDur == 0 {
		return false
	}
	return time.Since(s.lastActivity) > s.keepAliveDur
}

// NextPacketID allocates an outbound packet identifier not currently in use
// by an inflight message, skipping the reserved zero value. It returns
// ErrPacketIDExhausted if every non-zero identifier is inflight.
func (s *Session) NextPacketID() (uint16, error) {
	for attempts := 0; attempts < 65535; attempts++ {
		id := uint16(atomic.AddUint32(&s.nextPacketID, 1) & 0xFFFF)
		if id == 0 {
			continue
		}
		if !s.Inflight.Has(id) {
			return id, nil
		}
	}
	return 0, brokererr.New(brokererr.KindResource, brokererr.ErrPacketIDExhausted)
}

// AddSubscription records a subscription's negotiated options for reconnect
// bookkeeping (e.g. reporting active subscriptions via $SYS).
func (s *Session) AddSubscription(filter string, opts storage.SubscribeOptions) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscriptions[filter] = opts
}

// RemoveSubscription drops a subscription from the session's local view.
func (s *Session) RemoveSubscription(filter string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.subscriptions, filter)
}

// Subscriptions returns a snapshot of the session's active filters.
func (s *Session) Subscriptions() map[string]storage.SubscribeOptions {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cp := make(map[string]storage.SubscribeOptions, len(s.subscriptions))
	for k, v := range s.subscriptions {
		cp[k] = v
	}
	return cp
}

// ResolveOutboundAlias returns the alias assigned to topic, if any, and
// whether the caller must still send the full topic name (first use of an
// alias must carry both).
func (s *Session) ResolveOutboundAlias(topic string) (alias uint16, mustSendTopic bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.TopicAliasMax == 0 {
		return 0, true
	}
	if a, ok := s.outboundAliases[topic]; ok {
		return a, false
	}
	if uint16(len(s.outboundAliases)) >= s.TopicAliasMax {
		return 0, true
	}
	next := uint16(len(s.outboundAliases)) + 1
	s.outboundAliases[topic] = next
	return next, true
}

// ResolveInboundAlias records or looks up a client-assigned topic alias.
// When topic is non-empty it (re)binds the alias; an empty topic looks up
// a previously bound alias.
func (s *Session) ResolveInboundAlias(alias uint16, topic string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if topic != "" {
		s.inboundAliases[alias] = topic
		return topic, nil
	}
	resolved, ok := s.inboundAliases[alias]
	if !ok {
		return "", brokererr.New(brokererr.KindProtocol, brokererr.ErrUnknownTopicAlias)
	}
	return resolved, nil
}
