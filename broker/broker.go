// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package broker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/flowmq/broker/brokererr"
	"github.com/flowmq/broker/core/transport"
	"github.com/flowmq/broker/metrics"
	"github.com/flowmq/broker/packets"
	"github.com/flowmq/broker/storage"
	"github.com/flowmq/broker/storage/messages"
)

// Conn is the transport-level byte stream a Connection runs the MQTT state
// machine over.
type Conn = transport.Conn

// Options configures broker-wide policy: the negotiable MQTT feature set
// and the background maintenance cadence.
type Options struct {
	NodeID string

	MaxQoS                            byte
	RetainAvailable                   bool
	WildcardsAvailable                bool
	SubscriptionIdentifiersAvailable  bool
	SharedSubscriptionsAvailable      bool

	ConnectTimeout       time.Duration
	SessionSweepInterval time.Duration
	SysEnabled           bool
	SysInterval          time.Duration

	// MaxMessageSize rejects a PUBLISH whose payload exceeds this many
	// bytes with a resource-limit error. Zero disables the check.
	MaxMessageSize int
	// RetryInterval is how long an unacknowledged QoS 1/2 delivery waits
	// before the retry loop resends it with DUP set. Zero disables retries.
	RetryInterval time.Duration
	// MaxRetries caps how many times a message is resent. Once the cap is
	// reached the retry loop logs a warning and stops resending it, leaving
	// it inflight; the count is not reset on reconnect. Zero means
	// unlimited retries.
	MaxRetries int

	// MaxOfflineQueueSize bounds how many QoS>0 messages accumulate for a
	// disconnected session; once it is full, newly arriving messages for
	// that session are dropped and the queued ones are kept.
	MaxOfflineQueueSize int
	// MaxInflightMessages caps the Receive Maximum a session is granted,
	// overriding a client's requested value if it asks for more.
	MaxInflightMessages int
}

// DefaultOptions returns the permissive defaults a standalone broker starts
// with when the caller supplies no configuration.
func DefaultOptions() Options {
	return Options{
		MaxQoS:                           2,
		RetainAvailable:                  true,
		WildcardsAvailable:               true,
		SubscriptionIdentifiersAvailable: true,
		SharedSubscriptionsAvailable:     true,
		ConnectTimeout:                   10 * time.Second,
		SessionSweepInterval:             30 * time.Second,
		SysEnabled:                       true,
		SysInterval:                      10 * time.Second,
		MaxMessageSize:                   1024 * 1024,
		RetryInterval:                    20 * time.Second,
		MaxRetries:                       0,
		MaxOfflineQueueSize:              1000,
		MaxInflightMessages:              100,
	}
}

// Broker orchestrates sessions, connections, the subscription trie and the
// retained store. It is the rendezvous point for session takeover: the
// client-id slot in the session map guarantees at most one live connection
// per client-id.
type Broker struct {
	opts  Options
	store storage.Store
	hooks Hooks
	peers *RemotePeers
	log   *slog.Logger
	stats metrics.Sink

	router     *Router
	sysSession *Session

	sessionsMu sync.RWMutex
	sessions   map[string]*Session

	connsMu sync.Mutex
	conns   map[string]*Connection

	startedAt time.Time

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// New builds a Broker over store. hooks defaults to AllowAll when nil;
// peers may be nil; stats defaults to a no-op sink when nil.
func New(store storage.Store, opts Options, hooks Hooks, peers *RemotePeers, stats metrics.Sink, log *slog.Logger) *Broker {
	if hooks == nil {
		hooks = AllowAll()
	}
	if stats == nil {
		stats = metrics.NoOp()
	}
	if log == nil {
		log = slog.Default()
	}
	if opts.NodeID == "" {
		opts.NodeID = uuid.NewString()
	}

	b := &Broker{
		opts:     opts,
		store:    store,
		hooks:    hooks,
		peers:    peers,
		log:      log,
		stats:    stats,
		sessions: make(map[string]*Session),
		conns:    make(map[string]*Connection),
		stopCh:   make(chan struct{}),
	}
	subs := store.Subscriptions()
	b.router = NewRouter(subs, b, peers, log)
	b.sysSession = NewSession("$SYS", 0, SessionOptions{})

	if lc, ok := subs.(livenessSetter); ok {
		lc.SetLivenessCheck(b.isClientLive)
	}
	return b
}

// livenessSetter is implemented by SubscriptionStore backends that support
// skipping disconnected members of a shared-subscription group during
// round robin, such as storage/memory.
type livenessSetter interface {
	SetLivenessCheck(func(clientID string) bool)
}

// isClientLive reports whether clientID currently holds a connected
// session, used by shared-subscription round robin to skip down members.
func (b *Broker) isClientLive(clientID string) bool {
	s, ok := b.Session(clientID)
	return ok && s.IsConnected()
}

// Session implements SessionLookup for the Router.
func (b *Broker) Session(clientID string) (*Session, bool) {
	b.sessionsMu.RLock()
	defer b.sessionsMu.RUnlock()
	s, ok := b.sessions[clientID]
	return s, ok
}

// Start begins background maintenance: the session-expiry sweeper, the
// $SYS publisher, and every registered remote peer.
func (b *Broker) Start(ctx context.Context) error {
	b.startedAt = time.Now()
	if b.peers != nil {
		if err := b.peers.StartAll(ctx); err != nil {
			return err
		}
	}
	b.wg.Add(1)
	go b.sweepLoop()
	if b.opts.RetryInterval > 0 {
		b.wg.Add(1)
		go b.retryLoop()
	}
	if b.opts.SysEnabled {
		b.wg.Add(1)
		go b.sysLoop()
	}
	return nil
}

// Stop halts background maintenance and every registered remote peer. It
// does not close live connections; callers drain those separately.
func (b *Broker) Stop(ctx context.Context) error {
	close(b.stopCh)
	b.wg.Wait()
	if b.peers != nil {
		return b.peers.StopAll(ctx)
	}
	return nil
}

// Accept drives one connection's full lifecycle to completion. Callers
// spawn it in its own goroutine per accepted transport.
func (b *Broker) Accept(ctx context.Context, tr Conn, remoteAddr string) {
	conn := newConnection(b, tr, remoteAddr)

	b.connsMu.Lock()
	b.conns[conn.id] = conn
	b.connsMu.Unlock()

	defer func() {
		b.connsMu.Lock()
		delete(b.conns, conn.id)
		b.connsMu.Unlock()
	}()

	conn.run(ctx)
}

// HandleConnect authenticates a CONNECT and binds or resumes a Session,
// performing takeover if another connection currently owns the client-id.
func (b *Broker) HandleConnect(conn *Connection, opts ConnectOptions) (*Session, bool, byte, error) {
	decision, reasonCode := b.hooks.OnConnect(ConnectInfo{
		ClientID: opts.ClientID,
		Username: opts.Username,
		Password: opts.Password,
		Version:  opts.Version,
	})
	if decision != Accept {
		return nil, false, reasonCode, brokererr.New(brokererr.KindAuth, brokererr.ErrNotConnected)
	}

	b.sessionsMu.Lock()
	existing, hadSession := b.sessions[opts.ClientID]
	sessionPresent := false

	var session *Session
	switch {
	case hadSession && !opts.CleanStart:
		session = existing
		sessionPresent = true
	case hadSession && opts.CleanStart:
		b.discardSession(existing)
		session = b.newSessionLocked(opts)
	default:
		session = b.newSessionLocked(opts)
	}
	b.sessions[opts.ClientID] = session
	b.sessionsMu.Unlock()

	if hadSession {
		if old := existing.Connection(); old != nil && old != conn {
			old.closeForTakeover()
		}
	}

	session.Attach(conn)
	b.stats.IncrCounter("broker.connects", 1)
	return session, sessionPresent, 0, nil
}

func (b *Broker) newSessionLocked(opts ConnectOptions) *Session {
	receiveMax := opts.ReceiveMaximum
	if b.opts.MaxInflightMessages > 0 && (receiveMax == 0 || int(receiveMax) > b.opts.MaxInflightMessages) {
		receiveMax = uint16(b.opts.MaxInflightMessages)
	}
	return NewSession(opts.ClientID, opts.Version, SessionOptions{
		CleanStart:          opts.CleanStart,
		ExpiryInterval:      opts.SessionExpiry,
		ReceiveMaximum:      receiveMax,
		MaxPacketSize:       opts.MaxPacketSize,
		TopicAliasMax:       opts.TopicAliasMax,
		KeepAlive:           opts.KeepAlive,
		Will:                opts.Will,
		MaxOfflineQueueSize: b.opts.MaxOfflineQueueSize,
	})
}

// discardSession drops a session's durable state entirely: subscriptions,
// inflight, offline queue and stored will. Used on CleanStart takeover.
func (b *Broker) discardSession(s *Session) {
	_ = b.store.Subscriptions().RemoveAll(s.ClientID)
	_ = b.store.Wills().Delete(context.Background(), s.ClientID)
	_ = b.store.Sessions().Delete(s.ClientID)
}

// HandlePublish authorizes, optionally retains, and fans out a publish.
func (b *Broker) HandlePublish(ctx context.Context, session *Session, opts PublishOptions) error {
	if !b.hooks.OnPublish(session.ClientID, opts.Topic) {
		return brokererr.New(brokererr.KindAuth, brokererr.ErrNotConnected)
	}
	if opts.QoS > b.opts.MaxQoS {
		return brokererr.New(brokererr.KindProtocol, brokererr.ErrUnsupportedLevel)
	}
	if b.opts.MaxMessageSize > 0 && len(opts.Payload) > b.opts.MaxMessageSize {
		return brokererr.New(brokererr.KindResource, brokererr.ErrMessageTooLarge)
	}

	msg := &storage.Message{
		Topic:           opts.Topic,
		QoS:             opts.QoS,
		Retain:          opts.Retain,
		ContentType:     opts.ContentType,
		ResponseTopic:   opts.ResponseTopic,
		CorrelationData: opts.CorrelationData,
		MessageExpiry:   opts.MessageExpiry,
		PayloadFormat:   opts.PayloadFormat,
		UserProperties:  opts.Properties,
		PublishTime:     time.Now(),
	}
	msg.SetPayloadFromBytes(opts.Payload)

	if opts.Retain && b.opts.RetainAvailable {
		if len(opts.Payload) == 0 {
			if err := b.store.Retained().Delete(ctx, opts.Topic); err != nil {
				return err
			}
		} else if err := b.store.Retained().Set(ctx, opts.Topic, storage.CopyMessage(msg)); err != nil {
			return err
		}
	}

	_, err := b.router.Distribute(ctx, msg, session.ClientID)
	if err == nil {
		b.stats.IncrCounter("broker.publishes", 1)
	}
	return err
}

// SubscribeRequest is one filter from a SUBSCRIBE packet.
type SubscribeRequest struct {
	Filter         string
	QoS            byte
	Options        storage.SubscribeOptions
	SubscriptionID *uint32
}

// SubscribeResult is the granted QoS (or MQTT failure code) for one
// SubscribeRequest, in request order.
type SubscribeResult struct {
	Code    byte
	Allowed bool
}

// HandleSubscribe authorizes and records each requested filter, then
// delivers any matching retained messages per its RetainHandling option.
func (b *Broker) HandleSubscribe(ctx context.Context, session *Session, reqs []SubscribeRequest) ([]SubscribeResult, error) {
	results := make([]SubscribeResult, len(reqs))

	for i, req := range reqs {
		granted, allow := b.hooks.OnSubscribe(session.ClientID, req.Filter, req.QoS)
		if !allow {
			results[i] = SubscribeResult{Code: 0x87, Allowed: false}
			continue
		}
		if granted > b.opts.MaxQoS {
			granted = b.opts.MaxQoS
		}

		sub := &storage.Subscription{
			ClientID:       session.ClientID,
			Filter:         req.Filter,
			QoS:            granted,
			Options:        req.Options,
			SubscriptionID: req.SubscriptionID,
		}
		_, existed := session.Subscriptions()[req.Filter]
		if err := b.store.Subscriptions().Add(sub); err != nil {
			results[i] = SubscribeResult{Code: 0x80, Allowed: false}
			continue
		}
		session.AddSubscription(req.Filter, req.Options)
		results[i] = SubscribeResult{Code: granted, Allowed: true}

		if req.Options.RetainHandling == 0 || (req.Options.RetainHandling == 1 && !existed) {
			b.deliverRetained(ctx, session, req)
		}
	}
	return results, nil
}

func (b *Broker) deliverRetained(ctx context.Context, session *Session, req SubscribeRequest) {
	retained, err := b.store.Retained().Match(ctx, req.Filter)
	if err != nil {
		return
	}
	for _, msg := range retained {
		cp := storage.CopyMessage(msg)
		cp.Retain = true
		if req.QoS < cp.QoS {
			cp.QoS = req.QoS
		}
		rx := &receiver{clientID: session.ClientID, qos: cp.QoS, retainAsPub: true}
		if req.SubscriptionID != nil {
			rx.subscriptionIDs = []uint32{*req.SubscriptionID}
		}
		b.router.deliverToSession(rx, cp, newPublishCache(cp))
	}
}

// HandleUnsubscribe removes each filter from the store and the session's
// local view.
func (b *Broker) HandleUnsubscribe(session *Session, filters []string) ([]byte, error) {
	codes := make([]byte, len(filters))
	for i, filter := range filters {
		if err := b.store.Subscriptions().Remove(session.ClientID, filter); err != nil {
			codes[i] = 0x11 // No subscription existed
			continue
		}
		session.RemoveSubscription(filter)
		codes[i] = 0x00
	}
	return codes, nil
}

// HandlePubAck completes a QoS 1 outbound delivery.
func (b *Broker) HandlePubAck(session *Session, packetID uint16) error {
	_, err := session.Inflight.Ack(packetID)
	return err
}

// HandlePubRec advances a QoS 2 outbound delivery to its second phase; the
// caller is responsible for sending PUBREL in response.
func (b *Broker) HandlePubRec(session *Session, packetID uint16) error {
	return session.Inflight.UpdateState(packetID, messages.StatePubRecReceived)
}

// HandlePubComp completes a QoS 2 outbound delivery.
func (b *Broker) HandlePubComp(session *Session, packetID uint16) error {
	_, err := session.Inflight.Ack(packetID)
	return err
}

// HandlePubRel completes the inbound half of a QoS 2 delivery, clearing
// duplicate-detection state so a retransmitted PUBLISH after PUBCOMP is
// treated as new.
func (b *Broker) HandlePubRel(session *Session, packetID uint16) {
	session.Inflight.ClearReceived(packetID)
}

// HandleDisconnect detaches a session on a graceful DISCONNECT. discardWill
// is true for v3 and for v5 with reason 0x00 (Normal disconnection).
func (b *Broker) HandleDisconnect(session *Session, discardWill bool) {
	if discardWill {
		session.Will = nil
		_ = b.store.Wills().Delete(context.Background(), session.ClientID)
	}
	b.detach(session)
}

// HandleAbnormalClose runs on socket error, timeout, or a protocol error
// after CONNACK: it publishes the will (if still armed) and detaches.
func (b *Broker) HandleAbnormalClose(ctx context.Context, session *Session) {
	if will := session.Will; will != nil {
		_ = b.HandlePublish(ctx, session, PublishOptions{
			Topic:   will.Topic,
			Payload: will.Payload,
			QoS:     will.QoS,
			Retain:  will.Retain,
		})
	}
	b.detach(session)
	b.stats.IncrCounter("broker.abnormal_closes", 1)
}

func (b *Broker) detach(session *Session) {
	session.Detach()
	// v3 sessions persist unless CleanSession was set; v5 sessions persist
	// only with a non-zero Session Expiry Interval.
	persist := session.ExpiryInterval > 0
	if session.Version != packets.V5 {
		persist = !session.CleanStart
	}
	if !persist {
		b.sessionsMu.Lock()
		delete(b.sessions, session.ClientID)
		b.sessionsMu.Unlock()
		_ = b.store.Subscriptions().RemoveAll(session.ClientID)
	}
}

// sweepLoop periodically evicts sessions that disconnected longer ago than
// their negotiated expiry interval.
func (b *Broker) sweepLoop() {
	defer b.wg.Done()
	interval := b.opts.SessionSweepInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-b.stopCh:
			return
		case <-t.C:
			b.sweepExpired()
		}
	}
}

func (b *Broker) sweepExpired() {
	now := time.Now()
	var expired []string

	b.sessionsMu.RLock()
	for id, s := range b.sessions {
		s.mu.RLock()
		disconnected := s.conn == nil && !s.disconnectedAt.IsZero()
		deadline := s.disconnectedAt.Add(time.Duration(s.ExpiryInterval) * time.Second)
		s.mu.RUnlock()
		if disconnected && s.ExpiryInterval > 0 && now.After(deadline) {
			expired = append(expired, id)
		}
	}
	b.sessionsMu.RUnlock()

	if len(expired) == 0 {
		return
	}

	b.sessionsMu.Lock()
	for _, id := range expired {
		delete(b.sessions, id)
	}
	b.sessionsMu.Unlock()

	for _, id := range expired {
		_ = b.store.Subscriptions().RemoveAll(id)
		_ = b.store.Sessions().Delete(id)
		_ = b.store.Wills().Delete(context.Background(), id)
	}
	b.log.Info("swept expired sessions", slog.Int("count", len(expired)))
}

// retryLoop periodically resends QoS 1/2 outbound messages that have gone
// unacknowledged past RetryInterval, ticking at half that interval so a
// message is never held much past its deadline before a check runs.
func (b *Broker) retryLoop() {
	defer b.wg.Done()
	tick := b.opts.RetryInterval / 2
	if tick <= 0 {
		tick = b.opts.RetryInterval
	}
	t := time.NewTicker(tick)
	defer t.Stop()
	for {
		select {
		case <-b.stopCh:
			return
		case <-t.C:
			b.retryExpired()
		}
	}
}

// retryExpired resends or abandons every connected session's overdue
// inflight outbound messages. A session with no live connection is skipped;
// its messages stay inflight and are picked up by a later pass once the
// client has reconnected.
func (b *Broker) retryExpired() {
	b.sessionsMu.RLock()
	sessions := make([]*Session, 0, len(b.sessions))
	for _, s := range b.sessions {
		sessions = append(sessions, s)
	}
	b.sessionsMu.RUnlock()

	for _, s := range sessions {
		conn := s.Connection()
		if conn == nil {
			continue
		}
		for _, im := range s.Inflight.GetExpired(b.opts.RetryInterval) {
			if im.Direction != messages.Outbound {
				continue
			}
			if b.opts.MaxRetries > 0 && im.Retries >= b.opts.MaxRetries {
				b.log.Warn("giving up on inflight redelivery",
					slog.String("client_id", s.ClientID),
					slog.Int("packet_id", int(im.PacketID)),
					slog.Int("retries", im.Retries))
				continue
			}
			if conn.redeliver(im) {
				_ = s.Inflight.MarkRetry(im.PacketID)
				b.stats.IncrCounter("broker.retries", 1)
			}
		}
	}
}

// Version constants reused for connack building without importing packets
// in unrelated files.
const (
	ProtocolV31  = packets.V31
	ProtocolV311 = packets.V311
	ProtocolV5   = packets.V5
)
