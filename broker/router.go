// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package broker

import (
	"context"
	"log/slog"

	"github.com/flowmq/broker/packets"
	"github.com/flowmq/broker/storage"
	"github.com/flowmq/broker/storage/messages"
)

// SessionLookup resolves a ClientID to its Session, used by the Router to
// find a receiver's inflight table and live Connection without owning the
// session map itself.
type SessionLookup interface {
	Session(clientID string) (*Session, bool)
}

// Router performs the subscription-match fan-out for one inbound PUBLISH:
// it walks the trie once, deduplicates overlapping subscriptions by
// receiver, and delivers at most one message per receiver per publish.
type Router struct {
	subs     storage.SubscriptionStore
	sessions SessionLookup
	peers    *RemotePeers
	log      *slog.Logger
}

// NewRouter builds a Router over the given subscription store and session
// registry. peers may be nil if no remote-peer bridging is configured.
func NewRouter(subs storage.SubscriptionStore, sessions SessionLookup, peers *RemotePeers, log *slog.Logger) *Router {
	if log == nil {
		log = slog.Default()
	}
	return &Router{subs: subs, sessions: sessions, peers: peers, log: log}
}

// receiver is one deduplicated fan-out target: the strongest QoS any
// matching subscription requested and the union of v5 subscription
// identifiers attached along the way.
type receiver struct {
	clientID        string
	qos             byte
	retainAsPub     bool
	noLocal         bool
	subscriptionIDs []uint32
}

// Distribute delivers msg to every subscriber whose filter matches its
// topic, plus every remote peer willing to take it. It returns the number
// of local sessions the message was handed to (delivered or queued).
func (r *Router) Distribute(ctx context.Context, msg *storage.Message, originClientID string) (int, error) {
	subs, err := r.subs.Match(msg.Topic)
	if err != nil {
		return 0, err
	}

	receivers := make(map[string]*receiver, len(subs))
	order := make([]string, 0, len(subs))
	for _, sub := range subs {
		if sub.Options.NoLocal && sub.ClientID == originClientID {
			continue
		}
		rx, ok := receivers[sub.ClientID]
		if !ok {
			rx = &receiver{clientID: sub.ClientID}
			receivers[sub.ClientID] = rx
			order = append(order, sub.ClientID)
		}
		effective := sub.QoS
		if msg.QoS < effective {
			effective = msg.QoS
		}
		if effective > rx.qos {
			rx.qos = effective
		}
		rx.retainAsPub = rx.retainAsPub || sub.Options.RetainAsPublished
		if sub.SubscriptionID != nil {
			rx.subscriptionIDs = append(rx.subscriptionIDs, *sub.SubscriptionID)
		}
	}

	cache := newPublishCache(msg)
	delivered := 0
	for _, clientID := range order {
		rx := receivers[clientID]
		if r.deliverToSession(rx, msg, cache) {
			delivered++
		}
	}

	if r.peers != nil {
		r.peers.ForwardAll(ctx, msg.Topic, msg.GetPayload(), msg.QoS, msg.Retain)
	}

	return delivered, nil
}

// deliverToSession routes one receiver's copy of msg either onto its live
// connection outbox, or into its offline queue if it has no live
// connection or the outbox is full. QoS 0 messages to an offline session
// are dropped; QoS 0 messages whose outbox is full are dropped rather than
// spilled, per the router's back-pressure policy.
func (r *Router) deliverToSession(rx *receiver, msg *storage.Message, cache *publishCache) bool {
	session, ok := r.sessions.Session(rx.clientID)
	if !ok {
		return false
	}

	retain := msg.Retain && rx.retainAsPub

	if !session.IsConnected() {
		if rx.qos == 0 {
			return false
		}
		return r.enqueueOffline(session, msg, rx, retain)
	}

	conn := session.Connection()
	if conn == nil {
		if rx.qos == 0 {
			return false
		}
		return r.enqueueOffline(session, msg, rx, retain)
	}

	if len(rx.subscriptionIDs) > 0 {
		return r.deliverFull(session, conn, msg, rx, retain)
	}

	isV5 := conn.Version() == packets.V5
	cp := cache.Get(isV5, rx.qos)

	var packetID uint16
	if rx.qos > 0 {
		id, err := session.NextPacketID()
		if err != nil {
			r.log.Warn("packet id exhausted, spilling to offline queue", slog.String("client_id", rx.clientID))
			return r.enqueueOffline(session, msg, rx, retain)
		}
		packetID = id
		out := storage.CopyMessage(msg)
		out.QoS = rx.qos
		out.PacketID = packetID
		out.Retain = retain
		if err := session.Inflight.Add(packetID, out, messages.Outbound); err != nil {
			return r.enqueueOffline(session, msg, rx, retain)
		}
	}

	frame := cp.PatchInto(packetID, false, retain)
	if !conn.EnqueueOutbound(frame) {
		if rx.qos > 0 {
			session.Inflight.Ack(packetID) // undo reservation; message survives via offline queue
			return r.enqueueOffline(session, msg, rx, retain)
		}
		return false
	}
	if rx.qos > 0 {
		session.Inflight.MarkSent(packetID)
	}
	return true
}

// deliverFull bypasses the cache for a v5 receiver that needs a
// subscription-identifier property injected, which the shared cached bytes
// cannot carry since it differs per receiver.
func (r *Router) deliverFull(session *Session, conn *Connection, msg *storage.Message, rx *receiver, retain bool) bool {
	if conn.Version() != packets.V5 {
		// v3 has no subscription identifiers; fall back to the plain path.
		rx.subscriptionIDs = nil
		return r.deliverToSession(rx, msg, newPublishCache(msg))
	}

	var packetID uint16
	if rx.qos > 0 {
		id, err := session.NextPacketID()
		if err != nil {
			return r.enqueueOffline(session, msg, rx, retain)
		}
		packetID = id
		out := storage.CopyMessage(msg)
		out.QoS = rx.qos
		out.PacketID = packetID
		out.Retain = retain
		out.SubscriptionIDs = rx.subscriptionIDs
		if err := session.Inflight.Add(packetID, out, messages.Outbound); err != nil {
			return r.enqueueOffline(session, msg, rx, retain)
		}
	}

	frame := encodeV5PublishWithSubscriptionIDs(msg, rx.qos, packetID, retain, rx.subscriptionIDs)
	if !conn.EnqueueOutbound(frame) {
		if rx.qos > 0 {
			session.Inflight.Ack(packetID)
			return r.enqueueOffline(session, msg, rx, retain)
		}
		return false
	}
	if rx.qos > 0 {
		session.Inflight.MarkSent(packetID)
	}
	return true
}

func (r *Router) enqueueOffline(session *Session, msg *storage.Message, rx *receiver, retain bool) bool {
	out := storage.CopyMessage(msg)
	out.QoS = rx.qos
	out.Retain = retain
	out.SubscriptionIDs = rx.subscriptionIDs
	if err := session.OfflineQueue.Enqueue(out); err != nil {
		r.log.Warn("offline queue full, dropping message",
			slog.String("client_id", rx.clientID), slog.String("topic", msg.Topic))
		return false
	}
	return true
}
