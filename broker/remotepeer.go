// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package broker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sony/gobreaker"

	"github.com/flowmq/broker/brokererr"
)

// RemotePeerStatus reports a remote peer's connectivity for $SYS/diagnostic
// purposes.
type RemotePeerStatus int

const (
	PeerDisconnected RemotePeerStatus = iota
	PeerConnecting
	PeerConnected
	PeerDegraded
)

// RemotePeer abstracts forwarding a publication to a non-client receiver
// (a bridge to another broker, or a cluster peer). The fan-out router
// treats every registered peer as one more deduplicated receiver.
type RemotePeer interface {
	// ForwardPublish sends a message to the peer.
	ForwardPublish(ctx context.Context, topic string, payload []byte, qos byte, retain bool) error

	// NotifySubscribe tells the peer this broker now needs topic filter.
	NotifySubscribe(ctx context.Context, filter string, qos byte) error

	// NotifyUnsubscribe tells the peer this broker no longer needs filter.
	NotifyUnsubscribe(ctx context.Context, filter string) error

	// ShouldForward reports whether a topic should be forwarded to this peer
	// at all (bridge topic filters, loop-prevention origin tags, ...).
	ShouldForward(topic string) bool

	// Status reports current connectivity.
	Status() RemotePeerStatus

	// Start begins the peer's connection/session lifecycle.
	Start(ctx context.Context) error

	// Stop tears the peer down.
	Stop(ctx context.Context) error

	// Name identifies the peer for logging and breaker naming.
	Name() string
}

// breakerPeer wraps a RemotePeer's ForwardPublish in a circuit breaker so a
// peer stuck in failure degrades to fast failure instead of stalling the
// fan-out hot path.
type breakerPeer struct {
	RemotePeer
	cb *gobreaker.CircuitBreaker
}

// WithCircuitBreaker wraps peer so that repeated ForwardPublish failures
// trip a breaker; while open, ForwardPublish fails fast without touching
// the peer, and the router proceeds with the other receivers.
func WithCircuitBreaker(peer RemotePeer) RemotePeer {
	settings := gobreaker.Settings{
		Name:    "remote-peer:" + peer.Name(),
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
	}
	return &breakerPeer{RemotePeer: peer, cb: gobreaker.NewCircuitBreaker(settings)}
}

func (b *breakerPeer) ForwardPublish(ctx context.Context, topic string, payload []byte, qos byte, retain bool) error {
	_, err := b.cb.Execute(func() (any, error) {
		return nil, b.RemotePeer.ForwardPublish(ctx, topic, payload, qos, retain)
	})
	if err == gobreaker.ErrOpenState {
		return brokererr.New(brokererr.KindTransport, brokererr.ErrPeerUnavailable)
	}
	return err
}

// RemotePeers is a small registry that fans a publish out to every
// registered peer whose ShouldForward accepts the topic, aggregating
// start/stop results instead of requiring callers to hand-roll the loop.
type RemotePeers struct {
	mu    sync.RWMutex
	peers map[string]RemotePeer
	log   *slog.Logger
}

// NewRemotePeers creates an empty peer registry.
func NewRemotePeers(log *slog.Logger) *RemotePeers {
	if log == nil {
		log = slog.Default()
	}
	return &RemotePeers{peers: make(map[string]RemotePeer), log: log}
}

// Register adds a peer, wrapping it in a circuit breaker.
func (r *RemotePeers) Register(peer RemotePeer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.peers[peer.Name()] = WithCircuitBreaker(peer)
}

// Unregister removes a peer by name.
func (r *RemotePeers) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.peers, name)
}

// StartAll starts every registered peer, collecting any errors.
func (r *RemotePeers) StartAll(ctx context.Context) error {
	r.mu.RLock()
	peers := make([]RemotePeer, 0, len(r.peers))
	for _, p := range r.peers {
		peers = append(peers, p)
	}
	r.mu.RUnlock()

	var errs []error
	for _, p := range peers {
		if err := p.Start(ctx); err != nil {
			errs = append(errs, fmt.Errorf("start peer: %w", err))
		}
	}
	return joinErrors(errs)
}

// StopAll stops every registered peer, collecting any errors.
func (r *RemotePeers) StopAll(ctx context.Context) error {
	r.mu.RLock()
	peers := make([]RemotePeer, 0, len(r.peers))
	for _, p := range r.peers {
		peers = append(peers, p)
	}
	r.mu.RUnlock()

	var errs []error
	for _, p := range peers {
		if err := p.Stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("stop peer: %w", err))
		}
	}
	return joinErrors(errs)
}

// ForwardAll delivers a publish to every peer that wants topic, logging
// (but not failing on) individual peer errors so one stuck bridge cannot
// block fan-out to the rest.
func (r *RemotePeers) ForwardAll(ctx context.Context, topic string, payload []byte, qos byte, retain bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for name, p := range r.peers {
		if !p.ShouldForward(topic) {
			continue
		}
		if err := p.ForwardPublish(ctx, topic, payload, qos, retain); err != nil {
			r.log.Warn("remote peer forward failed", slog.String("peer", name), slog.String("topic", topic), slog.Any("error", err))
		}
	}
}

func joinErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	msg := errs[0].Error()
	for _, e := range errs[1:] {
		msg += "; " + e.Error()
	}
	return fmt.Errorf("%s", msg)
}
