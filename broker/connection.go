// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package broker

import (
	"context"
	"io"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/flowmq/broker/brokererr"
	"github.com/flowmq/broker/packets"
	v3 "github.com/flowmq/broker/packets/v3"
	v5 "github.com/flowmq/broker/packets/v5"
	"github.com/flowmq/broker/storage"
	"github.com/flowmq/broker/storage/messages"
	"github.com/flowmq/broker/topics"
)

// ConnState is a stage in a Connection's lifecycle.
type ConnState int

const (
	AwaitingConnect ConnState = iota
	SendingConnAck
	Connected
	Closing
	Closed
)

// defaultOutboxCapacity is used when the broker's Options carry no inflight
// or offline-queue limits to derive a capacity from.
const defaultOutboxCapacity = 256

// outboxCapacityFor derives a connection's outbound buffer size from the
// broker's configured limits: enough room for every inflight QoS>0 message
// plus the messages the router queues while briefly waiting on a full
// outbox, mirroring the offline queue's own capacity.
func outboxCapacityFor(opts Options) int {
	capacity := opts.MaxInflightMessages + opts.MaxOfflineQueueSize
	if capacity <= 0 {
		return defaultOutboxCapacity
	}
	return capacity
}

// Connection runs the per-socket MQTT state machine: one ingress path
// decodes and dispatches inbound packets, one egress goroutine owns all
// writes to the transport through a bounded outbox, so byte-level ordering
// on the wire is guaranteed without either path touching the other's
// buffers. The one exception is a rejecting CONNACK, which is written to
// the transport directly just before the connection closes.
type Connection struct {
	id         string
	broker     *Broker
	tr         Conn
	remoteAddr string
	log        *slog.Logger

	version byte
	state   atomic.Int32

	session *Session

	outbox chan []byte
	done   chan struct{}

	takenOver atomic.Bool
}

func newConnection(b *Broker, tr Conn, remoteAddr string) *Connection {
	c := &Connection{
		id:         uuid.NewString(),
		broker:     b,
		tr:         tr,
		remoteAddr: remoteAddr,
		log:        b.log,
		outbox:     make(chan []byte, outboxCapacityFor(b.opts)),
		done:       make(chan struct{}),
	}
	c.state.Store(int32(AwaitingConnect))
	return c
}

// Version returns the negotiated MQTT protocol version byte
// (packets.V31/V311/V5), valid once the connection reaches Connected.
func (c *Connection) Version() byte { return c.version }

// State returns the connection's current lifecycle stage.
func (c *Connection) State() ConnState { return ConnState(c.state.Load()) }

// EnqueueOutbound hands frame to the egress goroutine. It never blocks: a
// full outbox signals back-pressure to the caller (the Router), which
// spills QoS>0 deliveries to the receiver's offline queue instead.
func (c *Connection) EnqueueOutbound(frame []byte) bool {
	select {
	case c.outbox <- frame:
		return true
	default:
		return false
	}
}

// closeForTakeover interrupts a connection whose client-id has just been
// claimed by a newer CONNECT. It does not touch session state: the new
// connection already owns that rendezvous by the time this runs.
func (c *Connection) closeForTakeover() {
	c.takenOver.Store(true)
	c.state.Store(int32(Closing))
	_ = c.tr.Close()
}

// run drives the connection from AwaitingConnect through to Closed. It
// blocks until the connection ends, so callers spawn it per accepted
// transport.
func (c *Connection) run(ctx context.Context) {
	defer func() {
		c.state.Store(int32(Closed))
		close(c.done)
		_ = c.tr.Close()
	}()

	go c.runEgress()

	if err := c.tr.SetReadDeadline(time.Now().Add(c.broker.opts.ConnectTimeout)); err != nil {
		return
	}

	version, reader, err := packets.DetectProtocolVersion(c.tr)
	if err != nil {
		return
	}

	var firstPkt packets.ControlPacket
	switch byte(version) {
	case packets.V5:
		firstPkt, _, _, err = v5.ReadPacket(reader)
	case packets.V31, packets.V311:
		firstPkt, err = v3.ReadPacket(reader)
	default:
		return
	}
	if err != nil || firstPkt == nil || firstPkt.Type() != packets.ConnectType {
		return
	}
	c.version = byte(version)

	session, ok := c.handleConnectPacket(ctx, firstPkt)
	if !ok {
		return
	}
	c.session = session
	c.state.Store(int32(Connected))

	c.dispatchLoop(ctx, reader)
}

func (c *Connection) runEgress() {
	for {
		select {
		case frame := <-c.outbox:
			if _, err := c.tr.Write(frame); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}

// handleConnectPacket extracts protocol-agnostic ConnectOptions, calls into
// the Broker, and writes the CONNACK. It returns ok=false when the
// connection must close (rejected, or a transport error while responding).
func (c *Connection) handleConnectPacket(ctx context.Context, pkt packets.ControlPacket) (*Session, bool) {
	c.state.Store(int32(SendingConnAck))

	var opts ConnectOptions
	if c.version == packets.V5 {
		opts = connectOptionsFromV5(pkt.(*v5.Connect))
	} else {
		opts = connectOptionsFromV3(pkt.(*v3.Connect))
		opts.Version = c.version
	}

	session, sessionPresent, reasonCode, err := c.broker.HandleConnect(c, opts)
	if err != nil {
		c.writeConnAckReject(reasonCode)
		return nil, false
	}

	if !c.EnqueueOutbound(c.encodeConnAck(sessionPresent, 0)) {
		return nil, false
	}
	return session, true
}

func (c *Connection) writeConnAckReject(reasonCode byte) {
	frame := c.encodeConnAck(false, reasonCode)
	_, _ = c.tr.Write(frame)
}

func (c *Connection) encodeConnAck(sessionPresent bool, reasonCode byte) []byte {
	if c.version == packets.V5 {
		pkt := &v5.ConnAck{
			FixedHeader:    v5.FixedHeader{PacketType: v5.ConnAckType},
			SessionPresent: sessionPresent,
			ReasonCode:     reasonCode,
		}
		return pkt.Encode()
	}
	pkt := &v3.ConnAck{
		FixedHeader:    v3.FixedHeader{PacketType: v3.ConnAckType},
		SessionPresent: sessionPresent,
		ReturnCode:     reasonCode,
	}
	return pkt.Encode()
}

// dispatchLoop reads and handles packets until the connection ends, then
// runs the appropriate cleanup (graceful DISCONNECT vs abnormal close).
func (c *Connection) dispatchLoop(ctx context.Context, reader io.Reader) {
	graceful := false
	discardWill := true

dispatch:
	for {
		if err := c.tr.SetReadDeadline(c.readDeadline()); err != nil {
			break
		}

		pkt, err := c.readPacket(reader)
		if err != nil {
			break
		}
		c.session.TouchActivity()

		switch pkt.Type() {
		case packets.DisconnectType:
			// A v5 DISCONNECT may not raise the session expiry from zero:
			// treat it as a protocol error and drop without a response.
			if d, ok := pkt.(*v5.Disconnect); ok && d.Properties != nil && d.Properties.SessionExpiryInterval != nil &&
				*d.Properties.SessionExpiryInterval > 0 && c.session.ExpiryInterval == 0 {
				break dispatch
			}
			discardWill = c.handleDisconnectPacket(pkt)
			graceful = true
			break dispatch

		case packets.PingReqType:
			c.EnqueueOutbound(c.encodePingResp())

		case packets.PublishType:
			if err := c.handleIncomingPublish(ctx, pkt); err != nil {
				break dispatch
			}

		case packets.PubAckType:
			_ = c.broker.HandlePubAck(c.session, pubAckPacketID(c.version, pkt))

		case packets.PubRecType:
			c.handlePubRec(pkt)

		case packets.PubRelType:
			c.handlePubRel(pkt)

		case packets.PubCompType:
			_ = c.broker.HandlePubComp(c.session, pubCompPacketID(c.version, pkt))

		case packets.SubscribeType:
			c.handleSubscribe(ctx, pkt)

		case packets.UnsubscribeType:
			c.handleUnsubscribe(pkt)
		}
	}

	if c.takenOver.Load() {
		return
	}
	if graceful {
		c.broker.HandleDisconnect(c.session, discardWill)
	} else {
		c.broker.HandleAbnormalClose(ctx, c.session)
	}
}

func (c *Connection) readDeadline() time.Time {
	if c.session.KeepAlive == 0 {
		return time.Time{}
	}
	return time.Now().Add(time.Duration(c.session.KeepAlive) * time.Second * 3 / 2)
}

func (c *Connection) readPacket(reader io.Reader) (packets.ControlPacket, error) {
	if c.version == packets.V5 {
		pkt, _, _, err := v5.ReadPacket(reader)
		return pkt, err
	}
	return v3.ReadPacket(reader)
}

func (c *Connection) handleDisconnectPacket(pkt packets.ControlPacket) (discardWill bool) {
	if c.version != packets.V5 {
		return true
	}
	d := pkt.(*v5.Disconnect)
	return d.ReasonCode == 0x00
}

func (c *Connection) encodePingResp() []byte {
	if c.version == packets.V5 {
		return (&v5.PingResp{FixedHeader: v5.FixedHeader{PacketType: v5.PingRespType}}).Encode()
	}
	return (&v3.PingResp{FixedHeader: v3.FixedHeader{PacketType: v3.PingRespType}}).Encode()
}

func (c *Connection) handleIncomingPublish(ctx context.Context, pkt packets.ControlPacket) error {
	opts, packetID, qos, err := publishOptionsFromPacket(c.version, pkt)
	if err != nil {
		return brokererr.New(brokererr.KindMalformed, err)
	}
	if qos == 3 {
		return brokererr.New(brokererr.KindMalformed, packets.ErrMalformedPacket)
	}
	if err := topics.ValidateTopicName(opts.Topic); err != nil {
		return brokererr.New(brokererr.KindMalformed, err)
	}

	if qos == 2 && c.session.Inflight.WasReceived(packetID) {
		c.EnqueueOutbound(c.encodePubRec(packetID))
		return nil
	}

	if err := c.broker.HandlePublish(ctx, c.session, opts); err != nil {
		return err
	}

	switch qos {
	case 1:
		c.EnqueueOutbound(c.encodePubAck(packetID))
	case 2:
		c.session.Inflight.MarkReceived(packetID)
		c.EnqueueOutbound(c.encodePubRec(packetID))
	}
	return nil
}

func (c *Connection) encodePubAck(id uint16) []byte {
	if c.version == packets.V5 {
		return (&v5.PubAck{FixedHeader: v5.FixedHeader{PacketType: v5.PubAckType}, ID: id}).Encode()
	}
	return (&v3.PubAck{FixedHeader: v3.FixedHeader{PacketType: v3.PubAckType}, ID: id}).Encode()
}

func (c *Connection) encodePubRec(id uint16) []byte {
	if c.version == packets.V5 {
		return (&v5.PubRec{FixedHeader: v5.FixedHeader{PacketType: v5.PubRecType}, ID: id}).Encode()
	}
	return (&v3.PubRec{FixedHeader: v3.FixedHeader{PacketType: v3.PubRecType}, ID: id}).Encode()
}

func (c *Connection) handlePubRec(pkt packets.ControlPacket) {
	var id uint16
	if c.version == packets.V5 {
		id = pkt.(*v5.PubRec).ID
	} else {
		id = pkt.(*v3.PubRec).ID
	}
	_ = c.broker.HandlePubRec(c.session, id)

	rel := c.encodePubRel(id)
	c.EnqueueOutbound(rel)
}

func (c *Connection) encodePubRel(id uint16) []byte {
	if c.version == packets.V5 {
		return (&v5.PubRel{FixedHeader: v5.FixedHeader{PacketType: v5.PubRelType, QoS: 1}, ID: id}).Encode()
	}
	return (&v3.PubRel{FixedHeader: v3.FixedHeader{PacketType: v3.PubRelType, QoS: 1}, ID: id}).Encode()
}

func (c *Connection) handlePubRel(pkt packets.ControlPacket) {
	var id uint16
	if c.version == packets.V5 {
		id = pkt.(*v5.PubRel).ID
	} else {
		id = pkt.(*v3.PubRel).ID
	}
	c.broker.HandlePubRel(c.session, id)
	c.EnqueueOutbound(c.encodePubComp(id))
}

// redeliver re-sends an inflight outbound message with DUP set, called by
// the broker's retry loop when the client hasn't acknowledged it within the
// configured retry interval. A QoS 2 message already past PUBREC re-sends
// PUBREL instead of the original PUBLISH, since the client's own state
// machine has already advanced past expecting a PUBLISH resend.
func (c *Connection) redeliver(im *messages.InflightMessage) bool {
	if im.State == messages.StatePubRecReceived {
		return c.EnqueueOutbound(c.encodePubRel(im.PacketID))
	}
	return c.EnqueueOutbound(encodeRetryPublish(im.Message, c.version == packets.V5))
}

func (c *Connection) encodePubComp(id uint16) []byte {
	if c.version == packets.V5 {
		return (&v5.PubComp{FixedHeader: v5.FixedHeader{PacketType: v5.PubCompType}, ID: id}).Encode()
	}
	return (&v3.PubComp{FixedHeader: v3.FixedHeader{PacketType: v3.PubCompType}, ID: id}).Encode()
}

func (c *Connection) handleSubscribe(ctx context.Context, pkt packets.ControlPacket) {
	id, reqs := subscribeRequestsFromPacket(c.version, pkt)
	results, _ := c.broker.HandleSubscribe(ctx, c.session, reqs)
	c.EnqueueOutbound(c.encodeSubAck(id, results))
}

func (c *Connection) encodeSubAck(id uint16, results []SubscribeResult) []byte {
	if c.version == packets.V5 {
		codes := make([]byte, len(results))
		for i, r := range results {
			codes[i] = r.Code
		}
		return (&v5.SubAck{FixedHeader: v5.FixedHeader{PacketType: v5.SubAckType}, ID: id, ReasonCodes: &codes}).Encode()
	}
	codes := make([]byte, len(results))
	for i, r := range results {
		if r.Allowed {
			codes[i] = r.Code
		} else {
			codes[i] = 0x80
		}
	}
	return (&v3.SubAck{FixedHeader: v3.FixedHeader{PacketType: v3.SubAckType}, ID: id, ReturnCodes: codes}).Encode()
}

func (c *Connection) handleUnsubscribe(pkt packets.ControlPacket) {
	id, filters := unsubscribeFiltersFromPacket(c.version, pkt)
	codes, _ := c.broker.HandleUnsubscribe(c.session, filters)
	c.EnqueueOutbound(c.encodeUnsubAck(id, codes))
}

func (c *Connection) encodeUnsubAck(id uint16, codes []byte) []byte {
	if c.version == packets.V5 {
		return (&v5.UnsubAck{FixedHeader: v5.FixedHeader{PacketType: v5.UnsubAckType}, ID: id, ReasonCodes: &codes}).Encode()
	}
	return (&v3.UnSubAck{FixedHeader: v3.FixedHeader{PacketType: v3.UnsubAckType}, ID: id}).Encode()
}

// --- protocol-agnostic packet field extraction ---

func connectOptionsFromV3(pkt *v3.Connect) ConnectOptions {
	opts := ConnectOptions{
		ClientID:    pkt.ClientID,
		Username:    pkt.Username,
		Password:    pkt.Password,
		CleanStart:  pkt.CleanSession,
		KeepAlive:   pkt.KeepAlive,
		HasUsername: pkt.UsernameFlag,
		HasPassword: pkt.PasswordFlag,
	}
	if pkt.WillFlag {
		opts.Will = &storage.WillMessage{
			ClientID: pkt.ClientID,
			Topic:    pkt.WillTopic,
			Payload:  pkt.WillMessage,
			QoS:      pkt.WillQoS,
			Retain:   pkt.WillRetain,
		}
	}
	return opts
}

func connectOptionsFromV5(pkt *v5.Connect) ConnectOptions {
	opts := ConnectOptions{
		ClientID:    pkt.ClientID,
		Username:    pkt.Username,
		Password:    pkt.Password,
		Version:     packets.V5,
		CleanStart:  pkt.CleanStart,
		KeepAlive:   pkt.KeepAlive,
		HasUsername: pkt.UsernameFlag,
		HasPassword: pkt.PasswordFlag,
	}
	if pkt.Properties != nil {
		if pkt.Properties.SessionExpiryInterval != nil {
			opts.SessionExpiry = *pkt.Properties.SessionExpiryInterval
		}
		if pkt.Properties.ReceiveMaximum != nil {
			opts.ReceiveMaximum = *pkt.Properties.ReceiveMaximum
		}
		if pkt.Properties.MaximumPacketSize != nil {
			opts.MaxPacketSize = *pkt.Properties.MaximumPacketSize
		}
		if pkt.Properties.TopicAliasMaximum != nil {
			opts.TopicAliasMax = *pkt.Properties.TopicAliasMaximum
		}
	}
	if pkt.WillFlag {
		will := &storage.WillMessage{
			ClientID: pkt.ClientID,
			Topic:    pkt.WillTopic,
			Payload:  pkt.WillPayload,
			QoS:      pkt.WillQoS,
			Retain:   pkt.WillRetain,
		}
		if pkt.WillProperties != nil && pkt.WillProperties.WillDelayInterval != nil {
			will.Delay = *pkt.WillProperties.WillDelayInterval
		}
		opts.Will = will
	}
	return opts
}

func publishOptionsFromPacket(version byte, pkt packets.ControlPacket) (PublishOptions, uint16, byte, error) {
	if version == packets.V5 {
		p := pkt.(*v5.Publish)
		opts := PublishOptions{
			Topic:   p.TopicName,
			Payload: p.Payload,
			QoS:     p.QoS,
			Retain:  p.Retain,
			Dup:     p.Dup,
		}
		if p.Properties != nil {
			opts.ContentType = p.Properties.ContentType
			opts.ResponseTopic = p.Properties.ResponseTopic
			opts.CorrelationData = p.Properties.CorrelationData
			opts.MessageExpiry = p.Properties.MessageExpiry
			opts.PayloadFormat = p.Properties.PayloadFormat
			if len(p.Properties.User) > 0 {
				opts.Properties = make(map[string]string, len(p.Properties.User))
				for _, u := range p.Properties.User {
					opts.Properties[u.Key] = u.Value
				}
			}
		}
		return opts, p.ID, p.QoS, nil
	}
	p := pkt.(*v3.Publish)
	return PublishOptions{
		Topic:   p.TopicName,
		Payload: p.Payload,
		QoS:     p.QoS,
		Retain:  p.Retain,
		Dup:     p.Dup,
	}, p.ID, p.QoS, nil
}

func pubAckPacketID(version byte, pkt packets.ControlPacket) uint16 {
	if version == packets.V5 {
		return pkt.(*v5.PubAck).ID
	}
	return pkt.(*v3.PubAck).ID
}

func pubCompPacketID(version byte, pkt packets.ControlPacket) uint16 {
	if version == packets.V5 {
		return pkt.(*v5.PubComp).ID
	}
	return pkt.(*v3.PubComp).ID
}

func subscribeRequestsFromPacket(version byte, pkt packets.ControlPacket) (uint16, []SubscribeRequest) {
	if version == packets.V5 {
		p := pkt.(*v5.Subscribe)
		reqs := make([]SubscribeRequest, len(p.Opts))
		var subID *uint32
		if p.Properties != nil && p.Properties.SubscriptionIdentifier != nil {
			id := uint32(*p.Properties.SubscriptionIdentifier)
			subID = &id
		}
		for i, o := range p.Opts {
			opts := storage.SubscribeOptions{}
			if o.NoLocal != nil {
				opts.NoLocal = *o.NoLocal
			}
			if o.RetainAsPublished != nil {
				opts.RetainAsPublished = *o.RetainAsPublished
			}
			if o.RetainHandling != nil {
				opts.RetainHandling = *o.RetainHandling
			}
			reqs[i] = SubscribeRequest{Filter: o.Topic, QoS: o.MaxQoS, Options: opts, SubscriptionID: subID}
		}
		return p.ID, reqs
	}
	p := pkt.(*v3.Subscribe)
	reqs := make([]SubscribeRequest, len(p.Topics))
	for i, t := range p.Topics {
		reqs[i] = SubscribeRequest{Filter: t.Name, QoS: t.QoS}
	}
	return p.ID, reqs
}

func unsubscribeFiltersFromPacket(version byte, pkt packets.ControlPacket) (uint16, []string) {
	if version == packets.V5 {
		p := pkt.(*v5.Unsubscribe)
		return p.ID, p.Topics
	}
	p := pkt.(*v3.Unsubscribe)
	return p.ID, p.Topics
}
