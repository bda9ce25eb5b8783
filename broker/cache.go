// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package broker

import (
	"encoding/binary"

	v3 "github.com/flowmq/broker/packets/v3"
	v5 "github.com/flowmq/broker/packets/v5"
	"github.com/flowmq/broker/storage"
)

// cacheKey identifies one pre-serialized wire variant of a Message: a
// protocol version crossed with an effective QoS level. At most six exist
// per message (2 versions x 3 QoS levels).
type cacheKey struct {
	isV5 bool
	qos  byte
}

// CachedPublish is the pre-serialized wire form of a Message for one
// (protocol-version, effective-QoS) pair. The body bytes outside the two
// patchable windows (the fixed-header byte and the packet-identifier slot)
// are identical for every subscriber at that (version, QoS).
type CachedPublish struct {
	Bytes    []byte
	IDOffset int // -1 when QoS 0 (no packet identifier)
	QoS      byte
	IsV5     bool
}

// buildCachedPublish serializes msg once for the given protocol version and
// effective QoS, with DUP=0, RETAIN=0 and a zero packet identifier. The
// returned offsets let PatchInto rewrite those fields per subscriber
// without touching anything else.
func buildCachedPublish(msg *storage.Message, isV5 bool, qos byte) *CachedPublish {
	topicBytes := len(msg.Topic)
	payload := msg.GetPayload()

	var encoded []byte
	if isV5 {
		pkt := &v5.Publish{
			FixedHeader: v5FixedHeader(qos),
			TopicName:   msg.Topic,
			Payload:     payload,
			Properties:  publishProperties(msg),
		}
		encoded = pkt.Encode()
	} else {
		pkt := &v3.Publish{
			FixedHeader: v3FixedHeader(qos),
			TopicName:   msg.Topic,
			Payload:     payload,
		}
		encoded = pkt.Encode()
	}

	headerLen := fixedHeaderByteLen(encoded)
	idOffset := -1
	if qos > 0 {
		idOffset = headerLen + 2 + topicBytes
	}

	return &CachedPublish{Bytes: encoded, IDOffset: idOffset, QoS: qos, IsV5: isV5}
}

// fixedHeaderByteLen returns the number of bytes the fixed header (type byte
// + Variable Byte Integer remaining length) occupies at the start of an
// encoded packet, by re-deriving it from the VBI's own continuation bits.
func fixedHeaderByteLen(encoded []byte) int {
	n := 1
	for i := 1; i < len(encoded) && i <= 4; i++ {
		n++
		if encoded[i]&0x80 == 0 {
			break
		}
	}
	return n
}

func v3FixedHeader(qos byte) v3.FixedHeader {
	return v3.FixedHeader{PacketType: v3.PublishType, QoS: qos}
}

func v5FixedHeader(qos byte) v5.FixedHeader {
	return v5.FixedHeader{PacketType: v5.PublishType, QoS: qos}
}

// publishProperties translates the protocol-agnostic Message fields into a
// v5 PublishProperties block. Returns nil when nothing needs to be sent, so
// Encode() falls back to a zero-length property block.
func publishProperties(msg *storage.Message) *v5.PublishProperties {
	if msg.ContentType == "" && msg.ResponseTopic == "" && len(msg.CorrelationData) == 0 &&
		msg.MessageExpiry == nil && msg.PayloadFormat == nil && len(msg.UserProperties) == 0 {
		return nil
	}
	props := &v5.PublishProperties{
		ContentType:     msg.ContentType,
		ResponseTopic:   msg.ResponseTopic,
		CorrelationData: msg.CorrelationData,
		MessageExpiry:   msg.MessageExpiry,
		PayloadFormat:   msg.PayloadFormat,
	}
	for k, v := range msg.UserProperties {
		props.User = append(props.User, v5.User{Key: k, Value: v})
	}
	return props
}

// PatchInto copies the cached bytes and rewrites the two per-subscriber
// windows: the fixed-header DUP/RETAIN bits and, for QoS>0, the packet
// identifier. No other byte is touched.
func (c *CachedPublish) PatchInto(packetID uint16, dup, retain bool) []byte {
	out := make([]byte, len(c.Bytes))
	copy(out, c.Bytes)

	b := out[0] &^ byte(0x09) // clear DUP (bit3) and RETAIN (bit0), keep type+QoS
	if dup {
		b |= 0x08
	}
	if retain {
		b |= 0x01
	}
	out[0] = b

	if c.IDOffset >= 0 {
		binary.BigEndian.PutUint16(out[c.IDOffset:c.IDOffset+2], packetID)
	}
	return out
}

// encodeV5PublishWithSubscriptionIDs builds a fresh, uncached v5 PUBLISH
// carrying a subscription-identifier property. Only the first entry of
// subscriptionIDs is encoded; further identifiers are not sent. Because the
// identifiers differ per receiver, this frame cannot be produced from the
// shared CachedPublish bytes and is only used for the receivers that need
// it.
func encodeV5PublishWithSubscriptionIDs(msg *storage.Message, qos byte, packetID uint16, retain bool, subscriptionIDs []uint32) []byte {
	return encodeV5Publish(msg, qos, packetID, retain, false, subscriptionIDs)
}

func encodeV5Publish(msg *storage.Message, qos byte, packetID uint16, retain, dup bool, subscriptionIDs []uint32) []byte {
	props := publishProperties(msg)
	if props == nil {
		props = &v5.PublishProperties{}
	}
	if len(subscriptionIDs) > 0 {
		id := int(subscriptionIDs[0])
		props.SubscriptionID = &id
	}

	fh := v5FixedHeader(qos)
	fh.Retain = retain
	fh.Dup = dup
	pkt := &v5.Publish{
		FixedHeader: fh,
		ID:          packetID,
		TopicName:   msg.Topic,
		Payload:     msg.GetPayload(),
		Properties:  props,
	}
	return pkt.Encode()
}

// encodeRetryPublish builds a fresh PUBLISH frame for msg with DUP set, used
// to redeliver a QoS 1/2 message that has gone unacknowledged past the retry
// interval. Retries are infrequent enough that building a fresh frame,
// rather than extending the publish cache, isn't worth the bookkeeping.
func encodeRetryPublish(msg *storage.Message, isV5 bool) []byte {
	if isV5 {
		return encodeV5Publish(msg, msg.QoS, msg.PacketID, msg.Retain, true, msg.SubscriptionIDs)
	}
	pkt := &v3.Publish{
		FixedHeader: v3.FixedHeader{PacketType: v3.PublishType, QoS: msg.QoS, Dup: true, Retain: msg.Retain},
		TopicName:   msg.Topic,
		ID:          msg.PacketID,
		Payload:     msg.GetPayload(),
	}
	return pkt.Encode()
}

// publishCache builds CachedPublish variants for one inbound message on
// demand, guaranteeing each (version, QoS) pair is serialized at most once
// regardless of fan-out size. It is scoped to a single Distribute() call and
// is not safe for concurrent use across publishes.
type publishCache struct {
	msg   *storage.Message
	built map[cacheKey]*CachedPublish
}

func newPublishCache(msg *storage.Message) *publishCache {
	return &publishCache{msg: msg, built: make(map[cacheKey]*CachedPublish, 2)}
}

// Get returns the cached variant for (isV5, qos), building it on first use.
func (c *publishCache) Get(isV5 bool, qos byte) *CachedPublish {
	key := cacheKey{isV5: isV5, qos: qos}
	if cp, ok := c.built[key]; ok {
		return cp
	}
	cp := buildCachedPublish(c.msg, isV5, qos)
	c.built[key] = cp
	return cp
}
