// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package broker implements the MQTT broker core: sessions, the cached
// publish fan-out router, the per-connection protocol state machine, and
// the orchestrator tying them to the subscription trie and retained store.
package broker

import "github.com/flowmq/broker/storage"

// SubscriptionOptions mirrors storage.SubscribeOptions for callers that
// only need the wire-facing subset (no storage import required).
type SubscriptionOptions = storage.SubscribeOptions

// PublishOptions carries the protocol-agnostic fields a Connection extracts
// from a decoded PUBLISH before handing it to the Broker.
type PublishOptions struct {
	Topic           string
	Payload         []byte
	Properties      map[string]string
	CorrelationData []byte
	ContentType     string
	ResponseTopic   string
	MessageExpiry   *uint32
	PayloadFormat   *byte
	PacketID        uint16
	QoS             byte
	Retain          bool
	Dup             bool
}

// ConnectOptions carries the protocol-agnostic fields extracted from a
// decoded CONNECT, independent of v3/v5 wire representation.
type ConnectOptions struct {
	ClientID       string
	Username       string
	Password       []byte
	Version        byte
	CleanStart     bool
	KeepAlive      uint16
	SessionExpiry  uint32
	ReceiveMaximum uint16
	MaxPacketSize  uint32
	TopicAliasMax  uint16
	Will           *storage.WillMessage
	HasUsername    bool
	HasPassword    bool
}
