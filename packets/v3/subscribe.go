// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package v3

import (
	"fmt"
	"io"

	"github.com/flowmq/broker/core/codec"
	"github.com/flowmq/broker/packets"
)

// Topic pairs a topic filter with the QoS requested for it in a SUBSCRIBE
// packet.
type Topic struct {
	Name string
	QoS  byte
}

// Subscribe represents the MQTT V3.1.1 SUBSCRIBE packet.
type Subscribe struct {
	packets.FixedHeader
	ID     uint16
	Topics []Topic
}

func (p *Subscribe) String() string {
	return fmt.Sprintf("%s\nPacketID: %d\nTopics: %v\n", p.FixedHeader, p.ID, p.Topics)
}

func (p *Subscribe) Type() byte {
	return packets.SubscribeType
}

func (p *Subscribe) Encode() []byte {
	var body []byte
	body = append(body, codec.EncodeUint16(p.ID)...)
	for _, t := range p.Topics {
		body = append(body, codec.EncodeString(t.Name)...)
		body = append(body, t.QoS)
	}
	p.FixedHeader.RemainingLength = len(body)
	return append(p.FixedHeader.Encode(), body...)
}

func (p *Subscribe) Unpack(r io.Reader) error {
	var err error
	p.ID, err = codec.DecodeUint16(r)
	if err != nil {
		return err
	}
	p.Topics = nil
	for {
		name, err := codec.DecodeString(r)
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		qos, err := codec.DecodeByte(r)
		if err != nil {
			return err
		}
		p.Topics = append(p.Topics, Topic{Name: name, QoS: qos})
	}
	return nil
}

func (p *Subscribe) Pack(w io.Writer) error {
	_, err := w.Write(p.Encode())
	return err
}

func (p *Subscribe) Details() packets.Details {
	return packets.Details{Type: packets.SubscribeType, ID: p.ID, QoS: 1}
}
