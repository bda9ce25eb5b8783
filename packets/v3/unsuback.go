// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package v3

import (
	"fmt"
	"io"

	"github.com/flowmq/broker/core/codec"
	"github.com/flowmq/broker/packets"
)

// UnSubAck represents the MQTT V3.1.1 UNSUBACK packet.
type UnSubAck struct {
	packets.FixedHeader
	ID uint16
}

func (p *UnSubAck) String() string {
	return fmt.Sprintf("%s\nPacketID: %d\n", p.FixedHeader, p.ID)
}

func (p *UnSubAck) Type() byte {
	return packets.UnsubAckType
}

func (p *UnSubAck) Encode() []byte {
	var body []byte
	body = append(body, codec.EncodeUint16(p.ID)...)
	p.FixedHeader.RemainingLength = len(body)
	return append(p.FixedHeader.Encode(), body...)
}

func (p *UnSubAck) Unpack(r io.Reader) error {
	var err error
	p.ID, err = codec.DecodeUint16(r)
	return err
}

func (p *UnSubAck) Pack(w io.Writer) error {
	_, err := w.Write(p.Encode())
	return err
}

func (p *UnSubAck) Details() packets.Details {
	return packets.Details{Type: packets.UnsubAckType, ID: p.ID}
}
