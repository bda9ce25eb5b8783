// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package v3

import (
	"fmt"
	"io"

	"github.com/flowmq/broker/core/codec"
	"github.com/flowmq/broker/packets"
)

// Unsubscribe represents the MQTT V3.1.1 UNSUBSCRIBE packet.
type Unsubscribe struct {
	packets.FixedHeader
	ID     uint16
	Topics []string
}

func (p *Unsubscribe) String() string {
	return fmt.Sprintf("%s\nPacketID: %d\nTopics: %v\n", p.FixedHeader, p.ID, p.Topics)
}

func (p *Unsubscribe) Type() byte {
	return packets.UnsubscribeType
}

func (p *Unsubscribe) Encode() []byte {
	var body []byte
	body = append(body, codec.EncodeUint16(p.ID)...)
	for _, t := range p.Topics {
		body = append(body, codec.EncodeString(t)...)
	}
	p.FixedHeader.RemainingLength = len(body)
	return append(p.FixedHeader.Encode(), body...)
}

func (p *Unsubscribe) Unpack(r io.Reader) error {
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
		p.Topics = append(p.Topics, name)
	}
	return nil
}

func (p *Unsubscribe) Pack(w io.Writer) error {
	_, err := w.Write(p.Encode())
	return err
}

func (p *Unsubscribe) Details() packets.Details {
	return packets.Details{Type: packets.UnsubscribeType, ID: p.ID, QoS: 1}
}
