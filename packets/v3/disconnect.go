// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package v3

import (
	"fmt"
	"io"

	"github.com/flowmq/broker/packets"
)

// Disconnect represents the MQTT V3.1.1 DISCONNECT packet. It has no
// variable header or payload.
type Disconnect struct {
	packets.FixedHeader
}

func (p *Disconnect) String() string {
	return fmt.Sprintf("%s\n", p.FixedHeader)
}

func (p *Disconnect) Type() byte {
	return packets.DisconnectType
}

func (p *Disconnect) Encode() []byte {
	p.FixedHeader.RemainingLength = 0
	return p.FixedHeader.Encode()
}

func (p *Disconnect) Unpack(r io.Reader) error {
	return nil
}

func (p *Disconnect) Pack(w io.Writer) error {
	_, err := w.Write(p.Encode())
	return err
}

func (p *Disconnect) Details() packets.Details {
	return packets.Details{Type: packets.DisconnectType}
}
