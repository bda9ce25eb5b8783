// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package v3

import (
	"fmt"
	"io"

	"github.com/flowmq/broker/core/codec"
	"github.com/flowmq/broker/packets"
)

// Connect represents the MQTT V3.1.1 CONNECT packet.
type Connect struct {
	packets.FixedHeader

	ProtocolName    string
	ProtocolVersion byte

	UsernameFlag bool
	PasswordFlag bool
	WillRetain   bool
	WillQoS      byte
	WillFlag     bool
	CleanSession bool
	ReservedBit  byte

	KeepAlive uint16
	ClientID  string

	WillTopic   string
	WillMessage []byte

	Username string
	Password []byte
}

func (p *Connect) String() string {
	return fmt.Sprintf("%s\nProtocolName: %s\nProtocolVersion: %d\nClientID: %s\n",
		p.FixedHeader, p.ProtocolName, p.ProtocolVersion, p.ClientID)
}

func (p *Connect) Type() byte {
	return packets.ConnectType
}

func (p *Connect) connectFlags() byte {
	var flags byte
	if p.UsernameFlag {
		flags |= 1 << 7
	}
	if p.PasswordFlag {
		flags |= 1 << 6
	}
	if p.WillRetain {
		flags |= 1 << 5
	}
	flags |= (p.WillQoS & 0x03) << 3
	if p.WillFlag {
		flags |= 1 << 2
	}
	if p.CleanSession {
		flags |= 1 << 1
	}
	flags |= p.ReservedBit & 1
	return flags
}

func (p *Connect) Encode() []byte {
	var body []byte
	body = append(body, codec.EncodeString(p.ProtocolName)...)
	body = append(body, p.ProtocolVersion)
	body = append(body, p.connectFlags())
	body = append(body, codec.EncodeUint16(p.KeepAlive)...)
	body = append(body, codec.EncodeString(p.ClientID)...)

	if p.WillFlag {
		body = append(body, codec.EncodeString(p.WillTopic)...)
		body = append(body, codec.EncodeBytes(p.WillMessage)...)
	}
	if p.UsernameFlag {
		body = append(body, codec.EncodeString(p.Username)...)
	}
	if p.PasswordFlag {
		body = append(body, codec.EncodeBytes(p.Password)...)
	}

	p.FixedHeader.RemainingLength = len(body)
	return append(p.FixedHeader.Encode(), body...)
}

func (p *Connect) Unpack(r io.Reader) error {
	var err error
	p.ProtocolName, err = codec.DecodeString(r)
	if err != nil {
		return err
	}
	p.ProtocolVersion, err = codec.DecodeByte(r)
	if err != nil {
		return err
	}

	opts, err := codec.DecodeByte(r)
	if err != nil {
		return err
	}
	p.UsernameFlag = (opts & (1 << 7)) > 0
	p.PasswordFlag = (opts & (1 << 6)) > 0
	p.WillRetain = (opts & (1 << 5)) > 0
	p.WillQoS = (opts >> 3) & 0x03
	p.WillFlag = (opts & (1 << 2)) > 0
	p.CleanSession = (opts & (1 << 1)) > 0
	p.ReservedBit = opts & 1

	p.KeepAlive, err = codec.DecodeUint16(r)
	if err != nil {
		return err
	}
	p.ClientID, err = codec.DecodeString(r)
	if err != nil {
		return err
	}

	if p.WillFlag {
		p.WillTopic, err = codec.DecodeString(r)
		if err != nil {
			return err
		}
		p.WillMessage, err = codec.DecodeBytes(r)
		if err != nil {
			return err
		}
	}
	if p.UsernameFlag {
		p.Username, err = codec.DecodeString(r)
		if err != nil {
			return err
		}
	}
	if p.PasswordFlag {
		p.Password, err = codec.DecodeBytes(r)
		if err != nil {
			return err
		}
	}
	return nil
}

func (p *Connect) Pack(w io.Writer) error {
	_, err := w.Write(p.Encode())
	return err
}

func (p *Connect) Details() packets.Details {
	return packets.Details{Type: packets.ConnectType}
}
