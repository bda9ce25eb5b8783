// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package v5

import (
	"bytes"
	"fmt"
	"io"

	codec "github.com/flowmq/broker/core/codec"
	"github.com/flowmq/broker/packets"
)

// The list of valid Auth reason codes.
const (
	AuthSuccess          = 0x00
	AuthContinueAuth     = 0x18
	AuthReAuthenticate   = 0x19
)

// Auth is an internal representation of the fields of the AUTH MQTT 5.0
// packet.
type Auth struct {
	packets.FixedHeader
	ReasonCode byte
	Properties *AuthProperties
}

// AuthProperties holds the MQTT 5.0 AUTH packet properties.
type AuthProperties struct {
	AuthMethod   string
	AuthData     []byte
	ReasonString string
	User         []User
}

func (p *AuthProperties) Unpack(r io.Reader) error {
	seen := make(map[byte]bool)
	for {
		prop, err := codec.DecodeByte(r)
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if err := checkDuplicateProperty(seen, prop); err != nil {
			return err
		}
		switch prop {
		case AuthMethodProp:
			p.AuthMethod, err = codec.DecodeString(r)
			if err != nil {
				return err
			}
		case AuthDataProp:
			p.AuthData, err = codec.DecodeBytes(r)
			if err != nil {
				return err
			}
		case ReasonStringProp:
			p.ReasonString, err = codec.DecodeString(r)
			if err != nil {
				return err
			}
		case UserProp:
			k, err := codec.DecodeString(r)
			if err != nil {
				return err
			}
			v, err := codec.DecodeString(r)
			if err != nil {
				return err
			}
			p.User = append(p.User, User{Key: k, Value: v})
		default:
			return fmt.Errorf("invalid property type %d for auth packet", prop)
		}
	}
}

func (p *AuthProperties) Encode() []byte {
	var ret []byte
	if p.AuthMethod != "" {
		ret = append(ret, AuthMethodProp)
		ret = append(ret, codec.EncodeBytes([]byte(p.AuthMethod))...)
	}
	if p.AuthData != nil {
		ret = append(ret, AuthDataProp)
		ret = append(ret, codec.EncodeBytes(p.AuthData)...)
	}
	if p.ReasonString != "" {
		ret = append(ret, ReasonStringProp)
		ret = append(ret, codec.EncodeBytes([]byte(p.ReasonString))...)
	}
	for _, u := range p.User {
		ret = append(ret, UserProp)
		ret = append(ret, codec.EncodeBytes([]byte(u.Key))...)
		ret = append(ret, codec.EncodeBytes([]byte(u.Value))...)
	}
	return ret
}

func (pkt *Auth) String() string {
	return fmt.Sprintf("%s\nreason_code: %d", pkt.FixedHeader, pkt.ReasonCode)
}

// Type returns the packet type.
func (pkt *Auth) Type() byte {
	return AuthType
}

func (pkt *Auth) Encode() []byte {
	var ret []byte
	ret = append(ret, pkt.ReasonCode)
	if pkt.Properties != nil {
		props := pkt.Properties.Encode()
		ret = append(ret, codec.EncodeVBI(len(props))...)
		ret = append(ret, props...)
	} else {
		ret = append(ret, 0)
	}

	pkt.FixedHeader.RemainingLength = len(ret)
	return append(pkt.FixedHeader.Encode(), ret...)
}

func (pkt *Auth) Pack(w io.Writer) error {
	_, err := w.Write(pkt.Encode())
	return err
}

func (pkt *Auth) Unpack(r io.Reader) error {
	rc, err := codec.DecodeByte(r)
	if err == io.EOF {
		return nil
	}
	if err != nil {
		return err
	}
	pkt.ReasonCode = rc

	length, err := codec.DecodeVBI(r)
	if err == io.EOF {
		return nil
	}
	if err != nil {
		return err
	}
	if length == 0 {
		return nil
	}
	buf := make([]byte, length)
	if _, err := io.ReadFull(r, buf); err != nil {
		return err
	}
	p := AuthProperties{}
	if err := p.Unpack(bytes.NewReader(buf)); err != nil {
		return err
	}
	pkt.Properties = &p
	return nil
}

func (pkt *Auth) Details() Details {
	return Details{Type: AuthType}
}
