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

// The list of valid ConnAck reason codes.
const (
	ConnAckSuccess                    = 0x00
	ConnAckUnspecifiedError           = 0x80
	ConnAckMalformedPacket            = 0x81
	ConnAckProtocolError              = 0x82
	ConnAckImplementationSpecific     = 0x83
	ConnAckUnsupportedProtocolVersion = 0x84
	ConnAckClientIDNotValid           = 0x85
	ConnAckBadUsernamePassword        = 0x86
	ConnAckNotAuthorized              = 0x87
	ConnAckServerUnavailable          = 0x88
	ConnAckServerBusy                 = 0x89
	ConnAckBanned                     = 0x8A
	ConnAckBadAuthMethod              = 0x8C
	ConnAckTopicNameInvalid           = 0x90
	ConnAckPacketTooLarge             = 0x95
	ConnAckQuotaExceeded              = 0x97
	ConnAckPayloadFormatInvalid       = 0x99
	ConnAckRetainNotSupported         = 0x9A
	ConnAckQoSNotSupported            = 0x9B
	ConnAckUseAnotherServer           = 0x9C
	ConnAckServerMoved                = 0x9D
	ConnAckConnectionRateExceeded     = 0x9F
)

// ConnAck is an internal representation of the fields of the CONNACK MQTT
// 5.0 packet.
type ConnAck struct {
	packets.FixedHeader
	SessionPresent bool
	ReasonCode     byte
	Properties     *ConnAckProperties
}

// ConnAckProperties holds the MQTT 5.0 CONNACK packet properties.
type ConnAckProperties struct {
	SessionExpiryInterval *uint32
	ReceiveMax            *uint16
	MaxQoS                *byte
	RetainAvailable       *byte
	MaximumPacketSize     *uint32
	AssignedClientID      string
	TopicAliasMax         *uint16
	ReasonString          string
	User                  []User
	WildcardSubAvailable  *byte
	SubIDAvailable        *byte
	ServerKeepAlive       *uint16
	ResponseInfo          string
	ServerReference       string
	AuthMethod            string
	AuthData              []byte
}

func (p *ConnAckProperties) Unpack(r io.Reader) error {
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
		case SessionExpiryIntervalProp:
			v, err := codec.DecodeUint32(r)
			if err != nil {
				return err
			}
			p.SessionExpiryInterval = &v
		case ReceiveMaximumProp:
			v, err := codec.DecodeUint16(r)
			if err != nil {
				return err
			}
			p.ReceiveMax = &v
		case MaximumQOSProp:
			v, err := codec.DecodeByte(r)
			if err != nil {
				return err
			}
			p.MaxQoS = &v
		case RetainAvailableProp:
			v, err := codec.DecodeByte(r)
			if err != nil {
				return err
			}
			p.RetainAvailable = &v
		case MaximumPacketSizeProp:
			v, err := codec.DecodeUint32(r)
			if err != nil {
				return err
			}
			p.MaximumPacketSize = &v
		case AssignedClientIDProp:
			p.AssignedClientID, err = codec.DecodeString(r)
			if err != nil {
				return err
			}
		case TopicAliasMaximumProp:
			v, err := codec.DecodeUint16(r)
			if err != nil {
				return err
			}
			p.TopicAliasMax = &v
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
		case WildcardSubAvailableProp:
			v, err := codec.DecodeByte(r)
			if err != nil {
				return err
			}
			p.WildcardSubAvailable = &v
		case SubIDAvailableProp:
			v, err := codec.DecodeByte(r)
			if err != nil {
				return err
			}
			p.SubIDAvailable = &v
		case ServerKeepAliveProp:
			v, err := codec.DecodeUint16(r)
			if err != nil {
				return err
			}
			p.ServerKeepAlive = &v
		case ResponseInfoProp:
			p.ResponseInfo, err = codec.DecodeString(r)
			if err != nil {
				return err
			}
		case ServerReferenceProp:
			p.ServerReference, err = codec.DecodeString(r)
			if err != nil {
				return err
			}
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
		default:
			return fmt.Errorf("invalid property type %d for connack packet", prop)
		}
	}
}

func (p *ConnAckProperties) Encode() []byte {
	var ret []byte
	if p.SessionExpiryInterval != nil {
		ret = append(ret, SessionExpiryIntervalProp)
		ret = append(ret, codec.EncodeUint32(*p.SessionExpiryInterval)...)
	}
	if p.ReceiveMax != nil {
		ret = append(ret, ReceiveMaximumProp)
		ret = append(ret, codec.EncodeUint16(*p.ReceiveMax)...)
	}
	if p.MaxQoS != nil {
		ret = append(ret, MaximumQOSProp)
		ret = append(ret, *p.MaxQoS)
	}
	if p.RetainAvailable != nil {
		ret = append(ret, RetainAvailableProp)
		ret = append(ret, *p.RetainAvailable)
	}
	if p.MaximumPacketSize != nil {
		ret = append(ret, MaximumPacketSizeProp)
		ret = append(ret, codec.EncodeUint32(*p.MaximumPacketSize)...)
	}
	if p.AssignedClientID != "" {
		ret = append(ret, AssignedClientIDProp)
		ret = append(ret, codec.EncodeBytes([]byte(p.AssignedClientID))...)
	}
	if p.TopicAliasMax != nil {
		ret = append(ret, TopicAliasMaximumProp)
		ret = append(ret, codec.EncodeUint16(*p.TopicAliasMax)...)
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
	if p.WildcardSubAvailable != nil {
		ret = append(ret, WildcardSubAvailableProp)
		ret = append(ret, *p.WildcardSubAvailable)
	}
	if p.SubIDAvailable != nil {
		ret = append(ret, SubIDAvailableProp)
		ret = append(ret, *p.SubIDAvailable)
	}
	if p.ServerKeepAlive != nil {
		ret = append(ret, ServerKeepAliveProp)
		ret = append(ret, codec.EncodeUint16(*p.ServerKeepAlive)...)
	}
	if p.ResponseInfo != "" {
		ret = append(ret, ResponseInfoProp)
		ret = append(ret, codec.EncodeBytes([]byte(p.ResponseInfo))...)
	}
	if p.ServerReference != "" {
		ret = append(ret, ServerReferenceProp)
		ret = append(ret, codec.EncodeBytes([]byte(p.ServerReference))...)
	}
	if p.AuthMethod != "" {
		ret = append(ret, AuthMethodProp)
		ret = append(ret, codec.EncodeBytes([]byte(p.AuthMethod))...)
	}
	if p.AuthData != nil {
		ret = append(ret, AuthDataProp)
		ret = append(ret, codec.EncodeBytes(p.AuthData)...)
	}
	return ret
}

func (pkt *ConnAck) String() string {
	return fmt.Sprintf("%s\nsession_present: %t\nreason_code: %d", pkt.FixedHeader, pkt.SessionPresent, pkt.ReasonCode)
}

// Type returns the packet type.
func (pkt *ConnAck) Type() byte {
	return ConnAckType
}

func (pkt *ConnAck) Encode() []byte {
	var ret []byte
	var flags byte
	if pkt.SessionPresent {
		flags |= 0x01
	}
	ret = append(ret, flags)
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

func (pkt *ConnAck) Pack(w io.Writer) error {
	_, err := w.Write(pkt.Encode())
	return err
}

func (pkt *ConnAck) Unpack(r io.Reader) error {
	flags, err := codec.DecodeByte(r)
	if err != nil {
		return err
	}
	pkt.SessionPresent = (flags & 0x01) > 0

	pkt.ReasonCode, err = codec.DecodeByte(r)
	if err != nil {
		return err
	}

	length, err := codec.DecodeVBI(r)
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
	p := ConnAckProperties{}
	if err := p.Unpack(bytes.NewReader(buf)); err != nil {
		return err
	}
	pkt.Properties = &p
	return nil
}

func (pkt *ConnAck) Details() Details {
	return Details{Type: ConnAckType}
}
