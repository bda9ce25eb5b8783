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

// Connect is an internal representation of the fields of the CONNECT MQTT
// 5.0 packet.
type Connect struct {
	packets.FixedHeader

	ProtocolName    string
	ProtocolVersion byte

	UsernameFlag bool
	PasswordFlag bool
	WillRetain   bool
	WillQoS      byte
	WillFlag     bool
	CleanStart   bool
	ReservedBit  byte

	KeepAlive  uint16
	Properties *ConnectProperties
	ClientID   string

	WillProperties *WillProperties
	WillTopic      string
	WillPayload    []byte

	Username string
	Password []byte
}

// ConnectProperties holds the MQTT 5.0 CONNECT packet properties.
type ConnectProperties struct {
	SessionExpiryInterval *uint32
	ReceiveMaximum        *uint16
	MaximumPacketSize     *uint32
	TopicAliasMaximum     *uint16
	RequestResponseInfo   *byte
	RequestProblemInfo    *byte
	User                  []User
	AuthMethod            string
	AuthData              []byte
}

func (p *ConnectProperties) Unpack(r io.Reader) error {
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
			p.ReceiveMaximum = &v
		case MaximumPacketSizeProp:
			v, err := codec.DecodeUint32(r)
			if err != nil {
				return err
			}
			p.MaximumPacketSize = &v
		case TopicAliasMaximumProp:
			v, err := codec.DecodeUint16(r)
			if err != nil {
				return err
			}
			p.TopicAliasMaximum = &v
		case RequestResponseInfoProp:
			v, err := codec.DecodeByte(r)
			if err != nil {
				return err
			}
			p.RequestResponseInfo = &v
		case RequestProblemInfoProp:
			v, err := codec.DecodeByte(r)
			if err != nil {
				return err
			}
			p.RequestProblemInfo = &v
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
			return fmt.Errorf("invalid property type %d for connect packet", prop)
		}
	}
}

func (p *ConnectProperties) Encode() []byte {
	var ret []byte
	if p.SessionExpiryInterval != nil {
		ret = append(ret, SessionExpiryIntervalProp)
		ret = append(ret, codec.EncodeUint32(*p.SessionExpiryInterval)...)
	}
	if p.ReceiveMaximum != nil {
		ret = append(ret, ReceiveMaximumProp)
		ret = append(ret, codec.EncodeUint16(*p.ReceiveMaximum)...)
	}
	if p.MaximumPacketSize != nil {
		ret = append(ret, MaximumPacketSizeProp)
		ret = append(ret, codec.EncodeUint32(*p.MaximumPacketSize)...)
	}
	if p.TopicAliasMaximum != nil {
		ret = append(ret, TopicAliasMaximumProp)
		ret = append(ret, codec.EncodeUint16(*p.TopicAliasMaximum)...)
	}
	if p.RequestResponseInfo != nil {
		ret = append(ret, RequestResponseInfoProp)
		ret = append(ret, *p.RequestResponseInfo)
	}
	if p.RequestProblemInfo != nil {
		ret = append(ret, RequestProblemInfoProp)
		ret = append(ret, *p.RequestProblemInfo)
	}
	for _, u := range p.User {
		ret = append(ret, UserProp)
		ret = append(ret, codec.EncodeBytes([]byte(u.Key))...)
		ret = append(ret, codec.EncodeBytes([]byte(u.Value))...)
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

// WillProperties holds the properties attached to a CONNECT packet's Will
// message.
type WillProperties struct {
	WillDelayInterval *uint32
	PayloadFormat     *byte
	MessageExpiry     *uint32
	ContentType       string
	ResponseTopic     string
	CorrelationData   []byte
	User              []User
}

func (p *WillProperties) Unpack(r io.Reader) error {
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
		case WillDelayIntervalProp:
			v, err := codec.DecodeUint32(r)
			if err != nil {
				return err
			}
			p.WillDelayInterval = &v
		case PayloadFormatProp:
			v, err := codec.DecodeByte(r)
			if err != nil {
				return err
			}
			p.PayloadFormat = &v
		case MessageExpiryProp:
			v, err := codec.DecodeUint32(r)
			if err != nil {
				return err
			}
			p.MessageExpiry = &v
		case ContentTypeProp:
			p.ContentType, err = codec.DecodeString(r)
			if err != nil {
				return err
			}
		case ResponseTopicProp:
			p.ResponseTopic, err = codec.DecodeString(r)
			if err != nil {
				return err
			}
		case CorrelationDataProp:
			p.CorrelationData, err = codec.DecodeBytes(r)
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
			return fmt.Errorf("invalid property type %d for will properties", prop)
		}
	}
}

func (p *WillProperties) Encode() []byte {
	var ret []byte
	if p.WillDelayInterval != nil {
		ret = append(ret, WillDelayIntervalProp)
		ret = append(ret, codec.EncodeUint32(*p.WillDelayInterval)...)
	}
	if p.PayloadFormat != nil {
		ret = append(ret, PayloadFormatProp)
		ret = append(ret, *p.PayloadFormat)
	}
	if p.MessageExpiry != nil {
		ret = append(ret, MessageExpiryProp)
		ret = append(ret, codec.EncodeUint32(*p.MessageExpiry)...)
	}
	if p.ContentType != "" {
		ret = append(ret, ContentTypeProp)
		ret = append(ret, codec.EncodeBytes([]byte(p.ContentType))...)
	}
	if p.ResponseTopic != "" {
		ret = append(ret, ResponseTopicProp)
		ret = append(ret, codec.EncodeBytes([]byte(p.ResponseTopic))...)
	}
	if p.CorrelationData != nil {
		ret = append(ret, CorrelationDataProp)
		ret = append(ret, codec.EncodeBytes(p.CorrelationData)...)
	}
	for _, u := range p.User {
		ret = append(ret, UserProp)
		ret = append(ret, codec.EncodeBytes([]byte(u.Key))...)
		ret = append(ret, codec.EncodeBytes([]byte(u.Value))...)
	}
	return ret
}

func (pkt *Connect) String() string {
	return fmt.Sprintf("%s\nclient_id: %s\nclean_start: %t", pkt.FixedHeader, pkt.ClientID, pkt.CleanStart)
}

// Type returns the packet type.
func (pkt *Connect) Type() byte {
	return ConnectType
}

func (pkt *Connect) connectFlags() byte {
	var flags byte
	if pkt.UsernameFlag {
		flags |= 1 << 7
	}
	if pkt.PasswordFlag {
		flags |= 1 << 6
	}
	if pkt.WillRetain {
		flags |= 1 << 5
	}
	flags |= (pkt.WillQoS & 0x03) << 3
	if pkt.WillFlag {
		flags |= 1 << 2
	}
	if pkt.CleanStart {
		flags |= 1 << 1
	}
	flags |= pkt.ReservedBit & 1
	return flags
}

func (pkt *Connect) Encode() []byte {
	var ret []byte
	ret = append(ret, codec.EncodeString(pkt.ProtocolName)...)
	ret = append(ret, pkt.ProtocolVersion)
	ret = append(ret, pkt.connectFlags())
	ret = append(ret, codec.EncodeUint16(pkt.KeepAlive)...)

	if pkt.Properties != nil {
		props := pkt.Properties.Encode()
		ret = append(ret, codec.EncodeVBI(len(props))...)
		ret = append(ret, props...)
	} else {
		ret = append(ret, 0)
	}

	ret = append(ret, codec.EncodeString(pkt.ClientID)...)

	if pkt.WillFlag {
		if pkt.WillProperties != nil {
			wp := pkt.WillProperties.Encode()
			ret = append(ret, codec.EncodeVBI(len(wp))...)
			ret = append(ret, wp...)
		} else {
			ret = append(ret, 0)
		}
		ret = append(ret, codec.EncodeString(pkt.WillTopic)...)
		ret = append(ret, codec.EncodeBytes(pkt.WillPayload)...)
	}
	if pkt.UsernameFlag {
		ret = append(ret, codec.EncodeString(pkt.Username)...)
	}
	if pkt.PasswordFlag {
		ret = append(ret, codec.EncodeBytes(pkt.Password)...)
	}

	pkt.FixedHeader.RemainingLength = len(ret)
	return append(pkt.FixedHeader.Encode(), ret...)
}

func (pkt *Connect) Pack(w io.Writer) error {
	_, err := w.Write(pkt.Encode())
	return err
}

func (pkt *Connect) Unpack(r io.Reader) error {
	var err error
	pkt.ProtocolName, err = codec.DecodeString(r)
	if err != nil {
		return err
	}
	pkt.ProtocolVersion, err = codec.DecodeByte(r)
	if err != nil {
		return err
	}

	opts, err := codec.DecodeByte(r)
	if err != nil {
		return err
	}
	pkt.UsernameFlag = (opts & (1 << 7)) > 0
	pkt.PasswordFlag = (opts & (1 << 6)) > 0
	pkt.WillRetain = (opts & (1 << 5)) > 0
	pkt.WillQoS = (opts >> 3) & 0x03
	pkt.WillFlag = (opts & (1 << 2)) > 0
	pkt.CleanStart = (opts & (1 << 1)) > 0
	pkt.ReservedBit = opts & 1

	pkt.KeepAlive, err = codec.DecodeUint16(r)
	if err != nil {
		return err
	}

	length, err := codec.DecodeVBI(r)
	if err != nil {
		return err
	}
	if length > 0 {
		buf := make([]byte, length)
		if _, err := io.ReadFull(r, buf); err != nil {
			return err
		}
		p := ConnectProperties{}
		if err := p.Unpack(bytes.NewReader(buf)); err != nil {
			return err
		}
		pkt.Properties = &p
	}

	pkt.ClientID, err = codec.DecodeString(r)
	if err != nil {
		return err
	}

	if pkt.WillFlag {
		wpLen, err := codec.DecodeVBI(r)
		if err != nil {
			return err
		}
		if wpLen > 0 {
			buf := make([]byte, wpLen)
			if _, err := io.ReadFull(r, buf); err != nil {
				return err
			}
			wp := WillProperties{}
			if err := wp.Unpack(bytes.NewReader(buf)); err != nil {
				return err
			}
			pkt.WillProperties = &wp
		}
		pkt.WillTopic, err = codec.DecodeString(r)
		if err != nil {
			return err
		}
		pkt.WillPayload, err = codec.DecodeBytes(r)
		if err != nil {
			return err
		}
	}

	if pkt.UsernameFlag {
		pkt.Username, err = codec.DecodeString(r)
		if err != nil {
			return err
		}
	}
	if pkt.PasswordFlag {
		pkt.Password, err = codec.DecodeBytes(r)
		if err != nil {
			return err
		}
	}
	return nil
}

func (pkt *Connect) Details() Details {
	return Details{Type: ConnectType}
}
