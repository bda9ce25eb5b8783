// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package v3

// Reset clears all fields in the Connect packet for reuse.
func (p *Connect) Reset() {
	p.FixedHeader = FixedHeader{PacketType: ConnectType}
	p.ProtocolName = ""
	p.ProtocolVersion = 0
	p.UsernameFlag = false
	p.PasswordFlag = false
	p.WillRetain = false
	p.WillQoS = 0
	p.WillFlag = false
	p.CleanSession = false
	p.ReservedBit = 0
	p.KeepAlive = 0
	p.ClientID = ""
	p.WillTopic = ""
	p.WillMessage = nil
	p.Username = ""
	p.Password = nil
}

// Reset clears all fields in the ConnAck packet for reuse.
func (c *ConnAck) Reset() {
	c.FixedHeader = FixedHeader{PacketType: ConnAckType}
	c.SessionPresent = false
	c.ReturnCode = 0
}

// Reset clears all fields in the Publish packet for reuse.
func (p *Publish) Reset() {
	p.FixedHeader = FixedHeader{PacketType: PublishType}
	p.TopicName = ""
	p.ID = 0
	p.Payload = nil
}

// Reset clears all fields in the PubAck packet for reuse.
func (p *PubAck) Reset() {
	p.FixedHeader = FixedHeader{PacketType: PubAckType}
	p.ID = 0
}

// Reset clears all fields in the PubRec packet for reuse.
func (p *PubRec) Reset() {
	p.FixedHeader = FixedHeader{PacketType: PubRecType}
	p.ID = 0
}

// Reset clears all fields in the PubRel packet for reuse.
func (p *PubRel) Reset() {
	p.FixedHeader = FixedHeader{PacketType: PubRelType, QoS: 1}
	p.ID = 0
}

// Reset clears all fields in the PubComp packet for reuse.
func (p *PubComp) Reset() {
	p.FixedHeader = FixedHeader{PacketType: PubCompType}
	p.ID = 0
}

// Reset clears all fields in the Subscribe packet for reuse.
func (p *Subscribe) Reset() {
	p.FixedHeader = FixedHeader{PacketType: SubscribeType, QoS: 1}
	p.ID = 0
	p.Topics = p.Topics[:0]
}

// Reset clears all fields in the SubAck packet for reuse.
func (s *SubAck) Reset() {
	s.FixedHeader = FixedHeader{PacketType: SubAckType}
	s.ID = 0
	s.ReturnCodes = s.ReturnCodes[:0]
}

// Reset clears all fields in the Unsubscribe packet for reuse.
func (p *Unsubscribe) Reset() {
	p.FixedHeader = FixedHeader{PacketType: UnsubscribeType, QoS: 1}
	p.ID = 0
	p.Topics = p.Topics[:0]
}

// Reset clears all fields in the UnSubAck packet for reuse.
func (p *UnSubAck) Reset() {
	p.FixedHeader = FixedHeader{PacketType: UnsubAckType}
	p.ID = 0
}

// Reset clears all fields in the PingReq packet for reuse.
func (p *PingReq) Reset() {
	p.FixedHeader = FixedHeader{PacketType: PingReqType}
}

// Reset clears all fields in the PingResp packet for reuse.
func (p *PingResp) Reset() {
	p.FixedHeader = FixedHeader{PacketType: PingRespType}
}

// Reset clears all fields in the Disconnect packet for reuse.
func (p *Disconnect) Reset() {
	p.FixedHeader = FixedHeader{PacketType: DisconnectType}
}
