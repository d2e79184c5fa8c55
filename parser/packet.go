package parser

import "fmt"

var ErrInvalidPacketType = fmt.Errorf("parser: invalid packet type")

type PacketType byte

const (
	PacketTypeConnect PacketType = iota
	PacketTypeDisconnect
	PacketTypeEvent
	PacketTypeAck
	PacketTypeError
	PacketTypeBinaryEvent
	PacketTypeBinaryAck

	packetTypeMin = PacketTypeConnect
	packetTypeMax = PacketTypeBinaryAck
)

func (p PacketType) ToChar() byte {
	return byte(p) + '0'
}

func (p *PacketType) FromChar(b byte) error {
	if b < '0' || b > byte('0'+packetTypeMax) {
		return ErrInvalidPacketType
	}
	*p = PacketType(b - '0')
	return nil
}

// Packet is the envelope exchanged between the two peers of a connection.
//
// For event packets the first element of Data is the event name.
// Control packets (connect, disconnect, error) never carry an ID.
type Packet struct {
	Type      PacketType
	Namespace string

	// Ack ID. Present only when an acknowledgement is
	// expected (event) or being answered (ack).
	ID *uint64

	// Number of out-of-band binary frames that follow
	// the header frame. Only meaningful for binary packets.
	Attachments int

	Data []any
}

func (p *Packet) IsBinary() bool {
	return p.Type == PacketTypeBinaryEvent || p.Type == PacketTypeBinaryAck
}

func (p *Packet) IsEvent() bool {
	return p.Type == PacketTypeEvent || p.Type == PacketTypeBinaryEvent
}

func (p *Packet) IsAck() bool {
	return p.Type == PacketTypeAck || p.Type == PacketTypeBinaryAck
}

// EventName returns the first element of Data for event packets.
func (p *Packet) EventName() (name string, ok bool) {
	if !p.IsEvent() || len(p.Data) == 0 {
		return "", false
	}
	name, ok = p.Data[0].(string)
	return
}
