package ipc

import "fmt"

// MessageType is the frame's method byte. Outbound and inbound methods share
// numeric values on the wire, so the codec maps them by direction.
type MessageType uint8

const (
	TypeUnknown MessageType = iota
	TypeExec
	TypeGet
	TypeSet
	TypeCfrm
	TypeEvent
	TypeIndication
	TypeResponse
	TypeNotification
)

// Outbound method bytes.
const (
	wireExec  uint8 = 0x01
	wireGet   uint8 = 0x02
	wireSet   uint8 = 0x03
	wireCfrm  uint8 = 0x04
	wireEvent uint8 = 0x05
)

// Inbound method bytes.
const (
	wireIndi uint8 = 0x01
	wireResp uint8 = 0x02
	wireNoti uint8 = 0x03
)

func (t MessageType) String() string {
	switch t {
	case TypeExec:
		return "EXEC"
	case TypeGet:
		return "GET"
	case TypeSet:
		return "SET"
	case TypeCfrm:
		return "CFRM"
	case TypeEvent:
		return "EVENT"
	case TypeIndication:
		return "INDI"
	case TypeResponse:
		return "RESP"
	case TypeNotification:
		return "NOTI"
	default:
		return fmt.Sprintf("type(%d)", uint8(t))
	}
}

// Outbound reports whether t is sent from the host side to the modem.
func (t MessageType) Outbound() bool {
	return t >= TypeExec && t <= TypeEvent
}

// WireByte returns the method byte for t.
func (t MessageType) WireByte() (uint8, error) {
	switch t {
	case TypeExec:
		return wireExec, nil
	case TypeGet:
		return wireGet, nil
	case TypeSet:
		return wireSet, nil
	case TypeCfrm:
		return wireCfrm, nil
	case TypeEvent:
		return wireEvent, nil
	case TypeIndication:
		return wireIndi, nil
	case TypeResponse:
		return wireResp, nil
	case TypeNotification:
		return wireNoti, nil
	default:
		return 0, fmt.Errorf("%w: %d", ErrUnknownType, uint8(t))
	}
}

// InboundType maps a method byte received from the modem.
func InboundType(b uint8) (MessageType, error) {
	switch b {
	case wireIndi:
		return TypeIndication, nil
	case wireResp:
		return TypeResponse, nil
	case wireNoti:
		return TypeNotification, nil
	default:
		return TypeUnknown, fmt.Errorf("%w: inbound 0x%02x", ErrUnknownType, b)
	}
}

// OutboundType maps a method byte written by the host side. The loopback
// tests and the modem simulator use it to read back what the engine sent.
func OutboundType(b uint8) (MessageType, error) {
	switch b {
	case wireExec:
		return TypeExec, nil
	case wireGet:
		return TypeGet, nil
	case wireSet:
		return TypeSet, nil
	case wireCfrm:
		return TypeCfrm, nil
	case wireEvent:
		return TypeEvent, nil
	default:
		return TypeUnknown, fmt.Errorf("%w: outbound 0x%02x", ErrUnknownType, b)
	}
}

// Channel identifies which of the three modem links a message travelled on.
type Channel uint8

const (
	ChannelFMT Channel = iota
	ChannelRFS
	ChannelSRS
)

func (c Channel) String() string {
	switch c {
	case ChannelFMT:
		return "fmt"
	case ChannelRFS:
		return "rfs"
	case ChannelSRS:
		return "srs"
	default:
		return fmt.Sprintf("channel(%d)", uint8(c))
	}
}

// Message is one decoded IPC exchange unit. Seq is the 1-byte correlation id
// echoed by the modem (aseq on inbound frames, mseq on outbound ones).
type Message struct {
	Channel Channel
	Command Command
	Type    MessageType
	Seq     uint8
	Payload []byte
}

func (m Message) String() string {
	return fmt.Sprintf("%s %s %s seq=%d len=%d", m.Channel, CommandName(m.Channel, m.Command), m.Type, m.Seq, len(m.Payload))
}
