package frame

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/danmuck/ipcril/internal/protocol/ipc"
)

// HeaderLen is the fixed IPC header: length u16, mseq, aseq, group, index, type.
const HeaderLen = 7

var (
	ErrShortHeader     = errors.New("frame: short fixed header")
	ErrLengthTooSmall  = errors.New("frame: length smaller than fixed header")
	ErrPayloadTooLarge = errors.New("frame: payload too large")
)

// Header is the fixed wire header. Length counts the header itself.
type Header struct {
	Length uint16
	MSeq   uint8
	ASeq   uint8
	Group  uint8
	Index  uint8
	Type   uint8
}

func (h Header) Command() ipc.Command { return ipc.NewCommand(h.Group, h.Index) }

// Frame is one complete wire message.
type Frame struct {
	Header  Header
	Payload []byte
}

// Limits constrains frame decode/encode memory use.
type Limits struct {
	MaxPayloadBytes int
}

func DefaultLimits() Limits {
	return Limits{MaxPayloadBytes: 0xffff - HeaderLen}
}

func ReadFrame(r io.Reader, limits Limits) (Frame, error) {
	var fixed [HeaderLen]byte
	if _, err := io.ReadFull(r, fixed[:]); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return Frame{}, ErrShortHeader
		}
		return Frame{}, err
	}

	h, err := DecodeHeader(fixed[:])
	if err != nil {
		return Frame{}, err
	}
	if h.Length < HeaderLen {
		return Frame{}, ErrLengthTooSmall
	}

	payloadLen := int(h.Length) - HeaderLen
	if payloadLen > limits.MaxPayloadBytes {
		return Frame{}, ErrPayloadTooLarge
	}

	payload := make([]byte, payloadLen)
	if payloadLen > 0 {
		if _, err := io.ReadFull(r, payload); err != nil {
			return Frame{}, err
		}
	}
	return Frame{Header: h, Payload: payload}, nil
}

func WriteFrame(w io.Writer, f Frame, limits Limits) error {
	if len(f.Payload) > limits.MaxPayloadBytes || len(f.Payload) > 0xffff-HeaderLen {
		return ErrPayloadTooLarge
	}

	h := f.Header
	h.Length = uint16(HeaderLen + len(f.Payload))

	buf := make([]byte, 0, int(h.Length))
	buf = append(buf, EncodeHeader(h)...)
	buf = append(buf, f.Payload...)
	_, err := w.Write(buf)
	return err
}

func EncodeHeader(h Header) []byte {
	buf := make([]byte, HeaderLen)
	binary.LittleEndian.PutUint16(buf[0:2], h.Length)
	buf[2] = h.MSeq
	buf[3] = h.ASeq
	buf[4] = h.Group
	buf[5] = h.Index
	buf[6] = h.Type
	return buf
}

func DecodeHeader(b []byte) (Header, error) {
	if len(b) != HeaderLen {
		return Header{}, fmt.Errorf("frame: invalid fixed header length: %d", len(b))
	}
	return Header{
		Length: binary.LittleEndian.Uint16(b[0:2]),
		MSeq:   b[2],
		ASeq:   b[3],
		Group:  b[4],
		Index:  b[5],
		Type:   b[6],
	}, nil
}

// Inbound converts a frame read from the modem into an ipc.Message.
func Inbound(ch ipc.Channel, f Frame) (ipc.Message, error) {
	typ, err := ipc.InboundType(f.Header.Type)
	if err != nil {
		return ipc.Message{}, err
	}
	return ipc.Message{
		Channel: ch,
		Command: f.Header.Command(),
		Type:    typ,
		Seq:     f.Header.ASeq,
		Payload: f.Payload,
	}, nil
}

// Outbound builds the frame for a message headed to the modem. The engine's
// sequence id rides in mseq; aseq is left at 0xff like the reference modem
// clients do.
func Outbound(m ipc.Message) (Frame, error) {
	b, err := m.Type.WireByte()
	if err != nil {
		return Frame{}, err
	}
	return Frame{
		Header: Header{
			MSeq:  m.Seq,
			ASeq:  0xff,
			Group: m.Command.Group(),
			Index: m.Command.Index(),
			Type:  b,
		},
		Payload: m.Payload,
	}, nil
}
