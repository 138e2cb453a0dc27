package ril

import (
	"encoding/hex"

	"github.com/danmuck/ipcril/internal/protocol/ipc"
)

// SIMIOEntry is one queued file-access request. Waiting is false only for
// the entry currently on the wire.
type SIMIOEntry struct {
	Token   Token
	Command uint8
	FileID  uint16
	P1      uint8
	P2      uint8
	P3      uint8
	Data    []byte
	Waiting bool
}

// SIMIOQueue is an unbounded FIFO of SIM file accesses.
type SIMIOQueue struct {
	entries []*SIMIOEntry
}

func NewSIMIOQueue() *SIMIOQueue {
	return &SIMIOQueue{}
}

// Register appends a waiting entry and returns it.
func (q *SIMIOQueue) Register(e SIMIOEntry) *SIMIOEntry {
	entry := e
	entry.Waiting = true
	entry.Data = cloneBytes(e.Data)
	q.entries = append(q.entries, &entry)
	return &entry
}

func (q *SIMIOQueue) Head() (*SIMIOEntry, bool) {
	if len(q.entries) == 0 {
		return nil, false
	}
	return q.entries[0], true
}

func (q *SIMIOQueue) FindByToken(t Token) (*SIMIOEntry, bool) {
	if t == NoToken {
		return nil, false
	}
	for _, e := range q.entries {
		if e.Token == t {
			return e, true
		}
	}
	return nil, false
}

func (q *SIMIOQueue) Remove(target *SIMIOEntry) {
	for i, e := range q.entries {
		if e == target {
			q.entries = append(q.entries[:i], q.entries[i+1:]...)
			return
		}
	}
}

func (q *SIMIOQueue) Len() int { return len(q.entries) }

// InFlight counts entries that are not waiting.
func (q *SIMIOQueue) InFlight() int {
	n := 0
	for _, e := range q.entries {
		if !e.Waiting {
			n++
		}
	}
	return n
}

// Tokens lists queued tokens oldest first.
func (q *SIMIOQueue) Tokens() []Token {
	out := make([]Token, 0, len(q.entries))
	for _, e := range q.entries {
		out = append(out, e.Token)
	}
	return out
}

// GSM 11.11 file descriptor values used in synthesized GET RESPONSE replies.
const (
	simFileTypeMF = 0x01
	simFileTypeDF = 0x02
	simFileTypeEF = 0x04

	simFileStructureTransparent = 0x00
	simFileStructureLinearFixed = 0x01

	simFileResponseSize = 15
	simFileSizeMarker   = 0x88
)

// simFileTypes lists the directory files; everything else is an EF.
var simFileTypes = map[uint16]uint8{
	0x3f00: simFileTypeMF,
	0x7f10: simFileTypeDF,
	0x7f20: simFileTypeDF,
	0x7f21: simFileTypeDF,
	0x7f22: simFileTypeDF,
	0x7f25: simFileTypeDF,
	0x5f3a: simFileTypeDF,
	0x5f50: simFileTypeDF,
	0x5f70: simFileTypeDF,
	0x7fff: simFileTypeDF,
}

// simIOResponseText renders the host-visible response for one SIM command.
func simIOResponseText(cmd uint8, fileID uint16, data []byte, iccType uint8) string {
	switch cmd {
	case ipc.SIMCommandReadBinary, ipc.SIMCommandReadRecord:
		if len(data) == 0 {
			return ""
		}
		return hex.EncodeToString(data)
	case ipc.SIMCommandGetResponse:
		if len(data) < ipc.RSIMFileInfoSize {
			return ""
		}
		// Type 1 cards already answer in the 11.11 layout.
		if iccType == 1 {
			return hex.EncodeToString(data)
		}
		resp, ok := synthesizeFileResponse(fileID, data)
		if !ok {
			return ""
		}
		return hex.EncodeToString(resp)
	default:
		return ""
	}
}

// synthesizeFileResponse converts the modem's FCP-style reply into the
// 15-byte GSM 11.11 GET RESPONSE record. The file size is found by scanning
// back from the end for the 0x88 tag, whose value sits two bytes before it.
func synthesizeFileResponse(fileID uint16, data []byte) ([]byte, bool) {
	info, err := ipc.DecodeRSIMFileInfo(data)
	if err != nil {
		return nil, false
	}

	idAt := ipc.RSIMFileInfoSize + int(info.Offset) - 2
	if idAt < 0 || idAt+2 > len(data) {
		return nil, false
	}

	at := len(data) - 2
	for at > 2 {
		if data[at] == simFileSizeMarker {
			at -= 2
			break
		}
		at--
	}
	if at <= 2 {
		return nil, false
	}

	resp := make([]byte, simFileResponseSize)
	resp[2], resp[3] = data[at], data[at+1]
	resp[4], resp[5] = data[idAt], data[idAt+1]

	resp[6] = simFileTypeEF
	if typ, ok := simFileTypes[fileID]; ok {
		resp[6] = typ
	}

	resp[8], resp[9], resp[10] = 0x00, 0xff, 0xff
	resp[11] = 0x01
	resp[12] = 0x02

	if info.FileStructure == ipc.RSIMFileStructureTransparent {
		resp[13] = simFileStructureTransparent
	} else {
		resp[13] = simFileStructureLinearFixed
	}
	resp[14] = info.RecordLength
	return resp, true
}
