package ipc

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// All multi-byte record fields are little-endian on the wire.

func need(b []byte, n int, what string) error {
	if len(b) < n {
		return fmt.Errorf("%w: %s needs %d bytes, got %d", ErrTruncated, what, n, len(b))
	}
	return nil
}

// GEN

const (
	GenericResponseSize = 5
	GenericSuccessCode  = 0x8000
)

// GenericResponse is the shared acknowledgment for commands without a
// dedicated reply. It echoes the command it answers.
type GenericResponse struct {
	Group uint8
	Index uint8
	Type  uint8
	Code  uint16
}

func DecodeGenericResponse(b []byte) (GenericResponse, error) {
	if err := need(b, GenericResponseSize, "gen phone res"); err != nil {
		return GenericResponse{}, err
	}
	return GenericResponse{
		Group: b[0],
		Index: b[1],
		Type:  b[2],
		Code:  binary.LittleEndian.Uint16(b[3:5]),
	}, nil
}

func (r GenericResponse) Command() Command { return NewCommand(r.Group, r.Index) }
func (r GenericResponse) OK() bool         { return r.Code == GenericSuccessCode }

// ErrorCode is the low byte of Code, which carries the failure reason.
func (r GenericResponse) ErrorCode() uint8 { return uint8(r.Code & 0x00ff) }

func (r GenericResponse) Marshal() []byte {
	buf := make([]byte, GenericResponseSize)
	buf[0], buf[1], buf[2] = r.Group, r.Index, r.Type
	binary.LittleEndian.PutUint16(buf[3:5], r.Code)
	return buf
}

// PWR

const (
	PhoneStateLPM    uint16 = 0x0001
	PhoneStateNormal uint16 = 0x0202
)

// PhoneStateReply extracts the reply byte the modem uses for a power mode.
func PhoneStateReply(mode uint16) uint8 { return uint8(mode >> 8) }

func PhoneStateRequest(mode uint16) []byte {
	buf := make([]byte, 2)
	binary.LittleEndian.PutUint16(buf, mode)
	return buf
}

func DecodePhoneState(b []byte) (uint8, error) {
	if err := need(b, 1, "phone state"); err != nil {
		return 0, err
	}
	return b[0], nil
}

// SEC

const (
	SIMStatusReady           uint8 = 0x00
	SIMStatusSIMLockRequired uint8 = 0x01
	SIMStatusInsidePFError   uint8 = 0x02
	SIMStatusLockSC          uint8 = 0x03
	SIMStatusLockFD          uint8 = 0x04
	SIMStatusLockPN          uint8 = 0x05
	SIMStatusLockPU          uint8 = 0x06
	SIMStatusLockPP          uint8 = 0x07
	SIMStatusLockPC          uint8 = 0x08
	SIMStatusCardNotPresent  uint8 = 0x80
	SIMStatusCardError       uint8 = 0x81
	SIMStatusInitComplete    uint8 = 0x82
	SIMStatusPBInitComplete  uint8 = 0x83
)

const (
	FacilityLockSCUnlocked    uint8 = 0x00
	FacilityLockSCPIN1Req     uint8 = 0x01
	FacilityLockSCPUKReq      uint8 = 0x02
	FacilityLockSCCardBlocked uint8 = 0x05
)

const (
	PINTypePIN1 uint8 = 0x03
	PINTypePIN2 uint8 = 0x09
)

const SIMStatusSize = 2

type SIMStatus struct {
	Status       uint8
	FacilityLock uint8
}

func DecodeSIMStatus(b []byte) (SIMStatus, error) {
	if err := need(b, SIMStatusSize, "sim status"); err != nil {
		return SIMStatus{}, err
	}
	return SIMStatus{Status: b[0], FacilityLock: b[1]}, nil
}

func (s SIMStatus) Marshal() []byte { return []byte{s.Status, s.FacilityLock} }

func DecodeSIMICCType(b []byte) (uint8, error) {
	if err := need(b, 1, "sim icc type"); err != nil {
		return 0, err
	}
	return b[0], nil
}

const LockInfoSize = 4

type LockInfo struct {
	Num      uint8
	Type     uint8
	Status   uint8
	Attempts uint8
}

func DecodeLockInfo(b []byte) (LockInfo, error) {
	if err := need(b, LockInfoSize, "lock info"); err != nil {
		return LockInfo{}, err
	}
	return LockInfo{Num: b[0], Type: b[1], Status: b[2], Attempts: b[3]}, nil
}

// LockInfoRequest asks for the remaining attempts of one PIN type.
func LockInfoRequest(pinType uint8) []byte {
	buf := make([]byte, 9)
	buf[0] = 1
	buf[1] = pinType
	return buf
}

const (
	pinFieldLen      = 8
	passwordFieldLen = 39
)

// PinStatusSet carries PIN (and PUK, for unblocking) entry.
type PinStatusSet struct {
	Type uint8
	PIN1 string
	PIN2 string
}

func (p PinStatusSet) Marshal() ([]byte, error) {
	if len(p.PIN1) > pinFieldLen || len(p.PIN2) > pinFieldLen {
		return nil, fmt.Errorf("%w: pin longer than %d digits", ErrFieldTooLong, pinFieldLen)
	}
	buf := make([]byte, 3+2*pinFieldLen)
	buf[0] = p.Type
	buf[1] = uint8(len(p.PIN1))
	buf[2] = uint8(len(p.PIN2))
	copy(buf[3:3+pinFieldLen], p.PIN1)
	copy(buf[3+pinFieldLen:], p.PIN2)
	return buf, nil
}

// ChangeLockingPW replaces a facility password. Over-long passwords are
// truncated to the record capacity, as the modem firmware expects.
type ChangeLockingPW struct {
	Facility uint8
	Old      string
	New      string
}

func (c ChangeLockingPW) Marshal() []byte {
	newPW := clip(c.New, passwordFieldLen)
	oldPW := clip(c.Old, passwordFieldLen)
	buf := make([]byte, 3+2*passwordFieldLen)
	buf[0] = c.Facility
	buf[1] = uint8(len(newPW))
	buf[2] = uint8(len(oldPW))
	copy(buf[3:3+passwordFieldLen], newPW)
	copy(buf[3+passwordFieldLen:], oldPW)
	return buf
}

type PhoneLockSet struct {
	Type     uint8
	Lock     bool
	Password string
}

func (p PhoneLockSet) Marshal() []byte {
	pw := clip(p.Password, passwordFieldLen)
	buf := make([]byte, 3+passwordFieldLen)
	buf[0] = p.Type
	if p.Lock {
		buf[1] = 1
	}
	buf[2] = uint8(len(pw))
	copy(buf[3:], pw)
	return buf
}

const PhoneLockResponseSize = 2

type PhoneLockResponse struct {
	Facility uint8
	Status   uint8
}

func DecodePhoneLockResponse(b []byte) (PhoneLockResponse, error) {
	if err := need(b, PhoneLockResponseSize, "phone lock"); err != nil {
		return PhoneLockResponse{}, err
	}
	return PhoneLockResponse{Facility: b[0], Status: b[1]}, nil
}

// FacilityCode maps a 27.007 facility name to its lock type.
func FacilityCode(name string) (uint8, bool) {
	switch name {
	case "SC":
		return SIMStatusLockSC, true
	case "FD":
		return SIMStatusLockFD, true
	case "PN":
		return SIMStatusLockPN, true
	case "PU":
		return SIMStatusLockPU, true
	case "PP":
		return SIMStatusLockPP, true
	case "PC":
		return SIMStatusLockPC, true
	default:
		return 0, false
	}
}

// RSIM access

const (
	SIMCommandReadBinary   uint8 = 0xb0
	SIMCommandReadRecord   uint8 = 0xb2
	SIMCommandGetResponse  uint8 = 0xc0
	SIMCommandUpdateBinary uint8 = 0xd6
	SIMCommandUpdateRecord uint8 = 0xdc
	SIMCommandSeek         uint8 = 0xa2
)

const (
	RSIMFileStructureTransparent uint8 = 0x01
	RSIMFileStructureLinearFixed uint8 = 0x02
)

const RSIMAccessRequestSize = 6

type RSIMAccessRequest struct {
	Command uint8
	FileID  uint16
	P1      uint8
	P2      uint8
	P3      uint8
	Data    []byte
}

func (r RSIMAccessRequest) Marshal() []byte {
	buf := make([]byte, RSIMAccessRequestSize, RSIMAccessRequestSize+len(r.Data))
	buf[0] = r.Command
	binary.LittleEndian.PutUint16(buf[1:3], r.FileID)
	buf[3], buf[4], buf[5] = r.P1, r.P2, r.P3
	return append(buf, r.Data...)
}

const RSIMAccessResponseSize = 3

// RSIMAccessResponse is the status words plus the Len bytes of file data.
type RSIMAccessResponse struct {
	SW1  uint8
	SW2  uint8
	Len  uint8
	Data []byte
}

func DecodeRSIMAccessResponse(b []byte) (RSIMAccessResponse, error) {
	if err := need(b, RSIMAccessResponseSize, "rsim access"); err != nil {
		return RSIMAccessResponse{}, err
	}
	r := RSIMAccessResponse{SW1: b[0], SW2: b[1], Len: b[2]}
	body := b[RSIMAccessResponseSize:]
	if len(body) < int(r.Len) {
		return RSIMAccessResponse{}, fmt.Errorf("%w: rsim data declares %d bytes, got %d", ErrTruncated, r.Len, len(body))
	}
	r.Data = body[:r.Len]
	return r, nil
}

// RSIMFileInfoSize is the fixed descriptor the modem places ahead of the raw
// FCP bytes in a GET RESPONSE reply.
const RSIMFileInfoSize = 6

type RSIMFileInfo struct {
	FileStructure uint8
	RecordLength  uint8
	// Offset locates the file id: it sits at RSIMFileInfoSize+Offset-2.
	Offset uint8
}

func DecodeRSIMFileInfo(b []byte) (RSIMFileInfo, error) {
	if err := need(b, RSIMFileInfoSize, "rsim file info"); err != nil {
		return RSIMFileInfo{}, err
	}
	return RSIMFileInfo{FileStructure: b[0], RecordLength: b[2], Offset: b[5]}, nil
}

// SMS

const (
	SMSTypePointToPoint uint8 = 0x01
	SMSTypeStatusReport uint8 = 0x02
	SMSTypeOutgoing     uint8 = 0x02
)

const (
	SMSMsgSingle   uint8 = 0x01
	SMSMsgMultiple uint8 = 0x02
)

const (
	SMSAckNoError     uint16 = 0x0000
	SMSAckPDAFull     uint16 = 0x8080
	SMSAckUnspecError uint16 = 0x806f
)

const SendMsgRequestSize = 4

// SendMsgRequest is the header written ahead of SMSC and PDU bytes.
type SendMsgRequest struct {
	Type    uint8
	MsgType uint8
	Length  uint8
	SMSCLen uint8
}

func (r SendMsgRequest) Marshal() []byte {
	return []byte{r.Type, r.MsgType, r.Length, r.SMSCLen}
}

const SendMsgResponseSize = 5

type SendMsgResponse struct {
	Type    uint8
	Error   uint16
	MsgTPID uint8
}

func DecodeSendMsgResponse(b []byte) (SendMsgResponse, error) {
	if err := need(b, SendMsgResponseSize, "sms send msg"); err != nil {
		return SendMsgResponse{}, err
	}
	return SendMsgResponse{
		Type:    b[0],
		Error:   binary.LittleEndian.Uint16(b[1:3]),
		MsgTPID: b[3],
	}, nil
}

const IncomingMsgSize = 6

type IncomingMsg struct {
	MsgType  uint8
	Type     uint8
	SIMIndex uint16
	MsgTPID  uint8
	PDU      []byte
}

func DecodeIncomingMsg(b []byte) (IncomingMsg, error) {
	if err := need(b, IncomingMsgSize, "sms incoming msg"); err != nil {
		return IncomingMsg{}, err
	}
	m := IncomingMsg{
		MsgType:  b[0],
		Type:     b[1],
		SIMIndex: binary.LittleEndian.Uint16(b[2:4]),
		MsgTPID:  b[4],
	}
	length := int(b[5])
	body := b[IncomingMsgSize:]
	if len(body) < length {
		return IncomingMsg{}, fmt.Errorf("%w: sms pdu declares %d bytes, got %d", ErrTruncated, length, len(body))
	}
	m.PDU = append([]byte(nil), body[:length]...)
	return m, nil
}

const DeliverReportSize = 5

type DeliverReport struct {
	Type    uint8
	Error   uint16
	MsgTPID uint8
}

func (r DeliverReport) Marshal() []byte {
	buf := make([]byte, DeliverReportSize)
	buf[0] = r.Type
	binary.LittleEndian.PutUint16(buf[1:3], r.Error)
	buf[3] = r.MsgTPID
	return buf
}

func DecodeDeliverReport(b []byte) (DeliverReport, error) {
	if err := need(b, DeliverReportSize, "sms deliver report"); err != nil {
		return DeliverReport{}, err
	}
	return DeliverReport{
		Type:    b[0],
		Error:   binary.LittleEndian.Uint16(b[1:3]),
		MsgTPID: b[3],
	}, nil
}

// MISC

const (
	MESNSerialNum       uint8 = 0x01
	MESNSerialNumSerial uint8 = 0x03
)

const (
	meSNDataLen   = 32
	MESerialSize  = 2 + meSNDataLen
	meVersionLen  = 32
	MEVersionSize = 4 * meVersionLen
)

type MESerial struct {
	Type   uint8
	Length uint8
	Data   [meSNDataLen]byte
}

func DecodeMESerial(b []byte) (MESerial, error) {
	if err := need(b, MESerialSize, "me sn"); err != nil {
		return MESerial{}, err
	}
	s := MESerial{Type: b[0], Length: b[1]}
	copy(s.Data[:], b[2:MESerialSize])
	return s, nil
}

type MEVersion struct {
	SWVersion string
	HWVersion string
	CalDate   string
	Misc      string
}

func DecodeMEVersion(b []byte) (MEVersion, error) {
	if err := need(b, MEVersionSize, "me version"); err != nil {
		return MEVersion{}, err
	}
	field := func(i int) string {
		return cString(b[i*meVersionLen : (i+1)*meVersionLen])
	}
	return MEVersion{SWVersion: field(0), HWVersion: field(1), CalDate: field(2), Misc: field(3)}, nil
}

func DecodeIMSI(b []byte) (string, error) {
	if err := need(b, 1, "imsi"); err != nil {
		return "", err
	}
	n := int(b[0])
	if len(b) < n+1 {
		return "", fmt.Errorf("%w: imsi declares %d bytes, got %d", ErrTruncated, n, len(b)-1)
	}
	return string(b[1 : n+1]), nil
}

const TimeInfoSize = 11

type TimeInfo struct {
	TZValid       uint8
	DaylightValid uint8
	Year          uint8
	Mon           uint8
	Day           uint8
	Hour          uint8
	Min           uint8
	Sec           uint8
	TZ            int8
	DL            uint8
	DV            uint8
}

func DecodeTimeInfo(b []byte) (TimeInfo, error) {
	if err := need(b, TimeInfoSize, "time info"); err != nil {
		return TimeInfo{}, err
	}
	return TimeInfo{
		TZValid: b[0], DaylightValid: b[1],
		Year: b[2], Mon: b[3], Day: b[4],
		Hour: b[5], Min: b[6], Sec: b[7],
		TZ: int8(b[8]), DL: b[9], DV: b[10],
	}, nil
}

// NITZ renders the time as "yy/mm/dd,hh:mm:ss(+/-)tz,dt".
func (t TimeInfo) NITZ() string {
	sign := byte('+')
	tz := int(t.TZ)
	if tz < 0 {
		sign = '-'
		tz = -tz
	}
	return fmt.Sprintf("%02d/%02d/%02d,%02d:%02d:%02d%c%02d,%02d",
		t.Year, t.Mon, t.Day, t.Hour, t.Min, t.Sec, sign, tz, t.DL)
}

// SS

const (
	USSDNoActionRequire uint8 = 0x01
	USSDActionRequire   uint8 = 0x02
	USSDTerminatedByNet uint8 = 0x03
	USSDOtherClient     uint8 = 0x04
	USSDNotSupport      uint8 = 0x05
	USSDTimeOut         uint8 = 0x06
)

const USSDHeaderSize = 3

type USSD struct {
	State  uint8
	DCS    uint8
	Length uint8
	Data   []byte
}

func DecodeUSSD(b []byte) (USSD, error) {
	if err := need(b, USSDHeaderSize, "ussd"); err != nil {
		return USSD{}, err
	}
	return USSD{State: b[0], DCS: b[1], Length: b[2], Data: b[USSDHeaderSize:]}, nil
}

// Marshal pads the record to size bytes when size exceeds the encoded length.
func (u USSD) Marshal(size int) []byte {
	n := USSDHeaderSize + len(u.Data)
	if size < n {
		size = n
	}
	buf := make([]byte, size)
	buf[0], buf[1], buf[2] = u.State, u.DCS, u.Length
	copy(buf[USSDHeaderSize:], u.Data)
	return buf
}

// DISP

const IconInfoSize = 5

type IconInfo struct {
	Icon    uint8
	RSSI    uint8
	Battery uint8
	Act     uint8
	Reg     uint8
}

func DecodeIconInfo(b []byte) (IconInfo, error) {
	if err := need(b, IconInfoSize, "icon info"); err != nil {
		return IconInfo{}, err
	}
	return IconInfo{Icon: b[0], RSSI: b[1], Battery: b[2], Act: b[3], Reg: b[4]}, nil
}

func DecodeRSSIInfo(b []byte) (uint8, error) {
	if err := need(b, 1, "rssi info"); err != nil {
		return 0, err
	}
	return b[0], nil
}

// RFS

const (
	NVIOSize        = 8
	NVIOConfirmSize = 9
)

type NVIO struct {
	Offset uint32
	Length uint32
	Data   []byte
}

func DecodeNVIO(b []byte) (NVIO, error) {
	if err := need(b, NVIOSize, "nv io"); err != nil {
		return NVIO{}, err
	}
	return NVIO{
		Offset: binary.LittleEndian.Uint32(b[0:4]),
		Length: binary.LittleEndian.Uint32(b[4:8]),
		Data:   b[NVIOSize:],
	}, nil
}

func (n NVIO) Marshal() []byte {
	buf := make([]byte, NVIOSize, NVIOSize+len(n.Data))
	binary.LittleEndian.PutUint32(buf[0:4], n.Offset)
	binary.LittleEndian.PutUint32(buf[4:8], n.Length)
	return append(buf, n.Data...)
}

type NVIOConfirm struct {
	Confirm bool
	Offset  uint32
	Length  uint32
	Data    []byte
}

func (c NVIOConfirm) Marshal() []byte {
	buf := make([]byte, NVIOConfirmSize, NVIOConfirmSize+len(c.Data))
	if c.Confirm {
		buf[0] = 1
	}
	binary.LittleEndian.PutUint32(buf[1:5], c.Offset)
	binary.LittleEndian.PutUint32(buf[5:9], c.Length)
	return append(buf, c.Data...)
}

func DecodeNVIOConfirm(b []byte) (NVIOConfirm, error) {
	if err := need(b, NVIOConfirmSize, "nv io confirm"); err != nil {
		return NVIOConfirm{}, err
	}
	return NVIOConfirm{
		Confirm: b[0] == 1,
		Offset:  binary.LittleEndian.Uint32(b[1:5]),
		Length:  binary.LittleEndian.Uint32(b[5:9]),
		Data:    b[NVIOConfirmSize:],
	}, nil
}

func cString(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b)
}

func clip(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}
