package ipc

import "fmt"

// Command is the 16-bit command code carried by every IPC frame:
// the high byte is the command group and the low byte the index within it.
type Command uint16

func NewCommand(group, index uint8) Command {
	return Command(uint16(group)<<8 | uint16(index))
}

func (c Command) Group() uint8 { return uint8(c >> 8) }
func (c Command) Index() uint8 { return uint8(c) }

const (
	GroupPWR  uint8 = 0x01
	GroupCALL uint8 = 0x02
	GroupSMS  uint8 = 0x04
	GroupSEC  uint8 = 0x05
	GroupDISP uint8 = 0x07
	GroupNET  uint8 = 0x08
	GroupMISC uint8 = 0x0a
	GroupSS   uint8 = 0x0c
	GroupRFS  uint8 = 0x42
	GroupGEN  uint8 = 0x80
)

// FMT channel commands.
const (
	PWRPhonePwrUp  Command = 0x0101
	PWRPhonePwrOff Command = 0x0102
	PWRPhoneReset  Command = 0x0103
	PWRPhoneState  Command = 0x0107

	SMSSendMsg       Command = 0x0401
	SMSIncomingMsg   Command = 0x0402
	SMSDeliverReport Command = 0x0406
	SMSDeviceReady   Command = 0x0407
	SMSSvcCenterAddr Command = 0x040a

	SECSIMStatus       Command = 0x0501
	SECPhoneLock       Command = 0x0502
	SECChangeLockingPW Command = 0x0503
	SECRSIMAccess      Command = 0x0505
	SECSIMICCType      Command = 0x0507
	SECLockInfo        Command = 0x0508

	DISPIconInfo Command = 0x0701
	DISPRSSIInfo Command = 0x0706

	MISCMEVersion Command = 0x0a01
	MISCMEIMSI    Command = 0x0a02
	MISCMESN      Command = 0x0a03
	MISCTimeInfo  Command = 0x0a07

	SSUSSD Command = 0x0c08

	GENPhoneRes Command = 0x8001
)

// RFS channel commands.
const (
	RFSNVReadItem  Command = 0x4201
	RFSNVWriteItem Command = 0x4202
)

// SRS channel commands.
const (
	SRSControlPing         Command = 0x0101
	SRSSndSetCallVolume    Command = 0x0201
	SRSSndSetCallAudioPath Command = 0x0202
	SRSSndSetCallClockSync Command = 0x0203
)

var commandNames = map[Command]string{
	PWRPhonePwrUp:      "PWR_PHONE_PWR_UP",
	PWRPhonePwrOff:     "PWR_PHONE_PWR_OFF",
	PWRPhoneReset:      "PWR_PHONE_RESET",
	PWRPhoneState:      "PWR_PHONE_STATE",
	SMSSendMsg:         "SMS_SEND_MSG",
	SMSIncomingMsg:     "SMS_INCOMING_MSG",
	SMSDeliverReport:   "SMS_DELIVER_REPORT",
	SMSDeviceReady:     "SMS_DEVICE_READY",
	SMSSvcCenterAddr:   "SMS_SVC_CENTER_ADDR",
	SECSIMStatus:       "SEC_SIM_STATUS",
	SECPhoneLock:       "SEC_PHONE_LOCK",
	SECChangeLockingPW: "SEC_CHANGE_LOCKING_PW",
	SECRSIMAccess:      "SEC_RSIM_ACCESS",
	SECSIMICCType:      "SEC_SIM_ICC_TYPE",
	SECLockInfo:        "SEC_LOCK_INFO",
	DISPIconInfo:       "DISP_ICON_INFO",
	DISPRSSIInfo:       "DISP_RSSI_INFO",
	MISCMEVersion:      "MISC_ME_VERSION",
	MISCMEIMSI:         "MISC_ME_IMSI",
	MISCMESN:           "MISC_ME_SN",
	MISCTimeInfo:       "MISC_TIME_INFO",
	SSUSSD:             "SS_USSD",
	GENPhoneRes:        "GEN_PHONE_RES",
	RFSNVReadItem:      "RFS_NV_READ_ITEM",
	RFSNVWriteItem:     "RFS_NV_WRITE_ITEM",
}

var srsCommandNames = map[Command]string{
	SRSControlPing:         "SRS_CONTROL_PING",
	SRSSndSetCallVolume:    "SRS_SND_SET_CALL_VOLUME",
	SRSSndSetCallAudioPath: "SRS_SND_SET_CALL_AUDIO_PATH",
	SRSSndSetCallClockSync: "SRS_SND_SET_CALL_CLOCK_SYNC",
}

// String names FMT and RFS commands. SRS codes overlap the PWR group; use
// CommandName when the channel is known.
func (c Command) String() string {
	if name, ok := commandNames[c]; ok {
		return name
	}
	return fmt.Sprintf("0x%04x", uint16(c))
}

func CommandName(ch Channel, c Command) string {
	if ch == ChannelSRS {
		if name, ok := srsCommandNames[c]; ok {
			return name
		}
		return fmt.Sprintf("0x%04x", uint16(c))
	}
	return c.String()
}
