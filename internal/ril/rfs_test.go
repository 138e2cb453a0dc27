package ril

import (
	"encoding/binary"
	"testing"

	"github.com/danmuck/ipcril/internal/protocol/ipc"
	"github.com/danmuck/ipcril/internal/testutil/testlog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rfsMessage(cmd ipc.Command, seq uint8, req ipc.NVIO) ipc.Message {
	return ipc.Message{Channel: ipc.ChannelRFS, Command: cmd, Type: ipc.TypeIndication, Seq: seq, Payload: req.Marshal()}
}

func lastConfirm(t *testing.T, s *recordingSender) (sentMessage, ipc.NVIOConfirm) {
	t.Helper()
	m := s.last(t)
	conf, err := ipc.DecodeNVIOConfirm(m.Payload)
	require.NoError(t, err)
	return m, conf
}

func TestNVReadReturnsStoredBytes(t *testing.T) {
	testlog.Start(t)

	rig := newTestRig(t)
	copy(rig.nv.data[4:], "nvdata")

	rig.engine.Dispatch(rfsMessage(ipc.RFSNVReadItem, 17, ipc.NVIO{Offset: 4, Length: 6}))

	m, conf := lastConfirm(t, rig.rfs)
	assert.Equal(t, ipc.RFSNVReadItem, m.Command)
	assert.Equal(t, ipc.TypeResponse, m.Type)
	assert.Equal(t, uint8(17), m.Seq)
	assert.True(t, conf.Confirm)
	assert.Equal(t, uint32(4), conf.Offset)
	assert.Equal(t, uint32(6), conf.Length)
	assert.Equal(t, []byte("nvdata"), conf.Data)
	assert.Empty(t, rig.fmt.sent)
}

func TestNVReadPastEndIsNotConfirmed(t *testing.T) {
	testlog.Start(t)

	rig := newTestRig(t)
	rig.engine.Dispatch(rfsMessage(ipc.RFSNVReadItem, 1, ipc.NVIO{Offset: 62, Length: 4}))

	_, conf := lastConfirm(t, rig.rfs)
	assert.False(t, conf.Confirm)
}

func TestNVReadTooLarge(t *testing.T) {
	testlog.Start(t)

	rig := newTestRig(t)
	rig.engine.Dispatch(rfsMessage(ipc.RFSNVReadItem, 1, ipc.NVIO{Offset: 0, Length: uint32(DefaultConfig().MaxNVIOBytes + 1)}))

	_, conf := lastConfirm(t, rig.rfs)
	assert.False(t, conf.Confirm)
	assert.Empty(t, conf.Data)
}

func TestNVWriteStoresBytes(t *testing.T) {
	testlog.Start(t)

	rig := newTestRig(t)
	rig.engine.Dispatch(rfsMessage(ipc.RFSNVWriteItem, 2, ipc.NVIO{Offset: 8, Length: 3, Data: []byte("abc")}))

	m, conf := lastConfirm(t, rig.rfs)
	assert.Equal(t, ipc.RFSNVWriteItem, m.Command)
	assert.True(t, conf.Confirm)
	assert.Equal(t, []byte("abc"), rig.nv.data[8:11])
}

func TestNVWriteRejectsShortData(t *testing.T) {
	testlog.Start(t)

	rig := newTestRig(t)
	rig.engine.Dispatch(rfsMessage(ipc.RFSNVWriteItem, 3, ipc.NVIO{Offset: 0, Length: 5, Data: []byte("ab")}))

	_, conf := lastConfirm(t, rig.rfs)
	assert.False(t, conf.Confirm)
	assert.Equal(t, make([]byte, 5), rig.nv.data[:5])
}

func TestNVWithoutStoreIsDropped(t *testing.T) {
	testlog.Start(t)

	rfs := &recordingSender{}
	e, err := New(DefaultConfig(), Deps{Host: &recordingHost{}, FMT: &recordingSender{}, RFS: rfs})
	require.NoError(t, err)

	e.Dispatch(rfsMessage(ipc.RFSNVReadItem, 1, ipc.NVIO{Length: 1}))
	assert.Empty(t, rfs.sent)
}

func TestSRSPingIsEchoed(t *testing.T) {
	testlog.Start(t)

	rig := newTestRig(t)
	ping := make([]byte, 4)
	binary.LittleEndian.PutUint32(ping, srsPingMagic)

	rig.engine.Dispatch(ipc.Message{Channel: ipc.ChannelSRS, Command: ipc.SRSControlPing, Seq: 3, Payload: ping})

	m := rig.srs.last(t)
	assert.Equal(t, ipc.SRSControlPing, m.Command)
	assert.Equal(t, ping, m.Payload)
	assert.Equal(t, uint8(3), m.Seq)
}

func TestSRSPingWithWrongMagicIsIgnored(t *testing.T) {
	testlog.Start(t)

	rig := newTestRig(t)
	rig.engine.Dispatch(ipc.Message{Channel: ipc.ChannelSRS, Command: ipc.SRSControlPing, Payload: []byte{1, 2, 3, 4}})
	rig.engine.Dispatch(ipc.Message{Channel: ipc.ChannelSRS, Command: ipc.SRSSndSetCallVolume, Payload: []byte{1, 5}})

	assert.Empty(t, rig.srs.sent)
	assert.Equal(t, RadioUnavailable, rig.engine.RadioState())
}
