package transport

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/danmuck/ipcril/internal/protocol/frame"
	"github.com/danmuck/ipcril/internal/protocol/ipc"
	"github.com/danmuck/ipcril/internal/testutil/testlog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendWritesOutboundFrame(t *testing.T) {
	testlog.Start(t)

	local, modem := net.Pipe()
	defer modem.Close()
	ch := NewChannel(ipc.ChannelFMT, local, frame.DefaultLimits())
	defer ch.Close()

	go ch.Send(ipc.SECRSIMAccess, ipc.TypeGet, []byte{0xb0, 0x07, 0x6f}, 12)

	require.NoError(t, modem.SetReadDeadline(time.Now().Add(2*time.Second)))
	f, err := frame.ReadFrame(modem, frame.DefaultLimits())
	require.NoError(t, err)

	assert.Equal(t, uint16(frame.HeaderLen+3), f.Header.Length)
	assert.Equal(t, uint8(12), f.Header.MSeq)
	assert.Equal(t, uint8(0xff), f.Header.ASeq)
	assert.Equal(t, ipc.SECRSIMAccess, f.Header.Command())
	typ, err := ipc.OutboundType(f.Header.Type)
	require.NoError(t, err)
	assert.Equal(t, ipc.TypeGet, typ)
	assert.Equal(t, []byte{0xb0, 0x07, 0x6f}, f.Payload)
}

func TestReadLoopDeliversInOrderAndSkipsUnknownTypes(t *testing.T) {
	testlog.Start(t)

	local, modem := net.Pipe()
	defer modem.Close()
	ch := NewChannel(ipc.ChannelFMT, local, frame.DefaultLimits())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan ipc.Message, 4)
	done := make(chan error, 1)
	go func() {
		done <- ch.ReadLoop(ctx, func(m ipc.Message) { got <- m })
	}()

	frames := []frame.Frame{
		{Header: frame.Header{ASeq: 1, Group: ipc.GroupPWR, Index: 0x01, Type: 0x03}},
		{Header: frame.Header{ASeq: 2, Group: ipc.GroupMISC, Index: 0x02, Type: 0x09}, Payload: []byte{1}},
		{Header: frame.Header{ASeq: 3, Group: ipc.GroupMISC, Index: 0x02, Type: 0x02}, Payload: []byte{1, '0'}},
	}
	for _, f := range frames {
		require.NoError(t, frame.WriteFrame(modem, f, frame.DefaultLimits()))
	}

	first := receive(t, got)
	assert.Equal(t, ipc.PWRPhonePwrUp, first.Command)
	assert.Equal(t, ipc.TypeNotification, first.Type)
	assert.Equal(t, uint8(1), first.Seq)
	assert.Equal(t, ipc.ChannelFMT, first.Channel)

	second := receive(t, got)
	assert.Equal(t, ipc.MISCMEIMSI, second.Command)
	assert.Equal(t, ipc.TypeResponse, second.Type)
	assert.Equal(t, uint8(3), second.Seq)
	assert.Equal(t, []byte{1, '0'}, second.Payload)

	cancel()
	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("read loop did not stop")
	}
}

func TestReadLoopReportsPeerClose(t *testing.T) {
	testlog.Start(t)

	local, modem := net.Pipe()
	ch := NewChannel(ipc.ChannelRFS, local, frame.DefaultLimits())
	require.NoError(t, modem.Close())

	err := ch.ReadLoop(context.Background(), func(ipc.Message) {})
	require.ErrorIs(t, err, ErrClosed)
}

func TestWriteAfterCloseFails(t *testing.T) {
	testlog.Start(t)

	local, modem := net.Pipe()
	defer modem.Close()
	ch := NewChannel(ipc.ChannelSRS, local, frame.DefaultLimits())
	require.NoError(t, ch.Close())
	require.NoError(t, ch.Close())

	err := ch.Write(ipc.Message{Channel: ipc.ChannelSRS, Command: ipc.SRSControlPing, Type: ipc.TypeResponse})
	assert.True(t, errors.Is(err, ErrClosed))
}

func TestOpenUnknownDeviceFails(t *testing.T) {
	testlog.Start(t)

	_, err := Open("unix:/nonexistent/ipcril.sock", 115200)
	require.ErrorIs(t, err, ErrOpen)

	_, err = Open("/dev/nonexistent-ipcril-tty", 115200)
	require.ErrorIs(t, err, ErrOpen)
}

func receive(t *testing.T, ch <-chan ipc.Message) ipc.Message {
	t.Helper()
	select {
	case m := <-ch:
		return m
	case <-time.After(2 * time.Second):
		t.Fatal("no message received")
		return ipc.Message{}
	}
}
