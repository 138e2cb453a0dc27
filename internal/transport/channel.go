package transport

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/danmuck/ipcril/internal/logging"
	"github.com/danmuck/ipcril/internal/observability"
	"github.com/danmuck/ipcril/internal/protocol/frame"
	"github.com/danmuck/ipcril/internal/protocol/ipc"
	"github.com/rs/zerolog"
)

var ErrClosed = errors.New("transport: channel closed")

// Handler receives each inbound message in arrival order.
type Handler func(ipc.Message)

// Channel carries framed IPC messages over one modem link. Writes are
// serialized; reads belong to the single ReadLoop goroutine.
type Channel struct {
	id     ipc.Channel
	rw     io.ReadWriteCloser
	reader *bufio.Reader
	limits frame.Limits
	log    zerolog.Logger

	writeMu sync.Mutex
	closed  atomic.Bool
}

func NewChannel(id ipc.Channel, rw io.ReadWriteCloser, limits frame.Limits) *Channel {
	return &Channel{
		id:     id,
		rw:     rw,
		reader: bufio.NewReader(rw),
		limits: limits,
		log:    logging.Component("transport").With().Stringer("channel", id).Logger(),
	}
}

func (c *Channel) ID() ipc.Channel { return c.id }

// Send writes one command. Failures are logged and dropped: the engine holds
// its lock while sending and never waits on the link.
func (c *Channel) Send(cmd ipc.Command, typ ipc.MessageType, payload []byte, seq uint8) {
	msg := ipc.Message{Channel: c.id, Command: cmd, Type: typ, Seq: seq, Payload: payload}
	if err := c.Write(msg); err != nil {
		c.log.Error().Err(err).Str("command", ipc.CommandName(c.id, cmd)).Uint8("seq", seq).Msg("send failed")
		return
	}
	c.log.Trace().Stringer("msg", msg).Msg("sent")
}

func (c *Channel) Write(msg ipc.Message) error {
	if c.closed.Load() {
		return ErrClosed
	}
	f, err := frame.Outbound(msg)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return frame.WriteFrame(c.rw, f, c.limits)
}

// ReadLoop decodes frames until ctx ends or the link fails. A frame with an
// unknown method byte is skipped; a broken header ends the loop because the
// stream can no longer be trusted.
func (c *Channel) ReadLoop(ctx context.Context, h Handler) error {
	stop := context.AfterFunc(ctx, func() { _ = c.Close() })
	defer stop()

	for {
		f, err := frame.ReadFrame(c.reader, c.limits)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, io.EOF) || c.closed.Load() {
				return fmt.Errorf("%w: %s", ErrClosed, c.id)
			}
			return fmt.Errorf("transport: %s read: %w", c.id, err)
		}
		msg, err := frame.Inbound(c.id, f)
		if err != nil {
			observability.RecordUnknownCommand(c.id.String())
			c.log.Warn().Err(err).Uint8("type", f.Header.Type).Msg("skipping frame")
			continue
		}
		c.log.Trace().Stringer("msg", msg).Msg("received")
		h(msg)
	}
}

func (c *Channel) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	return c.rw.Close()
}
