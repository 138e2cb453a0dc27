package config

import (
	"time"

	"github.com/danmuck/ipcril/internal/protocol/frame"
	"github.com/danmuck/ipcril/internal/ril"
	"github.com/danmuck/ipcril/internal/transport"
)

// EngineConfig maps the daemon keys onto engine tunables. Keys the file
// does not carry keep their engine defaults.
func (c DaemonConfig) EngineConfig() ril.Config {
	cfg := ril.DefaultConfig()
	cfg.SMSQueueSlots = c.SMSQueueSlots
	return cfg
}

func (c DaemonConfig) FrameLimits() frame.Limits {
	return frame.Limits{MaxPayloadBytes: c.MaxFramePayload}
}

// Backoff builds the link open retry policy. OpenRetryDelay is validated on
// load, so a parse failure here falls back to the transport default.
func (c DaemonConfig) Backoff() transport.Backoff {
	b := transport.DefaultBackoff()
	b.MaxAttempts = c.OpenAttempts
	if d, err := time.ParseDuration(c.OpenRetryDelay); err == nil {
		b.InitialDelay = d
	}
	return b
}
