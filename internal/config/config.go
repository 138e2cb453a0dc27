package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/danmuck/ipcril/internal/protocol/frame"
)

var ErrInvalid = errors.New("config: invalid")

// DaemonConfig is the on-disk configuration for ipcrild.
type DaemonConfig struct {
	Name            string   `toml:"name"`
	FMTDevice       string   `toml:"fmt_device"`
	RFSDevice       string   `toml:"rfs_device"`
	SRSDevice       string   `toml:"srs_device"`
	Baud            int      `toml:"baud"`
	AdminAddr       string   `toml:"admin_addr"`
	CorsOrigins     []string `toml:"cors_origins"`
	NVDataPath      string   `toml:"nv_data_path"`
	SMSQueueSlots   int      `toml:"sms_queue_slots"`
	MaxFramePayload int      `toml:"max_frame_payload"`
	EventCapacity   int      `toml:"event_capacity"`
	OpenAttempts    int      `toml:"open_attempts"`
	OpenRetryDelay  string   `toml:"open_retry_delay"`
}

func DefaultDaemonConfig() DaemonConfig {
	return DaemonConfig{
		Name:            "ipcrild",
		FMTDevice:       "/dev/umts_ipc0",
		RFSDevice:       "/dev/umts_rfs0",
		SRSDevice:       "",
		Baud:            115200,
		AdminAddr:       "127.0.0.1:9300",
		CorsOrigins:     []string{"http://localhost:3000"},
		NVDataPath:      "/var/lib/ipcril/nv_data.bin",
		SMSQueueSlots:   10,
		MaxFramePayload: frame.DefaultLimits().MaxPayloadBytes,
		EventCapacity:   256,
		OpenAttempts:    5,
		OpenRetryDelay:  "250ms",
	}
}

// LoadDaemonConfig reads path and applies every key it defines on top of
// DefaultDaemonConfig. An empty path returns the defaults.
func LoadDaemonConfig(path string) (DaemonConfig, error) {
	cfg := DefaultDaemonConfig()
	if strings.TrimSpace(path) == "" {
		return cfg, ValidateDaemonConfig(cfg)
	}

	var raw DaemonConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return DaemonConfig{}, fmt.Errorf("load daemon config (%s): %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return DaemonConfig{}, fmt.Errorf("%w: unknown key %q", ErrInvalid, undecoded[0].String())
	}

	if meta.IsDefined("name") {
		cfg.Name = strings.TrimSpace(raw.Name)
	}
	if meta.IsDefined("fmt_device") {
		cfg.FMTDevice = strings.TrimSpace(raw.FMTDevice)
	}
	if meta.IsDefined("rfs_device") {
		cfg.RFSDevice = strings.TrimSpace(raw.RFSDevice)
	}
	if meta.IsDefined("srs_device") {
		cfg.SRSDevice = strings.TrimSpace(raw.SRSDevice)
	}
	if meta.IsDefined("baud") {
		cfg.Baud = raw.Baud
	}
	if meta.IsDefined("admin_addr") {
		cfg.AdminAddr = strings.TrimSpace(raw.AdminAddr)
	}
	if meta.IsDefined("cors_origins") {
		cfg.CorsOrigins = normalizeOrigins(raw.CorsOrigins)
	}
	if meta.IsDefined("nv_data_path") {
		cfg.NVDataPath = strings.TrimSpace(raw.NVDataPath)
	}
	if meta.IsDefined("sms_queue_slots") {
		cfg.SMSQueueSlots = raw.SMSQueueSlots
	}
	if meta.IsDefined("max_frame_payload") {
		cfg.MaxFramePayload = raw.MaxFramePayload
	}
	if meta.IsDefined("event_capacity") {
		cfg.EventCapacity = raw.EventCapacity
	}
	if meta.IsDefined("open_attempts") {
		cfg.OpenAttempts = raw.OpenAttempts
	}
	if meta.IsDefined("open_retry_delay") {
		cfg.OpenRetryDelay = strings.TrimSpace(raw.OpenRetryDelay)
	}

	if err := ValidateDaemonConfig(cfg); err != nil {
		return DaemonConfig{}, err
	}
	return cfg, nil
}

// ValidateDaemonConfig checks the fields the daemon cannot start without.
// Empty rfs_device, srs_device and nv_data_path disable those links.
func ValidateDaemonConfig(cfg DaemonConfig) error {
	if strings.TrimSpace(cfg.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalid)
	}
	if strings.TrimSpace(cfg.FMTDevice) == "" {
		return fmt.Errorf("%w: fmt_device is required", ErrInvalid)
	}
	if cfg.Baud <= 0 {
		return fmt.Errorf("%w: baud must be positive", ErrInvalid)
	}
	if cfg.SMSQueueSlots <= 0 {
		return fmt.Errorf("%w: sms_queue_slots must be positive", ErrInvalid)
	}
	if maxPayload := frame.DefaultLimits().MaxPayloadBytes; cfg.MaxFramePayload <= 0 || cfg.MaxFramePayload > maxPayload {
		return fmt.Errorf("%w: max_frame_payload must be in 1..%d", ErrInvalid, maxPayload)
	}
	if cfg.EventCapacity < 0 {
		return fmt.Errorf("%w: event_capacity must not be negative", ErrInvalid)
	}
	if cfg.OpenAttempts <= 0 {
		return fmt.Errorf("%w: open_attempts must be positive", ErrInvalid)
	}
	if _, err := time.ParseDuration(cfg.OpenRetryDelay); err != nil {
		return fmt.Errorf("%w: open_retry_delay: %w", ErrInvalid, err)
	}
	return nil
}

func normalizeOrigins(in []string) []string {
	out := make([]string, 0, len(in))
	for _, origin := range in {
		v := strings.TrimSpace(origin)
		if v == "" {
			continue
		}
		out = append(out, v)
	}
	return out
}
