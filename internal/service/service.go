package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/danmuck/ipcril/internal/admin"
	"github.com/danmuck/ipcril/internal/config"
	"github.com/danmuck/ipcril/internal/hostbridge"
	"github.com/danmuck/ipcril/internal/logging"
	"github.com/danmuck/ipcril/internal/protocol/ipc"
	"github.com/danmuck/ipcril/internal/ril"
	"github.com/danmuck/ipcril/internal/transport"
	"github.com/rs/zerolog"
)

var ErrLinkLost = errors.New("service: modem link lost")

const (
	pruneInterval  = time.Minute
	completionsTTL = 10 * time.Minute
)

// OpenFunc opens one modem link. transport.Open is the default.
type OpenFunc func(path string, baud int) (io.ReadWriteCloser, error)

// Service owns the daemon lifecycle: links, engine, host bridge and admin
// HTTP.
type Service struct {
	cfg  config.DaemonConfig
	open OpenFunc
	log  zerolog.Logger

	bridge   *hostbridge.Bridge
	engine   *ril.Engine
	admin    *admin.Server
	channels []*transport.Channel
	nv       *os.File
	ready    chan struct{}
}

func New(cfg config.DaemonConfig) *Service {
	return NewWithOpener(cfg, transport.Open)
}

func NewWithOpener(cfg config.DaemonConfig, open OpenFunc) *Service {
	return &Service{
		cfg:   cfg,
		open:  open,
		log:   logging.Component("service").With().Str("node", cfg.Name).Logger(),
		ready: make(chan struct{}),
	}
}

// Ready is closed once the links are open and the engine exists. Engine and
// Bridge are valid after that.
func (s *Service) Ready() <-chan struct{} { return s.ready }

func (s *Service) Engine() *ril.Engine        { return s.engine }
func (s *Service) Bridge() *hostbridge.Bridge { return s.bridge }

// Run blocks until ctx ends or a modem link fails. A lost FMT link is
// returned as ErrLinkLost; the RFS and SRS links only log.
func (s *Service) Run(ctx context.Context) error {
	if err := s.bootstrap(ctx); err != nil {
		s.close()
		return err
	}
	defer s.close()
	close(s.ready)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	fatal := make(chan error, 1)

	for _, ch := range s.channels {
		wg.Add(1)
		go func(ch *transport.Channel) {
			defer wg.Done()
			err := ch.ReadLoop(ctx, s.engine.Dispatch)
			if ctx.Err() != nil {
				return
			}
			s.log.Error().Err(err).Stringer("channel", ch.ID()).Msg("link reader stopped")
			if ch.ID() == ipc.ChannelFMT {
				select {
				case fatal <- fmt.Errorf("%w: %w", ErrLinkLost, err):
				default:
				}
			}
		}(ch)
	}

	if s.admin != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.admin.Serve(ctx); err != nil {
				s.log.Error().Err(err).Msg("admin server stopped")
			}
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		s.pruneLoop(ctx)
	}()

	if ok, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		s.log.Warn().Err(err).Msg("sd_notify ready failed")
	} else if ok {
		s.log.Debug().Msg("sd_notify ready sent")
	}
	s.log.Info().Int("links", len(s.channels)).Str("admin", s.cfg.AdminAddr).Msg("ipcrild running")

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-fatal:
	}
	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)
	cancel()
	for _, ch := range s.channels {
		_ = ch.Close()
	}
	wg.Wait()
	s.log.Info().Msg("ipcrild stopped")
	return runErr
}

func (s *Service) bootstrap(ctx context.Context) error {
	limits := s.cfg.FrameLimits()

	fmtLink, err := s.openLink(ctx, s.cfg.FMTDevice)
	if err != nil {
		return err
	}
	fmtCh := transport.NewChannel(ipc.ChannelFMT, fmtLink, limits)
	s.channels = append(s.channels, fmtCh)

	deps := ril.Deps{FMT: fmtCh}

	if s.cfg.RFSDevice != "" {
		link, err := s.openLink(ctx, s.cfg.RFSDevice)
		if err != nil {
			return err
		}
		ch := transport.NewChannel(ipc.ChannelRFS, link, limits)
		s.channels = append(s.channels, ch)
		deps.RFS = ch
	}
	if s.cfg.SRSDevice != "" {
		link, err := s.openLink(ctx, s.cfg.SRSDevice)
		if err != nil {
			return err
		}
		ch := transport.NewChannel(ipc.ChannelSRS, link, limits)
		s.channels = append(s.channels, ch)
		deps.SRS = ch
	}

	if s.cfg.NVDataPath != "" {
		if err := os.MkdirAll(filepath.Dir(s.cfg.NVDataPath), 0o755); err != nil {
			return fmt.Errorf("service: nv data dir: %w", err)
		}
		nv, err := os.OpenFile(s.cfg.NVDataPath, os.O_RDWR|os.O_CREATE, 0o600)
		if err != nil {
			return fmt.Errorf("service: nv data: %w", err)
		}
		s.nv = nv
		deps.NV = nv
	}

	s.bridge = hostbridge.New(s.cfg.EventCapacity)
	deps.Host = s.bridge

	engine, err := ril.New(s.cfg.EngineConfig(), deps)
	if err != nil {
		return err
	}
	s.engine = engine

	if s.cfg.AdminAddr != "" {
		s.admin = admin.New(s.cfg.Name, s.cfg.AdminAddr, engine, s.bridge, s.cfg.CorsOrigins)
	}
	return nil
}

func (s *Service) openLink(ctx context.Context, path string) (io.ReadWriteCloser, error) {
	return transport.OpenWithRetry(ctx, s.open, path, s.cfg.Baud, s.cfg.Backoff())
}

func (s *Service) pruneLoop(ctx context.Context) {
	ticker := time.NewTicker(pruneInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.bridge.Prune(completionsTTL); n > 0 {
				s.log.Debug().Int("pruned", n).Msg("dropped old completions")
			}
		}
	}
}

func (s *Service) close() {
	for _, ch := range s.channels {
		_ = ch.Close()
	}
	if s.nv != nil {
		if err := s.nv.Close(); err != nil {
			s.log.Warn().Err(err).Msg("nv data close failed")
		}
		s.nv = nil
	}
}
