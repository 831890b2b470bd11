// Package server accepts TLS connections and runs one session per client.
package server

import (
	"context"
	"crypto/tls"
	"errors"
	"net"
	"strconv"
	"sync"

	"github.com/hmaekawa/caster/domain"
	"github.com/hmaekawa/caster/internal/config"
	"github.com/hmaekawa/caster/logging"
	pkgerrors "github.com/hmaekawa/caster/pkg/errors"
	"github.com/hmaekawa/caster/registry"
	"github.com/hmaekawa/caster/session"
)

// Server is the relay listener.
type Server struct {
	cfg      config.ServerConfig
	sessOpts session.Options
	registry *registry.Registry
	hub      domain.Hub
	store    domain.MessageStore
	logger   *logging.Logger

	listener net.Listener
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// New creates a server. The hub must be started before Start is called.
func New(cfg config.ServerConfig, historyLimit int, reg *registry.Registry, hub domain.Hub, store domain.MessageStore, logger *logging.Logger) *Server {
	return &Server{
		cfg:      cfg,
		sessOpts: session.Options{HistoryLimit: historyLimit},
		registry: reg,
		hub:      hub,
		store:    store,
		logger:   logger,
	}
}

// Start loads the certificate material, binds the listener, and starts the
// accept loop. Both failure modes are fatal and returned to the caller;
// per-connection errors later never are.
func (s *Server) Start(ctx context.Context) error {
	cert, err := tls.LoadX509KeyPair(s.cfg.CertFile, s.cfg.KeyFile)
	if err != nil {
		return pkgerrors.Wrap(err, pkgerrors.ErrorTypeInternal, "TLS_MATERIAL",
			"failed to load certificate material").WithDetails(s.cfg.CertFile)
	}

	tlsConfig := &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}

	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	listener, err := tls.Listen("tcp", addr, tlsConfig)
	if err != nil {
		return pkgerrors.Wrap(err, pkgerrors.ErrorTypeTransport, "BIND_FAILED",
			"failed to bind listener").WithDetails(addr)
	}

	s.listener = listener
	s.ctx, s.cancel = context.WithCancel(ctx)

	s.wg.Add(1)
	go s.acceptLoop()

	s.logger.Info("listener started", "addr", listener.Addr().String())
	return nil
}

// Addr returns the bound listener address. Valid after Start.
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

// Stop stops the accept loop and closes live sessions.
func (s *Server) Stop() {
	s.logger.Info("stopping server")
	s.cancel()
	s.listener.Close()

	for _, e := range s.registry.Snapshot() {
		e.Client.Close()
	}

	s.wg.Wait()
	s.logger.Info("server stopped")
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			select {
			case <-s.ctx.Done():
				return
			default:
			}
			s.logger.Error("accept failed", "error", err)
			continue
		}

		s.wg.Add(1)
		go s.handleConn(conn)
	}
}

// handleConn completes the TLS handshake before any protocol byte is read;
// a failed handshake closes the connection without touching the registry,
// hub, or store.
func (s *Server) handleConn(nc net.Conn) {
	defer s.wg.Done()

	if tlsConn, ok := nc.(*tls.Conn); ok {
		hctx, cancel := context.WithTimeout(s.ctx, s.cfg.HandshakeTimeout)
		err := tlsConn.HandshakeContext(hctx)
		cancel()
		if err != nil {
			s.logger.Warn("TLS handshake failed", "remote", nc.RemoteAddr().String(), "error", err)
			nc.Close()
			return
		}
	}

	conn := NewConn(nc, s.logger, ConnOptions{
		WriteTimeout:  s.cfg.WriteTimeout,
		SendQueueSize: s.cfg.SendQueueSize,
		MaxFrameSize:  s.cfg.MaxFrameSize,
	})

	s.logger.Info("connection accepted",
		"client_id", conn.ID(),
		"remote", conn.RemoteAddr().String(),
	)

	sess := session.New(conn, conn, s.registry, s.hub, s.store, s.logger, s.sessOpts)
	sess.Run(s.ctx)
}
