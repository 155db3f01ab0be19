package smtp

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/mailcat/mailcat/config"
	"github.com/mailcat/mailcat/interfaces"
	"github.com/mailcat/mailcat/internal/logger"
)

// shutdownTimeout is the maximum time to wait for in-flight sessions
// during graceful shutdown.
const shutdownTimeout = 30 * time.Second

// Server is a receive-only SMTP listener. It accepts mail for live
// mailboxes and hands each accepted message to the ingestion pipeline.
// It never relays, and it does not offer AUTH.
type Server struct {
	cfg      *config.SMTPConfig
	log      logger.Logger
	ingest   interfaces.IngestionService
	listener net.Listener

	// wg tracks in-flight session goroutines for graceful shutdown.
	wg sync.WaitGroup
}

func NewServer(cfg *config.SMTPConfig, log logger.Logger, ingest interfaces.IngestionService) *Server {
	if cfg.Hostname == "" {
		cfg.Hostname = "localhost"
	}

	return &Server{
		cfg:    cfg,
		log:    log,
		ingest: ingest,
	}
}

// ListenAndServe starts the listener and blocks until the context is
// cancelled. On cancellation it stops accepting and waits up to
// shutdownTimeout for in-flight sessions.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.ListenAddr)
	if err != nil {
		return err
	}
	s.listener = ln

	s.log.Infof("SMTP server listening on %s as %s", ln.Addr().String(), s.cfg.Hostname)

	go func() {
		<-ctx.Done()
		s.log.Info("Shutting down SMTP server")
		ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				s.waitForSessions()
				return nil
			default:
				s.log.Errorf("SMTP accept error: %v", err)
				continue
			}
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			session := NewSession(conn, s.cfg.Hostname, s.log, s.ingest)
			session.Handle(ctx)
		}()
	}
}

func (s *Server) waitForSessions() {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.log.Info("All SMTP sessions completed")
	case <-time.After(shutdownTimeout):
		s.log.Warn("SMTP shutdown timeout reached, forcing close")
	}
}

// Addr returns the listener address, or empty string if not listening.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return ""
}
