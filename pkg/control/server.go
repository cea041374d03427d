// Package control exposes the daemon's command surface on a unix socket:
// switching a device's profile and listing the active profile per device.
// One JSON request per connection, one JSON reply.
package control

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"os"

	"go.uber.org/zap"
)

// Engine is the part of the remap engine the control surface needs.
type Engine interface {
	SwitchProfile(device, profile string) error
	ActiveProfiles() map[string]string
}

// Request is one control command.
type Request struct {
	Cmd     string `json:"cmd"` // "switch-profile" or "list"
	Device  string `json:"device,omitempty"`
	Profile string `json:"profile,omitempty"`
}

// Response is the reply to a Request.
type Response struct {
	OK       bool              `json:"ok"`
	Error    string            `json:"error,omitempty"`
	Profiles map[string]string `json:"profiles,omitempty"`
}

type Server struct {
	path   string
	engine Engine
	log    *zap.SugaredLogger
}

// NewServer builds a server listening on the unix socket at path. The
// caller decides where the socket lives; the server never consults the
// environment.
func NewServer(path string, engine Engine, log *zap.SugaredLogger) *Server {
	return &Server{path: path, engine: engine, log: log}
}

// Run serves until ctx is cancelled. The socket file is removed on exit.
func (s *Server) Run(ctx context.Context) error {
	// a stale socket from a previous run would block the listener
	_ = os.Remove(s.path)

	listener, err := net.Listen("unix", s.path)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.path, err)
	}

	go func() {
		<-ctx.Done()
		listener.Close()
		os.Remove(s.path)
	}()

	s.log.Infow("control socket ready", "path", s.path)

	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("accept: %w", err)
		}

		go s.handle(conn)
	}
}

func (s *Server) handle(conn net.Conn) {
	defer conn.Close()

	var req Request
	if err := json.NewDecoder(conn).Decode(&req); err != nil {
		s.reply(conn, Response{Error: fmt.Sprintf("decode request: %v", err)})
		return
	}

	switch req.Cmd {
	case "switch-profile":
		if err := s.engine.SwitchProfile(req.Device, req.Profile); err != nil {
			s.reply(conn, Response{Error: err.Error()})
			return
		}
		s.reply(conn, Response{OK: true})

	case "list":
		s.reply(conn, Response{OK: true, Profiles: s.engine.ActiveProfiles()})

	default:
		s.reply(conn, Response{Error: fmt.Sprintf("unknown command %q", req.Cmd)})
	}
}

func (s *Server) reply(conn net.Conn, resp Response) {
	if err := json.NewEncoder(conn).Encode(resp); err != nil {
		s.log.Warnw("write control reply", "error", err)
	}
}
