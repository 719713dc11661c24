package server

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/panjf2000/gnet/v2"
	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/lojhan/chainhash/internal/resp"
)

const (
	DefaultAddr = "tcp://:6380"

	// DefaultMaxPending matches Redis's client-query-buffer-limit.
	DefaultMaxPending = 1 << 30
)

var (
	ErrNotRunning    = errors.New("server is not running")
	ErrFrameTooLarge = errors.New("pending request exceeds query buffer limit")
)

type CommandHandler = func(args []resp.Value) resp.Value

type Config struct {
	Addr      string
	Multicore bool

	// MaxPending bounds the bytes a single unfinished request may occupy.
	MaxPending int
}

// connState remembers how many buffered bytes the unfinished frame at the
// front of a connection's inbound buffer needs before decoding can succeed.
type connState struct {
	need int
}

// Server speaks RESP over gnet's event loops. Handlers may run on several
// loops at once when Multicore is set, so whatever they touch must be safe
// for concurrent use.
type Server struct {
	gnet.BuiltinEventEngine

	cfg    Config
	logger *zap.Logger

	mu        sync.RWMutex
	handlers  map[string]CommandHandler
	eng       gnet.Engine
	running   bool
	ready     chan struct{}
	readyOnce sync.Once

	clients *atomic.Int64
	served  *atomic.Int64
}

func NewServer(cfg Config, logger *zap.Logger) *Server {
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	if cfg.MaxPending <= 0 {
		cfg.MaxPending = DefaultMaxPending
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		cfg:      cfg,
		logger:   logger,
		handlers: make(map[string]CommandHandler),
		ready:    make(chan struct{}),
		clients:  atomic.NewInt64(0),
		served:   atomic.NewInt64(0),
	}
}

func (s *Server) RegisterCommand(name string, handler CommandHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[strings.ToUpper(name)] = handler
}

func (s *Server) GetHandler(name string) CommandHandler {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.handlers[strings.ToUpper(name)]
}

// Start blocks serving connections until Stop is called or the engine
// fails.
func (s *Server) Start() error {
	err := gnet.Run(s, s.cfg.Addr,
		gnet.WithMulticore(s.cfg.Multicore),
		gnet.WithTCPNoDelay(gnet.TCPNoDelay),
		gnet.WithLogger(s.logger.Sugar()),
	)

	s.mu.Lock()
	s.running = false
	s.mu.Unlock()

	if err != nil {
		return fmt.Errorf("failed to serve on %s: %w", s.cfg.Addr, err)
	}
	return nil
}

// Ready is closed once the listener is accepting connections.
func (s *Server) Ready() <-chan struct{} {
	return s.ready
}

func (s *Server) Stop(ctx context.Context) error {
	s.mu.RLock()
	eng, running := s.eng, s.running
	s.mu.RUnlock()

	if !running {
		return ErrNotRunning
	}
	return eng.Stop(ctx)
}

func (s *Server) ClientCount() int {
	return int(s.clients.Load())
}

func (s *Server) CommandsServed() int64 {
	return s.served.Load()
}

func (s *Server) OnBoot(eng gnet.Engine) gnet.Action {
	s.mu.Lock()
	s.eng = eng
	s.running = true
	s.mu.Unlock()

	s.logger.Info("server listening", zap.String("addr", s.cfg.Addr), zap.Bool("multicore", s.cfg.Multicore))
	s.readyOnce.Do(func() { close(s.ready) })
	return gnet.None
}

func (s *Server) OnShutdown(gnet.Engine) {
	s.logger.Info("server stopped", zap.Int64("commands", s.served.Load()))
}

func (s *Server) OnOpen(c gnet.Conn) ([]byte, gnet.Action) {
	s.clients.Inc()
	c.SetContext(&connState{})
	s.logger.Debug("client connected", zap.Stringer("remote", c.RemoteAddr()))
	return nil, gnet.None
}

func (s *Server) OnClose(c gnet.Conn, err error) gnet.Action {
	s.clients.Dec()
	if err != nil {
		s.logger.Warn("client disconnected", zap.Stringer("remote", c.RemoteAddr()), zap.Error(err))
	} else {
		s.logger.Debug("client disconnected", zap.Stringer("remote", c.RemoteAddr()))
	}
	return gnet.None
}

// OnTraffic answers every complete command in the inbound buffer and
// leaves a trailing partial frame for the next read. A partial frame is not
// decoded again until enough bytes for it have arrived.
func (s *Server) OnTraffic(c gnet.Conn) gnet.Action {
	st, _ := c.Context().(*connState)
	buffered := c.InboundBuffered()
	if st != nil && buffered < st.need {
		return gnet.None
	}

	buf, err := c.Peek(buffered)
	if err != nil {
		s.logger.Error("read failed", zap.Stringer("remote", c.RemoteAddr()), zap.Error(err))
		return gnet.Close
	}

	out, consumed, need, err := s.handleBuffer(buf)
	if st != nil {
		st.need = need
	}
	if _, discardErr := c.Discard(consumed); discardErr != nil {
		s.logger.Error("discard failed", zap.Error(discardErr))
		return gnet.Close
	}

	if len(out) > 0 {
		if _, writeErr := c.Write(out); writeErr != nil {
			s.logger.Error("write failed", zap.Stringer("remote", c.RemoteAddr()), zap.Error(writeErr))
			return gnet.Close
		}
	}

	if err != nil {
		s.logger.Warn("protocol error", zap.Stringer("remote", c.RemoteAddr()), zap.Error(err))
		return gnet.Close
	}
	return gnet.None
}

// handleBuffer decodes and executes commands from buf. It returns the
// encoded replies, how many bytes of buf were used, and the minimum size of
// the unfinished frame left behind (0 if none). A protocol error is
// answered with an error reply and returned so the caller can drop the
// connection.
func (s *Server) handleBuffer(buf []byte) ([]byte, int, int, error) {
	var (
		out      []byte
		consumed int
	)

	for consumed < len(buf) {
		value, n, err := resp.Decode(buf[consumed:])
		if errors.Is(err, resp.ErrIncomplete) {
			if n > s.cfg.MaxPending {
				out, _ = resp.AppendEncode(out, resp.ErrorValue("ERR Protocol error: too big request"))
				return out, len(buf), 0, fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, n)
			}
			return out, consumed, n, nil
		}
		if err != nil {
			out, _ = resp.AppendEncode(out, resp.ErrorValue("ERR protocol error"))
			return out, len(buf), 0, err
		}
		consumed += n

		out, err = resp.AppendEncode(out, s.processCommand(value))
		if err != nil {
			return out, consumed, 0, err
		}
	}

	return out, consumed, 0, nil
}

func (s *Server) processCommand(value resp.Value) resp.Value {
	if value.Type != resp.Array {
		return resp.ErrorValue("ERR protocol error: expected array")
	}

	if len(value.Array) == 0 {
		return resp.ErrorValue("ERR empty command")
	}

	cmdValue := value.Array[0]
	if cmdValue.Type != resp.BulkString {
		return resp.ErrorValue("ERR protocol error: command must be bulk string")
	}

	return s.executeCommand(strings.ToUpper(cmdValue.Str), value.Array[1:])
}

func (s *Server) executeCommand(cmdName string, args []resp.Value) resp.Value {
	s.mu.RLock()
	handler, exists := s.handlers[cmdName]
	s.mu.RUnlock()

	if !exists {
		return resp.ErrorValue(fmt.Sprintf("ERR unknown command '%s'", cmdName))
	}

	s.served.Inc()
	result := handler(args)
	if result.Type == resp.Error {
		s.logger.Debug("command failed", zap.String("command", cmdName), zap.String("reply", result.Str))
	}
	return result
}
