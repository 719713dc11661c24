package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sys/unix"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/lojhan/chainhash/internal/command"
	"github.com/lojhan/chainhash/internal/hashtable"
	"github.com/lojhan/chainhash/internal/server"
)

const shutdownTimeout = 5 * time.Second

func main() {
	addr := flag.String("addr", server.DefaultAddr, "Address to listen on")
	capacity := flag.Int("capacity", 1024, "Number of hash table buckets (fixed, never resized)")
	maxMemory := flag.Int64("maxmemory", 0, "Maximum estimated table memory in bytes (0 = no limit)")
	multicore := flag.Bool("multicore", false, "Run one event loop per CPU")
	maxPending := flag.Int("maxpending", server.DefaultMaxPending, "Maximum bytes a single unfinished request may buffer")
	logFile := flag.String("logfile", "", "Log file path (empty = stderr)")
	logLevel := flag.String("loglevel", "info", "Log level: debug, info, warn, error")
	flag.Parse()

	logger, err := newLogger(*logFile, *logLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(2)
	}

	err = run(logger, server.Config{Addr: *addr, Multicore: *multicore, MaxPending: *maxPending}, *capacity, *maxMemory)
	if err != nil {
		logger.Error("server exited with error", zap.Error(err))
	}
	if *logFile != "" {
		err = multierr.Append(err, logger.Sync())
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "chainhash-server: %v\n", err)
		os.Exit(1)
	}
}

func run(logger *zap.Logger, cfg server.Config, capacity int, maxMemory int64) error {
	var opts []hashtable.Option
	if maxMemory > 0 {
		opts = append(opts, hashtable.WithAllocator(hashtable.NewLimitAllocator(maxMemory)))
		logger.Info("memory limit enabled", zap.Int64("maxmemory", maxMemory))
	}

	tbl, err := hashtable.NewSync[string](capacity, opts...)
	if err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}
	defer func() {
		stats := tbl.Stats()
		tbl.Close()
		logger.Info("table released", zap.Int("size", stats.Size), zap.Int("capacity", stats.Capacity))
	}()

	srv := server.NewServer(cfg, logger)
	command.Register(srv, tbl)

	ctx, stop := signal.NotifyContext(context.Background(), unix.SIGINT, unix.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	started := make(chan struct{})

	g.Go(func() error {
		defer close(started)
		return srv.Start()
	})

	g.Go(func() error {
		<-ctx.Done()

		select {
		case <-srv.Ready():
		case <-started:
			return nil
		}

		logger.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := srv.Stop(shutdownCtx); err != nil && !errors.Is(err, server.ErrNotRunning) {
			return fmt.Errorf("failed to stop server: %w", err)
		}
		return nil
	})

	return g.Wait()
}

func newLogger(path, level string) (*zap.Logger, error) {
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	var ws zapcore.WriteSyncer
	if path == "" {
		ws = zapcore.Lock(os.Stderr)
	} else {
		ws = zapcore.AddSync(&lumberjack.Logger{
			Filename:   path,
			MaxSize:    100,
			MaxBackups: 3,
			MaxAge:     28,
			Compress:   true,
		})
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	core := zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig), ws, lvl)
	return zap.New(core, zap.AddCaller()), nil
}
