// Package service provides the core service lifecycle management: PID
// file bookkeeping, signal handling, and graceful shutdown for the
// read-only debug HTTP surface (spec.md §4.9) the daemon exposes
// alongside its primary framed-stdio JSON-RPC transport.
package service

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/rls/internal/config"
)

// Daemon manages the debug HTTP surface's lifecycle. It does not own
// the JSON-RPC stdio loop itself (that runs on the process's main
// goroutine, per spec.md §5's one-I/O-thread model); it owns only the
// auxiliary HTTP listener, PID file, and signal-triggered shutdown.
type Daemon struct {
	cfg       *config.Config
	server    *http.Server
	log       arbor.ILogger
	stopCh    chan struct{}
	stoppedCh chan struct{}
	mu        sync.Mutex
	running   bool
}

// NewDaemon creates a new daemon instance.
func NewDaemon(cfg *config.Config, log arbor.ILogger) *Daemon {
	return &Daemon{
		cfg:       cfg,
		log:       log,
		stopCh:    make(chan struct{}),
		stoppedCh: make(chan struct{}),
	}
}

// Start starts the debug HTTP server with the given handler.
func (d *Daemon) Start(handler http.Handler) error {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return fmt.Errorf("daemon already running")
	}
	d.running = true
	d.mu.Unlock()

	if err := d.cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("ensure directories: %w", err)
	}
	if err := d.writePID(); err != nil {
		return fmt.Errorf("write PID: %w", err)
	}

	d.server = &http.Server{
		Addr:         d.cfg.Debug.Address,
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		d.log.Info().Str("address", d.cfg.Debug.Address).Msg("starting debug HTTP surface")
		if err := d.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			d.log.Error().Err(err).Msg("debug HTTP surface stopped")
		}
	}()

	return nil
}

// Wait blocks until a termination signal arrives or Stop is called,
// then performs graceful shutdown.
func (d *Daemon) Wait() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT, syscall.SIGHUP)

	select {
	case sig := <-sigCh:
		d.log.Info().Str("signal", sig.String()).Msg("received signal, shutting down")
	case <-d.stopCh:
		d.log.Info().Msg("stop requested, shutting down")
	}

	d.shutdown()
}

// Stop signals the daemon to stop and blocks until shutdown completes.
func (d *Daemon) Stop() {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return
	}
	d.mu.Unlock()

	close(d.stopCh)
	<-d.stoppedCh
}

func (d *Daemon) shutdown() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.running {
		return
	}

	timeout := time.Duration(d.cfg.Service.ShutdownTimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if d.server != nil {
		if err := d.server.Shutdown(ctx); err != nil {
			d.log.Error().Err(err).Msg("debug HTTP surface shutdown error")
		}
	}

	d.removePID()
	d.running = false
	close(d.stoppedCh)
}

func (d *Daemon) writePID() error {
	pidPath := d.cfg.PIDPath()
	if err := os.MkdirAll(filepath.Dir(pidPath), 0o755); err != nil {
		return fmt.Errorf("create PID directory: %w", err)
	}
	return os.WriteFile(pidPath, []byte(strconv.Itoa(os.Getpid())), 0o644)
}

func (d *Daemon) removePID() {
	_ = os.Remove(d.cfg.PIDPath())
}

// IsRunning checks whether a daemon is already running per cfg's PID
// file, cleaning up a stale file if the recorded process is gone.
func IsRunning(cfg *config.Config) (bool, int) {
	pidPath := cfg.PIDPath()

	data, err := os.ReadFile(pidPath)
	if err != nil {
		return false, 0
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return false, 0
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return false, 0
	}
	if err := process.Signal(syscall.Signal(0)); err != nil {
		_ = os.Remove(pidPath)
		return false, 0
	}
	return true, pid
}

// StopRunning sends SIGTERM to a running daemon and waits for it to
// exit, force-killing it after a short grace period.
func StopRunning(cfg *config.Config) error {
	running, pid := IsRunning(cfg)
	if !running {
		return fmt.Errorf("daemon not running")
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("find process: %w", err)
	}
	if err := process.Signal(syscall.SIGTERM); err != nil {
		return fmt.Errorf("send signal: %w", err)
	}

	for i := 0; i < 30; i++ {
		time.Sleep(100 * time.Millisecond)
		if running, _ := IsRunning(cfg); !running {
			return nil
		}
	}

	if err := process.Kill(); err != nil {
		return fmt.Errorf("kill process: %w", err)
	}
	_ = os.Remove(cfg.PIDPath())
	return nil
}

// Logger returns the daemon's logger.
func (d *Daemon) Logger() arbor.ILogger { return d.log }
