package broker

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"os/exec"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/matthieuc/gpiolink/infra/logger"
)

// Status represents the current state of the supervised broker.
type Status string

const (
	StatusStopped  Status = "stopped"
	StatusStarting Status = "starting"
	StatusRunning  Status = "running"
	StatusFailed   Status = "failed"
)

// Supervisor manages the lifecycle of the external broker process. Open
// spawns the broker and waits for its MQTT listener to accept connections;
// Close stops it gracefully.
type Supervisor struct {
	cfg Config
	log logger.Logger

	// OnStatus is invoked on every state transition. Optional.
	OnStatus func(Status)

	mu            sync.RWMutex
	cmd           *exec.Cmd
	status        Status
	restartCount  int
	lastError     error
	stopRequested bool
	done          chan struct{}
}

// NewSupervisor creates a Supervisor for the configured broker binary.
func NewSupervisor(cfg Config, log logger.Logger) *Supervisor {
	cfg.SetDefaults()
	if log == nil {
		log = logger.NopLogger{}
	}
	return &Supervisor{cfg: cfg, log: log, status: StatusStopped}
}

// Status returns the current broker state.
func (s *Supervisor) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// LastError returns the most recent process failure, if any.
func (s *Supervisor) LastError() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastError
}

// Addr returns the broker's MQTT URL for client configuration.
func (s *Supervisor) Addr() string {
	return "tcp://127.0.0.1:" + strconv.Itoa(s.cfg.TCPPort)
}

func (s *Supervisor) setStatus(st Status) {
	s.mu.Lock()
	s.status = st
	cb := s.OnStatus
	s.mu.Unlock()
	if cb != nil {
		cb(st)
	}
}

// Open launches the broker process and blocks until its TCP listener accepts
// connections or the ready timeout expires.
func (s *Supervisor) Open(ctx context.Context) error {
	s.mu.Lock()
	if s.status == StatusRunning || s.status == StatusStarting {
		s.mu.Unlock()
		return fmt.Errorf("broker is already running")
	}
	s.stopRequested = false
	s.done = make(chan struct{})
	s.mu.Unlock()
	s.setStatus(StatusStarting)

	if err := s.startProcess(ctx); err != nil {
		s.mu.Lock()
		s.lastError = err
		s.mu.Unlock()
		s.setStatus(StatusFailed)
		return err
	}

	go s.monitor(ctx)

	if err := s.waitReady(ctx); err != nil {
		s.mu.Lock()
		s.lastError = err
		s.mu.Unlock()
		_ = s.Close()
		s.setStatus(StatusFailed)
		return err
	}

	s.setStatus(StatusRunning)
	return nil
}

func (s *Supervisor) startProcess(ctx context.Context) error {
	args := s.cfg.BuildArgs()
	if s.cfg.MQTTSNEnabled() {
		s.log.Infof("starting broker %s %v (mqtt :%d, mqtt-sn :%d)",
			s.cfg.Binary, args, s.cfg.TCPPort, s.cfg.UDPPort)
	} else {
		s.log.Infof("starting broker %s %v (mqtt :%d)", s.cfg.Binary, args, s.cfg.TCPPort)
	}

	cmd := exec.CommandContext(ctx, s.cfg.Binary, args...)
	// New process group so children are signalled together on shutdown.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("creating stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("creating stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("starting broker: %w", err)
	}

	s.mu.Lock()
	s.cmd = cmd
	s.mu.Unlock()

	go s.captureOutput("stdout", stdout)
	go s.captureOutput("stderr", stderr)

	s.log.Infof("broker started, pid %d", cmd.Process.Pid)
	return nil
}

// waitReady probes the MQTT TCP listener until it accepts or the timeout
// expires.
func (s *Supervisor) waitReady(ctx context.Context) error {
	addr := net.JoinHostPort("127.0.0.1", strconv.Itoa(s.cfg.TCPPort))
	deadline := time.Now().Add(time.Duration(s.cfg.ReadyTimeoutMS) * time.Millisecond)
	for time.Now().Before(deadline) {
		conn, err := net.DialTimeout("tcp", addr, 200*time.Millisecond)
		if err == nil {
			_ = conn.Close()
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(100 * time.Millisecond):
		}
	}
	return fmt.Errorf("broker not listening on %s after %dms", addr, s.cfg.ReadyTimeoutMS)
}

func (s *Supervisor) captureOutput(stream string, r io.Reader) {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		s.log.Debugw("broker output", map[string]any{"stream": stream, "line": sc.Text()})
	}
}

// monitor waits for the process to exit and restarts it when configured.
func (s *Supervisor) monitor(ctx context.Context) {
	s.mu.RLock()
	cmd := s.cmd
	done := s.done
	s.mu.RUnlock()
	defer close(done)

	err := cmd.Wait()

	s.mu.Lock()
	stopRequested := s.stopRequested
	s.lastError = err
	s.mu.Unlock()

	if stopRequested || ctx.Err() != nil {
		s.setStatus(StatusStopped)
		return
	}

	s.log.Errorf("broker exited unexpectedly: %v", err)
	s.setStatus(StatusFailed)

	if !s.cfg.RestartOnFailure {
		return
	}
	s.mu.Lock()
	s.restartCount++
	attempt := s.restartCount
	s.mu.Unlock()
	if s.cfg.MaxRestartAttempts > 0 && attempt > s.cfg.MaxRestartAttempts {
		s.log.Errorf("broker restart attempts exhausted after %d tries", attempt-1)
		return
	}

	select {
	case <-ctx.Done():
		return
	case <-time.After(time.Duration(s.cfg.RestartDelayMS) * time.Millisecond):
	}
	s.log.Warnf("restarting broker, attempt %d", attempt)
	if err := s.Open(ctx); err != nil {
		s.log.Errorf("broker restart failed: %v", err)
	}
}

// Close stops the broker with SIGTERM, escalating to SIGKILL after the
// graceful timeout.
func (s *Supervisor) Close() error {
	s.mu.Lock()
	cmd := s.cmd
	done := s.done
	if cmd == nil || cmd.Process == nil {
		s.mu.Unlock()
		return nil
	}
	s.stopRequested = true
	s.mu.Unlock()

	// Signal the whole process group.
	if err := syscall.Kill(-cmd.Process.Pid, syscall.SIGTERM); err != nil {
		_ = cmd.Process.Signal(syscall.SIGTERM)
	}

	if done != nil {
		select {
		case <-done:
			return nil
		case <-time.After(time.Duration(s.cfg.GracefulTimeoutMS) * time.Millisecond):
		}
	}

	s.log.Warnf("broker did not exit after SIGTERM, killing")
	if err := syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL); err != nil {
		_ = cmd.Process.Kill()
	}
	if done != nil {
		<-done
	}
	return nil
}
