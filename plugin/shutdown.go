package plugin

import (
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/lcx/keel/log"
)

// ShutdownRegistrar is where the factory hands off process-exit teardown.
// The factory never installs signal handlers itself; the host owns process
// lifecycle and injects whatever registrar fits it.
type ShutdownRegistrar interface {
	RegisterShutdown(fn func())
}

// SignalRegistrar runs registered shutdown functions when the process
// receives SIGINT or SIGTERM. It is the default registrar for hosts that
// have no lifecycle manager of their own.
type SignalRegistrar struct {
	mu      sync.Mutex
	fns     []func()
	started bool
	ch      chan os.Signal
}

// NewSignalRegistrar creates an idle registrar; the signal handler is
// installed on first registration.
func NewSignalRegistrar() *SignalRegistrar {
	return &SignalRegistrar{}
}

// RegisterShutdown adds fn to the functions run on SIGINT or SIGTERM.
func (s *SignalRegistrar) RegisterShutdown(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fns = append(s.fns, fn)
	if s.started {
		return
	}
	s.started = true
	s.ch = make(chan os.Signal, 1)
	signal.Notify(s.ch, syscall.SIGINT, syscall.SIGTERM)
	go s.wait()
}

func (s *SignalRegistrar) wait() {
	sig, ok := <-s.ch
	if !ok {
		return
	}
	log.Info().Str("signal", sig.String()).Msg("shutdown signal received")
	s.mu.Lock()
	fns := make([]func(), len(s.fns))
	copy(fns, s.fns)
	s.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

// Stop uninstalls the signal handler without running the shutdown functions.
func (s *SignalRegistrar) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return
	}
	signal.Stop(s.ch)
	close(s.ch)
	s.started = false
	s.ch = nil
}

// RegistrarFunc adapts a function into a ShutdownRegistrar.
type RegistrarFunc func(fn func())

func (r RegistrarFunc) RegisterShutdown(fn func()) { r(fn) }
