// Package scan enumerates candidate plugin manifests across configured code
// sources: filesystem directories, zip archives, and any caller-provided
// source. It streams raw bytes to the caller without interpreting them;
// classification is the caller's concern.
package scan

import (
	"errors"
	"io"
	"sync/atomic"
	"time"

	"github.com/lcx/keel/log"
)

// ErrStopScan aborts an in-progress scan without reporting failure.
var ErrStopScan = errors.New("scan stopped")

// VisitFunc receives one candidate per call. The reader is only valid for the
// duration of the call; the scanner closes the underlying handle before
// moving to the next entry, so at most one handle is open per source.
type VisitFunc func(name string, r io.Reader) error

// Source streams (name, reader) pairs for every candidate it can reach.
// Ordering within a source is unspecified but must be deterministic for a
// given source state.
type Source interface {
	Name() string
	Walk(visit VisitFunc) error
}

// Observer is notified after each source finishes walking. Used by the
// metrics layer; nil by default.
type Observer func(source string, elapsed time.Duration, err error)

var _observer atomic.Pointer[Observer]

// SetObserver installs the package-level scan observer. Safe to call while
// scans run on other goroutines.
func SetObserver(o Observer) {
	if o == nil {
		_observer.Store(nil)
		return
	}
	_observer.Store(&o)
}

// Scanner drives a set of sources in registration order. A failing source is
// logged and skipped; it never aborts the remaining sources. The same
// candidate name may be produced by more than one source - precedence is the
// caller's decision (the finder keeps the first occurrence).
type Scanner struct {
	sources []Source
	limiter *ScanLimiter
	funnel  *FunnelScanLimiter
}

// ScannerOption configures a Scanner.
type ScannerOption func(*Scanner)

// WithSources sets the initial source list.
func WithSources(sources ...Source) ScannerOption {
	return func(s *Scanner) {
		s.sources = sources
	}
}

// WithLimiter throttles candidate visits with a token bucket.
func WithLimiter(l *ScanLimiter) ScannerOption {
	return func(s *Scanner) {
		s.limiter = l
	}
}

// WithFunnel throttles candidate visits with a leaky bucket.
func WithFunnel(f *FunnelScanLimiter) ScannerOption {
	return func(s *Scanner) {
		s.funnel = f
	}
}

// NewScanner creates a scanner over the given sources.
func NewScanner(opts ...ScannerOption) *Scanner {
	s := &Scanner{}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AddSource appends a source. Registration order defines duplicate-name
// precedence for callers that keep the first occurrence.
func (s *Scanner) AddSource(src Source) {
	s.sources = append(s.sources, src)
}

// Sources returns the registered sources in order.
func (s *Scanner) Sources() []Source {
	return s.sources
}

// Scan walks every source in order, forwarding each candidate to visit.
// Source-level failures are logged and skipped. A visit error other than
// ErrStopScan aborts the scan and is returned.
func (s *Scanner) Scan(visit VisitFunc) error {
	throttled := func(name string, r io.Reader) error {
		if s.limiter != nil {
			if err := s.limiter.Take(); err != nil {
				return err
			}
		}
		if s.funnel != nil {
			s.funnel.Take()
		}
		return visit(name, r)
	}

	for _, src := range s.sources {
		start := time.Now()
		err := src.Walk(throttled)
		if ob := _observer.Load(); ob != nil {
			(*ob)(src.Name(), time.Since(start), err)
		}
		if err == nil {
			continue
		}
		if errors.Is(err, ErrStopScan) {
			return nil
		}
		if isSourceFailure(err) {
			log.Warn().Str("source", src.Name()).Err(err).Msg("scan source failed, skipping")
			continue
		}
		return err
	}
	return nil
}

// sourceError wraps errors raised by a source itself (as opposed to errors
// returned by the visit callback) so Scan can skip the source and continue.
type sourceError struct {
	err error
}

func (e *sourceError) Error() string { return e.err.Error() }
func (e *sourceError) Unwrap() error { return e.err }

// SourceFailure marks err as a source-level failure that should not abort the
// overall scan.
func SourceFailure(err error) error {
	if err == nil {
		return nil
	}
	return &sourceError{err: err}
}

func isSourceFailure(err error) bool {
	var se *sourceError
	return errors.As(err, &se)
}
