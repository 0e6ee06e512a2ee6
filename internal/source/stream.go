package source

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"sync"

	"integrator/internal/config"
)

// StreamFunc parses src and sends positional rows aligned to columns on out.
//
// Contract (shared by every adapter):
//   - out is NOT closed by the adapter; the registry wrapper owns it.
//   - Per-record parse problems are reported through onErr and the stream
//     continues; only unrecoverable conditions (unreadable input, malformed
//     container) return a non-nil error.
//   - On ctx cancellation, in-flight rows must be Drop()ped, not Free()d.
type StreamFunc func(
	ctx context.Context,
	src io.ReadCloser,
	columns []string,
	opt config.Options,
	out chan<- *Row,
	onErr func(line int, err error),
) error

var (
	regMu     sync.RWMutex
	factories = map[string]StreamFunc{}
)

// Register registers a source adapter under kind. Adapters call this from an
// init() function; registering a kind twice panics to fail fast on ambiguous
// wiring.
func Register(kind string, f StreamFunc) {
	regMu.Lock()
	defer regMu.Unlock()

	if kind == "" {
		panic("source: Register called with empty kind")
	}
	if f == nil {
		panic("source: Register called with nil StreamFunc")
	}
	if _, exists := factories[kind]; exists {
		panic(fmt.Sprintf("source: adapter already registered for kind=%q", kind))
	}
	factories[kind] = f
}

// Kinds returns the registered adapter kinds, sorted.
func Kinds() []string {
	regMu.RLock()
	defer regMu.RUnlock()

	out := make([]string, 0, len(factories))
	for k := range factories {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Stream is a live source stream: consume Rows until closed, then call
// Wait() for the terminal error.
type Stream struct {
	Rows <-chan *Row

	done chan struct{}
	err  error
}

// Wait blocks until the stream goroutine has finished and returns its
// terminal error. Safe to call after Rows is closed (it will not block).
func (s *Stream) Wait() error {
	<-s.done
	return s.err
}

// Open opens spec.Path, resolves the adapter for spec.Kind and starts the
// stream. The returned Stream's Rows channel is closed when parsing ends for
// any reason; call Wait for the verdict.
//
// Errors:
//   - Unknown kind and unreadable path are returned synchronously; both are
//     setup failures at the call site.
func Open(ctx context.Context, spec config.Source, columns []string, buffer int, onErr func(line int, err error)) (*Stream, error) {
	regMu.RLock()
	f := factories[spec.Kind]
	regMu.RUnlock()

	if f == nil {
		return nil, fmt.Errorf("source: unsupported kind=%q (registered: %v)", spec.Kind, Kinds())
	}

	src, err := os.Open(spec.Path)
	if err != nil {
		return nil, fmt.Errorf("source: open %s: %w", spec.Path, err)
	}

	if buffer <= 0 {
		buffer = 256
	}
	out := make(chan *Row, buffer)

	s := &Stream{Rows: out, done: make(chan struct{})}
	go func() {
		defer close(s.done)
		defer close(out)
		s.err = f(ctx, src, columns, spec.Options, out, onErr)
	}()

	return s, nil
}
