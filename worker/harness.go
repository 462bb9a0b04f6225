package worker

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/rs/zerolog/log"
)

// ═══════════════════════════════════════════════════════════════════════════════
// HARNESS - Tracked worker entrypoint
// ═══════════════════════════════════════════════════════════════════════════════
//
// RunTracked wraps a worker main: it runs the handler to completion, cancels
// it on SIGINT/SIGTERM, and releases every tracked resource exactly once, in
// registration order, before returning.
//
// ═══════════════════════════════════════════════════════════════════════════════

type closer interface{ Close() error }
type unsubscriber interface{ Unsubscribe() }

type tracked struct {
	resource any
	once     sync.Once
}

// Tracker collects resources a handler wants released at shutdown.
type Tracker struct {
	mu        sync.Mutex
	resources []*tracked
}

// Track registers a resource exposing Close() or Unsubscribe(). Anything else
// is rejected so a typo'd registration fails loudly at the worker boundary.
func (t *Tracker) Track(resource any) error {
	switch resource.(type) {
	case closer, unsubscriber:
	default:
		return fmt.Errorf("tracked resource %T exposes neither Close nor Unsubscribe", resource)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.resources = append(t.resources, &tracked{resource: resource})
	return nil
}

// releaseAll invokes each release method exactly once, in registration order.
func (t *Tracker) releaseAll() {
	t.mu.Lock()
	resources := t.resources
	t.mu.Unlock()

	for _, r := range resources {
		r.once.Do(func() {
			switch res := r.resource.(type) {
			case closer:
				if err := res.Close(); err != nil {
					log.Warn().Err(err).Msgf("release %T", res)
				}
			case unsubscriber:
				res.Unsubscribe()
			}
		})
	}
}

// TrackedOptions configures RunTracked.
type TrackedOptions struct {
	// Payload handed to the handler, typically read from stdin or a file.
	Payload []byte
	// OnClose fires after every tracked release has completed.
	OnClose func()
}

// TrackedHandler is a worker body. The context is cancelled on SIGINT/SIGTERM.
type TrackedHandler func(ctx context.Context, payload []byte, tracker *Tracker) error

// RunTracked executes handler to completion with deterministic teardown.
func RunTracked(handler TrackedHandler, opts TrackedOptions) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tracker := &Tracker{}

	err := handler(ctx, opts.Payload, tracker)

	tracker.releaseAll()
	if opts.OnClose != nil {
		opts.OnClose()
	}
	return err
}

// ReadRequest reads the single request envelope a call-mode worker receives
// on stdin and validates its kind.
func ReadRequest(kind Kind) (*Request, error) {
	sc := bufio.NewScanner(os.Stdin)
	sc.Buffer(make([]byte, 64*1024), 16*1024*1024)
	if !sc.Scan() {
		if err := sc.Err(); err != nil {
			return nil, fmt.Errorf("read request: %w", err)
		}
		return nil, fmt.Errorf("no request on stdin")
	}

	var req Request
	if err := json.Unmarshal(sc.Bytes(), &req); err != nil {
		return nil, fmt.Errorf("malformed request: %w", err)
	}
	if req.Kind != kind {
		return nil, fmt.Errorf("request kind %q, want %q", req.Kind, kind)
	}
	if req.ID == "" {
		return nil, fmt.Errorf("request missing correlation id")
	}
	return &req, nil
}

// WriteResponse emits the single response envelope on stdout.
func WriteResponse(resp Response) error {
	enc := json.NewEncoder(os.Stdout)
	return enc.Encode(resp)
}

// Reply answers req with a typed payload.
func Reply(req *Request, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal response payload: %w", err)
	}
	return WriteResponse(Response{Kind: req.Kind, ID: req.ID, OK: true, Payload: raw})
}

// ReplyError answers req with a failure envelope.
func ReplyError(req *Request, err error) error {
	return WriteResponse(Response{Kind: req.Kind, ID: req.ID, OK: false, Error: err.Error()})
}
