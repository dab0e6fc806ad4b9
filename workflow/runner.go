package workflow

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"blindmark/watermark"
)

// ErrBusy is returned when a trigger arrives while a request is in flight
var ErrBusy = errors.New("a request is already in progress")

// Outcome is the result of one request: a value or an error, never both
type Outcome[P any] struct {
	Value P
	Err   error
}

// Succeed wraps a successful value
func Succeed[P any](v P) Outcome[P] {
	return Outcome[P]{Value: v}
}

// Fail wraps a failed request
func Fail[P any](err error) Outcome[P] {
	return Outcome[P]{Err: err}
}

// OK reports whether the outcome is a success
func (o Outcome[P]) OK() bool {
	return o.Err == nil
}

// Call performs the network step of an attempt
type Call[P any] func(ctx context.Context) (P, error)

// Pending is an attempt that passed validation and is waiting for its request to run
type Pending[P any] struct {
	Attempt string
	call    Call[P]
}

// Do runs the request. It is safe to call from any goroutine.
func (p *Pending[P]) Do(ctx context.Context) Outcome[P] {
	v, err := p.call(ctx)
	if err != nil {
		return Fail[P](err)
	}
	return Succeed(v)
}

// Runner drives one workflow's state machine
type Runner[P any] struct {
	name     string
	progress string
	messages Messages
	logger   *slog.Logger

	state  State
	result Outcome[P]
}

// NewRunner creates a runner in the Idle phase
func NewRunner[P any](name, progress string, messages Messages, logger *slog.Logger) *Runner[P] {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Runner[P]{
		name:     name,
		progress: progress,
		messages: messages,
		logger:   logger.With("workflow", name),
	}
}

// State returns the current state
func (r *Runner[P]) State() State {
	return r.state
}

// Result returns the value of the last successful attempt while the runner is Succeeded
func (r *Runner[P]) Result() (P, bool) {
	if r.state.Phase != Succeeded {
		var zero P
		return zero, false
	}
	return r.result.Value, true
}

// Begin clears prior output, validates with check and, when valid, enters
// Loading. It returns nil without error when validation failed; the runner
// is then Failed and no request must be issued.
func (r *Runner[P]) Begin(check func() error, call Call[P]) (*Pending[P], error) {
	if r.state.Busy() {
		return nil, ErrBusy
	}

	attempt := uuid.NewString()
	r.state = Transition(r.state, Event{Type: EventTrigger, Attempt: attempt})
	r.result = Outcome[P]{}

	if check != nil {
		if err := check(); err != nil {
			msg := err.Error()
			var vErr *ValidationError
			if errors.As(err, &vErr) {
				msg = vErr.Message
			}
			r.state = Transition(r.state, Event{Type: EventReject, Attempt: attempt, Message: msg})
			r.logger.Info("validation failed", "attempt", attempt, "error", msg)
			return nil, nil
		}
	}

	r.state = Transition(r.state, Event{Type: EventStart, Attempt: attempt, Message: r.progress})
	r.logger.Info("request started", "attempt", attempt)

	return &Pending[P]{Attempt: attempt, call: call}, nil
}

// Finish applies the outcome of p. onSuccess runs before the runner enters
// Succeeded. Outcomes of stale attempts are dropped and Finish returns false.
// A panic in onSuccess is recovered and reported as a communication failure,
// so the runner never stays Loading past Finish.
func (r *Runner[P]) Finish(p *Pending[P], out Outcome[P], onSuccess func(P)) (applied bool) {
	if p == nil || !r.state.Busy() || p.Attempt != r.state.Attempt {
		return false
	}

	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("presenting result failed", "attempt", p.Attempt, "panic", rec)
			applied = true
		}
		if r.state.Busy() {
			r.state = Transition(r.state, Event{
				Type:    EventFail,
				Attempt: p.Attempt,
				Kind:    TransportFailure,
				Message: r.messages.CommunicationError,
			})
		}
	}()

	if out.Err != nil {
		kind, msg := r.classify(out.Err)
		r.state = Transition(r.state, Event{Type: EventFail, Attempt: p.Attempt, Kind: kind, Message: msg})
		r.logger.Warn("request failed", "attempt", p.Attempt, "kind", kind.String(), "error", out.Err)
		return true
	}

	r.result = out
	if onSuccess != nil {
		onSuccess(out.Value)
	}
	r.state = Transition(r.state, Event{Type: EventSucceed, Attempt: p.Attempt})
	r.logger.Info("request succeeded", "attempt", p.Attempt)
	return true
}

// Run performs Begin, the request and Finish in sequence
func (r *Runner[P]) Run(ctx context.Context, check func() error, call Call[P], onSuccess func(P)) (State, error) {
	p, err := r.Begin(check, call)
	if err != nil {
		return r.state, err
	}
	if p != nil {
		r.Finish(p, p.Do(ctx), onSuccess)
	}
	return r.state, nil
}

func (r *Runner[P]) classify(err error) (ErrorKind, string) {
	var apiErr *watermark.APIError
	if errors.As(err, &apiErr) {
		if apiErr.Message == "" {
			return ServerFailure, r.messages.UnknownError
		}
		return ServerFailure, apiErr.Message
	}
	return TransportFailure, r.messages.CommunicationError
}
