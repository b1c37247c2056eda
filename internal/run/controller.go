// Package run drives scenario requests through an explicit state machine.
//
// A Controller owns one run session. Trigger moves it to Loading with a fresh
// token and hands back a Job that performs the transport call; the caller
// runs the Job wherever it likes (a goroutine, a bubbletea command, inline)
// and passes the Outcome back to Resolve on the control thread. Resolutions
// whose token is no longer the latest are dropped, so the state always
// reflects the most recently triggered request.
//
// A Controller is not safe for concurrent use: Trigger, Resolve and the
// accessors must be called from a single goroutine. Jobs may run anywhere.
package run

import (
	"context"
	"fmt"
	"time"

	"fwe/internal/scenario"

	"go.uber.org/zap"
)

// Phase is the tag of the run state.
type Phase int

const (
	Idle Phase = iota
	Loading
	Succeeded
	Failed
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case Loading:
		return "loading"
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Token identifies one triggered run. Tokens increase strictly within a
// Controller; zero is never issued.
type Token uint64

// State is the current run state. Token is set for Loading, Succeeded and
// Failed; Response only for Succeeded; Err only for Failed.
type State struct {
	Phase    Phase
	Token    Token
	Response scenario.Response
	Err      error
}

// Sender performs one scenario call. *transport.Client implements it.
type Sender interface {
	Send(ctx context.Context, req scenario.Request) (scenario.Response, error)
}

// Outcome is the result of a Job, tagged with the token it was issued for.
type Outcome struct {
	Token    Token
	Request  scenario.Request
	Response scenario.Response
	Err      error
	Elapsed  time.Duration
}

// Job performs the transport call for one token.
type Job func() Outcome

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the logger used for transitions.
func WithLogger(l *zap.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithAbortSuperseded cancels the context of an in-flight job as soon as a
// newer trigger supersedes it. The stale result is dropped either way; this
// only frees the connection earlier.
func WithAbortSuperseded(enabled bool) Option {
	return func(c *Controller) { c.abort = enabled }
}

// Controller is the run state machine.
type Controller struct {
	sender Sender
	logger *zap.Logger
	abort  bool

	state       State
	latest      Token
	cancel      context.CancelFunc
	lastSuccess *scenario.Response
}

// New returns an Idle controller that sends through sender.
func New(sender Sender, opts ...Option) *Controller {
	c := &Controller{
		sender: sender,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State returns the current state.
func (c *Controller) State() State { return c.state }

// Latest returns the most recently issued token, or zero before the first
// trigger.
func (c *Controller) Latest() Token { return c.latest }

// LastSuccess returns the most recent successful response, which stays
// available after a later failure.
func (c *Controller) LastSuccess() (scenario.Response, bool) {
	if c.lastSuccess == nil {
		return scenario.Response{}, false
	}
	return *c.lastSuccess, true
}

// Trigger enters Loading with a fresh token from any phase and returns the
// job that performs the call. The previous in-flight job, if any, keeps
// running unless abort is enabled, but its outcome will be dropped.
func (c *Controller) Trigger(ctx context.Context, req scenario.Request) (Token, Job) {
	if c.cancel != nil && c.abort {
		c.cancel()
	}

	c.latest++
	token := c.latest
	prev := c.state.Phase
	c.state = State{Phase: Loading, Token: token}

	jobCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	c.logger.Debug("run triggered",
		zap.Uint64("token", uint64(token)),
		zap.Stringer("from", prev),
		zap.Stringer("request", req))

	sender := c.sender
	return token, func() Outcome {
		defer cancel()
		start := time.Now()
		resp, err := sender.Send(jobCtx, req)
		return Outcome{
			Token:    token,
			Request:  req,
			Response: resp,
			Err:      err,
			Elapsed:  time.Since(start),
		}
	}
}

// Resolve applies o if its token is still the latest loading token and
// reports whether it was applied. Stale outcomes leave the state untouched.
func (c *Controller) Resolve(o Outcome) bool {
	if o.Token != c.latest || c.state.Phase != Loading || c.state.Token != o.Token {
		c.logger.Debug("dropping stale run result",
			zap.Uint64("token", uint64(o.Token)),
			zap.Uint64("latest", uint64(c.latest)),
			zap.Bool("failed", o.Err != nil))
		return false
	}
	c.cancel = nil

	if o.Err != nil {
		c.state = State{Phase: Failed, Token: o.Token, Err: o.Err}
		c.logger.Debug("run failed",
			zap.Uint64("token", uint64(o.Token)),
			zap.Duration("elapsed", o.Elapsed),
			zap.Error(o.Err))
		return true
	}

	resp := o.Response
	c.state = State{Phase: Succeeded, Token: o.Token, Response: resp}
	c.lastSuccess = &resp
	c.logger.Debug("run succeeded",
		zap.Uint64("token", uint64(o.Token)),
		zap.Duration("elapsed", o.Elapsed),
		zap.Int("kpis", len(resp.KPIs)),
		zap.Int("diagnostics", len(resp.Diagnostics)))
	return true
}

// RunOnce performs the single-shot Idle -> Loading -> Succeeded|Failed
// transition used by the CLI. It refuses to re-trigger a used controller.
func (c *Controller) RunOnce(ctx context.Context, req scenario.Request) (Outcome, error) {
	if c.state.Phase != Idle {
		return Outcome{}, fmt.Errorf("run controller already used (state %s)", c.state.Phase)
	}
	_, job := c.Trigger(ctx, req)
	o := job()
	c.Resolve(o)
	return o, o.Err
}
