// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package resolve

import (
	"context"
	"errors"

	"github.com/pdiddy/bibresolve/internal/provider"
	"github.com/pdiddy/bibresolve/pkg/types"
)

// errLaneTripped is reported for calls made after an exclusive provider was
// blocked earlier in the run.
var errLaneTripped = errors.New("provider blocked earlier in this run")

// lane serializes every call to one exclusive provider through a single
// goroutine. Once the provider reports blocked, the lane trips and answers
// all later calls with blocked without touching the provider.
type lane struct {
	p    provider.Provider
	reqs chan laneRequest
	done chan struct{}
}

type laneRequest struct {
	ctx   context.Context
	q     types.Query
	reply chan provider.Outcome
}

func newLane(p provider.Provider) *lane {
	l := &lane{
		p:    p,
		reqs: make(chan laneRequest),
		done: make(chan struct{}),
	}
	go l.run()
	return l
}

func (l *lane) Name() string { return l.p.Name() }

// Resolve queues the call and waits for its outcome.
func (l *lane) Resolve(ctx context.Context, q types.Query) provider.Outcome {
	reply := make(chan provider.Outcome, 1)
	select {
	case l.reqs <- laneRequest{ctx: ctx, q: q, reply: reply}:
	case <-ctx.Done():
		return provider.Failed(l.Name(), provider.ErrorTimeout, ctx.Err())
	}
	select {
	case out := <-reply:
		return out
	case <-ctx.Done():
		return provider.Failed(l.Name(), provider.ErrorTimeout, ctx.Err())
	}
}

func (l *lane) run() {
	defer close(l.done)
	tripped := false
	for req := range l.reqs {
		switch {
		case tripped:
			req.reply <- provider.Failed(l.Name(), provider.ErrorBlocked, errLaneTripped)
		case req.ctx.Err() != nil:
			req.reply <- provider.Failed(l.Name(), provider.ErrorTimeout, req.ctx.Err())
		default:
			out := l.p.Resolve(req.ctx, req.q)
			if out.Kind == provider.OutcomeError && out.Err != nil && out.Err.Kind == provider.ErrorBlocked {
				tripped = true
			}
			req.reply <- out
		}
	}
}

// close stops the lane goroutine once queued calls have drained.
func (l *lane) close() {
	close(l.reqs)
	<-l.done
}
