// Copyright (C) 2024 The nongcunshaoye/pulseaudio Authors. All Rights Reserved.

package pulseaudio

// Drain submits a drain operation: cb is invoked once every in-flight send
// on the framer and every outstanding reply on the dispatcher has settled.
// If nothing is outstanding when Drain is called, it returns nil and never
// invokes cb — callers that always want a callback should check IsPending
// themselves, matching the original's "nothing to drain" short circuit in
// pa_context_drain.
//
// Drain composes the two independent queue-empty hooks spec.md §4.5
// describes (one on the framer, one on the dispatcher) into a single
// operation that fires only once both have fired.
func (c *Context) Drain(cb func(success bool)) *Operation {
	unref := c.refGuard()
	defer unref()

	c.mu.Lock()
	if c.state != Ready {
		c.mu.Unlock()
		panic("pulseaudio: Drain called outside Ready state")
	}
	c.mu.Unlock()

	if !c.IsPending() {
		return nil
	}

	op := newOperation(c, func(success bool, _ ErrorCode) {
		if cb != nil {
			cb(success)
		}
	})
	c.addOperation(op)
	c.armDrainHooks(op)
	return op
}

func (c *Context) armDrainHooks(op *Operation) {
	c.mu.Lock()
	ps, pd := c.ps, c.pd
	c.mu.Unlock()

	if ps == nil || pd == nil {
		c.removeOperation(op)
		op.complete(false, ErrConnectionTerminated)
		return
	}

	check := func() { c.checkDrain(op) }
	if ps.IsPending() {
		ps.SetDrainCallback(check)
	}
	if pd.IsPending() {
		pd.SetDrainCallback(check)
	}
	if !ps.IsPending() && !pd.IsPending() {
		c.checkDrain(op)
	}
}

// checkDrain re-examines both queues. If either is still non-empty it
// re-arms that queue's hook and waits to be called again; once both are
// empty it completes op successfully. Called from whichever hook fires
// first, so it may run twice for one Drain (once per queue draining).
func (c *Context) checkDrain(op *Operation) {
	if op.Done() {
		return
	}

	c.mu.Lock()
	ps, pd := c.ps, c.pd
	c.mu.Unlock()

	if ps == nil || pd == nil {
		c.removeOperation(op)
		op.complete(false, ErrConnectionTerminated)
		return
	}

	check := func() { c.checkDrain(op) }
	stillPending := false
	if ps.IsPending() {
		ps.SetDrainCallback(check)
		stillPending = true
	}
	if pd.IsPending() {
		pd.SetDrainCallback(check)
		stillPending = true
	}
	if stillPending {
		return
	}

	c.removeOperation(op)
	op.complete(true, ErrOk)
}
