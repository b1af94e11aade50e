// Copyright (C) 2024 The nongcunshaoye/pulseaudio Authors. All Rights Reserved.

package pulseaudio

import "expvar"

// contextMetrics records per-Context activity counters, mirroring the
// peerMetrics pattern chirp.Peer uses for its own expvar.Map: a flat struct
// of counters is built once, and an expvar.Map indexes them by name for
// Metrics to expose. Unlike chirp's single process-wide peerMetrics, each
// Context gets its own, since a program may hold more than one session (for
// instance, a playback Context and a separate record Context) and mixing
// their counters together would be useless to an operator.
type contextMetrics struct {
	packetsSent    expvar.Int
	packetsRecv    expvar.Int
	repliesOK      expvar.Int
	repliesError   expvar.Int
	repliesTimeout expvar.Int
	opsPending     expvar.Int
	streamsLive    expvar.Int
	state          expvar.String

	emap *expvar.Map
}

func newContextMetrics() *contextMetrics {
	m := &contextMetrics{emap: new(expvar.Map)}
	m.emap.Set("packets_sent", &m.packetsSent)
	m.emap.Set("packets_received", &m.packetsRecv)
	m.emap.Set("replies_ok", &m.repliesOK)
	m.emap.Set("replies_error", &m.repliesError)
	m.emap.Set("replies_timeout", &m.repliesTimeout)
	m.emap.Set("operations_pending", &m.opsPending)
	m.emap.Set("streams_live", &m.streamsLive)
	m.emap.Set("state", &m.state)
	return m
}

// Metrics returns an expvar.Map of c's activity counters, suitable for
// publishing under http.DefaultServeMux via expvar.Publish, or for reading
// directly in a test.
func (c *Context) Metrics() *expvar.Map { return c.metrics.emap }
