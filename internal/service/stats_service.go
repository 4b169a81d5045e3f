package service

import (
	"sync"
	"sync/atomic"

	"github.com/Stream-Gate/Streamgate/pkg/frame"
)

// StatsService tracks runtime relay statistics using lock-free atomic
// counters. All operations are safe for concurrent use; the per-reason
// auth failure map takes a mutex off the relay hot path.
type StatsService struct {
	connections     atomic.Int64
	sessionsStarted atomic.Int64
	sessionsActive  atomic.Int64
	dialFailures    atomic.Int64
	framesDropped   atomic.Int64

	framesClientToUpstream atomic.Int64
	framesUpstreamToClient atomic.Int64
	bytesClientToUpstream  atomic.Int64
	bytesUpstreamToClient  atomic.Int64

	mu           sync.Mutex
	authFailures map[string]int64
}

// NewStatsService creates a StatsService with all counters at zero.
func NewStatsService() *StatsService {
	return &StatsService{
		authFailures: make(map[string]int64),
	}
}

// RecordConnection counts an accepted inbound connection.
func (s *StatsService) RecordConnection() {
	s.connections.Add(1)
}

// RecordAuthFailure counts a rejected handshake by reason.
func (s *StatsService) RecordAuthFailure(reason string) {
	if reason == "" {
		return
	}
	s.mu.Lock()
	s.authFailures[reason]++
	s.mu.Unlock()
}

// RecordDialFailure counts an upstream connect failure.
func (s *StatsService) RecordDialFailure() {
	s.dialFailures.Add(1)
}

// RecordSessionStarted counts a successfully paired session.
func (s *StatsService) RecordSessionStarted() {
	s.sessionsStarted.Add(1)
	s.sessionsActive.Add(1)
}

// RecordSessionEnded marks a session as torn down.
func (s *StatsService) RecordSessionEnded() {
	s.sessionsActive.Add(-1)
}

// RecordFrames adds forwarded frame and byte counts for one direction.
func (s *StatsService) RecordFrames(dir frame.Direction, frames, bytes int64) {
	switch dir {
	case frame.ClientToUpstream:
		s.framesClientToUpstream.Add(frames)
		s.bytesClientToUpstream.Add(bytes)
	case frame.UpstreamToClient:
		s.framesUpstreamToClient.Add(frames)
		s.bytesUpstreamToClient.Add(bytes)
	}
}

// RecordDropped adds undecodable frame drops.
func (s *StatsService) RecordDropped(n int64) {
	if n > 0 {
		s.framesDropped.Add(n)
	}
}

// Stats holds a snapshot of all counters at a point in time.
type Stats struct {
	Connections            int64            `json:"connections"`
	SessionsStarted        int64            `json:"sessions_started"`
	SessionsActive         int64            `json:"sessions_active"`
	AuthFailures           map[string]int64 `json:"auth_failures"`
	UpstreamDialFailures   int64            `json:"upstream_dial_failures"`
	FramesClientToUpstream int64            `json:"frames_client_to_upstream"`
	FramesUpstreamToClient int64            `json:"frames_upstream_to_client"`
	FramesDropped          int64            `json:"frames_dropped"`
	BytesClientToUpstream  int64            `json:"bytes_client_to_upstream"`
	BytesUpstreamToClient  int64            `json:"bytes_upstream_to_client"`
}

// GetStats returns a snapshot of all counters. The snapshot is consistent
// per-counter but not atomically across all counters.
func (s *StatsService) GetStats() Stats {
	s.mu.Lock()
	af := make(map[string]int64, len(s.authFailures))
	for k, v := range s.authFailures {
		af[k] = v
	}
	s.mu.Unlock()

	return Stats{
		Connections:            s.connections.Load(),
		SessionsStarted:        s.sessionsStarted.Load(),
		SessionsActive:         s.sessionsActive.Load(),
		AuthFailures:           af,
		UpstreamDialFailures:   s.dialFailures.Load(),
		FramesClientToUpstream: s.framesClientToUpstream.Load(),
		FramesUpstreamToClient: s.framesUpstreamToClient.Load(),
		FramesDropped:          s.framesDropped.Load(),
		BytesClientToUpstream:  s.bytesClientToUpstream.Load(),
		BytesUpstreamToClient:  s.bytesUpstreamToClient.Load(),
	}
}

// Reset sets all counters to zero.
func (s *StatsService) Reset() {
	s.connections.Store(0)
	s.sessionsStarted.Store(0)
	s.sessionsActive.Store(0)
	s.dialFailures.Store(0)
	s.framesDropped.Store(0)
	s.framesClientToUpstream.Store(0)
	s.framesUpstreamToClient.Store(0)
	s.bytesClientToUpstream.Store(0)
	s.bytesUpstreamToClient.Store(0)

	s.mu.Lock()
	s.authFailures = make(map[string]int64)
	s.mu.Unlock()
}
