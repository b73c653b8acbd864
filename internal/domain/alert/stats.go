package alert

import (
	"maps"
	"time"
)

// Event is one classified message as seen by the manager.
type Event struct {
	// Kind is the classification result.
	Kind Kind
	// ControlID is MSH-10 of the inbound message.
	ControlID string
	// Identifier is the alert observation identifier, empty for non-reports.
	Identifier string
	// Peer is the remote address of the connection.
	Peer string
	// ReceivedAt is when the frame was read.
	ReceivedAt time.Time
}

// Clone returns a copy of the event.
func (e *Event) Clone() *Event {
	if e == nil {
		return nil
	}

	cloned := *e

	return &cloned
}

// Drop reasons counted in Stats.
const (
	DropFraming   = "framing"
	DropParse     = "parse"
	DropWrite     = "write"
	DropSerialize = "serialize"
)

// Stats summarises what the manager has processed since start.
type Stats struct {
	// StartedAt is when the manager started accepting connections.
	StartedAt time.Time
	// Classified counts messages per kind.
	Classified map[Kind]uint64
	// Dropped counts abandoned connections per drop reason.
	Dropped map[string]uint64
	// LastHeartbeat is the most recent heartbeat.
	LastHeartbeat *Event
	// LastAlarm is the most recent alarm.
	LastAlarm *Event
}

// NewStats returns empty statistics starting at startedAt.
func NewStats(startedAt time.Time) *Stats {
	return &Stats{
		StartedAt:  startedAt,
		Classified: make(map[Kind]uint64),
		Dropped:    make(map[string]uint64),
	}
}

// Record accounts for one classified message.
func (s *Stats) Record(event *Event) {
	s.Classified[event.Kind]++

	switch event.Kind {
	case KindHeartbeat:
		s.LastHeartbeat = event.Clone()
	case KindAlarm:
		s.LastAlarm = event.Clone()
	case KindAck, KindUnknown:
	}
}

// RecordDrop accounts for one abandoned connection.
func (s *Stats) RecordDrop(reason string) {
	s.Dropped[reason]++
}

// Clone returns a deep copy to avoid leaking internal references.
func (s *Stats) Clone() *Stats {
	return &Stats{
		StartedAt:     s.StartedAt,
		Classified:    maps.Clone(s.Classified),
		Dropped:       maps.Clone(s.Dropped),
		LastHeartbeat: s.LastHeartbeat.Clone(),
		LastAlarm:     s.LastAlarm.Clone(),
	}
}
