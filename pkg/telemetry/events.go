package telemetry

import (
	"fmt"
	"time"

	"github.com/golang/protobuf/proto"

	"github.com/robotalks/stepctl/pkg/stepper"
	"github.com/robotalks/stepctl/pkg/supervisor"
)

// EventKind enumerates Event types.
type EventKind int32

// Event kinds.
const (
	EventUnknown        EventKind = 0
	EventSessionStarted EventKind = 1
	EventSessionEnded   EventKind = 2
	EventLaunchFailed   EventKind = 3
	EventMotion         EventKind = 4
)

var eventKindNames = map[EventKind]string{
	EventUnknown:        "UNKNOWN",
	EventSessionStarted: "SESSION_STARTED",
	EventSessionEnded:   "SESSION_ENDED",
	EventLaunchFailed:   "LAUNCH_FAILED",
	EventMotion:         "MOTION",
}

func (k EventKind) String() string {
	if name, ok := eventKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("EventKind(%d)", int32(k))
}

// Event is the protobuf message published to <device-id>/events.
type Event struct {
	Kind                 EventKind `protobuf:"varint,1,opt,name=kind,proto3" json:"kind,omitempty"`
	SessionId            string    `protobuf:"bytes,2,opt,name=session_id,json=sessionId,proto3" json:"session_id,omitempty"`
	TimestampMs          int64     `protobuf:"varint,3,opt,name=timestamp_ms,json=timestampMs,proto3" json:"timestamp_ms,omitempty"`
	Requested            int32     `protobuf:"varint,4,opt,name=requested,proto3" json:"requested,omitempty"`
	Completed            int32     `protobuf:"varint,5,opt,name=completed,proto3" json:"completed,omitempty"`
	Aborted              bool      `protobuf:"varint,6,opt,name=aborted,proto3" json:"aborted,omitempty"`
	ElapsedUs            int64     `protobuf:"varint,7,opt,name=elapsed_us,json=elapsedUs,proto3" json:"elapsed_us,omitempty"`
	Error                string    `protobuf:"bytes,8,opt,name=error,proto3" json:"error,omitempty"`
	XXX_NoUnkeyedLiteral struct{}  `json:"-"`
	XXX_unrecognized     []byte    `json:"-"`
	XXX_sizecache        int32     `json:"-"`
}

// Reset implements proto.Message.
func (m *Event) Reset() { *m = Event{} }

// String implements proto.Message.
func (m *Event) String() string { return proto.CompactTextString(m) }

// ProtoMessage implements proto.Message.
func (*Event) ProtoMessage() {}

// Encode marshals the event.
func (m *Event) Encode() ([]byte, error) {
	return proto.Marshal(m)
}

// DecodeEvent unmarshals an event.
func DecodeEvent(data []byte) (*Event, error) {
	var m Event
	if err := proto.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// EventFromMessage converts a loop message to an Event.
// It returns nil for messages not carried as events.
func EventFromMessage(msg interface{}, now time.Time) *Event {
	ev := &Event{TimestampMs: now.UnixNano() / int64(time.Millisecond)}
	switch m := msg.(type) {
	case *supervisor.SessionStarted:
		ev.Kind, ev.SessionId = EventSessionStarted, m.ID
		setTimestamp(ev, m.At)
	case *supervisor.SessionEnded:
		ev.Kind, ev.SessionId = EventSessionEnded, m.ID
		ev.Error = errString(m.Err)
		setTimestamp(ev, m.At)
	case *supervisor.LaunchFailed:
		ev.Kind = EventLaunchFailed
		ev.Error = errString(m.Err)
		setTimestamp(ev, m.At)
	case *stepper.MotionReport:
		ev.Kind, ev.SessionId = EventMotion, m.Requester
		ev.Requested, ev.Completed = int32(m.Requested), int32(m.Completed)
		ev.Aborted = m.Aborted
		ev.ElapsedUs = int64(m.Elapsed / time.Microsecond)
	default:
		return nil
	}
	return ev
}

func setTimestamp(ev *Event, at time.Time) {
	if !at.IsZero() {
		ev.TimestampMs = at.UnixNano() / int64(time.Millisecond)
	}
}

func errString(err error) string {
	if err != nil {
		return err.Error()
	}
	return ""
}
