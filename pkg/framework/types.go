package framework

import (
	"context"
	"time"
)

// Named is an abstraction for things with a name.
type Named interface {
	Name() string
}

// Runnable defines a generic interface for background runners.
type Runnable interface {
	Run(context.Context) error
}

// Message is anything posted into the loop for controllers to consume.
type Message interface{}

// Controller is invoked once per loop iteration.
type Controller interface {
	Control(ControlContext) error
}

// ControlFunc is the func form of Controller.
type ControlFunc func(ControlContext) error

// Control implements Controller.
func (f ControlFunc) Control(cc ControlContext) error {
	return f(cc)
}

// ControlContext provides the context of current control iteration.
type ControlContext interface {
	// Context retrieves context.Context of the loop.
	Context() context.Context
	// Time is when the iteration started.
	Time() time.Time
	// Messages retrieves the messages collected when
	// this iteration started.
	Messages() MessageStore

	LoopControl
}

// LoopControl exposes access to the running loop.
// It's safe to be used from any goroutine.
type LoopControl interface {
	// PostMessage enqueues a message for the next iteration.
	PostMessage(Message)
	// TriggerNext schedules the next iteration to run
	// immediately instead of waiting for the interval.
	TriggerNext()
}

// MessageStore provides access to the messages of one iteration.
type MessageStore interface {
	// Each visits messages in order. Returning true from fn
	// takes the message so controllers at lower priority
	// won't see it.
	Each(fn func(Message) (taken bool))
	// Len is the number of remaining messages.
	Len() int
}

// PriorityLevels is the total levels of priorities.
const PriorityLevels int = 8

// Predefined priority levels, lower runs first.
const (
	PrLvTop     int = 0
	PrLvControl int = 2
	PrLvNormal  int = 4
	PrLvReport  int = 6
	PrLvIdle    int = PriorityLevels - 1
)
