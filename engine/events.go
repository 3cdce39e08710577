package engine

import (
	"github.com/arcreflex/loom-engine-sub001/forest"
	"github.com/arcreflex/loom-engine-sub001/llm"
)

// EventType discriminates the events a generation stream emits.
type EventType string

const (
	EventProviderRequest  EventType = "provider_request"
	EventProviderResponse EventType = "provider_response"
	EventAssistantNode    EventType = "assistant_node"
	EventToolResultNode   EventType = "tool_result_node"
	EventDone             EventType = "done"
	EventError            EventType = "error"
)

// Event is the sealed union of generation stream events. A stream emits zero
// or more progress events followed by exactly one terminal DoneEvent or
// ErrorEvent.
type Event interface {
	Type() EventType
	isEvent()
}

// ProviderRequestEvent carries the outbound canonical request, emitted just
// before the provider call is issued.
type ProviderRequestEvent struct {
	Provider llm.ProviderName
	Request  llm.Request
}

func (ProviderRequestEvent) Type() EventType { return EventProviderRequest }
func (ProviderRequestEvent) isEvent()        {}

// ProviderResponseEvent carries the raw adapter result.
type ProviderResponseEvent struct {
	Provider llm.ProviderName
	Response *llm.Response
}

func (ProviderResponseEvent) Type() EventType { return EventProviderResponse }
func (ProviderResponseEvent) isEvent()        {}

// AssistantNodeEvent announces a persisted assistant turn.
type AssistantNodeEvent struct {
	Node *forest.ChildNode
}

func (AssistantNodeEvent) Type() EventType { return EventAssistantNode }
func (AssistantNodeEvent) isEvent()        {}

// ToolResultNodeEvent announces the persisted tool results of one loop
// iteration. Node is the last node of the appended chain.
type ToolResultNodeEvent struct {
	Node *forest.ChildNode
}

func (ToolResultNodeEvent) Type() EventType { return EventToolResultNode }
func (ToolResultNodeEvent) isEvent()        {}

// DoneEvent is the success terminal state. Final holds one terminal
// assistant node per requested completion.
type DoneEvent struct {
	Final []*forest.ChildNode
}

func (DoneEvent) Type() EventType { return EventDone }
func (DoneEvent) isEvent()        {}

// ErrorEvent is the failure terminal state.
type ErrorEvent struct {
	Err error
}

func (ErrorEvent) Type() EventType { return EventError }
func (ErrorEvent) isEvent()        {}
