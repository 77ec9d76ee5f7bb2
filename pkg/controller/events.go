package controller

import "tipjar/pkg/models"

// EventType defines the type of event being broadcast.
type EventType string

const (
	EventStateUpdated         EventType = "state_updated"
	EventSessionDiscovered    EventType = "session_discovered"
	EventSnapshotUpdated      EventType = "snapshot_updated"
	EventActionStarted        EventType = "action_started"
	EventActionFinished       EventType = "action_finished"
	EventTransactionConfirmed EventType = "transaction_confirmed"
	EventAccountsChanged      EventType = "accounts_changed"
	EventChainChanged         EventType = "chain_changed"
)

// Event carries the state as it was right after the change.
type Event struct {
	Type  EventType        `json:"type"`
	State models.ViewState `json:"state"`
}

// Subscriber is a channel that receives events.
type Subscriber chan Event
