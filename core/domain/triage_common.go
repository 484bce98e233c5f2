// Package domain contains the core entities of the triage worker.
package domain

import "time"

// Direction of a message relative to the mailbox owner.
type Direction string

const (
	DirectionInbound  Direction = "inbound"
	DirectionOutbound Direction = "outbound"
)

// ThreadState is the lifecycle tag of a conversation thread.
// Transitions are owner-controlled; the resolver only ever reads it.
type ThreadState string

const (
	ThreadStateActive   ThreadState = "active"
	ThreadStateIdle     ThreadState = "idle"
	ThreadStateArchived ThreadState = "archived"
)

// DealType distinguishes which side of a deal the counterparty is on.
type DealType string

const (
	DealTypeBuyer  DealType = "buyer"
	DealTypeSeller DealType = "seller"
)

// DealState tracks how far along a deal conversation is.
type DealState string

const (
	DealStateLead        DealState = "lead"
	DealStateNegotiating DealState = "negotiating"
	DealStateClosing     DealState = "closing"
	DealStateIdle        DealState = "idle"
)

// Clock abstracts time for deterministic tests.
type Clock interface {
	Now() time.Time
}

// SystemClock is the production Clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }
