package events

import "time"

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated     EventType = "ticket_created"
	EventTicketAccepted    EventType = "ticket_accepted"
	EventTicketMemberAdded EventType = "ticket_member_added"
	EventTicketClosed      EventType = "ticket_closed"
	EventRecoveryCompleted EventType = "recovery_completed"
)

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	TicketID  string      `json:"ticket_id,omitempty"`
	ActorID   string      `json:"actor_id,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	Number     int64  `json:"number"`
	TicketType string `json:"ticket_type"`
	CreatorID  string `json:"creator_id"`
	GroupID    string `json:"group_id"`
}

// TicketAcceptedPayload payload.
type TicketAcceptedPayload struct {
	Number     int64  `json:"number"`
	AcceptedBy string `json:"accepted_by"`
}

// TicketMemberAddedPayload payload.
type TicketMemberAddedPayload struct {
	MemberID string `json:"member_id"`
	AddedBy  string `json:"added_by"`
}

// TicketClosedPayload payload.
type TicketClosedPayload struct {
	Number   int64  `json:"number"`
	ClosedBy string `json:"closed_by"`
	Reason   string `json:"reason"`
}

// RecoveryCompletedPayload payload.
type RecoveryCompletedPayload struct {
	TicketsChecked  int `json:"tickets_checked"`
	TicketsReclosed int `json:"tickets_reclosed"`
	GroupsDropped   int `json:"groups_dropped"`
	NumbersRepaired int `json:"numbers_repaired"`
}
