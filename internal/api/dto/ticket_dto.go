package dto

import "time"

// CreateTicketRequest opens a ticket on behalf of a member.
type CreateTicketRequest struct {
	Type      string `json:"type"`
	CreatorID string `json:"creator_id"`
}

// AcceptTicketRequest records the accepting staff member.
type AcceptTicketRequest struct {
	ActorID string `json:"actor_id"`
}

// AddMemberRequest adds a member to a ticket.
type AddMemberRequest struct {
	MemberID string `json:"member_id"`
	ActorID  string `json:"actor_id"`
}

// CloseTicketRequest closes a ticket.
type CloseTicketRequest struct {
	ActorID string `json:"actor_id"`
	Reason  string `json:"reason"`
}

// TicketSummary is the wire form of a ticket.
type TicketSummary struct {
	ContainerID string     `json:"container_id"`
	Number      int64      `json:"number"`
	Type        string     `json:"type"`
	State       string     `json:"state"`
	CreatorID   string     `json:"creator_id"`
	AcceptedBy  *string    `json:"accepted_by,omitempty"`
	ClosedBy    *string    `json:"closed_by,omitempty"`
	CloseReason *string    `json:"close_reason,omitempty"`
	Exported    bool       `json:"exported"`
	CreatedAt   time.Time  `json:"created_at"`
	AcceptedAt  *time.Time `json:"accepted_at,omitempty"`
	ClosedAt    *time.Time `json:"closed_at,omitempty"`
}

// MembershipEntry is the wire form of a membership row.
type MembershipEntry struct {
	MemberID string    `json:"member_id"`
	AddedBy  string    `json:"added_by"`
	AddedAt  time.Time `json:"added_at"`
}

// TransitionResponse reports an idempotent lifecycle transition.
type TransitionResponse struct {
	Changed bool   `json:"changed"`
	Note    string `json:"note,omitempty"`
}
