package domain

import "time"

// ContainerKind selects the platform primitive hosting a ticket's
// conversation. The lifecycle and allocator logic are identical for both.
type ContainerKind string

const (
	ContainerKindChannel ContainerKind = "channel"
	ContainerKindThread  ContainerKind = "thread"
)

// Ticket is the aggregate for one support request. Its primary key is the
// platform-assigned container id; Number is the user-facing display number,
// globally unique and monotonically increasing.
type Ticket struct {
	ContainerID string
	Number      int64
	Type        string
	CreatorID   string
	AcceptedBy  *string
	AcceptedAt  *time.Time
	ClosedBy    *string
	ClosedAt    *time.Time
	CloseReason *string
	Accepted    bool
	Closed      bool
	Exported    bool
	CreatedAt   time.Time
}

// State reports the lifecycle state for display and control rebuilding.
func (t *Ticket) State() string {
	switch {
	case t.Closed:
		return "closed"
	case t.Accepted:
		return "accepted"
	default:
		return "open"
	}
}

// Membership grants a member visibility and write access to a ticket's
// container. At most one row per (ticket, member); immutable once created.
type Membership struct {
	ContainerID string
	MemberID    string
	AddedBy     string
	AddedAt     time.Time
}

// TicketStats aggregates counts for the operator surface.
type TicketStats struct {
	Open              int64
	Accepted          int64
	Closed            int64
	ByType            map[string]int64
	MeanAcceptLatency time.Duration
}
