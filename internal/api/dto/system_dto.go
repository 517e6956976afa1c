package dto

// LoginRequest authenticates the operator.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// StatsResponse reports ticket statistics.
type StatsResponse struct {
	Open              int64            `json:"open"`
	Accepted          int64            `json:"accepted"`
	Closed            int64            `json:"closed"`
	ByType            map[string]int64 `json:"by_type"`
	MeanAcceptSeconds float64          `json:"mean_accept_seconds"`
}

// ReconcileResponse reports one recovery pass.
type ReconcileResponse struct {
	ConfigRepaired  bool `json:"config_repaired"`
	GroupsDropped   int  `json:"groups_dropped"`
	TicketsChecked  int  `json:"tickets_checked"`
	TicketsReclosed int  `json:"tickets_reclosed"`
	NumbersRepaired int  `json:"numbers_repaired"`
}

// AdminEntryRequest mutates an admin set.
type AdminEntryRequest struct {
	Scope      string `json:"scope"`
	Identifier string `json:"identifier"`
	Kind       string `json:"kind"`
}

// InteractionRequest is a platform control callback re-entering the
// lifecycle: action is one of create, accept, close.
type InteractionRequest struct {
	Action      string `json:"action"`
	TicketType  string `json:"ticket_type,omitempty"`
	ContainerID string `json:"container_id,omitempty"`
	ActorID     string `json:"actor_id"`
	Reason      string `json:"reason,omitempty"`
}
