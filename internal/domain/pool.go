package domain

// PoolKind partitions container groups by intent.
type PoolKind string

const (
	PoolKindOpen   PoolKind = "open"
	PoolKindClosed PoolKind = "closed"
)

// PoolEntry is one container group in a category pool. Pools are
// append-only: Position orders groups by creation, and the allocator always
// prefers the lowest-positioned group with spare capacity.
type PoolEntry struct {
	Kind     PoolKind
	GroupID  string
	Position int
}
