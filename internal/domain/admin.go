package domain

// AdminScopeGlobal is the scope applying to every ticket type. Type scopes
// use TypeScope(name).
const AdminScopeGlobal = "global"

// TypeScope returns the admin-set scope for a ticket type.
func TypeScope(ticketType string) string {
	return "type:" + ticketType
}

// IdentifierKind classifies an admin-set entry. Roles expand to their
// current member list at the moment permissions are written, never cached.
type IdentifierKind string

const (
	IdentifierKindRole       IdentifierKind = "role"
	IdentifierKindIndividual IdentifierKind = "individual"
)

// AdminEntry is one identifier in an admin set. An identifier in the global
// scope must not also appear in a type scope; the resolver enforces this on
// every mutation.
type AdminEntry struct {
	Scope      string
	Identifier string
	Kind       IdentifierKind
}
