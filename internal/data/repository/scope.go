package repository

// Scope makes soft-delete filtering an explicit argument of every lookup.
type Scope int

const (
	ExcludeDeleted Scope = iota
	IncludeDeleted
)

// predicate returns the SQL filter for the scope, prefixed with AND.
func (s Scope) predicate(alias string) string {
	if s == IncludeDeleted {
		return ""
	}
	if alias != "" {
		return " AND " + alias + ".is_deleted = FALSE"
	}
	return " AND is_deleted = FALSE"
}
