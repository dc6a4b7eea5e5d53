package models

// Scope carries the tenant and caller identity for a single operation.
// It is passed explicitly; nothing in the module keeps it in ambient state.
type Scope struct {
	StoreID   int64
	UserID    *int64 // nil when the store owner is acting
	SessionID string
}

// IsOwner reports whether the caller is the store owner rather than a staff user.
func (s Scope) IsOwner() bool {
	return s.UserID == nil
}

func (s Scope) Validate() string {
	if s.StoreID <= 0 {
		return "store id is required"
	}
	return ""
}
