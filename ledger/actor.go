package ledger

import "fmt"

// Role decides what an Actor may do. Only admins write.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleGuest Role = "guest"
)

// Actor is the caller of a ledger operation. It is passed explicitly into
// every mutation instead of being read from ambient session state.
type Actor struct {
	ID   string
	Role Role
}

// SystemActor is used by tooling that writes on its own behalf.
func SystemActor() Actor {
	return Actor{ID: "system", Role: RoleAdmin}
}

func (a Actor) CanWrite() bool { return a.Role == RoleAdmin }

func (a Actor) String() string {
	if a.ID == "" {
		return "anonymous"
	}
	return a.ID
}

func (a Actor) authorize(op string) error {
	if !a.CanWrite() {
		return fmt.Errorf("%w: %s (role %q) may not %s", ErrForbidden, a, a.Role, op)
	}
	return nil
}
