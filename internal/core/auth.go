package core

// Actor identifies the caller of a service operation. Identity resolution
// happens upstream; the service only consumes the result.
type Actor struct {
	UserID string
	OrgID  string
	Role   string
}

// RolePolicy decides whether a role may manage reservations. Implementations
// are injected at service construction so deployments can plug in their own
// authorization source.
type RolePolicy interface {
	CanManageReservations(role string) bool
}

// StaticRolePolicy allows a fixed set of roles.
type StaticRolePolicy map[string]struct{}

// NewStaticRolePolicy builds a policy allowing exactly the given roles.
func NewStaticRolePolicy(roles ...string) StaticRolePolicy {
	policy := make(StaticRolePolicy, len(roles))
	for _, role := range roles {
		policy[role] = struct{}{}
	}
	return policy
}

// CanManageReservations implements RolePolicy.
func (p StaticRolePolicy) CanManageReservations(role string) bool {
	_, ok := p[role]
	return ok
}

// DefaultRolePolicy is the policy applied when none is configured.
func DefaultRolePolicy() RolePolicy {
	return NewStaticRolePolicy("admin", "manager", "operator")
}
