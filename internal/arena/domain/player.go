package domain

// Player is a member of a session roster. The role set is immutable once
// assigned; the alive flag flips exactly once, on elimination.
type Player struct {
	// ID is the URL-safe player identifier.
	ID string `json:"id"`
	// Name is the persona display name, materialized before role assignment.
	Name string `json:"name"`
	// Roles is the set of roles the player holds simultaneously.
	Roles RoleSet `json:"roles"`
	// Alive is true until the player is eliminated.
	Alive bool `json:"alive"`
	// LastProtectedTargetID records a doctor's previous protect target for
	// the optional no-repeat-protect rule.
	LastProtectedTargetID string `json:"last_protected_target_id,omitempty"`
}

// HasRole reports whether the player holds the given role. Villager behavior
// is baseline for every player, so RoleVillager matches everyone.
func (p Player) HasRole(r Role) bool {
	if r == RoleVillager {
		return true
	}
	return p.Roles.Has(r)
}

// Clone returns an independent copy of the player.
func (p Player) Clone() Player {
	clone := p
	clone.Roles = p.Roles.Clone()
	return clone
}
