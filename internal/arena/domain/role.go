package domain

import (
	"encoding/json"
	"sort"
)

// Role identifies a game role a player may hold.
type Role string

const (
	// RoleMafia marks a player as part of the mafia faction.
	RoleMafia Role = "MAFIA"
	// RoleDoctor may protect one player per night.
	RoleDoctor Role = "DOCTOR"
	// RoleSheriff may investigate one player per night.
	RoleSheriff Role = "SHERIFF"
	// RoleVigilante may fire a single shot per session.
	RoleVigilante Role = "VIGILANTE"
	// RoleVillager is the implicit baseline behavior of every player.
	RoleVillager Role = "VILLAGER"
)

// IsValid reports whether the role is a known game role.
func (r Role) IsValid() bool {
	switch r {
	case RoleMafia, RoleDoctor, RoleSheriff, RoleVigilante, RoleVillager:
		return true
	}
	return false
}

// RoleSet is the set of roles a player holds simultaneously. A player is
// never represented by a single role discriminant: membership checks go
// through Has so multi-role holders (e.g. SHERIFF and MAFIA) are always
// counted by every rule.
type RoleSet struct {
	roles map[Role]struct{}
}

// NewRoleSet builds a role set from the given roles.
func NewRoleSet(roles ...Role) RoleSet {
	set := RoleSet{roles: make(map[Role]struct{}, len(roles))}
	for _, r := range roles {
		set.roles[r] = struct{}{}
	}
	return set
}

// Has reports whether the set contains the role.
func (s RoleSet) Has(r Role) bool {
	_, ok := s.roles[r]
	return ok
}

// Add returns a copy of the set with the role added.
func (s RoleSet) Add(r Role) RoleSet {
	next := make(map[Role]struct{}, len(s.roles)+1)
	for role := range s.roles {
		next[role] = struct{}{}
	}
	next[r] = struct{}{}
	return RoleSet{roles: next}
}

// Len returns the number of roles in the set.
func (s RoleSet) Len() int {
	return len(s.roles)
}

// List returns the roles sorted lexicographically for deterministic output.
func (s RoleSet) List() []Role {
	out := make([]Role, 0, len(s.roles))
	for r := range s.roles {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Clone returns an independent copy of the set.
func (s RoleSet) Clone() RoleSet {
	return NewRoleSet(s.List()...)
}

// MarshalJSON encodes the set as a sorted array of role names.
func (s RoleSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.List())
}

// UnmarshalJSON decodes a role array into the set.
func (s *RoleSet) UnmarshalJSON(data []byte) error {
	var roles []Role
	if err := json.Unmarshal(data, &roles); err != nil {
		return err
	}
	*s = NewRoleSet(roles...)
	return nil
}
