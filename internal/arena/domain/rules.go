package domain

import (
	"math/rand/v2"
	"strconv"

	apperrors "github.com/louisbranch/nightfall/internal/platform/errors"
)

// MinPlayers is the smallest roster the role-scaling rule supports.
const MinPlayers = 5

// WinState is the result of win-condition evaluation.
type WinState string

const (
	// WinOngoing indicates neither faction has won.
	WinOngoing WinState = "ONGOING"
	// WinTown indicates all mafia-role holders are dead.
	WinTown WinState = "TOWN_WINS"
	// WinMafia indicates mafia parity or dominance has been reached.
	WinMafia WinState = "MAFIA_WINS"
)

// EvaluateWin evaluates the win condition over the given players. Only alive
// players are counted. Mafia wins when alive mafia-role holders are at least
// as many as alive players without the mafia role; town wins when no alive
// player holds the mafia role.
func EvaluateWin(players []Player) WinState {
	mafia, town := 0, 0
	for _, p := range players {
		if !p.Alive {
			continue
		}
		if p.Roles.Has(RoleMafia) {
			mafia++
		} else {
			town++
		}
	}
	if mafia == 0 {
		return WinTown
	}
	if mafia >= town {
		return WinMafia
	}
	return WinOngoing
}

// ScaleRoles produces the deterministic role multiset for a roster of n
// players: base roles {1 MAFIA, 1 DOCTOR, 1 SHERIFF}, a VIGILANTE when n >= 6,
// extra MAFIA-only entries until the mafia total reaches floor(n/4) (minimum
// one), and VILLAGER-only entries for the remaining slots. Reproducible from
// n alone.
func ScaleRoles(n int) ([]RoleSet, error) {
	if n < MinPlayers {
		return nil, apperrors.WithMetadata(
			apperrors.CodeSessionPlayerCountTooLow,
			"at least 5 players are required",
			map[string]string{"player_count": strconv.Itoa(n)},
		)
	}

	sets := []RoleSet{
		NewRoleSet(RoleMafia),
		NewRoleSet(RoleDoctor),
		NewRoleSet(RoleSheriff),
	}
	if n >= 6 {
		sets = append(sets, NewRoleSet(RoleVigilante))
	}

	mafiaTotal := n / 4
	if mafiaTotal < 1 {
		mafiaTotal = 1
	}
	for mafia := 1; mafia < mafiaTotal; mafia++ {
		sets = append(sets, NewRoleSet(RoleMafia))
	}

	for len(sets) < n {
		sets = append(sets, NewRoleSet(RoleVillager))
	}
	return sets, nil
}

// ShuffleRoles returns a deterministic permutation of the role multiset for
// the given seed. Role binding happens index-by-index against a roster whose
// personas were materialized before any role existed.
func ShuffleRoles(sets []RoleSet, seed uint64) []RoleSet {
	shuffled := make([]RoleSet, len(sets))
	copy(shuffled, sets)
	rng := rand.New(rand.NewPCG(seed, seed))
	rng.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})
	return shuffled
}
