package shuffle

import (
	"fmt"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wfunc/thiefhunt/models"
)

func newRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

func testPlayers(n int) []models.Player {
	players := make([]models.Player, n)
	for i := range players {
		players[i] = models.Player{ID: uint(i + 1), Name: fmt.Sprintf("p%d", i+1)}
	}
	return players
}

func testCatalog(neutral int) []models.Role {
	roles := []models.Role{
		{ID: 1, Name: "Police", WinPoints: 1000, IsInvestigator: true},
		{ID: 2, Name: "Thief", WinPoints: 1500, IsEvader: true},
	}
	for i := 0; i < neutral; i++ {
		roles = append(roles, models.Role{ID: uint(3 + i), Name: fmt.Sprintf("Neutral%d", i), WinPoints: 100 * (i + 1)})
	}
	return roles
}

func countSides(assignments []Assignment) map[models.Side]int {
	counts := make(map[models.Side]int)
	for _, a := range assignments {
		counts[a.Role.Side()]++
	}
	return counts
}

func TestAssign_RoleExclusivity(t *testing.T) {
	rng := newRand(1)
	for n := MinPlayers; n <= MaxPlayers; n++ {
		for _, neutral := range []int{1, 3, 10} {
			result, err := Assign(testPlayers(n), testCatalog(neutral), nil, rng)
			require.NoError(t, err, "n=%d neutral=%d", n, neutral)
			require.Len(t, result.Assignments, n)

			counts := countSides(result.Assignments)
			assert.Equal(t, 1, counts[models.SideInvestigator], "n=%d", n)
			assert.Equal(t, 1, counts[models.SideEvader], "n=%d", n)
			assert.Equal(t, n-2, counts[models.SideNeutral], "n=%d", n)

			seen := make(map[uint]bool)
			for _, a := range result.Assignments {
				assert.False(t, seen[a.Player.ID], "player dealt twice")
				seen[a.Player.ID] = true
			}
		}
	}
}

func TestAssign_PadsWithFirstNeutral(t *testing.T) {
	result, err := Assign(testPlayers(6), testCatalog(1), nil, newRand(2))
	require.NoError(t, err)
	for _, a := range result.Assignments {
		if a.Role.Side() == models.SideNeutral {
			assert.Equal(t, "Neutral0", a.Role.Name)
		}
	}
}

func TestAssign_DistinctNeutralsWhenCatalogIsLarge(t *testing.T) {
	result, err := Assign(testPlayers(8), testCatalog(10), nil, newRand(3))
	require.NoError(t, err)
	names := make(map[string]bool)
	for _, a := range result.Assignments {
		assert.False(t, names[a.Role.Name], "role %s dealt twice", a.Role.Name)
		names[a.Role.Name] = true
	}
}

func TestAssign_PlayerCountBounds(t *testing.T) {
	_, err := Assign(testPlayers(1), testCatalog(3), nil, newRand(4))
	assert.ErrorIs(t, err, ErrPlayerCount)

	_, err = Assign(testPlayers(13), testCatalog(3), nil, newRand(4))
	assert.ErrorIs(t, err, ErrPlayerCount)
}

func TestAssign_MissingSpecialRoles(t *testing.T) {
	var assignErr *AssignmentError

	noInvestigator := testCatalog(2)[1:]
	_, err := Assign(testPlayers(3), noInvestigator, nil, newRand(5))
	require.ErrorAs(t, err, &assignErr)

	noEvader := append([]models.Role{testCatalog(0)[0]}, testCatalog(2)[2:]...)
	_, err = Assign(testPlayers(3), noEvader, nil, newRand(5))
	require.ErrorAs(t, err, &assignErr)

	// One role carrying both flags is not a distinct evader.
	both := []models.Role{{ID: 1, Name: "Both", IsInvestigator: true, IsEvader: true}, {ID: 2, Name: "Civilian"}}
	_, err = Assign(testPlayers(2), both, nil, newRand(5))
	require.ErrorAs(t, err, &assignErr)
}

func TestAssign_NoNeutralRoles(t *testing.T) {
	_, err := Assign(testPlayers(2), testCatalog(0), nil, newRand(6))
	require.NoError(t, err)

	var assignErr *AssignmentError
	_, err = Assign(testPlayers(3), testCatalog(0), nil, newRand(6))
	require.ErrorAs(t, err, &assignErr)
}

func TestAssign_FirstRoundAcceptsFirstPairing(t *testing.T) {
	result, err := Assign(testPlayers(5), testCatalog(3), nil, newRand(7))
	require.NoError(t, err)
	assert.Equal(t, 1, result.Attempts)

	result, err = Assign(testPlayers(5), testCatalog(3), &Previous{}, newRand(7))
	require.NoError(t, err)
	assert.Equal(t, 1, result.Attempts)
}

func TestAssign_NeverAcceptsRepeatBeforeRetriesExhausted(t *testing.T) {
	players := testPlayers(4)
	prev := &Previous{InvestigatorID: 1, EvaderID: 2}
	for seed := uint64(0); seed < 500; seed++ {
		result, err := Assign(players, testCatalog(3), prev, newRand(seed))
		require.NoError(t, err)
		repeated := result.Investigator().Player.ID == prev.InvestigatorID ||
			result.Evader().Player.ID == prev.EvaderID
		if repeated {
			assert.Equal(t, MaxAttempts, result.Attempts, "seed %d accepted a repeat early", seed)
		}
		assert.LessOrEqual(t, result.Attempts, MaxAttempts)
	}
}

func TestAssign_TwoPlayersAlwaysSwapWhenPossible(t *testing.T) {
	// With two players the only non-repeating deal swaps the roles.
	players := testPlayers(2)
	prev := &Previous{InvestigatorID: 1, EvaderID: 2}
	swapped := 0
	for seed := uint64(0); seed < 200; seed++ {
		result, err := Assign(players, testCatalog(0), prev, newRand(seed))
		require.NoError(t, err)
		if result.Investigator().Player.ID == 2 {
			swapped++
		}
	}
	// A repeat survives only if all five draws repeat: (1/2)^5.
	assert.Greater(t, swapped, 180)
}

func TestAssign_RepeatRateBelowUniform(t *testing.T) {
	const trials = 4000
	players := testPlayers(4)
	prev := &Previous{InvestigatorID: 1, EvaderID: 2}
	rng := newRand(42)

	repeats := 0
	for i := 0; i < trials; i++ {
		result, err := Assign(players, testCatalog(3), prev, rng)
		require.NoError(t, err)
		if result.Investigator().Player.ID == prev.InvestigatorID || result.Evader().Player.ID == prev.EvaderID {
			repeats++
		}
	}

	// A single uniform deal repeats with probability 1/4 + 1/4 - 1/12 = 5/12;
	// five draws bring that down to about (5/12)^5.
	uniform := 5.0 / 12.0
	assert.Less(t, float64(repeats)/trials, uniform/4)
}

func TestCandidates_Order(t *testing.T) {
	candidates, err := Candidates(4, testCatalog(5), newRand(8))
	require.NoError(t, err)
	require.Len(t, candidates, 4)
	assert.True(t, candidates[0].IsInvestigator)
	assert.True(t, candidates[1].IsEvader)
	assert.Equal(t, models.SideNeutral, candidates[2].Side())
	assert.Equal(t, models.SideNeutral, candidates[3].Side())
}
