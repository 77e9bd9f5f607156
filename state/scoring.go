package state

import "github.com/wfunc/thiefhunt/models"

// OnWinningSide reports whether a side collects its win points. Neutral
// roles always do; the investigator and evader only when their side wins.
func OnWinningSide(side models.Side, winner models.Winner) bool {
	switch side {
	case models.SideInvestigator:
		return winner == models.InvestigatorSide
	case models.SideEvader:
		return winner == models.EvaderSide
	default:
		return true
	}
}

// Score is the final score of a participation. The losing special role gets
// 0; LosePoints is carried on the snapshot but not applied.
func Score(p models.Participation, winner models.Winner) int {
	if OnWinningSide(p.Side, winner) {
		return p.WinPoints
	}
	return 0
}
