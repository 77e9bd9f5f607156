package state

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/wfunc/thiefhunt/models"
)

func TestScore(t *testing.T) {
	tests := []struct {
		name   string
		side   models.Side
		winner models.Winner
		want   int
	}{
		{"investigator wins", models.SideInvestigator, models.InvestigatorSide, 100},
		{"investigator loses", models.SideInvestigator, models.EvaderSide, 0},
		{"evader wins", models.SideEvader, models.EvaderSide, 100},
		{"evader loses", models.SideEvader, models.InvestigatorSide, 0},
		{"neutral with investigator win", models.SideNeutral, models.InvestigatorSide, 100},
		{"neutral with evader win", models.SideNeutral, models.EvaderSide, 100},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p := models.Participation{Side: tc.side, WinPoints: 100, LosePoints: 40}
			assert.Equal(t, tc.want, Score(p, tc.winner))
		})
	}
}

func TestScore_IsZeroOrWinPoints(t *testing.T) {
	for _, side := range []models.Side{models.SideInvestigator, models.SideEvader, models.SideNeutral} {
		for _, winner := range []models.Winner{models.InvestigatorSide, models.EvaderSide} {
			for _, points := range []int{1, 50, 1500} {
				p := models.Participation{Side: side, WinPoints: points, LosePoints: 999}
				got := Score(p, winner)
				if OnWinningSide(side, winner) {
					assert.Equal(t, points, got)
				} else {
					assert.Zero(t, got)
				}
			}
		}
	}
}
