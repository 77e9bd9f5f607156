package state

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/wfunc/thiefhunt/models"
)

func TestCanTransition(t *testing.T) {
	allowed := [][2]models.RoundStatus{
		{models.RoundAssigning, models.RoundActive},
		{models.RoundActive, models.RoundResolved},
		{models.RoundActive, models.RoundAbandoned},
	}
	for _, tr := range allowed {
		assert.True(t, CanTransition(tr[0], tr[1]), "%s -> %s", tr[0], tr[1])
	}

	denied := [][2]models.RoundStatus{
		{models.RoundAssigning, models.RoundResolved},
		{models.RoundResolved, models.RoundActive},
		{models.RoundResolved, models.RoundAbandoned},
		{models.RoundAbandoned, models.RoundActive},
		{models.RoundActive, models.RoundAssigning},
	}
	for _, tr := range denied {
		assert.False(t, CanTransition(tr[0], tr[1]), "%s -> %s", tr[0], tr[1])
	}
}

func TestIsTerminal(t *testing.T) {
	assert.True(t, IsTerminal(models.RoundResolved))
	assert.True(t, IsTerminal(models.RoundAbandoned))
	assert.False(t, IsTerminal(models.RoundActive))
	assert.False(t, IsTerminal(models.RoundAssigning))
}
