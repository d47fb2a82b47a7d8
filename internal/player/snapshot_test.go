package player

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCloneIsIndependent(t *testing.T) {
	a := NewDefault("p1", "ari")
	b := a.Clone()

	b.WeaponsOwned["bone"] = 1
	b.AllowedMaps[0] = "Critter Falls"
	b.Gold = 0

	assert.NotContains(t, a.WeaponsOwned, "bone")
	assert.Equal(t, "Crash Landing", a.AllowedMaps[0])
	assert.Equal(t, float64(1000), a.Gold)
}
