package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHeatColor(t *testing.T) {
	assert.Equal(t, heatScale[0], heatColor(0))
	assert.Equal(t, heatScale[0], heatColor(-3))
	assert.Equal(t, heatScale[2], heatColor(2))
	assert.Equal(t, heatScale[len(heatScale)-1], heatColor(1000))
}
