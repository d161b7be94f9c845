package report

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAssignColors_DefaultCycle(t *testing.T) {
	groups := []string{"L", "U-Lf", "U-Lm", "U-Lb", "U2-L", "extra"}

	colors, err := AssignColors(groups, "")
	require.NoError(t, err)
	require.Len(t, colors, len(groups))

	for i, g := range groups[:5] {
		assert.Equal(t, DefaultColors[i], colors[g], g)
	}
	assert.Equal(t, DefaultColors[0], colors["extra"])
}

func TestAssignColors_DuplicatesKeepFirstSlot(t *testing.T) {
	colors, err := AssignColors([]string{"a", "b", "a", "c"}, "")
	require.NoError(t, err)
	assert.Len(t, colors, 3)
	assert.Equal(t, DefaultColors[0], colors["a"])
	assert.Equal(t, DefaultColors[1], colors["b"])
	assert.Equal(t, DefaultColors[2], colors["c"], "a repeated group does not consume a color")
}

func TestAssignColors_Brewer(t *testing.T) {
	groups := make([]string, 12)
	for i := range groups {
		groups[i] = string(rune('a' + i))
	}

	colors, err := AssignColors(groups, "Set1")
	require.NoError(t, err)
	// Set1 stops at nine colors, so the tenth group wraps around.
	assert.Equal(t, colors["a"], colors["j"])
	assert.NotEqual(t, colors["a"], colors["b"])

	small, err := AssignColors([]string{"x"}, "Dark2")
	require.NoError(t, err)
	assert.NotNil(t, small["x"])
}

func TestAssignColors_UnknownPalette(t *testing.T) {
	_, err := AssignColors([]string{"a"}, "NoSuchPalette")
	assert.ErrorIs(t, err, ErrUnknownPalette)

	_, err = AssignColors([]string{"a"}, "Blues") // sequential, not qualitative
	assert.ErrorIs(t, err, ErrUnknownPalette)
}
