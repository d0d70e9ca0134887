package visibility_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cory-johannsen/dicehall/internal/game/visibility"
)

// TestParse verifies stored strings map onto visibility states and unknown
// strings are rejected.
func TestParse(t *testing.T) {
	for _, s := range []string{"shared", "secret", "hidden"} {
		v, err := visibility.Parse(s)
		require.NoError(t, err)
		assert.True(t, v.Valid())
	}

	_, err := visibility.Parse("public")
	assert.ErrorIs(t, err, visibility.ErrInvalidVisibility)
}

// TestInitialRevealed verifies shared rolls start revealed and concealed
// visibilities start concealed.
func TestInitialRevealed(t *testing.T) {
	assert.True(t, visibility.Shared.InitialRevealed())
	assert.False(t, visibility.Secret.InitialRevealed())
	assert.False(t, visibility.Hidden.InitialRevealed())
}

// TestReveal verifies the transition is monotonic and idempotent.
func TestReveal(t *testing.T) {
	assert.True(t, visibility.Reveal(false), "false -> true")
	assert.True(t, visibility.Reveal(true), "revealing twice is a no-op")
	assert.True(t, visibility.Reveal(visibility.Reveal(false)), "never reverses")
}

// TestView covers the full projection table from the viewer's side.
func TestView(t *testing.T) {
	cases := []struct {
		name     string
		vis      visibility.Visibility
		revealed bool
		isLocal  bool
		want     visibility.Disclosure
	}{
		{"shared always full", visibility.Shared, false, false, visibility.DisclosureFull},
		{"shared local full", visibility.Shared, true, true, visibility.DisclosureFull},
		{"secret foreign placeholder", visibility.Secret, false, false, visibility.DisclosurePlaceholder},
		{"secret own full", visibility.Secret, false, true, visibility.DisclosureFull},
		{"secret revealed full", visibility.Secret, true, false, visibility.DisclosureFull},
		{"hidden foreign omitted", visibility.Hidden, false, false, visibility.DisclosureOmitted},
		{"hidden own full", visibility.Hidden, false, true, visibility.DisclosureFull},
		{"hidden revealed full", visibility.Hidden, true, false, visibility.DisclosureFull},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, visibility.View(tc.vis, tc.revealed, tc.isLocal))
		})
	}
}
