package msgcat

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddedRender(t *testing.T) {
	c, err := New("")
	require.NoError(t, err)

	s, err := c.Render("error.room_full", map[string]any{"Room": "R1"})
	require.NoError(t, err)
	assert.Equal(t, "Both seats in room R1 are taken.", s)

	s, err = c.Render("error.illegal_move", map[string]any{"Move": "e2e5", "From": "e2", "Hints": "e3, e4"})
	require.NoError(t, err)
	assert.Equal(t, "e2e5 is not a legal move. Legal moves from e2: e3, e4.", s)

	s, err = c.Render("game.ended.checkmate", map[string]any{"Winner": "Black"})
	require.NoError(t, err)
	assert.Equal(t, "Checkmate. Black wins.", s)
}

func TestMissingKeyAndFallback(t *testing.T) {
	c := MustDefault()

	_, err := c.Render("nope", nil)
	require.Error(t, err)

	_, err = c.Render("error.room_full", map[string]any{})
	require.Error(t, err)

	assert.Equal(t, "fallback", c.Text("error.room_full", map[string]any{}, "fallback"))
	assert.Equal(t, "It is not your turn.", c.Text("error.not_your_turn", nil, "x"))

	var nilCat *Catalog
	assert.Equal(t, "x", nilCat.Text("error.internal", nil, "x"))
}

func TestOverrideDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.yaml"), []byte("error:\n  not_your_turn: \"Wait.\"\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ignore.txt"), []byte("x"), 0o644))

	c, err := New(dir)
	require.NoError(t, err)
	assert.Equal(t, "Wait.", c.Text("error.not_your_turn", nil, ""))
	assert.Equal(t, "Something went wrong.", c.Text("error.internal", nil, ""))
}

func TestOverrideDuplicateKeys(t *testing.T) {
	dir := t.TempDir()
	body := []byte("error:\n  internal: \"x\"\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.yaml"), body, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.yml"), body, 0o644))

	_, err := New(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate override key")
}

func TestRejectsNonStringLeaves(t *testing.T) {
	_, err := parseYAMLToFlat([]byte("a:\n  b: 3\n"))
	require.Error(t, err)
}
