package cli

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRootCommandTree(t *testing.T) {
	root := NewRootCommand()

	for _, path := range [][]string{
		{"start"},
		{"serve"},
		{"migrate", "up"},
		{"migrate", "down"},
		{"seed"},
		{"worker", "run"},
	} {
		cmd, _, err := root.Find(path)
		require.NoError(t, err, path)
		require.NotEqual(t, root, cmd, path)
	}

	down, _, err := root.Find([]string{"migrate", "down"})
	require.NoError(t, err)
	steps, err := down.Flags().GetInt("steps")
	require.NoError(t, err)
	require.Equal(t, 1, steps)

	seed, _, err := root.Find([]string{"seed"})
	require.NoError(t, err)
	tables, err := seed.Flags().GetInt("tables")
	require.NoError(t, err)
	require.Equal(t, 5, tables)
}
