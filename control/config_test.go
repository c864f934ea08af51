package control_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/momentics/flowport/control"
)

func TestDefaultConfigValid(t *testing.T) {
	require.NoError(t, control.DefaultConfig().Validate())
}

func TestLoadConfigOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flowport.yaml")
	require.NoError(t, os.WriteFile(path, []byte(
		"pool_quantum: 8192\ntoken_capacity: 4\n"), 0o644))

	cfg, err := control.LoadConfig(path)
	require.NoError(t, err)
	require.Equal(t, 8192, cfg.PoolQuantum)
	require.Equal(t, 4, cfg.TokenCapacity)
	// untouched keys keep their defaults
	require.Equal(t, control.DefaultConfig().PoolCapacity, cfg.PoolCapacity)
}

func TestLoadConfigRejectsBadTuning(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flowport.yaml")
	require.NoError(t, os.WriteFile(path, []byte("pool_quantum: -1\n"), 0o644))

	_, err := control.LoadConfig(path)
	require.Error(t, err)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := control.LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestStoreReloadListeners(t *testing.T) {
	s := control.NewStore(control.DefaultConfig())

	var seen []int
	s.OnReload(func(c control.Config) { seen = append(seen, c.TokenCapacity) })

	next := control.DefaultConfig()
	next.TokenCapacity = 3
	require.NoError(t, s.Replace(next))
	require.Equal(t, []int{3}, seen)
	require.Equal(t, 3, s.Snapshot().TokenCapacity)

	bad := control.DefaultConfig()
	bad.QueueDepth = 0
	require.Error(t, s.Replace(bad))
	require.Equal(t, []int{3}, seen, "rejected config must not dispatch")
}
