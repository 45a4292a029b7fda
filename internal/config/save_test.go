package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestSaveScanFacing_NewFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	err := SaveScanFacing(path, "front")
	require.NoError(t, err)

	var cfg map[string]any
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, yaml.Unmarshal(data, &cfg))

	scan, ok := cfg["scan"].(map[string]any)
	require.True(t, ok)
	require.Equal(t, "front", scan["facing"])
}

func TestSaveScanFacing_PreservesComments(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	original := `# my desk config
auto_refresh: true

scan:
  # decoder binary
  binary: zbarcam
  facing: rear
`
	require.NoError(t, os.WriteFile(path, []byte(original), 0o600))

	err := SaveScanFacing(path, "front")
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	content := string(data)

	require.Contains(t, content, "# my desk config")
	require.Contains(t, content, "# decoder binary")
	require.Contains(t, content, "facing: front")
	require.NotContains(t, content, "facing: rear")
}

func TestSaveScanFacing_OtherSectionsUntouched(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	original := `registry:
  mode: http
  endpoint: http://registry.internal:8021
scan:
  facing: rear
`
	require.NoError(t, os.WriteFile(path, []byte(original), 0o600))

	require.NoError(t, SaveScanFacing(path, "front"))

	var cfg map[string]any
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, yaml.Unmarshal(data, &cfg))

	registry, ok := cfg["registry"].(map[string]any)
	require.True(t, ok)
	require.Equal(t, "http", registry["mode"])
	require.Equal(t, "http://registry.internal:8021", registry["endpoint"])
}

func TestSaveAutoRefresh(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("auto_refresh: true\n"), 0o600))

	require.NoError(t, SaveAutoRefresh(path, false))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), "auto_refresh: false")
}

func TestSaveOperatorCompany_CreatesSection(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("auto_refresh: true\n"), 0o600))

	require.NoError(t, SaveOperatorCompany(path, "acme-telecom"))

	var cfg map[string]any
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, yaml.Unmarshal(data, &cfg))

	op, ok := cfg["operator"].(map[string]any)
	require.True(t, ok)
	require.Equal(t, "acme-telecom", op["company"])
}
