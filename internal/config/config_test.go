package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidateOperator_Empty(t *testing.T) {
	err := ValidateOperator(OperatorConfig{})
	require.NoError(t, err, "empty operator should be valid (uses defaults)")
}

func TestValidateOperator_Admin(t *testing.T) {
	err := ValidateOperator(OperatorConfig{Role: "admin"})
	require.NoError(t, err)
}

func TestValidateOperator_AgentRequiresCompany(t *testing.T) {
	err := ValidateOperator(OperatorConfig{Role: "agent"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "operator.company is required")

	err = ValidateOperator(OperatorConfig{Role: "agent", Company: "acme-telecom"})
	require.NoError(t, err)
}

func TestValidateOperator_InvalidRole(t *testing.T) {
	err := ValidateOperator(OperatorConfig{Role: "superuser"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "operator.role")
}

func TestValidateRegistry_Empty(t *testing.T) {
	err := ValidateRegistry(RegistryConfig{})
	require.NoError(t, err)
}

func TestValidateRegistry_HTTPRequiresEndpoint(t *testing.T) {
	err := ValidateRegistry(RegistryConfig{Mode: "http"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "registry.endpoint is required")

	err = ValidateRegistry(RegistryConfig{Mode: "http", Endpoint: "http://localhost:8021"})
	require.NoError(t, err)
}

func TestValidateRegistry_InvalidMode(t *testing.T) {
	err := ValidateRegistry(RegistryConfig{Mode: "grpc"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "registry.mode")
}

func TestValidateRegistry_NegativeTimeout(t *testing.T) {
	err := ValidateRegistry(RegistryConfig{TimeoutMs: -1})
	require.Error(t, err)
	require.Contains(t, err.Error(), "timeout_ms")
}

func TestValidateScan_Facing(t *testing.T) {
	require.NoError(t, ValidateScan(ScanConfig{}))
	require.NoError(t, ValidateScan(ScanConfig{Facing: "rear"}))
	require.NoError(t, ValidateScan(ScanConfig{Facing: "front"}))

	err := ValidateScan(ScanConfig{Facing: "sideways"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "scan.facing")
}

func TestValidateTracing_SampleRate(t *testing.T) {
	err := ValidateTracing(TracingConfig{SampleRate: 1.5})
	require.Error(t, err)
	require.Contains(t, err.Error(), "sample_rate")

	err = ValidateTracing(TracingConfig{SampleRate: -0.1})
	require.Error(t, err)
}

func TestValidateTracing_FileExporterRequiresPath(t *testing.T) {
	tracing := TracingConfig{Enabled: true, Exporter: "file", SampleRate: 1.0}
	err := ValidateTracing(tracing)
	require.Error(t, err)
	require.Contains(t, err.Error(), "file_path is required")

	tracing.FilePath = "/tmp/traces.jsonl"
	require.NoError(t, ValidateTracing(tracing))
}

func TestValidateTracing_DisabledSkipsPathChecks(t *testing.T) {
	tracing := TracingConfig{Enabled: false, Exporter: "file", SampleRate: 1.0}
	require.NoError(t, ValidateTracing(tracing))
}

func TestDefaults(t *testing.T) {
	cfg := Defaults()

	require.True(t, cfg.AutoRefresh)
	require.Equal(t, 500, cfg.DebounceMs)
	require.Equal(t, "agent", cfg.Operator.Role)
	require.Equal(t, "local", cfg.Registry.Mode)
	require.Equal(t, "zbarcam", cfg.Scan.Binary)
	require.Equal(t, "rear", cfg.Scan.Facing)
	require.False(t, cfg.Tracing.Enabled)
	require.Equal(t, "file", cfg.Tracing.Exporter)
}

func TestRegistryConfig_Timeout(t *testing.T) {
	require.Equal(t, "5s", RegistryConfig{}.Timeout().String())
	require.Equal(t, "2s", RegistryConfig{TimeoutMs: 2000}.Timeout().String())
}

func TestScanConfig_Device(t *testing.T) {
	scan := ScanConfig{RearDevice: "/dev/video0", FrontDevice: "/dev/video1"}

	require.Equal(t, "/dev/video0", scan.Device("rear"))
	require.Equal(t, "/dev/video1", scan.Device("front"))
	require.Equal(t, "/dev/video0", scan.Device(""), "unknown facing falls back to rear")
}

func TestScanConfig_Device_PrefersOtherWhenUnset(t *testing.T) {
	require.Equal(t, "/dev/video0", ScanConfig{RearDevice: "/dev/video0"}.Device("front"))
	require.Equal(t, "/dev/video1", ScanConfig{FrontDevice: "/dev/video1"}.Device("rear"))
	require.Empty(t, ScanConfig{}.Device("rear"), "decoder default when nothing configured")
}

func TestScanConfig_Durations(t *testing.T) {
	require.Equal(t, "100ms", ScanConfig{}.MinDecodeInterval().String())
	require.Equal(t, "300ms", ScanConfig{}.Settle().String())
	require.Equal(t, "250ms", ScanConfig{MinDecodeIntervalMs: 250}.MinDecodeInterval().String())
}

func TestWriteDefaultConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "config.yaml")

	err := WriteDefaultConfig(path)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), "auto_refresh: true")
	require.Contains(t, string(data), "facing: rear")
}
