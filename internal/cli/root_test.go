package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const speedLimiterFixtureCUE = `
service: "speed_limiter_svc": {
	flows: {
		speed_event: { kind: "event", elem_kind: "float" }
		speed: {
			kind:      "signal"
			elem_kind: "float"
			derivation: { kind: "sample", inputs: ["speed_event"], period_ms: 10, elem_kind: "float" }
		}
		activation: { kind: "signal", elem_kind: "bool" }
		set_speed:  { kind: "signal", elem_kind: "float" }
	}
	components: {
		speed_limiter: {
			period_ms:  10
			delay_ms:   10
			timeout_ms: 500
			inputs: {
				activation: { flow: "activation", elem_kind: "bool" }
				set_speed:  { flow: "set_speed", elem_kind: "float" }
				speed:      { flow: "speed", elem_kind: "float" }
			}
			outputs: {
				v_set:         { flow: "v_set", elem_kind: "float" }
				in_regulation: { flow: "in_regulation", elem_kind: "bool" }
			}
		}
	}
}
`

func writeSpecFixture(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "service.cue"), []byte(content), 0o644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}
	return dir
}

func TestRootCommandRejectsUnknownFormat(t *testing.T) {
	cmd := NewRootCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--format", "xml", "validate", "."})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}

func TestValidateCommandAcceptsWellFormedSpecs(t *testing.T) {
	dir := writeSpecFixture(t, speedLimiterFixtureCUE)

	buf := &bytes.Buffer{}
	cmd := NewValidateCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{dir})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), "all services valid")
}

func TestPlanCommandReportsSummary(t *testing.T) {
	dir := writeSpecFixture(t, speedLimiterFixtureCUE)

	buf := &bytes.Buffer{}
	cmd := NewPlanCommand(&RootOptions{Format: "json"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{dir})

	require.NoError(t, cmd.Execute())

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.NotNil(t, resp.Data)
}

func TestPlanCommandFailsOnUnknownFlowReference(t *testing.T) {
	// The component references a flow the fixture never declares: a
	// planner error, not a fixture-shape error, so validate would pass
	// but plan must fail.
	dir := writeSpecFixture(t, `
service: "broken_svc": {
	flows: {
		speed: { kind: "signal", elem_kind: "float" }
	}
	components: {
		limiter: {
			period_ms:  10
			delay_ms:   10
			timeout_ms: 500
			inputs: {
				speed: { flow: "no_such_flow", elem_kind: "float" }
			}
			outputs: {
				v_set: { flow: "v_set", elem_kind: "float" }
			}
		}
	}
}
`)

	buf := &bytes.Buffer{}
	cmd := NewPlanCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{dir})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, buf.String(), "E_PLAN")
}

func TestSchemaCommandHashIsStableAcrossRuns(t *testing.T) {
	dir := writeSpecFixture(t, speedLimiterFixtureCUE)

	run := func() string {
		buf := &bytes.Buffer{}
		cmd := NewSchemaCommand(&RootOptions{Format: "json"})
		cmd.SetOut(buf)
		cmd.SetArgs([]string{dir})
		require.NoError(t, cmd.Execute())

		var resp CLIResponse
		require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
		data, ok := resp.Data.(map[string]interface{})
		require.True(t, ok, "schema response data should be an object")
		hash, _ := data["hash"].(string)
		require.Len(t, hash, 64)
		return hash
	}

	assert.Equal(t, run(), run())
}

func TestValidateCommandMissingDirIsACommandError(t *testing.T) {
	buf := &bytes.Buffer{}
	cmd := NewValidateCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{filepath.Join(t.TempDir(), "nope")})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
