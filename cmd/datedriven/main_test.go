package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"datedriven/internal/pipeline"
)

const testConfigYAML = `
logging:
  level: error
pricing:
  timezone: UTC
  lookback_days: 7
`

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cfgPath := writeFile(t, "config.yaml", testConfigYAML)

	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append([]string{"--config", cfgPath}, args...))
	err := root.Execute()
	return out.String(), err
}

func TestValidateRules_DefaultTable(t *testing.T) {
	out, err := runCLI(t, "validate-rules")
	require.NoError(t, err)
	assert.Contains(t, out, "[14, +inf] x1.15")
	assert.Contains(t, out, "[-inf, -1] x1.00")
	assert.Contains(t, out, "rule table ok (lookback 7 days, UTC)")
}

func TestValidateRules_Evaluate(t *testing.T) {
	out, err := runCLI(t, "validate-rules", "--today", "2026-01-10", "--event", "January 17")
	require.NoError(t, err)
	assert.Contains(t, out, "2026-01-17: 7 days, multiplier 1.25")

	out, err = runCLI(t, "validate-rules", "--today", "2026-01-10", "--event", "01/09")
	require.NoError(t, err)
	assert.Contains(t, out, "2026-01-09: -1 days, multiplier 1.00")
}

func TestValidateRules_BadEvent(t *testing.T) {
	_, err := runCLI(t, "validate-rules", "--event", "someday")
	assert.Error(t, err)
}

func TestImportInventory_Check(t *testing.T) {
	inv := writeFile(t, "inventory.yaml", `
items:
  - id: SF-001
    name: "Shepard Fairey Muhammad Ali Signed Print 2016"
    base_price: 300
  - id: SF-002
    name: "Hope"
    base_price: "125.50"
`)
	out, err := runCLI(t, "import-inventory", "--check", inv)
	require.NoError(t, err)
	assert.Equal(t, "2 items ok\n", out)
}

func TestImportInventory_Invalid(t *testing.T) {
	inv := writeFile(t, "inventory.yaml", "items:\n  - name: missing id\n")
	_, err := runCLI(t, "import-inventory", "--check", inv)
	assert.Error(t, err)
}

func TestFindDates_SingleItemWithoutSources(t *testing.T) {
	out, err := runCLI(t, "find-dates", "--name", "Shepard Fairey Muhammad Ali Signed Print 2016")
	require.NoError(t, err)

	var res pipeline.ItemResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, "Muhammad Ali", res.Subject)
	assert.Empty(t, res.KeyDates)
	assert.Empty(t, res.SourceErrors)
}
