package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSeed = `
roles:
  - id: reviewer
    name: Reviewer
assignments:
  - user_id: alice
    role_id: reviewer
definitions:
  - id: vendor-onboarding
    name: Vendor onboarding
    entity_type: vendor
    steps:
      - step: 0
        name: Review
        approver_roles: [reviewer]
        required_approvals: 1
`

func writeTestConfig(t *testing.T) (string, string) {
	t.Helper()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "grc.db")
	cfg := "database:\n  path: " + dbPath + "\nlogger:\n  level: error\n  output_path: stderr\nexport:\n  dir: " + filepath.Join(dir, "exports") + "\n"
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0o644))
	return dir, path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestMigrateCommand(t *testing.T) {
	dir, cfgPath := writeTestConfig(t)
	envFile := filepath.Join(dir, "missing.env")

	out, err := run(t, "migrate", "--config", cfgPath, "--env-file", envFile)
	require.NoError(t, err)
	assert.Contains(t, out, "schema at 2 migrations")

	out, err = run(t, "migrate", "--config", cfgPath, "--env-file", envFile)
	require.NoError(t, err)
	assert.Contains(t, out, "schema at 2 migrations")
}

func TestSeedCommand(t *testing.T) {
	dir, cfgPath := writeTestConfig(t)
	seedPath := filepath.Join(dir, "seed.yaml")
	require.NoError(t, os.WriteFile(seedPath, []byte(testSeed), 0o644))

	out, err := run(t, "seed", "--config", cfgPath, "--env-file", "", "--file", seedPath)
	require.NoError(t, err)
	assert.Contains(t, out, "roles=1 assignments=1 definitions=1 skipped=0")

	// a second run skips the existing definition
	out, err = run(t, "seed", "--config", cfgPath, "--env-file", "", "--file", seedPath)
	require.NoError(t, err)
	assert.Contains(t, out, "definitions=0 skipped=1")
}

func TestSeedCommand_RequiresFile(t *testing.T) {
	_, cfgPath := writeTestConfig(t)
	_, err := run(t, "seed", "--config", cfgPath)
	assert.Error(t, err)
}

func TestExplicitConfigMustExist(t *testing.T) {
	_, err := run(t, "migrate", "--config", filepath.Join(t.TempDir(), "absent.yaml"), "--env-file", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load configuration")
}

func TestSeedExampleParses(t *testing.T) {
	_, cfgPath := writeTestConfig(t)
	out, err := run(t, "seed", "--config", cfgPath, "--env-file", "", "--file", filepath.Join("..", "..", "configs", "seed.yaml"))
	require.NoError(t, err)
	assert.Contains(t, out, "roles=4 assignments=4 definitions=2")
}
