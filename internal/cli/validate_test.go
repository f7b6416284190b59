package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate_ValidConfig(t *testing.T) {
	scenario := writeScenario(t, testScenario)

	stdout, _, err := execute(t, "validate", scenario)
	require.NoError(t, err)
	assert.Contains(t, stdout, "config valid")
	assert.Contains(t, stdout, "2 emissions")
}

func TestValidate_JSONFormat(t *testing.T) {
	scenario := writeScenario(t, testScenario)

	stdout, _, err := execute(t, "validate", scenario, "--format", "json")
	require.NoError(t, err)
	assert.Contains(t, stdout, `"status": "ok"`)
	assert.Contains(t, stdout, `"emissions": 2`)
}

func TestValidate_InvalidConfig(t *testing.T) {
	scenario := writeScenario(t, "start_date: 2000\n")

	_, _, err := execute(t, "validate", scenario)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
