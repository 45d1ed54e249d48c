package cli

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompletionBashGeneration(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, rootCmd.GenBashCompletion(&buf))
	output := buf.String()

	assert.Contains(t, output, "# bash completion for myssh")
	assert.Contains(t, output, "__completeNoDesc", "should use dynamic completion")
	assert.Contains(t, output, "complete -o default -F __start_myssh myssh")
	assert.Contains(t, output, "_myssh_exec()")
	assert.Contains(t, output, "_myssh_monitor()")
}

func TestCompletionZshGeneration(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, rootCmd.GenZshCompletion(&buf))

	assert.Contains(t, buf.String(), "#compdef myssh")
	assert.Contains(t, buf.String(), "_myssh()")
}

func TestCompletionFishGeneration(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, rootCmd.GenFishCompletion(&buf, true))

	assert.Contains(t, buf.String(), "fish completion for myssh")
	assert.Contains(t, buf.String(), "complete -c myssh")
}

func TestCompletionPowershellGeneration(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, rootCmd.GenPowerShellCompletion(&buf))

	assert.Contains(t, strings.ToLower(buf.String()), "powershell completion")
	assert.Contains(t, buf.String(), "Register-ArgumentCompleter")
}

func TestCompletionCommandValidArgs(t *testing.T) {
	assert.ElementsMatch(t, []string{"bash", "zsh", "fish", "powershell"}, completionCmd.ValidArgs)
}

func TestCompletionCommand(t *testing.T) {
	setupCLI(t)

	r := myssh(t, "completion", "zsh")
	require.Equal(t, 0, r.code, r.stderr)
	assert.Contains(t, r.stdout, "#compdef myssh")

	r = myssh(t, "completion", "tcsh")
	assert.Equal(t, 1, r.code)
}
