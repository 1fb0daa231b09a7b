package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tOgg1/livedesk/internal/replay"
)

const handoffScript = "../replay/testdata/handoff.yaml"

func runRoot(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cfgPath := filepath.Join(t.TempDir(), "livedesk.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("session:\n  typing_timeout: 5s\nlogging:\n  level: error\n"), 0o644))

	var out bytes.Buffer
	root := newRootCmd("test")
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append([]string{"--config", cfgPath}, args...))
	err := root.Execute()
	return out.String(), err
}

func TestRootCommands(t *testing.T) {
	root := newRootCmd("dev")
	for _, name := range []string{"replay", "config"} {
		found, _, err := root.Find([]string{name})
		require.NoError(t, err)
		require.Equal(t, name, found.Name())
	}
}

func TestConfigCommand(t *testing.T) {
	out, err := runRoot(t, "config")
	require.NoError(t, err)
	require.Contains(t, out, "# loaded from")
	require.Contains(t, out, "typing_timeout: 5s")
	require.Contains(t, out, "message_max_length: 2000")
}

func TestReplayCommand_Table(t *testing.T) {
	out, err := runRoot(t, "replay", handoffScript)
	require.NoError(t, err)
	require.Contains(t, out, "message.failed")
	require.Contains(t, out, "session.disposed")
	require.Contains(t, out, "leaked timers")

	lines := strings.Split(out, "\n")
	require.True(t, strings.HasPrefix(lines[0], "AT"))
}

func TestReplayCommand_JSON(t *testing.T) {
	out, err := runRoot(t, "replay", handoffScript, "-o", "json")
	require.NoError(t, err)

	var res replay.Result
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	require.Len(t, res.Deliveries, 3)
	require.Equal(t, 0, res.LeakedTimers)
}

func TestReplayCommand_Errors(t *testing.T) {
	_, err := runRoot(t, "replay")
	require.Error(t, err)

	_, err = runRoot(t, "replay", "does-not-exist.yaml")
	require.ErrorContains(t, err, "read script")

	_, err = runRoot(t, "replay", handoffScript, "-o", "xml")
	require.ErrorContains(t, err, "unknown output format")
}

func TestWriteTable_AlignsWideRunes(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, writeTable(&out, []string{"NAME", "ROLE"}, [][]string{
		{"João", "client"},
		{"李雷", "agent"},
	}))
	require.Equal(t, "NAME  ROLE\nJoão  client\n李雷  agent\n", out.String())
}
