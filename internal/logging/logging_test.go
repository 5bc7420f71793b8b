package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogger_Levels(t *testing.T) {
	testCases := []struct {
		name        string
		verbose     bool
		expectDebug bool
	}{
		{name: "quiet - debug lines are dropped", verbose: false, expectDebug: false},
		{name: "verbose - debug lines are written", verbose: true, expectDebug: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := New(&buf, tc.verbose, true)

			logger.Debugf("page %d", 2)
			logger.Infof("listing %s", "repos")
			logger.Warnf("no token")
			logger.Errorf("boom: %v", "err")

			out := buf.String()
			assert.Contains(t, out, "[info] listing repos")
			assert.Contains(t, out, "[warn] no token")
			assert.Contains(t, out, "[error] boom: err")
			assert.Equal(t, tc.expectDebug, bytes.Contains(buf.Bytes(), []byte("[debug] page 2")))
			assert.Equal(t, tc.verbose, logger.verbose)
		})
	}
}

func TestLogger_NoColorHasNoEscapes(t *testing.T) {
	var buf bytes.Buffer
	New(&buf, false, true).Warnf("plain")

	assert.NotContains(t, buf.String(), "\x1b[")
}

func TestLogger_NonTerminalWriterHasNoEscapes(t *testing.T) {
	t.Setenv("NO_COLOR", "")

	var buf bytes.Buffer
	New(&buf, false, false).Errorf("plain")
	assert.NotContains(t, buf.String(), "\x1b[")

	f, err := os.Create(filepath.Join(t.TempDir(), "log.txt"))
	require.NoError(t, err)
	defer f.Close()
	New(f, false, false).Warnf("to file")
	data, err := os.ReadFile(f.Name())
	require.NoError(t, err)
	assert.Contains(t, string(data), "[warn] to file")
	assert.NotContains(t, string(data), "\x1b[")
}

func TestIsTerminal(t *testing.T) {
	assert.False(t, isTerminal(&bytes.Buffer{}))
}
