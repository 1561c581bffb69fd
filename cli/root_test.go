package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRootCmdRegistersExpectedFlags(t *testing.T) {
	for _, name := range []string{"config", "listen-addr", "data-dir", "database-name", "api-key", "log-level"} {
		assert.NotNil(t, RootCmd.PersistentFlags().Lookup(name), "missing flag %q", name)
	}
}

func TestLogLevelFallsBackToInfoOnBadInput(t *testing.T) {
	assert.Equal(t, "info", logLevel("not-a-level").String())
	assert.Equal(t, "debug", logLevel("debug").String())
}
