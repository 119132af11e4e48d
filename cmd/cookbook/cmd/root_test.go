package cmd

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angus-g/cosima-cookbook/pkg/version"
)

func TestRootVersionFlag(t *testing.T) {
	// isolate from any real user configuration
	t.Setenv("HOME", t.TempDir())

	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--version"})

	require.NoError(t, cmd.Execute())
	assert.Equal(t, version.String()+"\n", out.String())
}

func TestRootShortVersion(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	cmd := NewRootCmd()
	assert.Equal(t, version.Short(), cmd.Version)
}
