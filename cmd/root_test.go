package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}

	for _, name := range []string{"download", "convert", "run"} {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "chibanzu", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
}

func TestDownloadCommand_Flags(t *testing.T) {
	flag := downloadCmd.Flags().Lookup("yes")
	require.NotNil(t, flag, "download command should have --yes flag")
	assert.Equal(t, "false", flag.DefValue)
}

func TestConvertCommand_Flags(t *testing.T) {
	for _, name := range []string{"shapefile", "names", "output", "workers", "zone"} {
		assert.NotNil(t, convertCmd.Flags().Lookup(name), "convert should have --%s flag", name)
	}
	assert.Equal(t, "-1", convertCmd.Flags().Lookup("zone").DefValue)
}

func TestRunCommand_Flags(t *testing.T) {
	for _, name := range []string{"yes", "shapefile", "names", "output", "workers", "zone"} {
		assert.NotNil(t, runCmd.Flags().Lookup(name), "run should have --%s flag", name)
	}
}
