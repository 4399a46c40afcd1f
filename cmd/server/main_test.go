package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand_Subcommands(t *testing.T) {
	cmd := newRootCommand()

	var names []string
	for _, c := range cmd.Commands() {
		names = append(names, c.Name())
	}
	assert.ElementsMatch(t, []string{"serve", "init-db"}, names)
	require.NotNil(t, cmd.PersistentFlags().Lookup("config"))
}

func TestPublicHost(t *testing.T) {
	assert.Equal(t, "api.example.com", publicHost("https://api.example.com:8443/base"))
	assert.Equal(t, "localhost", publicHost("http://localhost:8080"))
	assert.Equal(t, "", publicHost("::bad"))
}

func TestLoadConfig_FlagSetsFile(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	_, err := loadConfig("/nonexistent/chatooz.yaml")
	require.Error(t, err)
}
