package cmd

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/m3rciful/lingobot/core/bootstrap"
	coreconfig "github.com/m3rciful/lingobot/core/config"
)

func TestResolveConfigPath(t *testing.T) {
	t.Setenv(DefaultConfigEnvVar, "/etc/lingobot.yaml")
	assert.Equal(t, "explicit.yaml", ResolveConfigPath("explicit.yaml"))
	assert.Equal(t, "/etc/lingobot.yaml", ResolveConfigPath(""))
}

func TestRunStopsOnLoadError(t *testing.T) {
	booted := false
	err := Run(Options{
		ConfigPath: "missing.yaml",
		LoadConfig: func(string) (*coreconfig.Config, error) { return nil, errors.New("no such file") },
		Bootstrap: func(context.Context, bootstrap.Options) (*bootstrap.Result, error) {
			booted = true
			return nil, nil
		},
	})
	assert.ErrorContains(t, err, "failed to load config")
	assert.False(t, booted)
}

func TestRunStopsOnBootstrapError(t *testing.T) {
	err := Run(Options{
		LoadConfig: func(string) (*coreconfig.Config, error) { return &coreconfig.Config{}, nil },
		Bootstrap: func(context.Context, bootstrap.Options) (*bootstrap.Result, error) {
			return nil, errors.New("db down")
		},
	})
	assert.ErrorContains(t, err, "bootstrap failed: db down")
}
