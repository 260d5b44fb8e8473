// SPDX-FileCopyrightText: SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/substrate/playground/pkg/apis/core"
)

// Environment variables the process requires at startup. Durations are minutes as
// decimal strings.
const (
	EnvGithubClientID      = "GITHUB_CLIENT_ID"
	EnvGithubClientSecret  = "GITHUB_CLIENT_SECRET"
	EnvBaseImage           = "WORKSPACE_BASE_IMAGE"
	EnvDefaultDuration     = "WORKSPACE_DEFAULT_DURATION"
	EnvMaxDuration         = "WORKSPACE_MAX_DURATION"
	EnvDefaultPoolAffinity = "WORKSPACE_DEFAULT_POOL_AFFINITY"
	EnvMaxSessionsPerNode  = "WORKSPACE_DEFAULT_MAX_PER_NODE"
)

// Configuration is the immutable process-wide configuration resolved once at startup.
type Configuration struct {
	GithubClientID     string
	GithubClientSecret string
	BaseImage          string
	DefaultDuration    time.Duration
	MaxDuration        time.Duration
	DefaultPool        string
	MaxSessionsPerNode int
}

// FromEnvironment resolves the configuration from the process environment.
func FromEnvironment() (*Configuration, error) {
	clientID, err := variable(EnvGithubClientID)
	if err != nil {
		return nil, err
	}
	clientSecret, err := variable(EnvGithubClientSecret)
	if err != nil {
		return nil, err
	}
	baseImage, err := variable(EnvBaseImage)
	if err != nil {
		return nil, err
	}
	defaultDuration, err := durationVariable(EnvDefaultDuration)
	if err != nil {
		return nil, err
	}
	maxDuration, err := durationVariable(EnvMaxDuration)
	if err != nil {
		return nil, err
	}
	defaultPool, err := variable(EnvDefaultPoolAffinity)
	if err != nil {
		return nil, err
	}
	maxPerNodeRaw, err := variable(EnvMaxSessionsPerNode)
	if err != nil {
		return nil, err
	}
	maxPerNode, err := strconv.Atoi(maxPerNodeRaw)
	if err != nil {
		return nil, core.Failure(fmt.Errorf("failed parsing %s: %w", EnvMaxSessionsPerNode, err))
	}

	return &Configuration{
		GithubClientID:     clientID,
		GithubClientSecret: clientSecret,
		BaseImage:          baseImage,
		DefaultDuration:    defaultDuration,
		MaxDuration:        maxDuration,
		DefaultPool:        defaultPool,
		MaxSessionsPerNode: maxPerNode,
	}, nil
}

// Playground returns the public part of the configuration.
func (c *Configuration) Playground() core.PlaygroundConfiguration {
	return core.PlaygroundConfiguration{
		GithubClientID: c.GithubClientID,
		Workspace: core.WorkspaceDefaults{
			BaseImage:          c.BaseImage,
			Duration:           core.Duration{Duration: c.DefaultDuration},
			MaxDuration:        core.Duration{Duration: c.MaxDuration},
			PoolAffinity:       c.DefaultPool,
			MaxSessionsPerNode: c.MaxSessionsPerNode,
		},
	}
}

func variable(name string) (string, error) {
	value, ok := os.LookupEnv(name)
	if !ok {
		return "", &core.MissingEnvironmentVariableError{Name: name}
	}
	return value, nil
}

func durationVariable(name string) (time.Duration, error) {
	raw, err := variable(name)
	if err != nil {
		return 0, err
	}
	minutes, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, core.Failure(fmt.Errorf("failed parsing %s: %w", name, err))
	}
	return time.Duration(minutes) * time.Minute, nil
}
