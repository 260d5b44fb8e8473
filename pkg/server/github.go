// SPDX-FileCopyrightText: SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"

	"github.com/substrate/playground/pkg/apis/core"
)

// Authenticator resolves an access token to the identity it belongs to.
type Authenticator interface {
	// Authenticate returns the login of the token owner.
	Authenticate(ctx context.Context, token string) (string, error)
}

const githubUserEndpoint = "https://api.github.com/user"

// githubAuthenticator resolves tokens against the GitHub user endpoint.
type githubAuthenticator struct {
	endpoint string
}

// NewGithubAuthenticator creates an Authenticator backed by the GitHub API.
func NewGithubAuthenticator() Authenticator {
	return &githubAuthenticator{endpoint: githubUserEndpoint}
}

func (a *githubAuthenticator) Authenticate(ctx context.Context, token string) (string, error) {
	client := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token}))

	request, err := http.NewRequestWithContext(ctx, http.MethodGet, a.endpoint, nil)
	if err != nil {
		return "", core.Failure(err)
	}
	request.Header.Set("Accept", "application/vnd.github.v3+json")

	response, err := client.Do(request)
	if err != nil {
		return "", core.Failure(err)
	}
	defer func() { _ = response.Body.Close() }()

	if response.StatusCode != http.StatusOK {
		return "", core.Failure(fmt.Errorf("github user endpoint returned %s", response.Status))
	}

	var user struct {
		Login string `json:"login"`
	}
	if err := json.NewDecoder(response.Body).Decode(&user); err != nil {
		return "", core.Failure(err)
	}
	if user.Login == "" {
		return "", core.Failure(fmt.Errorf("github user endpoint returned no login"))
	}
	return user.Login, nil
}
