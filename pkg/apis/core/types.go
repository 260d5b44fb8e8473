// SPDX-FileCopyrightText: SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

package core

import (
	"encoding/json"
	"time"
)

// ResourceType identifies a kind of control-plane resource for authorization purposes.
type ResourceType string

const (
	// ResourceUser is the User resource type.
	ResourceUser ResourceType = "User"
	// ResourceRole is the Role resource type.
	ResourceRole ResourceType = "Role"
	// ResourceRepository is the Repository resource type.
	ResourceRepository ResourceType = "Repository"
	// ResourceRepositoryVersion is the RepositoryVersion resource type.
	ResourceRepositoryVersion ResourceType = "RepositoryVersion"
	// ResourcePool is the Pool resource type.
	ResourcePool ResourceType = "Pool"
	// ResourceSession is the Session resource type.
	ResourceSession ResourceType = "Session"
	// ResourceSessionExecution is the SessionExecution resource type.
	ResourceSessionExecution ResourceType = "SessionExecution"
)

// AllResourceTypes lists every resource type subject to authorization.
var AllResourceTypes = []ResourceType{
	ResourceUser,
	ResourceRole,
	ResourceRepository,
	ResourceRepositoryVersion,
	ResourcePool,
	ResourceSession,
	ResourceSessionExecution,
}

// PermissionType is the verb part of a permission tuple.
type PermissionType string

const (
	// PermissionTypeRead allows reading a resource.
	PermissionTypeRead PermissionType = "Read"
	// PermissionTypeCreate allows creating a resource.
	PermissionTypeCreate PermissionType = "Create"
	// PermissionTypeUpdate allows updating a resource.
	PermissionTypeUpdate PermissionType = "Update"
	// PermissionTypeDelete allows deleting a resource.
	PermissionTypeDelete PermissionType = "Delete"
	// PermissionTypeCustom is a string-named permission used for fine-grained checks.
	PermissionTypeCustom PermissionType = "Custom"
)

// Permission is one verb, optionally named for PermissionTypeCustom.
type Permission struct {
	Type PermissionType `json:"type"`
	Name string         `json:"name,omitempty"`
}

var (
	// PermissionRead is the plain read permission.
	PermissionRead = Permission{Type: PermissionTypeRead}
	// PermissionCreate is the plain create permission.
	PermissionCreate = Permission{Type: PermissionTypeCreate}
	// PermissionUpdate is the plain update permission.
	PermissionUpdate = Permission{Type: PermissionTypeUpdate}
	// PermissionDelete is the plain delete permission.
	PermissionDelete = Permission{Type: PermissionTypeDelete}
)

// CustomPermission returns the custom permission with the given name.
func CustomPermission(name string) Permission {
	return Permission{Type: PermissionTypeCustom, Name: name}
}

// Names of the custom permissions consumed by the session orchestrator.
const (
	CustomizeSessionName         = "CustomizeSessionName"
	CustomizeSessionDuration     = "CustomizeSessionDuration"
	CustomizeSessionPoolAffinity = "CustomizeSessionPoolAffinity"
)

// Duration is a time.Duration that serializes as integer minutes.
type Duration struct {
	time.Duration
}

// MinutesDuration returns a Duration of the given number of minutes.
func MinutesDuration(minutes int64) Duration {
	return Duration{Duration: time.Duration(minutes) * time.Minute}
}

// Minutes returns the duration as whole minutes.
func (d Duration) Minutes() int64 {
	return int64(d.Duration / time.Minute)
}

// MarshalJSON implements json.Marshaler.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Minutes())
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Duration) UnmarshalJSON(data []byte) error {
	var minutes int64
	if err := json.Unmarshal(data, &minutes); err != nil {
		return err
	}
	d.Duration = time.Duration(minutes) * time.Minute
	return nil
}

// UnixTime is a time.Time that serializes as seconds since the Unix epoch.
type UnixTime struct {
	time.Time
}

// MarshalJSON implements json.Marshaler.
func (t UnixTime) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.Unix())
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *UnixTime) UnmarshalJSON(data []byte) error {
	var seconds int64
	if err := json.Unmarshal(data, &seconds); err != nil {
		return err
	}
	t.Time = time.Unix(seconds, 0).UTC()
	return nil
}

// User is an authenticated account known to the playground.
type User struct {
	ID          string            `json:"id"`
	Role        string            `json:"role"`
	Preferences map[string]string `json:"preferences"`
}

// PreferencePoolAffinity is the user preference key holding the default pool for sessions.
const PreferencePoolAffinity = "poolAffinity"

// PoolAffinity returns the user's preferred pool, if any.
func (u *User) PoolAffinity() string {
	return u.Preferences[PreferencePoolAffinity]
}

// UserConfiguration is the payload for user creation.
type UserConfiguration struct {
	Role        string            `json:"role"`
	Preferences map[string]string `json:"preferences"`
}

// UserUpdateConfiguration is the payload for user updates.
type UserUpdateConfiguration struct {
	Role        string            `json:"role"`
	Preferences map[string]string `json:"preferences"`
}

// Role names a set of permission tuples.
type Role struct {
	ID          string                        `json:"id"`
	Permissions map[ResourceType][]Permission `json:"permissions"`
}

// Allows reports whether the role carries the exact (resource, permission) tuple.
func (r *Role) Allows(resource ResourceType, permission Permission) bool {
	for _, p := range r.Permissions[resource] {
		if p == permission {
			return true
		}
	}
	return false
}

// RoleConfiguration is the payload for role creation.
type RoleConfiguration struct {
	Permissions map[ResourceType][]Permission `json:"permissions"`
}

// RoleUpdateConfiguration is the payload for role updates.
type RoleUpdateConfiguration struct {
	Permissions map[ResourceType][]Permission `json:"permissions"`
}

// Repository is a buildable source repository.
type Repository struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// RepositoryConfiguration is the payload for repository creation.
type RepositoryConfiguration struct {
	URL string `json:"url"`
}

// RepositoryUpdateConfiguration is the payload for repository updates.
type RepositoryUpdateConfiguration struct {
	URL string `json:"url"`
}

// RepositoryVersionStateType tags a RepositoryVersionState variant.
type RepositoryVersionStateType string

const (
	// RepositoryVersionCloning means the builder is cloning the repository.
	RepositoryVersionCloning RepositoryVersionStateType = "Cloning"
	// RepositoryVersionBuilding means the builder is building the workspace volume.
	RepositoryVersionBuilding RepositoryVersionStateType = "Building"
	// RepositoryVersionReady means the workspace volume template is ready to be cloned.
	RepositoryVersionReady RepositoryVersionStateType = "Ready"
	// RepositoryVersionFailed means the builder job failed terminally.
	RepositoryVersionFailed RepositoryVersionStateType = "Failed"
)

// RepositoryVersionState is a tagged variant; fields other than Type are set depending on the tag.
type RepositoryVersionState struct {
	Type     RepositoryVersionStateType      `json:"type"`
	Progress int32                           `json:"progress,omitempty"`
	Runtime  *RepositoryRuntimeConfiguration `json:"runtime,omitempty"`
	Message  string                          `json:"message,omitempty"`
}

// RepositoryVersion is an immutable snapshot volume produced by a builder job.
type RepositoryVersion struct {
	ID    string                 `json:"id"`
	State RepositoryVersionState `json:"state"`
}

// RepositoryVersionConfiguration is the payload for version creation.
type RepositoryVersionConfiguration struct {
	Reference string `json:"reference"`
}

// NameValuePair is an environment variable declared by a repository runtime.
type NameValuePair struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Port is a port exposed by a repository runtime and routed through the session ingress.
type Port struct {
	Name     string `json:"name"`
	Protocol string `json:"protocol,omitempty"`
	Path     string `json:"path"`
	Port     int32  `json:"port"`
	Target   int32  `json:"target,omitempty"`
}

// RepositoryRuntimeConfiguration describes how a built repository version runs.
type RepositoryRuntimeConfiguration struct {
	BaseImage string          `json:"baseImage,omitempty"`
	Env       []NameValuePair `json:"env,omitempty"`
	Ports     []Port          `json:"ports,omitempty"`
}

// RepositorySource identifies the repository version a session is created from.
type RepositorySource struct {
	RepositoryID        string `json:"repositoryId"`
	RepositoryVersionID string `json:"repositoryVersionId"`
}

// SessionStateType tags a SessionState variant.
type SessionStateType string

const (
	// SessionDeploying means the session pod has been created but is not running yet.
	SessionDeploying SessionStateType = "Deploying"
	// SessionRunning means the session pod is running.
	SessionRunning SessionStateType = "Running"
	// SessionPaused means the session is paused.
	SessionPaused SessionStateType = "Paused"
	// SessionFailed means the session pod failed terminally.
	SessionFailed SessionStateType = "Failed"
)

// SessionState is a tagged variant; fields other than Type are set depending on the tag.
type SessionState struct {
	Type      SessionStateType                `json:"type"`
	StartTime *UnixTime                       `json:"startTime,omitempty"`
	Node      *Node                           `json:"node,omitempty"`
	Runtime   *RepositoryRuntimeConfiguration `json:"runtime,omitempty"`
	Reason    string                          `json:"reason,omitempty"`
	Message   string                          `json:"message,omitempty"`
}

// Session is a user-owned, time-bounded running container plus its routing machinery.
type Session struct {
	ID               string           `json:"id"`
	UserID           string           `json:"userId"`
	MaxDuration      Duration         `json:"maxDuration"`
	RepositorySource RepositorySource `json:"repositorySource"`
	State            SessionState     `json:"state"`
}

// SessionConfiguration is the payload for session creation.
type SessionConfiguration struct {
	RepositorySource RepositorySource `json:"repositorySource"`
	Duration         *Duration        `json:"duration,omitempty"`
	PoolAffinity     string           `json:"poolAffinity,omitempty"`
}

// SessionUpdateConfiguration is the payload for session updates. Only the duration may change.
type SessionUpdateConfiguration struct {
	Duration *Duration `json:"duration,omitempty"`
}

// SessionExecutionConfiguration is the payload for executing a command inside a session.
type SessionExecutionConfiguration struct {
	Command []string `json:"command"`
}

// SessionExecution is the collected output of a command executed inside a session.
type SessionExecution struct {
	Stdout string `json:"stdout"`
}

// Node is a cluster node belonging to a pool.
type Node struct {
	Hostname string `json:"hostname"`
}

// Pool is a named group of cluster nodes carrying a shared affinity label.
type Pool struct {
	ID           string `json:"id"`
	InstanceType string `json:"instanceType,omitempty"`
	Nodes        []Node `json:"nodes"`
}

// WorkspaceDefaults are the process-wide session defaults exposed to clients.
type WorkspaceDefaults struct {
	BaseImage          string   `json:"baseImage"`
	Duration           Duration `json:"duration"`
	MaxDuration        Duration `json:"maxDuration"`
	PoolAffinity       string   `json:"poolAffinity"`
	MaxSessionsPerNode int      `json:"maxSessionsPerNode"`
}

// PlaygroundConfiguration is the public part of the process configuration.
type PlaygroundConfiguration struct {
	GithubClientID string            `json:"githubClientId"`
	Workspace      WorkspaceDefaults `json:"workspace"`
}

// Playground is the response of the metadata endpoint.
type Playground struct {
	Configuration PlaygroundConfiguration `json:"configuration"`
	User          *User                   `json:"user,omitempty"`
}
