// SPDX-FileCopyrightText: SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

package core

const (
	// LabelApp is the label key marking objects as part of the playground.
	LabelApp = "app.kubernetes.io/part-of"
	// LabelAppValue is the value of LabelApp for all playground objects.
	LabelAppValue = "playground"
	// LabelComponent is the label key naming the playground component an object belongs to.
	LabelComponent = "app.kubernetes.io/component"
	// ComponentSession is the LabelComponent value for session objects.
	ComponentSession = "session"
	// ComponentWorkspace is the LabelComponent value for workspace volume objects.
	ComponentWorkspace = "workspace"
	// ComponentUser is the LabelComponent value for user namespaces.
	ComponentUser = "user"
	// LabelOwner is the label key carrying the session id on session-scoped objects.
	LabelOwner = "app.kubernetes.io/owner"
	// LabelRepository is the label key carrying the repository id on builder jobs.
	LabelRepository = "app.playground/repository"

	// LabelResourceID is the label key carrying the user id on user namespaces.
	LabelResourceID = "RESOURCE_ID"
	// LabelNamespaceType is the label key typing playground namespaces.
	LabelNamespaceType = "NAMESPACE_TYPE"
	// NamespaceTypeSession is the LabelNamespaceType value of session namespaces.
	NamespaceTypeSession = "NAMESPACE_SESSION"

	// LabelNodePool is the node label key naming the pool a node belongs to.
	LabelNodePool = "app.playground/pool"
	// LabelNodePoolType is the node label key typing a pool.
	LabelNodePoolType = "app.playground/pool-type"
	// PoolTypeUser is the LabelNodePoolType value of pools admitting user sessions.
	PoolTypeUser = "user"
	// LabelInstanceType is the well-known node label carrying the cloud instance type.
	LabelInstanceType = "node.kubernetes.io/instance-type"
	// LabelHostname is the well-known node label carrying the node hostname.
	LabelHostname = "kubernetes.io/hostname"

	// AnnotationRole is the user namespace annotation carrying the role id.
	AnnotationRole = "ROLE"
	// AnnotationPreferences is the user namespace annotation carrying the JSON-serialized preferences.
	AnnotationPreferences = "PREFERENCES"

	// AnnotationTemplate is the session pod annotation carrying the serialized runtime template.
	AnnotationTemplate = "playground.substrate.io/template"
	// AnnotationSessionDuration is the session pod annotation carrying the max duration in minutes.
	AnnotationSessionDuration = "playground.substrate.io/session_duration"
	// AnnotationUser is the session pod annotation carrying the owning user id.
	AnnotationUser = "playground.substrate.io/user"
	// AnnotationRepositorySource is the session pod annotation carrying the JSON-serialized repository source.
	AnnotationRepositorySource = "playground.substrate.io/repository_source"

	// AnnotationRuntime is the volume template annotation carrying the YAML runtime configuration
	// copied from /runtime.yaml by the builder.
	AnnotationRuntime = "playground.substrate.io/runtime"
	// AnnotationVersion is the volume template annotation recording the built repository version id.
	AnnotationVersion = "playground.substrate.io/version"
	// AnnotationProgress is the builder job annotation reporting the build progress percentage.
	AnnotationProgress = "playground.substrate.io/progress"

	// ConfigMapRoles is the control-namespace config map persisting roles.
	ConfigMapRoles = "playground-roles"
	// ConfigMapRepositories is the control-namespace config map persisting repositories.
	ConfigMapRepositories = "playground-repositories"

	// IngressName is the name of the singleton ingress in the control namespace.
	IngressName = "ingress"
)

// UserNamespace returns the name of the namespace persisting the given user.
func UserNamespace(userID string) string {
	return "user-" + userID
}

// SessionNamespace returns the name of the namespace scoped to the given session.
func SessionNamespace(sessionID string) string {
	return "session-" + sessionID
}

// VolumeTemplateName returns the name of the shared workspace volume template of a repository.
func VolumeTemplateName(repositoryID string) string {
	return "workspace-template-" + repositoryID
}

// BuilderJobName returns the name of the builder job of a repository version.
func BuilderJobName(repositoryID, versionID string) string {
	return "builder-" + repositoryID + "-" + versionID
}

// ExternalServiceName returns the name of the control-namespace service routing to a session.
func ExternalServiceName(sessionID string) string {
	return "service-" + sessionID
}

// Subdomain returns the ingress host routing to the given session.
func Subdomain(host, sessionID string) string {
	return sessionID + "." + host
}
