// SPDX-FileCopyrightText: SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

package core

import (
	"errors"
	"fmt"
	"time"
)

// UnauthorizedError is returned when authorization denies a (resource, permission) tuple.
type UnauthorizedError struct {
	Resource   ResourceType
	Permission Permission
}

func (e *UnauthorizedError) Error() string {
	if e.Permission.Type == PermissionTypeCustom {
		return fmt.Sprintf("unauthorized: %s Custom(%q)", e.Resource, e.Permission.Name)
	}
	return fmt.Sprintf("unauthorized: %s %s", e.Resource, e.Permission.Type)
}

// UnknownResourceError is returned when a lookup misses.
type UnknownResourceError struct {
	Resource ResourceType
	ID       string
}

func (e *UnknownResourceError) Error() string {
	return fmt.Sprintf("unknown %s %q", e.Resource, e.ID)
}

// NotOwnedError is returned when the caller is neither the owner of a resource nor an admin.
type NotOwnedError struct {
	Resource ResourceType
	ID       string
}

func (e *NotOwnedError) Error() string {
	return fmt.Sprintf("%s %q is not owned by the caller", e.Resource, e.ID)
}

// SessionIDAlreadyUsedError is returned when the session idempotence guard fires.
type SessionIDAlreadyUsedError struct{}

func (e *SessionIDAlreadyUsedError) Error() string {
	return "session id is already used"
}

// ConcurrentSessionsLimitError is returned when pool admission rejects a session.
type ConcurrentSessionsLimitError struct {
	Count int
}

func (e *ConcurrentSessionsLimitError) Error() string {
	return fmt.Sprintf("reached maximum number of concurrent sessions allowed: %d", e.Count)
}

// DurationLimitError is returned when a requested duration reaches the configured maximum.
// Max is reported in milliseconds.
type DurationLimitError struct {
	Max time.Duration
}

func (e *DurationLimitError) Error() string {
	return fmt.Sprintf("duration must be lower than %d", e.Max.Milliseconds())
}

// RepositoryVersionNotReadyError is returned when a session source version is not Ready.
type RepositoryVersionNotReadyError struct{}

func (e *RepositoryVersionNotReadyError) Error() string {
	return "repository version is not ready"
}

// MissingAnnotationError is returned when an observed object lacks an expected annotation.
type MissingAnnotationError struct {
	Annotation string
}

func (e *MissingAnnotationError) Error() string {
	return fmt.Sprintf("missing annotation %q", e.Annotation)
}

// MissingDataError is returned when an observed object violates its expected shape.
type MissingDataError struct {
	Path string
}

func (e *MissingDataError) Error() string {
	return fmt.Sprintf("missing data at %q", e.Path)
}

// MissingEnvironmentVariableError is returned at startup when a required variable is absent.
type MissingEnvironmentVariableError struct {
	Name string
}

func (e *MissingEnvironmentVariableError) Error() string {
	return fmt.Sprintf("missing environment variable %q", e.Name)
}

// FailureError wraps a transport or serialization failure.
type FailureError struct {
	Cause error
}

func (e *FailureError) Error() string {
	return fmt.Sprintf("failure: %v", e.Cause)
}

func (e *FailureError) Unwrap() error {
	return e.Cause
}

// Failure wraps err into a FailureError, preserving an already-typed error.
func Failure(err error) error {
	if err == nil {
		return nil
	}
	if ErrorType(err) != typeFailure {
		return err
	}
	return &FailureError{Cause: err}
}

const typeFailure = "Failure"

// ErrorType returns the wire name of the error kind, used by the HTTP envelope.
func ErrorType(err error) string {
	var (
		unauthorized    *UnauthorizedError
		unknown         *UnknownResourceError
		notOwned        *NotOwnedError
		idUsed          *SessionIDAlreadyUsedError
		concurrentLimit *ConcurrentSessionsLimitError
		durationLimit   *DurationLimitError
		versionNotReady *RepositoryVersionNotReadyError
		missingAnn      *MissingAnnotationError
		missingData     *MissingDataError
		missingEnv      *MissingEnvironmentVariableError
	)

	switch {
	case errors.As(err, &unauthorized):
		return "Unauthorized"
	case errors.As(err, &unknown):
		return "UnknownResource"
	case errors.As(err, &notOwned):
		return "ResourceNotOwned"
	case errors.As(err, &idUsed):
		return "SessionIdAlreadyUsed"
	case errors.As(err, &concurrentLimit):
		return "ConcurrentSessionsLimitBreached"
	case errors.As(err, &durationLimit):
		return "DurationLimitBreached"
	case errors.As(err, &versionNotReady):
		return "RepositoryVersionNotReady"
	case errors.As(err, &missingAnn):
		return "MissingAnnotation"
	case errors.As(err, &missingData):
		return "MissingData"
	case errors.As(err, &missingEnv):
		return "MissingEnvironmentVariable"
	default:
		return typeFailure
	}
}

// IsUnauthorized reports whether err is an UnauthorizedError.
func IsUnauthorized(err error) bool {
	var target *UnauthorizedError
	return errors.As(err, &target)
}

// IsUnknownResource reports whether err is an UnknownResourceError.
func IsUnknownResource(err error) bool {
	var target *UnknownResourceError
	return errors.As(err, &target)
}

// IsNotOwned reports whether err is a NotOwnedError.
func IsNotOwned(err error) bool {
	var target *NotOwnedError
	return errors.As(err, &target)
}
