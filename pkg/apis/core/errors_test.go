// SPDX-FileCopyrightText: SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

package core_test

import (
	"errors"
	"fmt"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/substrate/playground/pkg/apis/core"
)

var _ = Describe("ErrorType", func() {
	DescribeTable("should name every error kind",
		func(err error, expected string) {
			Expect(core.ErrorType(err)).To(Equal(expected))
		},
		Entry("unauthorized", &core.UnauthorizedError{Resource: core.ResourceSession, Permission: core.PermissionCreate}, "Unauthorized"),
		Entry("unknown resource", &core.UnknownResourceError{Resource: core.ResourceUser, ID: "alice"}, "UnknownResource"),
		Entry("not owned", &core.NotOwnedError{Resource: core.ResourceSession, ID: "alice"}, "ResourceNotOwned"),
		Entry("session id already used", &core.SessionIDAlreadyUsedError{}, "SessionIdAlreadyUsed"),
		Entry("concurrent sessions limit", &core.ConcurrentSessionsLimitError{Count: 7}, "ConcurrentSessionsLimitBreached"),
		Entry("duration limit", &core.DurationLimitError{Max: time.Hour}, "DurationLimitBreached"),
		Entry("version not ready", &core.RepositoryVersionNotReadyError{}, "RepositoryVersionNotReady"),
		Entry("missing annotation", &core.MissingAnnotationError{Annotation: "ROLE"}, "MissingAnnotation"),
		Entry("missing data", &core.MissingDataError{Path: "pod.status"}, "MissingData"),
		Entry("missing environment variable", &core.MissingEnvironmentVariableError{Name: "GITHUB_CLIENT_ID"}, "MissingEnvironmentVariable"),
		Entry("plain failure", errors.New("boom"), "Failure"),
	)

	It("should see through wrapping", func() {
		err := fmt.Errorf("context: %w", &core.UnauthorizedError{Resource: core.ResourceSession, Permission: core.PermissionRead})
		Expect(core.ErrorType(err)).To(Equal("Unauthorized"))
	})
})

var _ = Describe("Failure", func() {
	It("should return nil for nil", func() {
		Expect(core.Failure(nil)).To(Succeed())
	})

	It("should preserve already-typed errors", func() {
		typed := &core.SessionIDAlreadyUsedError{}
		Expect(core.ErrorType(core.Failure(typed))).To(Equal("SessionIdAlreadyUsed"))
	})

	It("should wrap untyped errors", func() {
		wrapped := core.Failure(errors.New("boom"))
		var failure *core.FailureError
		Expect(errors.As(wrapped, &failure)).To(BeTrue())
		Expect(failure.Cause).To(MatchError("boom"))
	})
})

var _ = Describe("DurationLimitError", func() {
	It("should report the maximum in milliseconds", func() {
		err := &core.DurationLimitError{Max: 2 * time.Minute}
		Expect(err.Error()).To(ContainSubstring("120000"))
	})
})
