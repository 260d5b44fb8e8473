// SPDX-FileCopyrightText: SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

package core_test

import (
	"encoding/json"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/substrate/playground/pkg/apis/core"
)

var _ = Describe("Duration", func() {
	It("should serialize as integer minutes", func() {
		data, err := json.Marshal(core.MinutesDuration(120))
		Expect(err).NotTo(HaveOccurred())
		Expect(string(data)).To(Equal("120"))
	})

	It("should deserialize integer minutes", func() {
		var duration core.Duration
		Expect(json.Unmarshal([]byte("45"), &duration)).To(Succeed())
		Expect(duration.Duration).To(Equal(45 * time.Minute))
	})

	It("should truncate sub-minute durations when serializing", func() {
		data, err := json.Marshal(core.Duration{Duration: 90 * time.Second})
		Expect(err).NotTo(HaveOccurred())
		Expect(string(data)).To(Equal("1"))
	})
})

var _ = Describe("UnixTime", func() {
	It("should serialize as seconds since the epoch", func() {
		data, err := json.Marshal(core.UnixTime{Time: time.Unix(1700000000, 0)})
		Expect(err).NotTo(HaveOccurred())
		Expect(string(data)).To(Equal("1700000000"))
	})

	It("should round-trip through a session state", func() {
		state := core.SessionState{
			Type:      core.SessionRunning,
			StartTime: &core.UnixTime{Time: time.Unix(1700000000, 0)},
		}
		data, err := json.Marshal(state)
		Expect(err).NotTo(HaveOccurred())

		var decoded core.SessionState
		Expect(json.Unmarshal(data, &decoded)).To(Succeed())
		Expect(decoded.StartTime.Unix()).To(Equal(int64(1700000000)))
	})
})

var _ = Describe("Role", func() {
	var role *core.Role

	BeforeEach(func() {
		role = &core.Role{
			ID: "admin",
			Permissions: map[core.ResourceType][]core.Permission{
				core.ResourceSession: {
					core.PermissionRead,
					core.CustomPermission(core.CustomizeSessionDuration),
				},
			},
		}
	})

	It("should allow an exact tuple", func() {
		Expect(role.Allows(core.ResourceSession, core.PermissionRead)).To(BeTrue())
	})

	It("should match custom permissions by name", func() {
		Expect(role.Allows(core.ResourceSession, core.CustomPermission(core.CustomizeSessionDuration))).To(BeTrue())
		Expect(role.Allows(core.ResourceSession, core.CustomPermission(core.CustomizeSessionName))).To(BeFalse())
	})

	It("should deny permissions on other resources", func() {
		Expect(role.Allows(core.ResourceUser, core.PermissionRead)).To(BeFalse())
	})
})

var _ = Describe("User", func() {
	It("should expose the pool affinity preference", func() {
		user := &core.User{ID: "alice", Preferences: map[string]string{core.PreferencePoolAffinity: "gpu"}}
		Expect(user.PoolAffinity()).To(Equal("gpu"))
		Expect((&core.User{ID: "bob"}).PoolAffinity()).To(BeEmpty())
	})
})
