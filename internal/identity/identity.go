// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 LedgerGuard Contributors

// Package identity implements the role→capability model (RBAC) and the
// attribute-based visibility predicate (ABAC). All checks are pure and fail
// closed; the Principal value is threaded explicitly through every
// processor call — there is no ambient current-user state.
package identity

import (
	lgerr "github.com/ledgerguard-dev/ledgerguard/pkg/errors"
)

// Role is an ordered tier: Viewer < Analyst < SeniorAnalyst < Admin.
type Role string

const (
	RoleViewer        Role = "viewer"
	RoleAnalyst       Role = "analyst"
	RoleSeniorAnalyst Role = "senior_analyst"
	RoleAdmin         Role = "admin"
)

// Valid reports whether the role is one of the four known tiers.
func (r Role) Valid() bool {
	switch r {
	case RoleViewer, RoleAnalyst, RoleSeniorAnalyst, RoleAdmin:
		return true
	default:
		return false
	}
}

// Tier returns the ordering of the role; higher values dominate.
// Unknown roles are below Viewer.
func (r Role) Tier() int {
	switch r {
	case RoleViewer:
		return 1
	case RoleAnalyst:
		return 2
	case RoleSeniorAnalyst:
		return 3
	case RoleAdmin:
		return 4
	default:
		return 0
	}
}

// Capability names one permitted operation class.
type Capability string

const (
	CapabilityView          Capability = "view"
	CapabilityAnalyze       Capability = "analyze"
	CapabilityViewSensitive Capability = "view_sensitive"
	CapabilityViewAllGroups Capability = "view_all_groups"
	CapabilityManageUsers   Capability = "manage_users"
	CapabilityExport        Capability = "export"
)

// rolePermissions is the fixed role→capability table. Roles absent from the
// table have no capabilities at all.
var rolePermissions = map[Role][]Capability{
	RoleViewer: {CapabilityView},
	RoleAnalyst: {
		CapabilityView,
		CapabilityAnalyze,
	},
	RoleSeniorAnalyst: {
		CapabilityView,
		CapabilityAnalyze,
		CapabilityViewSensitive,
		CapabilityViewAllGroups,
		CapabilityExport,
	},
	RoleAdmin: {
		CapabilityView,
		CapabilityAnalyze,
		CapabilityViewSensitive,
		CapabilityViewAllGroups,
		CapabilityManageUsers,
		CapabilityExport,
	},
}

// GroupDefault is the wildcard group: principals in it may access records
// of any group, and records they create stay in the default group unless a
// group is named explicitly.
const GroupDefault = "default"

// Principal is an authenticated caller. In production the fields come from
// the identity provider's token claims; locally they come from the
// configured principal directory.
type Principal struct {
	ID    string
	Name  string
	Role  Role
	Group string
}

// HasCapability reports whether the principal's role grants cap. Pure and
// side-effect-free; unknown roles have no capabilities.
func (p Principal) HasCapability(cap Capability) bool {
	for _, c := range rolePermissions[p.Role] {
		if c == cap {
			return true
		}
	}
	return false
}

// Check verifies the principal holds cap, failing closed with a
// PermissionDenied error otherwise.
func Check(p Principal, cap Capability) error {
	if p.HasCapability(cap) {
		return nil
	}
	return lgerr.New(lgerr.CodeIdentityPermissionDenied,
		"principal "+p.ID+" with role "+string(p.Role)+" lacks capability "+string(cap),
		lgerr.FieldPrincipal(p.ID),
		lgerr.Field("role", string(p.Role)),
		lgerr.Field("capability", string(cap)),
	)
}

// Visible is the ABAC predicate: a record tagged with group is visible to p
// iff p holds view_all_groups or shares the group. The default group is a
// wildcard on the principal side.
func Visible(p Principal, group string) bool {
	if p.HasCapability(CapabilityViewAllGroups) {
		return true
	}
	return p.Group == group || p.Group == GroupDefault
}

// CheckGroup verifies visibility of group, failing closed.
func CheckGroup(p Principal, group string) error {
	if Visible(p, group) {
		return nil
	}
	return lgerr.New(lgerr.CodeIdentityGroupDenied,
		"principal "+p.ID+" cannot access group "+group,
		lgerr.FieldPrincipal(p.ID),
		lgerr.FieldGroup(group),
	)
}

// VisibleGroups returns the group restriction for store queries: nil means
// unrestricted, otherwise the exact set of groups p may read.
func VisibleGroups(p Principal) []string {
	if p.HasCapability(CapabilityViewAllGroups) || p.Group == GroupDefault {
		return nil
	}
	return []string{p.Group}
}

// RequestGroup resolves the ABAC group a new request is tagged with:
// the principal's own group, unless the principal sits in the default group
// and names an explicit one.
func RequestGroup(p Principal, explicit string) string {
	if p.Group != GroupDefault {
		return p.Group
	}
	if explicit != "" {
		return explicit
	}
	return GroupDefault
}
