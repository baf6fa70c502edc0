// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 LedgerGuard Contributors

package identity

import (
	"sort"

	lgerr "github.com/ledgerguard-dev/ledgerguard/pkg/errors"
)

// Directory resolves principal keys to Principal values. It stands in for
// the production identity provider during local development; the key is
// what a decoded token subject would be.
type Directory struct {
	principals map[string]Principal
}

// NewDirectory builds a Directory from the configured principal map.
// Entries with an invalid role are rejected.
func NewDirectory(principals map[string]Principal) (*Directory, error) {
	m := make(map[string]Principal, len(principals))
	for key, p := range principals {
		if !p.Role.Valid() {
			return nil, lgerr.New(lgerr.CodeConfigValidateInvalidValue,
				"principal "+key+" has unknown role "+string(p.Role),
				lgerr.FieldPrincipal(key))
		}
		if p.Group == "" {
			p.Group = GroupDefault
		}
		if p.ID == "" {
			p.ID = key
		}
		m[key] = p
	}
	return &Directory{principals: m}, nil
}

// Lookup returns the principal for key, failing closed on unknown keys.
func (d *Directory) Lookup(key string) (Principal, error) {
	p, ok := d.principals[key]
	if !ok {
		return Principal{}, lgerr.New(lgerr.CodeIdentityUnknownPrincipal,
			"unknown principal key "+key, lgerr.FieldPrincipal(key))
	}
	return p, nil
}

// Keys returns the known principal keys in sorted order.
func (d *Directory) Keys() []string {
	keys := make([]string, 0, len(d.principals))
	for k := range d.principals {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
