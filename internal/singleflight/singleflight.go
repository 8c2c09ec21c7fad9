// Package singleflight deduplicates concurrent L2 loads for the same key,
// wrapping golang.org/x/sync/singleflight.Group.
package singleflight

import (
	"bytes"

	"golang.org/x/sync/singleflight"

	"github.com/kirky-x/twotier/internal/l2"
)

// Group deduplicates concurrent loads per key. At most one load per key
// runs at a time within a process; concurrent callers wait on the first
// load's result and each receive an independently-owned copy of the
// returned bytes, so one caller mutating its slice can never corrupt
// another's.
type Group struct {
	g singleflight.Group
}

// Result mirrors l2.VersionedValue plus the hit flag, since a Do call must
// also be able to propagate "absent".
type Result struct {
	Value   []byte
	Version uint64
	Hit     bool
}

// Loader performs the actual L2 round trip; errors propagate to every
// waiter.
type Loader func() (Result, error)

// Do ensures only one Loader for key is in flight at a time. The
// underlying load is not tied to any individual caller's cancellation — it
// always runs to completion once started, so a later caller's result (and
// any L1 promotion keyed off it) is never corrupted by an earlier caller's
// timeout. Each caller receives its own copy of Value.
func (g *Group) Do(key string, load Loader) (Result, error) {
	v, err, _ := g.g.Do(key, func() (any, error) {
		return load()
	})
	if err != nil {
		return Result{}, err
	}
	res := v.(Result)
	if res.Hit {
		res.Value = bytes.Clone(res.Value)
	}
	return res, nil
}

// FromVersioned adapts an l2.VersionedValue + hit flag into a Result, for
// callers whose Loader wraps an l2.Backend.GetWithVersion call directly.
func FromVersioned(vv l2.VersionedValue, hit bool) Result {
	return Result{Value: vv.Value, Version: vv.Version, Hit: hit}
}
