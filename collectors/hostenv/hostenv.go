// Package hostenv answers the two questions a plugin needs to decide whether it
// applies to a host: is a package installed, and does a service exist.
package hostenv

import (
	"context"
	"strings"
)

// Environment reports host facts. Implementations may return an error when a
// fact cannot be determined; callers decide how to treat it.
type Environment interface {
	HasPackage(ctx context.Context, name string) (bool, error)
	HasService(ctx context.Context, name string) (bool, error)
}

// ServiceName strips a trailing ".service" so "warewulfd" and
// "warewulfd.service" compare equal.
func ServiceName(name string) string {
	return strings.TrimSuffix(strings.TrimSpace(name), ".service")
}

// Static is an in-memory Environment.
type Static struct {
	Packages []string
	Services []string
	// Err, when set, is returned by every lookup.
	Err error
}

func (s Static) HasPackage(_ context.Context, name string) (bool, error) {
	if s.Err != nil {
		return false, s.Err
	}
	for _, p := range s.Packages {
		if p == name {
			return true, nil
		}
	}
	return false, nil
}

func (s Static) HasService(_ context.Context, name string) (bool, error) {
	if s.Err != nil {
		return false, s.Err
	}
	want := ServiceName(name)
	for _, svc := range s.Services {
		if ServiceName(svc) == want {
			return true, nil
		}
	}
	return false, nil
}

// Overlay answers from facts first and falls back to base for anything facts
// does not assert.
func Overlay(base Environment, facts Static) Environment {
	return overlay{base: base, facts: facts}
}

type overlay struct {
	base  Environment
	facts Static
}

func (o overlay) HasPackage(ctx context.Context, name string) (bool, error) {
	if ok, _ := o.facts.HasPackage(ctx, name); ok {
		return true, nil
	}
	if o.base == nil {
		return false, nil
	}
	return o.base.HasPackage(ctx, name)
}

func (o overlay) HasService(ctx context.Context, name string) (bool, error) {
	if ok, _ := o.facts.HasService(ctx, name); ok {
		return true, nil
	}
	if o.base == nil {
		return false, nil
	}
	return o.base.HasService(ctx, name)
}
