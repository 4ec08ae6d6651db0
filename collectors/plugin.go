package collectors

import (
	"context"
	"regexp"
	"slices"
	"strings"

	"diag-bundle/collectors/hostenv"
	"diag-bundle/logging"
)

var nameRegex = regexp.MustCompile(`^[a-z0-9][a-z0-9_.-]*$`)

// reservedNames are top-level entries of a case directory that a plugin's
// output directory must not shadow.
var reservedNames = map[string]bool{
	"manifest.json": true,
	"analysis":      true,
	"errors":        true,
	"system":        true,
}

// Flags tune how the runtime treats a plugin.
type Flags struct {
	// AlwaysApplicable plugins gather host-level data and skip detection.
	AlwaysApplicable bool `json:"always_applicable,omitempty" yaml:"always_applicable,omitempty" toml:"always_applicable"`
	// NoExternalService plugins do not depend on a running service, so a missing
	// journal is not reported as a failure.
	NoExternalService bool `json:"no_external_service,omitempty" yaml:"no_external_service,omitempty" toml:"no_external_service"`
}

// PluginConfig is the raw declaration a Plugin is built from.
type PluginConfig struct {
	Name           string   `json:"name" yaml:"name" toml:"name" validate:"required,plugin_name"`
	ShortDesc      string   `json:"short_desc,omitempty" yaml:"short_desc,omitempty" toml:"short_desc"`
	Services       []string `json:"services,omitempty" yaml:"services,omitempty" toml:"services" validate:"dive,nonblank"`
	Packages       []string `json:"packages,omitempty" yaml:"packages,omitempty" toml:"packages" validate:"dive,nonblank"`
	CopyPaths      []string `json:"copy_paths,omitempty" yaml:"copy_paths,omitempty" toml:"copy_paths" validate:"dive,nonblank,abspath,pathpattern"`
	ForbiddenPaths []string `json:"forbidden_paths,omitempty" yaml:"forbidden_paths,omitempty" toml:"forbidden_paths" validate:"dive,nonblank,abspath,pathpattern"`
	Commands       []string `json:"commands,omitempty" yaml:"commands,omitempty" toml:"commands" validate:"dive,nonblank"`
	JournalUnits   []string `json:"journal_units,omitempty" yaml:"journal_units,omitempty" toml:"journal_units" validate:"dive,nonblank"`
	Flags          Flags    `json:"flags,omitempty" yaml:"flags,omitempty" toml:"flags"`
}

// Plugin declares what to gather for one subsystem. It never touches the
// filesystem or spawns processes; a Plugin is immutable once built.
type Plugin struct {
	name      string
	shortDesc string
	services  []string
	packages  []string
	flags     Flags
	spec      CollectionSpec
}

// New validates cfg and builds a Plugin. Any problem is a *ConfigError.
func New(cfg PluginConfig) (*Plugin, error) {
	cfg.Name = strings.TrimSpace(cfg.Name)
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	return &Plugin{
		name:      cfg.Name,
		shortDesc: cfg.ShortDesc,
		services:  slices.Clone(cfg.Services),
		packages:  slices.Clone(cfg.Packages),
		flags:     cfg.Flags,
		spec: CollectionSpec{
			CopyPaths:      slices.Clone(cfg.CopyPaths),
			ForbiddenPaths: slices.Clone(cfg.ForbiddenPaths),
			Commands:       slices.Clone(cfg.Commands),
			JournalUnits:   slices.Clone(cfg.JournalUnits),
		},
	}, nil
}

// MustNew is New for package-level declarations; it panics on a config error.
func MustNew(cfg PluginConfig) *Plugin {
	p, err := New(cfg)
	if err != nil {
		panic(err)
	}
	return p
}

func (p *Plugin) Name() string { return p.name }
func (p *Plugin) ShortDesc() string { return p.shortDesc }
func (p *Plugin) Services() []string { return slices.Clone(p.services) }
func (p *Plugin) Packages() []string { return slices.Clone(p.packages) }
func (p *Plugin) Flags() Flags { return p.flags }
func (p *Plugin) Spec() CollectionSpec { return p.spec.clone() }

// Config returns the declaration the plugin was built from.
func (p *Plugin) Config() PluginConfig {
	s := p.spec.clone()
	return PluginConfig{
		Name:           p.name,
		ShortDesc:      p.shortDesc,
		Services:       p.Services(),
		Packages:       p.Packages(),
		CopyPaths:      s.CopyPaths,
		ForbiddenPaths: s.ForbiddenPaths,
		Commands:       s.Commands,
		JournalUnits:   s.JournalUnits,
		Flags:          p.flags,
	}
}

// Applicable reports whether any declared package is installed or any declared
// service exists on the host. Detection errors count as "not present".
func (p *Plugin) Applicable(ctx context.Context, env hostenv.Environment) (ok bool) {
	log := logging.For(ctx, "collectors").With(logging.KeyPlugin, p.name)
	defer func() {
		if r := recover(); r != nil {
			log.Warn("applicability check panicked", "panic", r)
			ok = false
		}
	}()

	if p.flags.AlwaysApplicable {
		return true
	}
	if env == nil {
		return false
	}
	for _, pkg := range p.packages {
		ok, err := env.HasPackage(ctx, pkg)
		if err != nil {
			log.Debug("package detection failed", "package", pkg, logging.KeyError, err)
			continue
		}
		if ok {
			return true
		}
	}
	for _, svc := range p.services {
		ok, err := env.HasService(ctx, svc)
		if err != nil {
			log.Debug("service detection failed", "service", svc, logging.KeyError, err)
			continue
		}
		if ok {
			return true
		}
	}
	return false
}
