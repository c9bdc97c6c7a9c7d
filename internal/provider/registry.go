package provider

import (
	"fmt"

	"agentplane/internal/config"
	"agentplane/internal/logger"
)

// Registry holds the providers this process has credentials for. Not
// every deployment runs all three backends — a dev environment might only
// have sprite credentials configured.
type Registry struct {
	providers map[Name]VpsProvider
}

func NewRegistry() *Registry {
	return &Registry{providers: make(map[Name]VpsProvider)}
}

func (r *Registry) register(p VpsProvider) {
	r.providers[p.Name()] = p
}

func (r *Registry) Get(name Name) (VpsProvider, bool) {
	p, ok := r.providers[name]
	return p, ok
}

func (r *Registry) Available() []Name {
	names := make([]Name, 0, len(r.providers))
	for n := range r.providers {
		names = append(names, n)
	}
	return names
}

func (r *Registry) IsEmpty() bool {
	return len(r.providers) == 0
}

// Builder constructs a VpsProvider from the process config, or returns
// (nil, nil) if the credentials for it aren't configured — that's not an
// error, just a backend this deployment doesn't use.
type Builder func(cfg *config.Config) (VpsProvider, error)

// Build runs each builder in turn. A builder returning (nil, nil) is
// skipped quietly; a builder returning an error is logged and skipped too.
// Build only fails outright if every builder is unavailable, since a
// deployment with zero usable providers can't provision anything.
func Build(cfg *config.Config, builders ...Builder) (*Registry, error) {
	reg := NewRegistry()
	for _, build := range builders {
		p, err := build(cfg)
		if err != nil {
			logger.Warnln("provider: skipping backend, construction failed: " + err.Error())
			continue
		}
		if p == nil {
			continue
		}
		reg.register(p)
		logger.Infoln("provider: registered backend " + string(p.Name()))
	}
	if reg.IsEmpty() {
		return nil, fmt.Errorf("provider: no backends configured; set credentials for at least one of elastic, fixed, sprite")
	}
	return reg, nil
}
