package cron

import (
	"context"
	"fmt"
	"regexp"
	"slices"
	"strings"
)

// Job is one periodic task. Name is used as a metrics label and in STOREFRONT_CRON_JOBS,
// so it is lower snake case and unique within a registry.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

var jobNamePattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// Registry is the ordered set of jobs a worker runs each cycle.
type Registry struct {
	jobs []Job
}

// NewRegistry registers jobs in order, skipping nils.
func NewRegistry(jobs ...Job) (*Registry, error) {
	registry := &Registry{}
	for _, job := range jobs {
		if err := registry.Register(job); err != nil {
			return nil, err
		}
	}
	return registry, nil
}

func (r *Registry) Register(job Job) error {
	if job == nil {
		return nil
	}
	name := job.Name()
	if !jobNamePattern.MatchString(name) {
		return fmt.Errorf("cron job name %q must be lower snake case", name)
	}
	if r.lookup(name) != nil {
		return fmt.Errorf("cron job %q already registered", name)
	}
	r.jobs = append(r.jobs, job)
	return nil
}

// Jobs returns a copy in registration order.
func (r *Registry) Jobs() []Job {
	return slices.Clone(r.jobs)
}

// Only narrows the registry to names, keeping registration order. An empty list keeps
// everything; an unknown name is an error so a typo in config fails at startup.
func (r *Registry) Only(names []string) (*Registry, error) {
	if len(names) == 0 {
		return r, nil
	}
	keep := make(map[string]bool, len(names))
	for _, raw := range names {
		name := strings.TrimSpace(raw)
		if name == "" {
			continue
		}
		if r.lookup(name) == nil {
			return nil, fmt.Errorf("unknown cron job %q", name)
		}
		keep[name] = true
	}
	narrowed := &Registry{}
	for _, job := range r.jobs {
		if keep[job.Name()] {
			narrowed.jobs = append(narrowed.jobs, job)
		}
	}
	return narrowed, nil
}

func (r *Registry) lookup(name string) Job {
	for _, job := range r.jobs {
		if job.Name() == name {
			return job
		}
	}
	return nil
}
