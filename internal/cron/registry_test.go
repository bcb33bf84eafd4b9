package cron

import (
	"context"
	"testing"
)

type namedJob struct {
	name string
}

func (j *namedJob) Name() string              { return j.name }
func (j *namedJob) Run(context.Context) error { return nil }

func TestRegistryKeepsRegistrationOrder(t *testing.T) {
	billing := &namedJob{name: "billing"}
	retry := &namedJob{name: "webhook-retry"}
	registry := NewRegistry(billing, nil, retry)

	jobs := registry.Jobs()
	if len(jobs) != 2 {
		t.Fatalf("expected 2 jobs, got %d", len(jobs))
	}
	if jobs[0] != billing || jobs[1] != retry {
		t.Fatalf("jobs returned out of order")
	}

	// callers must not be able to mutate the registry through the copy
	jobs[0] = nil
	if registry.Jobs()[0] == nil {
		t.Fatalf("internal slice leaked")
	}
}
