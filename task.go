package seqio

import (
	"fmt"
	"path"
)

// Transform converts one raw source record into zero or more
// transformed records. It is opaque to the pipeline: the pipeline only
// guarantees it is applied exactly once per raw record consumed.
type Transform func(raw []byte) ([]Record, error)

// Task is one named unit of data preparation. A task is defined before
// the pipeline starts and is immutable for the pipeline's duration.
type Task struct {
	// Name uniquely identifies the task within a registry.
	Name string

	// Splits lists the task's data splits, in the order their
	// sub-pipelines are planned.
	Splits []string

	// OutputFeatures declares the features the transform emits.
	// Statistics are only computed for declared features.
	OutputFeatures map[string]Feature

	// Source provides the raw records for each split.
	Source Source

	// Transform is applied to every raw record consumed.
	Transform Transform

	// SupportsCaching gates the task out of cache runs entirely when
	// false.
	SupportsCaching bool
}

// Registry is an ordered collection of tasks, keyed by name. It is an
// explicit value threaded through the pipeline; there is no process
// global.
type Registry struct {
	names []string
	tasks map[string]*Task
}

// NewRegistry creates an empty task registry.
func NewRegistry() *Registry {
	return &Registry{
		tasks: make(map[string]*Task),
	}
}

// Add registers a task. Returns ErrDuplicateTask if a task with the
// same name is already registered.
func (r *Registry) Add(task *Task) error {
	if task.Name == "" {
		return fmt.Errorf("cannot register task with empty name")
	}
	if _, ok := r.tasks[task.Name]; ok {
		return fmt.Errorf("%w: %q", ErrDuplicateTask, task.Name)
	}
	r.names = append(r.names, task.Name)
	r.tasks[task.Name] = task
	return nil
}

// Get returns the task registered under name.
func (r *Registry) Get(name string) (*Task, error) {
	task, ok := r.tasks[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrTaskNotFound, name)
	}
	return task, nil
}

// Names returns all registered task names in registration order.
func (r *Registry) Names() []string {
	return append([]string(nil), r.names...)
}

// Select returns the tasks whose name matches at least one include
// pattern and no exclude pattern, in registration order. Patterns are
// full-string wildcard matches (path.Match syntax). An empty include
// list matches every task; an empty exclude list excludes none.
// Exclusion takes precedence over inclusion.
func (r *Registry) Select(include, exclude []string) ([]*Task, error) {
	var out []*Task
	for _, name := range r.names {
		included, err := matchAny(include, name, true)
		if err != nil {
			return nil, err
		}
		excluded, err := matchAny(exclude, name, false)
		if err != nil {
			return nil, err
		}
		if included && !excluded {
			out = append(out, r.tasks[name])
		}
	}
	return out, nil
}

// matchAny reports whether name matches any of the patterns. empty is
// the result for an empty pattern list.
func matchAny(patterns []string, name string, empty bool) (bool, error) {
	if len(patterns) == 0 {
		return empty, nil
	}
	for _, pattern := range patterns {
		matched, err := path.Match(pattern, name)
		if err != nil {
			return false, fmt.Errorf("invalid task pattern %q: %w", pattern, err)
		}
		if matched {
			return true, nil
		}
	}
	return false, nil
}
