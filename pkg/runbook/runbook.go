// Package runbook is the process-wide registry of allowed remediation
// actions per (symptom category, service), loaded from a declarative YAML
// config and optionally hot-reloaded, per §4.7.
package runbook

import (
	"os"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/sentinelops/sentinel/internal/errors"
	"github.com/sentinelops/sentinel/pkg/types"
)

// wildcardService is the registry key used for runbooks with no service
// restriction (types.Runbook.Service == nil).
const wildcardService = "*"

// document is the on-disk YAML shape.
type document struct {
	Runbooks []types.Runbook `yaml:"runbooks"`
}

// Registry is a read-mostly lookup table of runbooks keyed by category and
// service, with exact (category, service) preferred over (category, *).
type Registry struct {
	mu       sync.RWMutex
	byKey    map[string]map[string]types.Runbook // category -> service|"*" -> runbook
	path     string
	watcher  *fsnotify.Watcher
	logger   *zap.Logger
}

// Load reads and parses the runbook config at path, returning a populated
// Registry. It does not start a watcher; call Watch separately for hot
// reload.
func Load(path string, logger *zap.Logger) (*Registry, error) {
	r := &Registry{path: path, logger: logger}
	if err := r.reload(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Registry) reload() error {
	data, err := os.ReadFile(r.path)
	if err != nil {
		return errors.FailedToWithDetails("load runbook config", "runbook", r.path, err)
	}
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return errors.ParseError(r.path, "yaml", err)
	}

	byKey := make(map[string]map[string]types.Runbook)
	for _, rb := range doc.Runbooks {
		svc := wildcardService
		if rb.Service != nil && *rb.Service != "" {
			svc = *rb.Service
		}
		if byKey[rb.Category] == nil {
			byKey[rb.Category] = make(map[string]types.Runbook)
		}
		byKey[rb.Category][svc] = rb
	}

	r.mu.Lock()
	r.byKey = byKey
	r.mu.Unlock()
	return nil
}

// Watch starts an fsnotify watcher on the backing config file; on write
// events it reloads, logging (but not failing) on parse errors so a bad
// edit doesn't tear down the running registry.
func (r *Registry) Watch() error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.FailedTo("start runbook watcher", err)
	}
	if err := w.Add(r.path); err != nil {
		w.Close()
		return errors.FailedToWithDetails("watch runbook config", "runbook", r.path, err)
	}
	r.watcher = w

	go func() {
		for {
			select {
			case event, ok := <-w.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				if err := r.reload(); err != nil && r.logger != nil {
					r.logger.Warn("runbook reload failed", zap.Error(err), zap.String("path", r.path))
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				if r.logger != nil {
					r.logger.Warn("runbook watcher error", zap.Error(err))
				}
			}
		}
	}()
	return nil
}

// Close stops the watcher, if one was started.
func (r *Registry) Close() error {
	if r.watcher == nil {
		return nil
	}
	return r.watcher.Close()
}

// GetRunbook returns the runbook for (category, service), preferring an
// exact service match over a wildcard runbook for the same category.
func (r *Registry) GetRunbook(category, service string) (types.Runbook, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	byService, ok := r.byKey[category]
	if !ok {
		return types.Runbook{}, false
	}
	if rb, ok := byService[service]; ok {
		return rb, true
	}
	if rb, ok := byService[wildcardService]; ok {
		return rb, true
	}
	return types.Runbook{}, false
}

// GetAllowedActions returns the allow-listed actions for (category,
// service), or nil if no runbook matches.
func (r *Registry) GetAllowedActions(category, service string) []types.RunbookAction {
	rb, ok := r.GetRunbook(category, service)
	if !ok {
		return nil
	}
	return rb.AllowedActions
}

// IsAllowed reports whether actionType is present in the runbook for
// (category, service). The action selector MUST consult this before
// recommending any action; there is no free-form action invention.
func (r *Registry) IsAllowed(actionType, category, service string) bool {
	for _, a := range r.GetAllowedActions(category, service) {
		if a.ActionType == actionType {
			return true
		}
	}
	return false
}
