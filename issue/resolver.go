// Package issue maps projects to remote issue keys and validates keys
// against the remote tracker.
package issue

import (
	"context"
	"strings"
	"sync"
)

// Rule is one configured project-to-issue mapping.
type Rule struct {
	Name        string
	ProjectPath string
	ProjectName string
	IssueKey    string
}

// Validation is the remote tracker's answer for one issue key.
type Validation struct {
	Valid   bool
	Summary string
	Message string
}

// Validator performs the remote validation call.
type Validator interface {
	ValidateIssue(ctx context.Context, issueKey string) (Validation, error)
}

// KeyHistory looks up previously used issue keys, the fallback when no
// configured rule matches a project.
type KeyHistory interface {
	LatestIssueKeyForProject(projectPath string) (string, bool, error)
}

// Resolver suggests issue keys for projects and validates keys with a
// per-session cache. Safe for concurrent use.
type Resolver struct {
	rules     []Rule
	history   KeyHistory
	validator Validator

	mu    sync.Mutex
	cache map[string]Validation
}

func NewResolver(rules []Rule, history KeyHistory, validator Validator) *Resolver {
	return &Resolver{
		rules:     rules,
		history:   history,
		validator: validator,
		cache:     make(map[string]Validation),
	}
}

// Suggest returns the issue key to prefill for a project. Configured rules
// win; otherwise the most recently used key for the same project path is
// reused. found is false when neither yields a key.
func (r *Resolver) Suggest(projectPath, projectName string) (string, bool, error) {
	for _, rule := range r.rules {
		if rule.IssueKey == "" {
			continue
		}
		if rule.ProjectPath != "" && rule.ProjectPath == projectPath {
			return rule.IssueKey, true, nil
		}
		if rule.ProjectName != "" && strings.EqualFold(rule.ProjectName, projectName) {
			return rule.IssueKey, true, nil
		}
	}

	if r.history == nil {
		return "", false, nil
	}
	return r.history.LatestIssueKeyForProject(projectPath)
}

// Validate checks an issue key against the remote tracker. A valid result is
// cached for the rest of the session so re-confirming the same key is free.
// Invalid results and transport errors are never cached and leave cached
// results for other keys untouched.
func (r *Resolver) Validate(ctx context.Context, issueKey string) (Validation, error) {
	issueKey = strings.TrimSpace(issueKey)
	if issueKey == "" {
		return Validation{Valid: false, Message: "issue key is empty"}, nil
	}

	r.mu.Lock()
	cached, ok := r.cache[issueKey]
	r.mu.Unlock()
	if ok {
		return cached, nil
	}

	result, err := r.validator.ValidateIssue(ctx, issueKey)
	if err != nil {
		return Validation{}, err
	}

	if result.Valid {
		r.mu.Lock()
		r.cache[issueKey] = result
		r.mu.Unlock()
	}
	return result, nil
}

// ClearSession drops all cached validation results. Called when a sync
// session ends.
func (r *Resolver) ClearSession() {
	r.mu.Lock()
	r.cache = make(map[string]Validation)
	r.mu.Unlock()
}
