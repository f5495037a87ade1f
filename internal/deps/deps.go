// Package deps reports whether the external binaries klyppr shells out to are
// installed, and which version they report.
package deps

import (
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// Requirement names an external binary and the command used to find it.
// Command may be a bare name resolved through PATH or an absolute path.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status is the outcome of resolving a Requirement.
type Status struct {
	Requirement
	Available bool
	Path      string
	Version   string
	Detail    string
}

// Resolve locates req on the system. Detail explains an unavailable binary.
func Resolve(req Requirement) Status {
	req.Command = strings.TrimSpace(req.Command)
	req.Description = strings.TrimSpace(req.Description)
	status := Status{Requirement: req}
	if req.Command == "" {
		status.Detail = "command not configured"
		return status
	}
	path, err := exec.LookPath(req.Command)
	switch {
	case errors.Is(err, exec.ErrNotFound):
		status.Detail = fmt.Sprintf("binary %q not found", req.Command)
	case err != nil:
		status.Detail = fmt.Sprintf("binary %q unusable: %v", req.Command, err)
	default:
		status.Available = true
		status.Path = path
	}
	return status
}

// ResolveAll resolves every requirement, preserving order.
func ResolveAll(reqs []Requirement) []Status {
	out := make([]Status, len(reqs))
	for i, req := range reqs {
		out[i] = Resolve(req)
	}
	return out
}

// Blocking reports whether s is a required binary that is unavailable.
func (s Status) Blocking() bool {
	return !s.Available && !s.Optional
}
