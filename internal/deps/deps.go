// Package deps locates the sidecar executables the desktop shell launches
// and reports their availability.
package deps

import (
	"strings"
)

// Requirement defines an external executable the supervisor may launch.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status reports the availability of a requirement.
type Status struct {
	Name        string
	Command     string
	Description string
	Optional    bool
	Available   bool
	Source      string
	Detail      string
}

// CheckBinaries resolves each requirement with the given strategy chain.
func CheckBinaries(requirements []Requirement, strategies ...Strategy) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		cmd := strings.TrimSpace(req.Command)
		status := Status{
			Name:        req.Name,
			Command:     cmd,
			Description: strings.TrimSpace(req.Description),
			Optional:    req.Optional,
		}
		if cmd == "" {
			status.Detail = "command not configured"
			results = append(results, status)
			continue
		}
		resolved, err := Resolve(cmd, strategies...)
		if err != nil {
			status.Detail = err.Error()
			results = append(results, status)
			continue
		}
		status.Command = resolved.Path
		status.Source = resolved.Strategy.String()
		status.Available = true
		results = append(results, status)
	}
	return results
}
