// Package workspace resolves the logical workspace root directory that
// scopes file references surfaced to the agent and to users.
package workspace

import (
	"os"
	"sync"
)

// EnvVar overrides the workspace root directory name.
const EnvVar = "WORKSPACE_DIR"

// DefaultDir is the workspace root used when no override is set.
const DefaultDir = "workspace"

var cached = sync.OnceValue(Resolve)

// Resolve performs the workspace lookup: the WORKSPACE_DIR environment
// variable when set, the default otherwise. Prefer passing the result as an
// explicit constructor parameter over calling this repeatedly.
func Resolve() string {
	if v := os.Getenv(EnvVar); v != "" {
		return v
	}
	return DefaultDir
}

// Dir returns the workspace root resolved once per process. The first call
// fixes the value for the process lifetime.
func Dir() string {
	return cached()
}
