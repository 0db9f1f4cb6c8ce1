package runner

import (
	"os"
	"strings"
)

// Environment variables exported to wrapped commands.
const (
	EnvJobName = "RUNWATCH_JOB_NAME"
	EnvRunID   = "RUNWATCH_RUN_ID"
)

// BuildEnv constructs the environment for a wrapped command: the current
// process environment, overlaid with base, then the job's own variables and
// the RUNWATCH_* identifiers.
func BuildEnv(base map[string]string, job Job) []string {
	envMap := make(map[string]string)
	for _, e := range os.Environ() {
		if k, v, ok := strings.Cut(e, "="); ok {
			envMap[k] = v
		}
	}
	for k, v := range base {
		envMap[k] = v
	}
	for k, v := range job.Env {
		envMap[k] = v
	}
	envMap[EnvJobName] = job.Name
	envMap[EnvRunID] = job.RunID

	result := make([]string, 0, len(envMap))
	for k, v := range envMap {
		result = append(result, k+"="+v)
	}
	return result
}
