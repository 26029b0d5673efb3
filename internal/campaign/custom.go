package campaign

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/felixgeelhaar/sweep/internal/process"
)

// CustomCheckFactory builds a custom validator from its YAML parameters.
// workDir is the campaign working directory.
type CustomCheckFactory func(workDir string, params map[string]string) (CustomValidator, error)

// CustomCheckRegistry resolves custom check names used in campaign files
type CustomCheckRegistry struct {
	mu        sync.RWMutex
	factories map[string]CustomCheckFactory
}

// NewCustomCheckRegistry creates an empty registry
func NewCustomCheckRegistry() *CustomCheckRegistry {
	return &CustomCheckRegistry{factories: make(map[string]CustomCheckFactory)}
}

// Register adds or replaces a factory
func (r *CustomCheckRegistry) Register(name string, factory CustomCheckFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = factory
}

// Build resolves name into a validator
func (r *CustomCheckRegistry) Build(name, workDir string, params map[string]string) (CustomValidator, error) {
	r.mu.RLock()
	factory, ok := r.factories[name]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("unknown custom check %q (available: %s)", name, strings.Join(r.Names(), ", "))
	}
	return factory(workDir, params)
}

// Names lists the registered check names
func (r *CustomCheckRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// RegisterBuiltinChecks registers the file and command based checks
func RegisterBuiltinChecks(registry *CustomCheckRegistry, runner process.Runner) {
	registry.Register("file-exists", fileExistsCheck)
	registry.Register("file-contains", fileContainsCheck)
	registry.Register("command", func(workDir string, params map[string]string) (CustomValidator, error) {
		return commandCheck(runner, workDir, params)
	})
}

func requireParam(params map[string]string, key string) (string, error) {
	v := strings.TrimSpace(params[key])
	if v == "" {
		return "", fmt.Errorf("parameter %q is required", key)
	}
	return v, nil
}

func resolvePath(workDir, path string) string {
	if filepath.IsAbs(path) || workDir == "" {
		return path
	}
	return filepath.Join(workDir, path)
}

func fileExistsCheck(workDir string, params map[string]string) (CustomValidator, error) {
	path, err := requireParam(params, "path")
	if err != nil {
		return nil, err
	}
	full := resolvePath(workDir, path)
	return func(ctx context.Context) (bool, error) {
		_, err := os.Stat(full)
		if os.IsNotExist(err) {
			return false, nil
		}
		return err == nil, err
	}, nil
}

func fileContainsCheck(workDir string, params map[string]string) (CustomValidator, error) {
	path, err := requireParam(params, "path")
	if err != nil {
		return nil, err
	}
	text, err := requireParam(params, "text")
	if err != nil {
		return nil, err
	}
	full := resolvePath(workDir, path)
	return func(ctx context.Context) (bool, error) {
		data, err := os.ReadFile(full)
		if err != nil {
			return false, err
		}
		return strings.Contains(string(data), text), nil
	}, nil
}

func commandCheck(runner process.Runner, workDir string, params map[string]string) (CustomValidator, error) {
	if runner == nil {
		return nil, fmt.Errorf("no process runner configured")
	}
	line, err := requireParam(params, "run")
	if err != nil {
		return nil, err
	}
	fields := strings.Fields(line)
	return func(ctx context.Context) (bool, error) {
		_, err := runner.Run(ctx, process.Command{Name: fields[0], Args: fields[1:], Dir: workDir})
		if err == nil {
			return true, nil
		}
		if _, _, exited := process.ExitCodeOf(err); exited {
			return false, nil
		}
		return false, err
	}, nil
}
