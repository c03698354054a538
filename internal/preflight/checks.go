package preflight

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sys/unix"

	"cardrender/internal/catalog"
	"cardrender/internal/config"
	"cardrender/internal/scene/softscene"
)

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	return checkDirectory(name, path, unix.R_OK|unix.W_OK|unix.X_OK, "read/write ok")
}

// CheckReadableDirectory verifies that the directory exists and is readable.
func CheckReadableDirectory(name, path string) Result {
	return checkDirectory(name, path, unix.R_OK|unix.X_OK, "read ok")
}

func checkDirectory(name, path string, mode uint32, ok string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, mode); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (%s)", path, ok)}
}

// CheckOutputDirectory passes for a writable directory, or for a missing one
// whose nearest existing ancestor is writable so it can be created.
func CheckOutputDirectory(name, path string) Result {
	if _, err := os.Stat(path); err == nil || !os.IsNotExist(err) {
		return CheckDirectoryAccess(name, path)
	}
	parent := filepath.Dir(path)
	for {
		if _, err := os.Stat(parent); err == nil {
			break
		}
		next := filepath.Dir(parent)
		if next == parent {
			break
		}
		parent = next
	}
	if res := CheckDirectoryAccess(name, parent); !res.Passed {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: cannot create under %s)", path, res.Detail)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (will be created)", path)}
}

// CheckCatalog loads the configured catalog.
func CheckCatalog(ctx context.Context, cfg config.Catalog) Result {
	const name = "Catalog"

	checkCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	cat, err := catalog.Load(checkCtx, cfg)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", describeSource(cfg), err)}
	}
	if cat.Len() == 0 {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: no cards)", describeSource(cfg))}
	}
	return Result{
		Name:   name,
		Passed: true,
		Detail: fmt.Sprintf("%s (%d cards, %d fields)", describeSource(cfg), cat.Len(), len(cat.Fields())),
	}
}

func describeSource(cfg config.Catalog) string {
	if cfg.Source == config.SourceFile {
		return cfg.Path
	}
	return cfg.Source
}

// CheckLayout loads the scene layout. An empty path checks the built-in one.
func CheckLayout(path string) Result {
	const name = "Scene layout"

	layout, err := softscene.LoadLayout(path)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("error: %v", err)}
	}
	source := path
	if source == "" {
		source = "built-in"
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (%d elements)", source, len(layout.Elements))}
}
