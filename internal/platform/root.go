package platform

import (
	"fmt"
	"os"
	"path/filepath"
)

// FindRoot walks up from startDir to the first directory holding a
// nodebook.yaml file, a .nodebook directory or a .git directory, and returns
// its absolute path.
func FindRoot(startDir string) (string, error) {
	abs, err := filepath.Abs(startDir)
	if err != nil {
		return "", err
	}

	dir := abs
	for {
		if hasFile(dir, ProjectConfigFile) || hasFile(dir, ".nodebook") || hasFile(dir, ".git") {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", fmt.Errorf("root not found")
}

func hasFile(dir, name string) bool {
	_, err := os.Stat(filepath.Join(dir, name))
	return err == nil
}
