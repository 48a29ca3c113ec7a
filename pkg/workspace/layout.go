// Package workspace defines the on-disk layout shared by the state store
// and the external tool working directories.
package workspace

import (
	"path/filepath"

	"github.com/opsmith/deployctl/pkg/environment"
)

// Layout resolves every per-environment path from two roots: a data root
// holding one state file per environment, and a build root holding one
// working subtree per environment per external tool.
type Layout struct {
	DataRoot  string
	BuildRoot string
}

// Default returns the conventional layout under the given base directory.
func Default(base string) Layout {
	return Layout{
		DataRoot:  filepath.Join(base, "data"),
		BuildRoot: filepath.Join(base, "build"),
	}
}

// DataDir is the directory holding an environment's state file.
func (l Layout) DataDir(name environment.Name) string {
	return filepath.Join(l.DataRoot, name.String())
}

// StateFile is the canonical state file path for an environment.
func (l Layout) StateFile(name environment.Name) string {
	return filepath.Join(l.DataDir(name), "environment.json")
}

// BuildDir is the root of an environment's rendered working trees.
func (l Layout) BuildDir(name environment.Name) string {
	return filepath.Join(l.BuildRoot, name.String())
}

// TofuDir is the provisioning tool's working directory. Its existence is
// the heuristic destroy uses to decide whether infrastructure teardown
// should be attempted.
func (l Layout) TofuDir(name environment.Name) string {
	return filepath.Join(l.BuildDir(name), "tofu")
}

// AnsibleDir is the configuration tool's working directory.
func (l Layout) AnsibleDir(name environment.Name) string {
	return filepath.Join(l.BuildDir(name), "ansible")
}

// StackDir holds the rendered application-stack artifacts.
func (l Layout) StackDir(name environment.Name) string {
	return filepath.Join(l.BuildDir(name), "stack")
}
