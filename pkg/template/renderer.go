// Package template renders the embedded working-tree templates for the
// external tools. Rendering is a pure function of the environment: the same
// environment always produces the same files.
package template

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/opsmith/deployctl/pkg/environment"
	apperrors "github.com/opsmith/deployctl/pkg/errors"
)

//go:embed all:templates
var templatesFS embed.FS

// Renderer writes template sets into destination directories. Files ending
// in .tmpl are executed against the environment with the suffix stripped;
// everything else is copied verbatim, so playbooks keep their own Jinja
// expressions untouched.
type Renderer struct{}

// NewRenderer returns a renderer over the embedded template sets.
func NewRenderer() *Renderer { return &Renderer{} }

// RenderInfrastructure writes the provisioning working tree for the
// environment's provider into destDir.
func (r *Renderer) RenderInfrastructure(env environment.Environment, destDir string) error {
	return renderTree(filepath.Join("templates", "tofu", env.Provider.Provider.String()), destDir, env)
}

// RenderConfiguration writes the configuration working tree (inventory and
// playbooks) into destDir. It requires the instance address, so it only
// runs after provisioning outputs have been parsed.
func (r *Renderer) RenderConfiguration(env environment.Environment, destDir string) error {
	if env.InstanceIP == "" {
		return apperrors.New(apperrors.KindValidation,
			"cannot render configuration templates without an instance address")
	}
	return renderTree(filepath.Join("templates", "ansible"), destDir, env)
}

// RenderStack writes the application stack artifacts into destDir.
func (r *Renderer) RenderStack(env environment.Environment, destDir string) error {
	return renderTree(filepath.Join("templates", "stack"), destDir, env)
}

func renderTree(root, destDir string, env environment.Environment) error {
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return apperrors.Wrap(apperrors.KindIo,
			fmt.Sprintf("failed to create %s", destDir), err)
	}

	return fs.WalkDir(templatesFS, filepath.ToSlash(root), func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return apperrors.Wrap(apperrors.KindIo, "failed to walk embedded templates", err)
		}
		rel, relErr := filepath.Rel(filepath.ToSlash(root), path)
		if relErr != nil {
			return apperrors.Wrap(apperrors.KindIo, "failed to resolve template path", relErr)
		}
		if d.IsDir() {
			if rel == "." {
				return nil
			}
			if mkErr := os.MkdirAll(filepath.Join(destDir, rel), 0o755); mkErr != nil {
				return apperrors.Wrap(apperrors.KindIo,
					fmt.Sprintf("failed to create %s", rel), mkErr)
			}
			return nil
		}

		content, readErr := templatesFS.ReadFile(path)
		if readErr != nil {
			return apperrors.Wrap(apperrors.KindIo,
				fmt.Sprintf("failed to read embedded template %s", path), readErr)
		}

		dest := filepath.Join(destDir, rel)
		if strings.HasSuffix(rel, ".tmpl") {
			dest = strings.TrimSuffix(dest, ".tmpl")
			rendered, execErr := execute(path, content, env)
			if execErr != nil {
				return execErr
			}
			content = rendered
		}

		if writeErr := os.WriteFile(dest, content, 0o644); writeErr != nil {
			return apperrors.Wrap(apperrors.KindIo,
				fmt.Sprintf("failed to write %s", dest), writeErr)
		}
		return nil
	})
}

func execute(name string, content []byte, env environment.Environment) ([]byte, error) {
	tmpl, err := template.New(filepath.Base(name)).Option("missingkey=error").Parse(string(content))
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindConfiguration,
			fmt.Sprintf("embedded template %s does not parse", name), err)
	}
	var out strings.Builder
	if err := tmpl.Execute(&out, env); err != nil {
		return nil, apperrors.Wrap(apperrors.KindConfiguration,
			fmt.Sprintf("failed to render template %s", name), err)
	}
	return []byte(out.String()), nil
}
