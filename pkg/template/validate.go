package template

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/hcl/v2/hclparse"

	apperrors "github.com/opsmith/deployctl/pkg/errors"
)

// ValidateInfrastructure lets callers reach the package-level check through
// the renderer value they already hold.
func (r *Renderer) ValidateInfrastructure(dir string) error {
	return ValidateInfrastructure(dir)
}

// ValidateInfrastructure syntax-checks every rendered .tf file in dir before
// any provisioning tool invocation. A template bug surfaces here as a
// Validation error instead of an opaque tool failure later.
func ValidateInfrastructure(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return apperrors.Wrap(apperrors.KindIo,
			fmt.Sprintf("failed to read rendered infrastructure dir %s", dir), err)
	}

	parser := hclparse.NewParser()
	var problems []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".tf") {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if _, diags := parser.ParseHCLFile(path); diags.HasErrors() {
			for _, diag := range diags.Errs() {
				problems = append(problems, diag.Error())
			}
		}
	}

	if len(problems) > 0 {
		return apperrors.Newf(apperrors.KindValidation,
			"rendered infrastructure files are not valid HCL: %s",
			strings.Join(problems, "; ")).
			WithTroubleshooting(fmt.Sprintf(
				"Inspect the rendered files in %s. This points at a template defect, "+
					"not at your configuration.", dir))
	}
	return nil
}
