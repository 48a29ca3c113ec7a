package environment

import (
	"regexp"

	apperrors "github.com/opsmith/deployctl/pkg/errors"
)

// namePattern matches lowercase alphanumeric names with interior hyphens.
var namePattern = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]*[a-z0-9])?$`)

// Name identifies one environment. Names are globally unique and are used
// as directory names under the data and build roots.
type Name string

// NewName validates and returns an environment name.
func NewName(raw string) (Name, error) {
	if raw == "" {
		return "", apperrors.New(apperrors.KindValidation, "environment name must not be empty")
	}
	if !namePattern.MatchString(raw) {
		return "", apperrors.Newf(apperrors.KindValidation,
			"invalid environment name %q: must be lowercase alphanumeric with hyphens", raw).
			WithTroubleshooting("Environment names must start and end with a letter or digit " +
				"and may contain hyphens in between, e.g. \"staging\" or \"demo-2\".")
	}
	return Name(raw), nil
}

func (n Name) String() string { return string(n) }

// UnmarshalText validates names decoded from state files, so a hand-edited
// record cannot smuggle in an invalid name.
func (n *Name) UnmarshalText(text []byte) error {
	name, err := NewName(string(text))
	if err != nil {
		return err
	}
	*n = name
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (n Name) MarshalText() ([]byte, error) {
	return []byte(n), nil
}
