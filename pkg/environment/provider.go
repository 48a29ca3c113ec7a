package environment

import (
	"github.com/go-playground/validator/v10"

	apperrors "github.com/opsmith/deployctl/pkg/errors"
)

// validate is shared by all construction-time struct validation in this
// package.
var validate = validator.New()

// Provider identifies a supported infrastructure provider.
type Provider string

const (
	// ProviderLXD provisions a local LXD container or VM.
	ProviderLXD Provider = "lxd"

	// ProviderHetzner provisions a Hetzner Cloud server.
	ProviderHetzner Provider = "hetzner"
)

func (p Provider) String() string { return string(p) }

// LXDConfig carries the fields the LXD provider needs.
type LXDConfig struct {
	// Profile is the LXD profile applied to the instance.
	Profile string `json:"profile" validate:"required"`
}

// HetznerConfig carries the fields the Hetzner provider needs.
type HetznerConfig struct {
	APIToken   string `json:"api_token" validate:"required"`
	Location   string `json:"location" validate:"required"`
	ServerType string `json:"server_type" validate:"required"`
	Image      string `json:"image" validate:"required"`
}

// ProviderConfig is a closed tagged variant: exactly one provider section
// is set and it must match the Provider tag. Which steps run for a given
// provider is decided by the command orchestration, never by conditional
// logic inside rendered configuration artifacts.
type ProviderConfig struct {
	Provider Provider       `json:"provider"`
	LXD      *LXDConfig     `json:"lxd,omitempty"`
	Hetzner  *HetznerConfig `json:"hetzner,omitempty"`
}

// NewLXDProvider returns a validated LXD provider config.
func NewLXDProvider(cfg LXDConfig) (ProviderConfig, error) {
	pc := ProviderConfig{Provider: ProviderLXD, LXD: &cfg}
	if err := pc.Validate(); err != nil {
		return ProviderConfig{}, err
	}
	return pc, nil
}

// NewHetznerProvider returns a validated Hetzner provider config.
func NewHetznerProvider(cfg HetznerConfig) (ProviderConfig, error) {
	pc := ProviderConfig{Provider: ProviderHetzner, Hetzner: &cfg}
	if err := pc.Validate(); err != nil {
		return ProviderConfig{}, err
	}
	return pc, nil
}

// Validate checks the tag is known and that exactly the matching provider
// section is present with all of its required fields.
func (pc ProviderConfig) Validate() error {
	switch pc.Provider {
	case ProviderLXD:
		if pc.LXD == nil || pc.Hetzner != nil {
			return apperrors.New(apperrors.KindConfiguration,
				"provider config tagged lxd must carry exactly the lxd section")
		}
		if err := validate.Struct(pc.LXD); err != nil {
			return apperrors.Wrap(apperrors.KindValidation, "invalid lxd provider config", err)
		}
	case ProviderHetzner:
		if pc.Hetzner == nil || pc.LXD != nil {
			return apperrors.New(apperrors.KindConfiguration,
				"provider config tagged hetzner must carry exactly the hetzner section")
		}
		if err := validate.Struct(pc.Hetzner); err != nil {
			return apperrors.Wrap(apperrors.KindValidation, "invalid hetzner provider config", err)
		}
	default:
		return apperrors.Newf(apperrors.KindValidation, "unknown provider %q", pc.Provider)
	}
	return nil
}
