// Package persona loads persona profiles and flavors cleaned output text.
package persona

import "strings"

// Profile mirrors the TOML persona schema. Profiles are read-only once
// loaded and safe to share across concurrent requests.
type Profile struct {
	Metadata MetadataConfig `toml:"metadata"`
	Voice    VoiceConfig    `toml:"voice"`
	Ethics   EthicsConfig   `toml:"ethics"`
}

type MetadataConfig struct {
	Name    string   `toml:"name"`
	Aliases []string `toml:"aliases"`
}

type VoiceConfig struct {
	Tone             string             `toml:"tone"`
	Traits           map[string]float64 `toml:"traits"`
	SignaturePhrases []string           `toml:"signature_phrases"`
}

type EthicsConfig struct {
	Constraints []string `toml:"constraints"`
}

func (p *Profile) Name() string {
	return p.Metadata.Name
}

func (p *Profile) Tone() string {
	return p.Voice.Tone
}

// Trait returns the intensity of a named trait. A trait absent from the
// profile has intensity 0 and never triggers augmentation.
func (p *Profile) Trait(name string) float64 {
	return p.Voice.Traits[name]
}

func (p *Profile) SignaturePhrases() []string {
	return p.Voice.SignaturePhrases
}

func (p *Profile) Constraints() []string {
	return p.Ethics.Constraints
}

// ViolatedConstraint reports the first ethical constraint found as a
// case-insensitive substring of the prompt.
func (p *Profile) ViolatedConstraint(prompt string) (string, bool) {
	lowered := strings.ToLower(prompt)
	for _, phrase := range p.Ethics.Constraints {
		if phrase == "" {
			continue
		}
		if strings.Contains(lowered, strings.ToLower(phrase)) {
			return phrase, true
		}
	}
	return "", false
}
