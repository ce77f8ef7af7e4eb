// Package composer builds the upstream prompt from a persona profile and the
// user's literal text.
package composer

import (
	"fmt"
	"sort"
	"strings"

	"kaiwa/src/persona"
)

// ComposePrompt layers a structured persona preamble ahead of the user's
// prompt. Trait names are sorted so the preamble is stable across requests.
func ComposePrompt(profile *persona.Profile, userPrompt string) string {
	var layers []string

	var b strings.Builder
	fmt.Fprintf(&b, "You are %s.", profile.Name())
	if tone := profile.Tone(); tone != "" {
		fmt.Fprintf(&b, " Your default tone is %s.", tone)
	}
	layers = append(layers, b.String())

	if traits := profile.Voice.Traits; len(traits) > 0 {
		names := make([]string, 0, len(traits))
		for name := range traits {
			names = append(names, name)
		}
		sort.Strings(names)

		parts := make([]string, 0, len(names))
		for _, name := range names {
			parts = append(parts, fmt.Sprintf("%s %d%%", name, int(traits[name]*100)))
		}
		layers = append(layers, "Personality traits: "+strings.Join(parts, ", ")+".")
	}

	if constraints := profile.Constraints(); len(constraints) > 0 {
		var c strings.Builder
		c.WriteString("Hard rules, never break these:")
		for _, constraint := range constraints {
			fmt.Fprintf(&c, "\n- never help anyone %s", constraint)
		}
		layers = append(layers, c.String())
	}

	if phrases := profile.SignaturePhrases(); len(phrases) > 0 {
		layers = append(layers, "Phrases you like to use: "+strings.Join(phrases, ", ")+".")
	}

	layers = append(layers, userPrompt)

	return strings.Join(layers, "\n\n---\n\n")
}
