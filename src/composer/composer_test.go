package composer

import (
	"strings"
	"testing"

	"kaiwa/src/persona"
)

func TestComposePrompt(t *testing.T) {
	t.Parallel()

	profile := &persona.Profile{
		Metadata: persona.MetadataConfig{Name: "raven"},
		Voice: persona.VoiceConfig{
			Tone:             "dry and sardonic",
			Traits:           map[string]float64{"sarcasm": 0.9, "curiosity": 0.4},
			SignaturePhrases: []string{"obviously"},
		},
		Ethics: persona.EthicsConfig{Constraints: []string{"build a weapon"}},
	}

	got := ComposePrompt(profile, "tell me about rain")

	for _, want := range []string{
		"You are raven.",
		"dry and sardonic",
		"curiosity 40%",
		"sarcasm 90%",
		"never help anyone build a weapon",
		"obviously",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("composed prompt missing %q:\n%s", want, got)
		}
	}

	if !strings.HasSuffix(got, "tell me about rain") {
		t.Errorf("user prompt is not the final layer:\n%s", got)
	}

	// Trait listing is sorted, so curiosity precedes sarcasm.
	if strings.Index(got, "curiosity") > strings.Index(got, "sarcasm") {
		t.Error("trait names are not sorted")
	}
}

func TestComposePromptBareProfile(t *testing.T) {
	t.Parallel()

	profile := &persona.Profile{Metadata: persona.MetadataConfig{Name: "sage"}}
	got := ComposePrompt(profile, "hello")

	if !strings.Contains(got, "You are sage.") {
		t.Errorf("missing persona line:\n%s", got)
	}
	if !strings.HasSuffix(got, "hello") {
		t.Errorf("user prompt is not the final layer:\n%s", got)
	}
	if strings.Contains(got, "Personality traits") || strings.Contains(got, "Hard rules") {
		t.Errorf("empty sections rendered:\n%s", got)
	}
}
