package persona

import "strings"

// Augmentation policy. Steps run in a fixed order so output is reproducible
// given a fixed random sequence: signature insertion, then the sarcasm
// append, then the curiosity append.
const (
	signatureProbability = 0.3
	sarcasmProbability   = 0.5
	curiosityProbability = 0.4

	sarcasmThreshold   = 0.5
	curiosityThreshold = 0.7

	sarcasmSuffix   = " Oh, what a surprise."
	curiositySuffix = " What do you make of that?"
)

// Chance abstracts the random source so augmentation is reproducible in
// tests. *math/rand.Rand satisfies it.
type Chance interface {
	Float64() float64
	Intn(n int) int
}

// Augment flavors a cleaned fragment according to the profile. Each request
// owns its own Chance; the profile itself is never mutated.
func Augment(text string, profile *Profile, rng Chance) string {
	if profile == nil {
		return text
	}

	text = insertSignature(text, profile, rng)

	if profile.Trait("sarcasm") > sarcasmThreshold && rng.Float64() < sarcasmProbability {
		text += sarcasmSuffix
	}
	if profile.Trait("curiosity") > curiosityThreshold && rng.Float64() < curiosityProbability {
		text += curiositySuffix
	}

	return text
}

// insertSignature places one signature phrase at a random word boundary
// strictly after the first word. Fragments of fewer than two words are left
// alone so sentence starts are never corrupted.
func insertSignature(text string, profile *Profile, rng Chance) string {
	phrases := profile.SignaturePhrases()
	if len(phrases) == 0 {
		return text
	}

	words := strings.Fields(text)
	if len(words) < 2 {
		return text
	}

	if rng.Float64() >= signatureProbability {
		return text
	}

	phrase := phrases[rng.Intn(len(phrases))]
	pos := 1 + rng.Intn(len(words)-1)

	out := make([]string, 0, len(words)+1)
	out = append(out, words[:pos]...)
	out = append(out, phrase)
	out = append(out, words[pos:]...)
	return strings.Join(out, " ")
}
