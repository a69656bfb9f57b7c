// Package analysis scores linguistic development from conversation
// transcripts: core-vocabulary usage, heuristic grammar-feature detection,
// and cross-session growth trends.
//
// Detection is shallow lexical/morphological pattern matching over a closed
// vocabulary; it counts features, it does not judge correctness.
package analysis

import (
	"strings"
)

// Feature kinds detected by the grammar scan.
const (
	FeaturePluralNoun       = "plural noun"
	FeaturePreposition      = "preposition"
	FeatureConjunction      = "conjunction"
	FeatureReflexivePronoun = "reflexive pronoun"
	FeaturePastTense        = "past tense"
	FeatureFutureTense      = "future tense"
)

// Feature is one detected grammar event: the feature kind plus the token
// that triggered it. Each detection is worth one point.
type Feature struct {
	Kind  string `json:"kind"`
	Token string `json:"token"`
}

// String renders the detection in "kind: token" form.
func (f Feature) String() string {
	return f.Kind + ": " + f.Token
}

// GrammarResult holds the grammar-feature detections for one utterance.
type GrammarResult struct {
	Points   int       `json:"points"`
	Features []Feature `json:"features"`
}

// Analysis is the per-utterance result: token count, deduplicated core-word
// usage, and grammar detections.
type Analysis struct {
	Text          string        `json:"text"`
	WordCount     int           `json:"word_count"`
	CoreWordsUsed []string      `json:"core_words_used"`
	Grammar       GrammarResult `json:"grammar"`
}

// coreWords is the fixed high-utility vocabulary scored for communicative
// progress: pronouns, common verbs, needs-words, and feelings-words.
var coreWords = wordSet(
	"i", "you", "he", "she", "it", "we", "they",
	"want", "need", "go", "stop", "come", "look", "see", "get", "give",
	"eat", "drink", "play", "help", "do", "make", "like", "dont like",
	"no", "yes", "more", "all done",
	"open", "close", "turn",
	"in", "out", "up", "down", "on", "off",
	"big", "little",
	"where", "what", "who",
	"my", "your", "mine",
	"happy", "sad", "mad", "hurt", "bathroom",
)

var subjects = wordSet("i", "you", "he", "she", "it", "we", "they")

var verbs = wordSet(
	"want", "need", "go", "stop", "come", "look", "see", "get",
	"give", "eat", "drink", "play", "help", "do", "make", "like",
)

var prepositions = wordSet("to", "from", "in", "out", "on", "off", "with", "by", "under", "over")

var conjunctions = wordSet("and", "but", "because", "so", "or", "if", "when")

var reflexives = wordSet("myself", "yourself", "himself", "herself", "ourselves", "themselves")

var irregularPast = wordSet("went", "ate", "saw", "ran", "took", "made", "came", "said", "got", "gave")

// variations maps common surface forms onto their core-word entries so
// recall survives inflection and kid-speak.
var variations = map[string]string{
	"likes":    "like",
	"liked":    "like",
	"liking":   "like",
	"dont":     "dont like",
	"cannot":   "no",
	"yeah":     "yes",
	"ok":       "yes",
	"happier":  "happy",
	"happiest": "happy",
	"hurting":  "hurt",
	"hurts":    "hurt",
	"drinks":   "drink",
	"drinking": "drink",
	"ate":      "eat",
	"eating":   "eat",
	"done":     "all done",
}

func wordSet(words ...string) map[string]bool {
	set := make(map[string]bool, len(words))
	for _, w := range words {
		set[w] = true
	}
	return set
}

// Analyze tokenizes one utterance and extracts core-vocabulary usage and
// grammar-feature signals. Pure and total: empty input yields zero counts.
func Analyze(text string) Analysis {
	words := tokenize(text)

	var coreUsed []string
	seen := make(map[string]bool)
	for _, w := range words {
		if coreWords[w] && !seen[w] {
			seen[w] = true
			coreUsed = append(coreUsed, w)
		}
	}

	return Analysis{
		Text:          text,
		WordCount:     len(words),
		CoreWordsUsed: coreUsed,
		Grammar:       checkGrammarFeatures(words),
	}
}

// tokenize lowercases, strips everything outside the Latin letter/space set,
// splits on whitespace, and applies the irregular-form table to each token.
func tokenize(text string) []string {
	cleaned := strings.Map(func(r rune) rune {
		if r >= 'a' && r <= 'z' {
			return r
		}
		if r >= 'A' && r <= 'Z' {
			return r + ('a' - 'A')
		}
		return ' '
	}, text)

	fields := strings.Fields(cleaned)
	words := make([]string, 0, len(fields))
	for _, w := range fields {
		if mapped, ok := variations[w]; ok {
			w = mapped
		}
		words = append(words, w)
	}
	return words
}

func checkGrammarFeatures(words []string) GrammarResult {
	var result GrammarResult
	record := func(kind, token string) {
		result.Points++
		result.Features = append(result.Features, Feature{Kind: kind, Token: token})
	}

	hasWill := false
	hasGoing := false
	hasTo := false

	for _, w := range words {
		if strings.HasSuffix(w, "s") && !verbs[w] && !subjects[w] {
			record(FeaturePluralNoun, w)
		}
		if prepositions[w] {
			record(FeaturePreposition, w)
		}
		if conjunctions[w] {
			record(FeatureConjunction, w)
		}
		if reflexives[w] {
			record(FeatureReflexivePronoun, w)
		}
		if strings.HasSuffix(w, "ed") || irregularPast[w] {
			record(FeaturePastTense, w)
		}

		switch w {
		case "will":
			hasWill = true
		case "going":
			hasGoing = true
		case "to":
			hasTo = true
		}
	}

	if hasWill {
		record(FeatureFutureTense, "will")
	}
	if hasGoing && hasTo {
		record(FeatureFutureTense, "going to")
	}

	return result
}
