package analysis

import (
	"reflect"
	"testing"
)

func TestAnalyzeCoreWords(t *testing.T) {
	result := Analyze("I want drink")

	if result.WordCount != 3 {
		t.Errorf("Expected word count 3, got %d", result.WordCount)
	}
	want := []string{"i", "want", "drink"}
	if !reflect.DeepEqual(result.CoreWordsUsed, want) {
		t.Errorf("Expected core words %v, got %v", want, result.CoreWordsUsed)
	}
	if result.Grammar.Points != 0 {
		t.Errorf("Expected 0 grammar points, got %d", result.Grammar.Points)
	}
}

func TestAnalyzeGrammarFeatures(t *testing.T) {
	result := Analyze("The dogs played and ran")

	kinds := make(map[string]string)
	for _, f := range result.Grammar.Features {
		kinds[f.Kind+"/"+f.Token] = f.Token
	}

	expected := []string{
		FeaturePluralNoun + "/dogs",
		FeatureConjunction + "/and",
		FeaturePastTense + "/played",
		FeaturePastTense + "/ran",
	}
	for _, key := range expected {
		if _, ok := kinds[key]; !ok {
			t.Errorf("Expected feature %q, detections: %v", key, result.Grammar.Features)
		}
	}
	if result.Grammar.Points != len(result.Grammar.Features) {
		t.Errorf("Expected points %d to equal feature count %d",
			result.Grammar.Points, len(result.Grammar.Features))
	}
	if result.Grammar.Points != 4 {
		t.Errorf("Expected 4 grammar points, got %d", result.Grammar.Points)
	}
}

func TestAnalyzeVariations(t *testing.T) {
	result := Analyze("yeah I liked it, all done!")

	found := make(map[string]bool)
	for _, w := range result.CoreWordsUsed {
		found[w] = true
	}
	for _, w := range []string{"yes", "i", "like", "it", "all done"} {
		if !found[w] {
			t.Errorf("Expected core word %q, got %v", w, result.CoreWordsUsed)
		}
	}
}

func TestAnalyzeDeduplicatesCoreWords(t *testing.T) {
	result := Analyze("more more more")
	if len(result.CoreWordsUsed) != 1 || result.CoreWordsUsed[0] != "more" {
		t.Errorf("Expected deduplicated [more], got %v", result.CoreWordsUsed)
	}
	if result.WordCount != 3 {
		t.Errorf("Expected word count 3, got %d", result.WordCount)
	}
}

func TestAnalyzeFutureTense(t *testing.T) {
	result := Analyze("we will play")
	if !hasFeature(result, FeatureFutureTense, "will") {
		t.Errorf("Expected future tense from will, got %v", result.Grammar.Features)
	}

	result = Analyze("I am going to eat")
	if !hasFeature(result, FeatureFutureTense, "going to") {
		t.Errorf("Expected future tense from going to, got %v", result.Grammar.Features)
	}

	// "going" without "to" is not a future marker.
	result = Analyze("we are going home")
	if hasFeature(result, FeatureFutureTense, "going to") {
		t.Errorf("Did not expect future tense, got %v", result.Grammar.Features)
	}
}

func TestAnalyzePluralExcludesVerbsAndSubjects(t *testing.T) {
	// "likes" normalizes to the verb "like", and "bananas" stays a plural.
	result := Analyze("she likes bananas")
	if !hasFeature(result, FeaturePluralNoun, "bananas") {
		t.Errorf("Expected plural from bananas, got %v", result.Grammar.Features)
	}
	for _, f := range result.Grammar.Features {
		if f.Kind == FeaturePluralNoun && f.Token != "bananas" {
			t.Errorf("Unexpected plural detection %v", f)
		}
	}
}

func TestAnalyzeEmptyInput(t *testing.T) {
	for _, input := range []string{"", "   ", "123 !!!"} {
		result := Analyze(input)
		if result.WordCount != 0 {
			t.Errorf("Analyze(%q): expected word count 0, got %d", input, result.WordCount)
		}
		if len(result.CoreWordsUsed) != 0 {
			t.Errorf("Analyze(%q): expected no core words, got %v", input, result.CoreWordsUsed)
		}
		if result.Grammar.Points != 0 {
			t.Errorf("Analyze(%q): expected 0 points, got %d", input, result.Grammar.Points)
		}
	}
}

func TestAnalyzeStripsPunctuationAndDigits(t *testing.T) {
	result := Analyze("Help! I want 2 cookies...")
	if result.WordCount != 4 {
		t.Errorf("Expected word count 4, got %d (text split on non-letters)", result.WordCount)
	}
	if !hasFeature(result, FeaturePluralNoun, "cookies") {
		t.Errorf("Expected plural from cookies, got %v", result.Grammar.Features)
	}
}

func hasFeature(a Analysis, kind, token string) bool {
	for _, f := range a.Grammar.Features {
		if f.Kind == kind && f.Token == token {
			return true
		}
	}
	return false
}
