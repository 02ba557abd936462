package router

import (
	"reflect"
	"strings"
	"testing"

	"github.com/zen-systems/cepho/pkg/config"
)

func newDefaultClassifier() *Classifier {
	return NewClassifier(config.DefaultRoutingConfig().Classifier, nil)
}

func TestClassifySingleDomain(t *testing.T) {
	c := newDefaultClassifier()

	tests := []struct {
		text string
		want Category
	}{
		{text: "The patient needs a diagnosis", want: CategoryMedical},
		{text: "Review this contract for liability", want: CategoryLegal},
		{text: "What is our budget", want: CategoryFinancial},
		{text: "Summarize the literature", want: CategoryResearch},
		{text: "The server keeps crashing", want: CategoryTechnical},
		{text: "Brainstorm a slogan", want: CategoryCreative},
	}

	for _, tt := range tests {
		t.Run(string(tt.want), func(t *testing.T) {
			got := c.Classify(tt.text)
			if got.Category != tt.want {
				t.Fatalf("Classify(%q).Category = %s, want %s (matched %v)", tt.text, got.Category, tt.want, got.MatchedKeywords)
			}
		})
	}
}

func TestClassifyDefaultsToGeneral(t *testing.T) {
	c := newDefaultClassifier()

	for _, text := range []string{"", "hello there", "   "} {
		got := c.Classify(text)
		if got.Category != CategoryGeneral || got.Complexity != ComplexitySimple {
			t.Fatalf("Classify(%q) = %+v, want general/simple", text, got)
		}
		if got.RequiresRealTime || got.RequiresCalculation || got.RequiresCodeExecution {
			t.Fatalf("Classify(%q) set flags: %+v", text, got)
		}
	}
}

func TestClassifyTieUsesDomainPriority(t *testing.T) {
	c := newDefaultClassifier()

	got := c.Classify("contract for the patient")
	if got.Category != CategoryMedical {
		t.Fatalf("expected medical to win a 1-1 tie with legal, got %s", got.Category)
	}

	reordered := config.ClassifierConfig{Domains: []config.DomainConfig{
		{Name: "legal", Keywords: []string{"contract"}},
		{Name: "medical", Keywords: []string{"patient"}},
	}}
	got = NewClassifier(reordered, nil).Classify("contract for the patient")
	if got.Category != CategoryLegal {
		t.Fatalf("expected legal first in priority to win, got %s", got.Category)
	}
}

func TestClassifyCountsDistinctKeywords(t *testing.T) {
	c := newDefaultClassifier()

	// "data" three times is still one research keyword; budget+tax is two.
	got := c.Classify("data data data budget tax")
	if got.Category != CategoryFinancial {
		t.Fatalf("expected financial, got %s (matched %v)", got.Category, got.MatchedKeywords)
	}
}

func TestClassifyComplexityBoundaries(t *testing.T) {
	c := newDefaultClassifier()

	tests := []struct {
		words int
		want  Complexity
	}{
		{words: 0, want: ComplexitySimple},
		{words: 30, want: ComplexitySimple},
		{words: 31, want: ComplexityModerate},
		{words: 100, want: ComplexityModerate},
		{words: 101, want: ComplexityComplex},
	}

	for _, tt := range tests {
		text := strings.TrimSpace(strings.Repeat("word ", tt.words))
		got := c.Classify(text)
		if got.WordCount != tt.words {
			t.Fatalf("word count = %d, want %d", got.WordCount, tt.words)
		}
		if got.Complexity != tt.want {
			t.Fatalf("%d words: complexity = %s, want %s", tt.words, got.Complexity, tt.want)
		}
	}
}

func TestClassifyCustomThresholds(t *testing.T) {
	cfg := config.DefaultRoutingConfig().Classifier
	cfg.ModerateWords = 2
	cfg.ComplexWords = 4
	c := NewClassifier(cfg, nil)

	if got := c.Classify("one two three").Complexity; got != ComplexityModerate {
		t.Fatalf("expected moderate, got %s", got)
	}
	if got := c.Classify("one two three four five").Complexity; got != ComplexityComplex {
		t.Fatalf("expected complex, got %s", got)
	}
}

func TestClassifyFlagsAreIndependent(t *testing.T) {
	c := newDefaultClassifier()

	got := c.Classify("Run this code in Python today and compute the total")
	if !got.RequiresRealTime || !got.RequiresCalculation || !got.RequiresCodeExecution {
		t.Fatalf("expected all flags, got %+v", got)
	}

	got = c.Classify("Write a poem about autumn")
	if got.RequiresRealTime || got.RequiresCalculation || got.RequiresCodeExecution {
		t.Fatalf("expected no flags, got %+v", got)
	}
}

func TestClassifyRevenueForecastExample(t *testing.T) {
	c := newDefaultClassifier()

	got := c.Classify("Please calculate our Q3 revenue forecast using the latest market data")
	if got.Category != CategoryFinancial {
		t.Fatalf("expected financial, got %s", got.Category)
	}
	if want := []string{"revenue", "forecast", "market"}; !reflect.DeepEqual(got.MatchedKeywords, want) {
		t.Fatalf("matched = %v, want %v", got.MatchedKeywords, want)
	}
	if !got.RequiresCalculation || !got.RequiresRealTime {
		t.Fatalf("expected calculation and real-time flags, got %+v", got)
	}
	if got.RequiresCodeExecution {
		t.Fatalf("did not expect code execution flag")
	}
	if got.Complexity != ComplexitySimple {
		t.Fatalf("expected simple, got %s", got.Complexity)
	}
}

func TestClassifyInvalidPatternFallsBack(t *testing.T) {
	cfg := config.DefaultRoutingConfig().Classifier
	cfg.RealTimePattern = "("
	c := NewClassifier(cfg, nil)

	if !c.Classify("show me the latest numbers").RequiresRealTime {
		t.Fatalf("expected default real-time pattern after invalid override")
	}
}
