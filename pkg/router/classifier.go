package router

import (
	"regexp"
	"strings"

	"github.com/zen-systems/cepho/pkg/config"
	"go.uber.org/zap"
)

// Classifier assigns a TaskProfile to free text using keyword counts,
// word count and a few regular expressions. It never fails.
type Classifier struct {
	domains       []domainKeywords
	moderateWords int
	complexWords  int
	realTime      *regexp.Regexp
	calculation   *regexp.Regexp
	code          *regexp.Regexp
}

type domainKeywords struct {
	category Category
	keywords []string
}

// NewClassifier builds a classifier from config. Invalid patterns fall back
// to the defaults.
func NewClassifier(cfg config.ClassifierConfig, logger *zap.Logger) *Classifier {
	if logger == nil {
		logger = zap.NewNop()
	}

	c := &Classifier{
		moderateWords: cfg.ModerateWords,
		complexWords:  cfg.ComplexWords,
		realTime:      compilePattern(logger, "real_time", cfg.RealTimePattern, config.DefaultRealTimePattern),
		calculation:   compilePattern(logger, "calculation", cfg.CalculationPattern, config.DefaultCalculationPattern),
		code:          compilePattern(logger, "code", cfg.CodePattern, config.DefaultCodePattern),
	}
	if c.moderateWords <= 0 {
		c.moderateWords = 30
	}
	if c.complexWords < c.moderateWords {
		c.complexWords = max(100, c.moderateWords)
	}

	domains := cfg.Domains
	if len(domains) == 0 {
		domains = config.DefaultDomains()
	}
	for _, d := range domains {
		name := strings.ToLower(strings.TrimSpace(d.Name))
		if name == "" {
			continue
		}
		c.domains = append(c.domains, domainKeywords{
			category: Category(name),
			keywords: normalizeKeywords(d.Keywords),
		})
	}

	return c
}

// Classify profiles the text. Earlier domains win ties; no match is general.
func (c *Classifier) Classify(text string) TaskProfile {
	lower := strings.ToLower(text)
	profile := TaskProfile{
		Category:   CategoryGeneral,
		Complexity: ComplexitySimple,
		WordCount:  len(strings.Fields(text)),
	}

	best := 0
	for _, d := range c.domains {
		matched := matchKeywords(lower, d.keywords)
		if len(matched) > best {
			best = len(matched)
			profile.Category = d.category
			profile.MatchedKeywords = matched
		}
	}

	switch {
	case profile.WordCount > c.complexWords:
		profile.Complexity = ComplexityComplex
	case profile.WordCount > c.moderateWords:
		profile.Complexity = ComplexityModerate
	}

	profile.RequiresRealTime = c.realTime.MatchString(text)
	profile.RequiresCalculation = c.calculation.MatchString(text)
	profile.RequiresCodeExecution = c.code.MatchString(text)

	return profile
}

// matchKeywords returns the keywords present as substrings of text.
// keywords are already lower-cased and distinct.
func matchKeywords(text string, keywords []string) []string {
	var matched []string
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			matched = append(matched, kw)
		}
	}
	return matched
}

func normalizeKeywords(keywords []string) []string {
	seen := make(map[string]struct{}, len(keywords))
	out := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw == "" {
			continue
		}
		if _, ok := seen[kw]; ok {
			continue
		}
		seen[kw] = struct{}{}
		out = append(out, kw)
	}
	return out
}

func compilePattern(logger *zap.Logger, name, pattern, fallback string) *regexp.Regexp {
	if pattern == "" {
		pattern = fallback
	}
	re, err := regexp.Compile("(?i)" + pattern)
	if err == nil {
		return re
	}
	logger.Warn("invalid classifier pattern, using default",
		zap.String("pattern", name),
		zap.Error(err))
	return regexp.MustCompile("(?i)" + fallback)
}
