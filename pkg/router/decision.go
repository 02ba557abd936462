package router

// Category is a coarse task domain.
type Category string

const (
	CategoryMedical   Category = "medical"
	CategoryLegal     Category = "legal"
	CategoryFinancial Category = "financial"
	CategoryResearch  Category = "research"
	CategoryTechnical Category = "technical"
	CategoryCreative  Category = "creative"
	CategoryGeneral   Category = "general"
)

// Complexity buckets a query by word count.
type Complexity string

const (
	ComplexitySimple   Complexity = "simple"
	ComplexityModerate Complexity = "moderate"
	ComplexityComplex  Complexity = "complex"
)

// TaskProfile is the classifier's view of a single query.
type TaskProfile struct {
	Category              Category   `json:"category"`
	Complexity            Complexity `json:"complexity"`
	RequiresRealTime      bool       `json:"requires_real_time"`
	RequiresCalculation   bool       `json:"requires_calculation"`
	RequiresCodeExecution bool       `json:"requires_code_execution"`
	MatchedKeywords       []string   `json:"matched_keywords,omitempty"`
	WordCount             int        `json:"word_count"`
}

// ProviderScore is one candidate's score breakdown.
type ProviderScore struct {
	Provider string   `json:"provider"`
	Score    float64  `json:"score"`
	Reasons  []string `json:"reasons,omitempty"`
	Penalty  float64  `json:"penalty,omitempty"`
}

// RoutingDecision captures which provider should serve a query and why.
type RoutingDecision struct {
	Provider      string          `json:"provider"`
	ProviderName  string          `json:"provider_name,omitempty"`
	Justification string          `json:"justification"`
	Confidence    float64         `json:"confidence"`
	Alternatives  []string        `json:"alternatives"`
	Forced        bool            `json:"forced,omitempty"`
	Scores        []ProviderScore `json:"scores,omitempty"`
}
