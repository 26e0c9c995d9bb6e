// Package analysis defines the contract with the figure-analysis pipeline.
// The pipeline itself lives outside this service; the gateway only shapes
// requests to it and gates them by tier.
package analysis

import "context"

// Options mirror the caller's tier features. Fields the tier does not
// include are simply absent from the response.
type Options struct {
	IncludeReasoning  bool
	IncludeConfidence bool
	AdvancedModel     bool
	Priority          bool
}

// Assessment is one figure's political-alignment result. Scores run -10..10
// on both axes.
type Assessment struct {
	Figure        string  `json:"figure"`
	EconomicScore float64 `json:"economic_score"`
	SocialScore   float64 `json:"social_score"`
	Reasoning     string  `json:"reasoning,omitempty"`
	Confidence    float64 `json:"confidence,omitempty"`
}

type Analyzer interface {
	Analyze(ctx context.Context, figures []string, opts Options) ([]Assessment, error)
}

// Stub is a stand-in Analyzer returning neutral scores. Used in tests and
// when the gateway runs without the pipeline configured.
type Stub struct{}

func NewStub() *Stub {
	return &Stub{}
}

func (s *Stub) Analyze(ctx context.Context, figures []string, opts Options) ([]Assessment, error) {
	results := make([]Assessment, 0, len(figures))
	for _, figure := range figures {
		a := Assessment{Figure: figure}
		if opts.IncludeReasoning {
			a.Reasoning = "Analysis pipeline not configured"
		}
		if opts.IncludeConfidence {
			a.Confidence = 0
		}
		results = append(results, a)
	}
	return results, nil
}
