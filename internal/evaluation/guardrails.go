package evaluation

import "fmt"

// GuardrailConfig holds the limits a golden run must stay within
type GuardrailConfig struct {
	// MaxWrongCodes is the number of confidently wrong mappings tolerated
	MaxWrongCodes int
	MinMappedRate float64
	MinRecallAt10 float64
}

type Guardrails struct {
	config GuardrailConfig
}

func NewGuardrails(config GuardrailConfig) *Guardrails {
	return &Guardrails{config: config}
}

// Check returns one message per violated limit
func (g *Guardrails) Check(s *Summary) []string {
	var violations []string
	if wrong := s.Outcomes[OutcomeWrongCode]; wrong > g.config.MaxWrongCodes {
		violations = append(violations, fmt.Sprintf("%d wrong-code mappings (max %d)", wrong, g.config.MaxWrongCodes))
	}
	if s.MappedRate < g.config.MinMappedRate {
		violations = append(violations, fmt.Sprintf("mapped rate %.3f below %.3f", s.MappedRate, g.config.MinMappedRate))
	}
	if s.AvgRecallAt10 < g.config.MinRecallAt10 {
		violations = append(violations, fmt.Sprintf("recall@10 %.3f below %.3f", s.AvgRecallAt10, g.config.MinRecallAt10))
	}
	if errs := s.Outcomes[OutcomeError]; errs > 0 {
		violations = append(violations, fmt.Sprintf("%d cases failed to evaluate", errs))
	}
	return violations
}
