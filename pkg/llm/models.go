package llm

// Built-in model preference lists, tried in order after any explicit override
// and environment default.
var (
	geminiDefaultModels = []string{"gemini-2.5-flash"}

	glmDefaultModels = []string{
		"glm-5",
		"glm-4.7",
		"glm-4.6",
		"glm-4.6v-flash", // free tier, still answers when credit runs out
		"glm-4.5",
	}

	kimiDefaultModels = []string{
		"kimi-k2-turbo-preview",
		"moonshot-v1-8k",
	}
)

// CandidateModels builds the ordered model list for one invocation:
// explicit override first, then the environment default, then the built-in
// preference list, de-duplicated preserving first occurrence.
func CandidateModels(override, envDefault string, builtin []string) []string {
	raw := make([]string, 0, len(builtin)+2)
	if override != "" {
		raw = append(raw, override)
	}
	if envDefault != "" {
		raw = append(raw, envDefault)
	}
	raw = append(raw, builtin...)

	seen := make(map[string]bool, len(raw))
	models := make([]string, 0, len(raw))
	for _, m := range raw {
		if !seen[m] {
			seen[m] = true
			models = append(models, m)
		}
	}
	return models
}
