package pipeline

import (
	"fmt"

	"github.com/hochfrequenz/claude-batch-pipeline/internal/domain"
)

const promptTemplate = `You are implementing one feature of a batch run: %s
%s
Instructions:
1. Implement the feature described above
2. Write tests covering the new behavior
3. Run the full test suite and measure coverage
4. As the very last line of your output, print a single JSON object:
   {"tests_total": N, "tests_passed": N, "tests_failed": N, "coverage_pct": N.N, "steps_completed": ["..."]}

Do not ask for clarification. Make reasonable decisions based on the feature description.
`

// strategyHints instruct the pipeline how to approach a retry attempt
var strategyHints = map[domain.RetryStrategy]string{
	domain.StrategyBasicRetry: "",
	domain.StrategyFixTestsFirst: `
Retry guidance: a previous attempt left failing tests. Before doing
anything else, run the test suite and fix every reported failure.
`,
	domain.StrategyAlternative: `
Retry guidance: previous attempts at this feature did not pass. Discard
the prior approach and implement the feature in a materially different
way (different design, different libraries, or a simpler scope that
still satisfies the description).
`,
}

// BuildPrompt constructs the per-feature prompt, embedding the retry
// strategy hint when one applies
func BuildPrompt(feature string, strategy domain.RetryStrategy) string {
	hint := strategyHints[strategy]
	if hint != "" {
		hint = fmt.Sprintf("\n%s", hint)
	}
	return fmt.Sprintf(promptTemplate, feature, hint)
}
