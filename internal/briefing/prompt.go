package briefing

import (
	"fmt"
	"strings"

	"github.com/xaenox/daily-brief/internal/models"
)

const guidelines = `## General Guidelines

**Story Selection & Organization**
- Prioritize stories based on:
  • Global/societal impact
  • Relevance to specified interests
  • Time sensitivity
  • Emerging trends and patterns
- Group related stories together under broader themes

**Coverage Standards**
For each significant story:
- Lead with core facts (who, what, when, where, why)
- Include quantitative data when available
- Note relevant historical context
- Highlight key implications
- Address competing interpretations when applicable
- Cite specific sources for all claims

**Objectivity Framework**
- Use precise, neutral language
- Separate verifiable facts from claims
- Indicate certainty levels (confirmed, reported, alleged)
- Present competing viewpoints proportionally
- Acknowledge limitations in available information

**When sources conflict:**
- Prioritize higher-scored sources
- Note specifically where accounts differ
- Identify potential reasons for discrepancies`

// BuildPrompt fills the briefing template for one user.
func BuildPrompt(profile models.UserProfile, specialRequest string) string {
	sources := strings.Join(profile.Sources, ", ")
	if sources == "" {
		sources = "None specified"
	}

	request := strings.TrimSpace(specialRequest)
	if request == "" {
		request = "None"
	}

	return fmt.Sprintf(`Create a daily news briefing for a user with these characteristics:

Background: %s
Interests: %s
Preferred Sources: %s

Today's Special Request: %s

%s
`, profile.Background, strings.Join(profile.Interests, ", "), sources, request, guidelines)
}
