package generation

import (
	"fmt"
	"strings"

	"github.com/redirect10-prog/siteForge-ai/internal/domain/plans"
	"github.com/redirect10-prog/siteForge-ai/internal/domain/website"
)

const systemPrompt = `You are SiteForge AI, a website content generator.

Generate COMPLETE website content as JSON. Return ONLY valid JSON, with no markdown, code blocks or explanations.

REQUIRED JSON SCHEMA:
{
  "websiteType": "saas" | "ecommerce" | "portfolio" | "agency" | "blog" | "landing",
  "targetAudience": "description of target users",
  "sections": [
    {
      "name": "Hero" | "Features" | "Pricing" | "Testimonials" | "CTA" | "About" | "Contact" | "FAQ",
      "heading": "compelling headline text",
      "content": "supporting paragraph text (2-4 sentences)",
      "cta": "button text" | null,
      "ctaAction": "scroll" | "link" | "modal" | "form" | null,
      "ctaTarget": "#section-id" | "https://url" | null,
      "imagePrompt": "detailed image description for AI generation",
      "hasForm": true | false,
      "formType": "contact" | "newsletter" | "signup" | null
    }
  ],
  "navigation": [
    {
      "label": "Menu Item Text",
      "target": "#section-id",
      "type": "scroll" | "link" | "button"
    }
  ],
  "suggestedPrompts": ["follow-up prompt 1", "follow-up prompt 2"],
  "backend": {
    "features": ["contact form", "newsletter"],
    "database": {"tables": [{"name": "table_name", "description": "", "columns": [{"name": "id", "type": "uuid", "nullable": false, "description": ""}], "rlsPolicy": "user_owned" | "public_read" | "authenticated_only" | "admin_only"}]},
    "forms": [],
    "apiEndpoints": []
  },
  "internalExplanation": {
    "websiteType": "why this type was chosen",
    "audience": "target audience analysis",
    "sectionRationale": "why these sections were included",
    "copyStrategy": "approach to headlines and copy",
    "conversionGoal": "primary conversion objective",
    "tierImpact": "how tier affected generation"
  }
}

RULES:
1. Start response with { and end with }
2. Generate 3-7 sections based on tier
3. Every section MUST have: name, heading, content, imagePrompt
4. Headlines should be benefit-driven and compelling
5. Content should be realistic, not placeholder text
6. imagePrompt should describe professional website imagery
7. Include navigation items matching sections
8. Include 2-3 suggestedPrompts for follow-up modifications
9. Only include "backend" when the site collects data (forms, accounts, orders)`

// SystemPrompt is the fixed instruction sent with every generation.
func SystemPrompt() string { return systemPrompt }

// TierContext is the tier's section count hint.
func TierContext(tier string) string {
	return plans.SectionHint(tier)
}

// ColorContext asks image prompts to follow a palette. Empty without one.
func ColorContext(c *website.ColorScheme) string {
	if c == nil || (c.Primary == "" && c.Secondary == "" && c.Accent == "") {
		return ""
	}
	return fmt.Sprintf("Use this color scheme in your imagePrompts: Primary %s, Secondary %s, Accent %s.",
		c.Primary, c.Secondary, c.Accent)
}

// UserPrompt assembles the user message for one attempt.
func UserPrompt(prompt, tierContext, colorContext string) string {
	var sb strings.Builder
	sb.WriteString(tierContext)
	sb.WriteString("\n")
	sb.WriteString(colorContext)
	sb.WriteString("\n\nUser request: ")
	sb.WriteString(prompt)
	sb.WriteString("\n\nGenerate the complete website JSON now.")
	return sb.String()
}
