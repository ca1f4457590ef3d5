package analysis

import (
	"fmt"
	"strings"
	"time"

	"github.com/sakif/content-dashboard/internal/model"
)

func buildPrompt(post *model.ContentPost) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Analyze this %s post for content performance:\n\n", post.PlatformType)
	b.WriteString("CONTENT:\n")
	fmt.Fprintf(&b, "Title: %s\n", post.Title)
	fmt.Fprintf(&b, "Content: %s\n", post.Content)
	fmt.Fprintf(&b, "Published: %s\n", post.PublishedAt.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "Media URLs: %d items\n\n", len(post.MediaURLs))

	b.WriteString("PERFORMANCE METRICS:\n")
	fmt.Fprintf(&b, "Likes: %d, Comments: %d, Shares: %d, Engagement: %.2f%%\n\n",
		post.Metrics.Likes, post.Metrics.Comments, post.Metrics.Shares, post.Metrics.EngagementRate)

	if post.Script != nil {
		b.WriteString("ORIGINAL SCRIPT:\n")
		fmt.Fprintf(&b, "Title: %s\n", post.Script.Title)
		fmt.Fprintf(&b, "Content: %s\n\n", post.Script.Content)
	}

	b.WriteString(responseFormat)
	fmt.Fprintf(&b, "\nConsider platform-specific best practices for %s. Reply with the JSON object only.\n", post.PlatformType)
	return b.String()
}

const responseFormat = `Provide the analysis in this JSON format:
{
  "performanceScore": number (0-100),
  "strengths": [list of what worked well],
  "weaknesses": [list of what could be improved],
  "recommendations": [actionable suggestions],
  "contentStructure": {
    "hookEffectiveness": number (0-100),
    "storytellingStructure": "description of structure used",
    "callToActionPresence": boolean,
    "emotionalTone": [list of emotional tones],
    "keyTopics": [main topics covered],
    "readabilityScore": number (0-100),
    "visualContentRatio": number (0-100)
  },
  "trends": {
    "topPerformingElements": [elements that drove engagement],
    "emergingPatterns": [patterns noticed],
    "seasonalTrends": [any seasonal relevance],
    "audiencePreferences": [what audience responded to]
  }
}
`
