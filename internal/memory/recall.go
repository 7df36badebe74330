package memory

import (
	"fmt"
	"math"
	"strings"
)

// RecalledContextHeading opens the block injected into the system prompt.
const RecalledContextHeading = "## Recalled Context"

const defaultDomainLabel = "General"

// BuildRecalledContextBlock formats search results for injection into the
// next system prompt. Results are grouped by domain in order of first
// appearance when any result carries a domain. No results yields "".
func BuildRecalledContextBlock(results []SearchResult) string {
	if len(results) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString(RecalledContextHeading)
	b.WriteString("\n\nFacts remembered from earlier conversations. Use them when relevant; they may be outdated.\n")

	grouped := false
	for _, r := range results {
		if r.Domain != "" {
			grouped = true
			break
		}
	}

	if !grouped {
		b.WriteString("\n")
		for _, r := range results {
			writeRecalledLine(&b, r)
		}
		return b.String()
	}

	var order []string
	byDomain := make(map[string][]SearchResult)
	for _, r := range results {
		label := r.Domain
		if label == "" {
			label = defaultDomainLabel
		}
		if _, seen := byDomain[label]; !seen {
			order = append(order, label)
		}
		byDomain[label] = append(byDomain[label], r)
	}

	for _, label := range order {
		fmt.Fprintf(&b, "\n### %s\n\n", label)
		for _, r := range byDomain[label] {
			writeRecalledLine(&b, r)
		}
	}
	return b.String()
}

func writeRecalledLine(b *strings.Builder, r SearchResult) {
	fmt.Fprintf(b, "- %s (relevance %d%%)\n", r.Fact, int(math.Round(r.Similarity*100)))
}
