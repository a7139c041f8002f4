package perplexity

import (
	"fmt"
	"regexp"
	"strconv"

	"github.com/diogo/perplexity-webui-go/pkg/models"
)

// citationPattern matches 1- and 2-digit citation markers like [1] or [42].
var citationPattern = regexp.MustCompile(`\[(\d{1,2})\]`)

// formatCitations applies the citation mode to text. Markers referencing a
// result outside the search-result range are left untouched in every mode.
func formatCitations(text string, mode models.CitationMode, results []models.SearchResultItem) string {
	if text == "" || mode == models.CitationDefault || mode == "" {
		return text
	}

	return citationPattern.ReplaceAllStringFunc(text, func(match string) string {
		num := match[1 : len(match)-1]

		if mode == models.CitationClean {
			return ""
		}

		n, err := strconv.Atoi(num)
		if err != nil {
			return match
		}

		idx := n - 1
		if idx >= 0 && idx < len(results) && results[idx].URL != "" {
			return fmt.Sprintf("[%s](%s)", num, results[idx].URL)
		}
		return match
	})
}
