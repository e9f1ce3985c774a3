package filter

import (
	"strings"

	"github.com/amishk599/openjob/internal/model"
)

// Precedence: an AI title wins outright, then an SDE title, then AI signals
// in the description. Ambiguous postings default to AI.
var (
	aiTitleKeywords = []string{
		"ai engineer", "ml engineer", "machine learning engineer",
		"ai/ml", "artificial intelligence", "machine learning",
	}
	sdeTitleKeywords = []string{
		"full stack", "fullstack", "full-stack",
		"frontend", "front-end", "backend", "back-end",
		"software engineer", "software developer", "swe",
		"web engineer", "web developer",
	}
	aiRoleKeywords = []string{
		"ai engineer", "ml engineer", "machine learning engineer",
		"llm", "large language model", "langchain", "rag", "retrieval",
		"agentic", "generative ai", "gen ai", "gpt", "embedding",
		"fine-tun", "huggingface", "pytorch", "tensorflow",
		"computer vision", "nlp", "natural language",
	}
)

// Classify assigns a posting to a category from its title and description.
// Titles are checked first; when the title is ambiguous, AI signals in the
// description decide.
func Classify(title, description string) model.Category {
	titleLower := strings.ToLower(title)

	if containsAny(titleLower, aiTitleKeywords) {
		return model.CategoryAI
	}
	if containsAny(titleLower, sdeTitleKeywords) {
		if containsAny(strings.ToLower(description), aiRoleKeywords) {
			return model.CategoryAI
		}
		return model.CategorySDE
	}
	return model.CategoryAI
}

func containsAny(haystack string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(haystack, kw) {
			return true
		}
	}
	return false
}
