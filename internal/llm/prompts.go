package llm

import (
	_ "embed"
	"strings"
)

const (
	// ExtractionPromptVersion identifies the current extraction template.
	ExtractionPromptVersion = "extract_v1"

	extractionSystemPrompt = "You are a resume-parsing assistant. Respond with JSON only."
	resumePlaceholder      = "{{RESUME_TEXT}}"
)

//go:embed prompts/extract_v1.txt
var promptExtractV1 string

// BuildExtractionRequest creates the single request used to extract
// name, email, skills and years of experience from resume text.
func BuildExtractionRequest(resumeText string) Request {
	return Request{
		Messages: []Message{
			{Role: "system", Content: extractionSystemPrompt},
			{Role: "user", Content: strings.Replace(promptExtractV1, resumePlaceholder, strings.TrimSpace(resumeText), 1)},
		},
		JSON: true,
	}
}
