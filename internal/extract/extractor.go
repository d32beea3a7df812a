// Package extract derives structured application fields from crawled page
// text via a single generative-text call.
package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"unicode/utf8"

	"github.com/appvine/apptrack/internal/apperr"
)

// maxPromptChars bounds how much page text is embedded in the instruction.
const maxPromptChars = 20000

// Generator produces one free-text completion for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

const instructionTemplate = `You are a data extraction assistant. Analyze the following web page text from a company's site and extract the details needed to record a job application.

Return a JSON object with exactly these four fields:
{
  "companyName": "the company's name",
  "email": "a contact email found on the page",
  "amount": 85000,
  "notes": "a one or two sentence summary of the opportunity"
}

Rules:
- amount is the salary or compensation figure as a number. If none is mentioned, use 1000.
- If no contact email appears, construct a placeholder of the form contact@<companyname>.com in lowercase.
- notes may be omitted if there is nothing useful to say.
- Return only the JSON object, no surrounding commentary.

PAGE TEXT:
%s`

// Extractor turns raw page text into a validated field mapping.
type Extractor struct {
	gen Generator
}

// New builds an Extractor over the given generator.
func New(gen Generator) *Extractor {
	return &Extractor{gen: gen}
}

// Extract runs one generation call over pageText, locates the embedded JSON
// object, parses it, and checks required business fields are present.
func (e *Extractor) Extract(ctx context.Context, pageText string) (map[string]any, error) {
	if e == nil || e.gen == nil {
		return nil, apperr.Configuration("generative-language client is not configured")
	}

	if len(pageText) > maxPromptChars {
		// Back the cut off to a rune boundary so the prompt stays valid UTF-8.
		cut := maxPromptChars
		for cut > 0 && !utf8.RuneStart(pageText[cut]) {
			cut--
		}
		pageText = pageText[:cut]
	}
	prompt := fmt.Sprintf(instructionTemplate, pageText)

	raw, err := e.gen.Generate(ctx, prompt)
	if err != nil {
		return nil, apperr.External("extraction call failed", 0, err)
	}

	candidate, err := FirstJSONObject(raw)
	if err != nil {
		return nil, err
	}

	var fields map[string]any
	if err := json.Unmarshal([]byte(candidate), &fields); err != nil {
		return nil, apperr.Parse("malformed JSON in response")
	}

	if missing := missingFields(fields); len(missing) > 0 {
		return nil, apperr.Validation("extracted data is incomplete", missing)
	}
	return fields, nil
}

// missingFields reports required fields that are absent or falsy. An amount
// of zero or an empty string counts as absent.
func missingFields(fields map[string]any) []string {
	var missing []string
	for _, name := range []string{"companyName", "email", "amount"} {
		if !present(fields[name]) {
			missing = append(missing, fmt.Sprintf("%s is missing from extracted data", name))
		}
	}
	return missing
}

func present(v any) bool {
	switch val := v.(type) {
	case nil:
		return false
	case string:
		return val != ""
	case float64:
		return val != 0
	case bool:
		return val
	default:
		return true
	}
}
