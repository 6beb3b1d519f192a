package analyzer

import (
	"fmt"
	"strings"

	"github.com/lexatlas/legalrisk/model"
)

const (
	summaryMaxLength    = 400
	minSummaryInput     = 50
	minSentenceLength   = 20
	maxSummarySentences = 3
	maxKeyPoints        = 5
	keyPointWindow      = 10
)

var summaryLegalTerms = []string{
	"contract", "agreement", "terms", "conditions", "obligations",
	"liability", "indemnification", "termination", "renewal",
}

var keyPointKeywords = []string{
	"contract", "agreement", "terms", "conditions", "obligations",
	"liability", "indemnification", "termination", "renewal",
	"confidentiality", "intellectual property", "governing law",
}

// Summarize produces the extractive document summary: a plain-language
// summary from the first meaningful sentences, a one-line legal summary
// naming the provisions found, and up to five key-point sentences.
func Summarize(text string) model.DocumentSummary {
	if len(strings.TrimSpace(text)) < minSummaryInput {
		return model.DocumentSummary{
			PlainLanguageSummary: "Document contains insufficient text for meaningful summary.",
			LegalSummary:         "Insufficient content for legal analysis.",
			KeyPoints:            []string{"Document too short for analysis"},
		}
	}

	plain := basicSummary(text)
	return model.DocumentSummary{
		PlainLanguageSummary: plain,
		LegalSummary:         legalSummary(text),
		KeyPoints:            keyPoints(text),
		WordCount:            len(strings.Fields(plain)),
	}
}

func basicSummary(text string) string {
	sentences := strings.Split(text, ".")

	var picked []string
	for _, sentence := range sentences {
		sentence = strings.TrimSpace(sentence)
		if len(sentence) > minSentenceLength {
			picked = append(picked, sentence)
			if len(picked) >= maxSummarySentences {
				break
			}
		}
	}

	if len(picked) == 0 {
		for _, sentence := range sentences {
			picked = append(picked, strings.TrimSpace(sentence))
			if len(picked) >= 2 {
				break
			}
		}
	}

	summary := strings.Join(picked, ". ") + "."
	if len(summary) > summaryMaxLength {
		summary = summary[:summaryMaxLength] + "..."
	}
	return summary
}

func legalSummary(text string) string {
	lower := strings.ToLower(text)

	var found []string
	for _, term := range summaryLegalTerms {
		if strings.Contains(lower, term) {
			found = append(found, term)
		}
	}

	if len(found) == 0 {
		return "This document contains general legal content requiring review."
	}
	return fmt.Sprintf("This document contains legal provisions related to: %s.", strings.Join(found, ", "))
}

// keyPoints collects keyword-bearing sentences from the first ten sentences.
// The cap is only checked once a sentence has matched, so a run of
// non-matching sentences never terminates the scan early; that matches the
// historical behavior of this extraction and is intentional.
func keyPoints(text string) []string {
	sentences := strings.Split(text, ".")
	window := sentences
	if len(window) > keyPointWindow {
		window = window[:keyPointWindow]
	}

	var points []string
	for _, sentence := range window {
		sentence = strings.TrimSpace(sentence)
		if len(sentence) < minSentenceLength {
			continue
		}

		lower := strings.ToLower(sentence)
		for _, keyword := range keyPointKeywords {
			if strings.Contains(lower, keyword) {
				points = append(points, sentence)
				break
			}
		}

		if len(points) >= maxKeyPoints {
			break
		}
	}

	if len(points) == 0 {
		fallback := sentences
		if len(fallback) > maxSummarySentences {
			fallback = fallback[:maxSummarySentences]
		}
		for _, sentence := range fallback {
			sentence = strings.TrimSpace(sentence)
			if len(sentence) > minSentenceLength {
				points = append(points, sentence)
			}
		}
	}

	if len(points) > maxKeyPoints {
		points = points[:maxKeyPoints]
	}
	return points
}
