// Package prescore computes a cheap keyword-overlap score between a resume
// and a job description. The score is only an auxiliary hint handed to the
// compute provider; it never decides a match on its own.
package prescore

import (
	"math"
	"strings"
	"unicode"
)

// stopWords filters common English words that add noise to keyword matching.
var stopWords = map[string]bool{
	"and": true, "the": true, "for": true, "with": true, "you": true,
	"are": true, "have": true, "will": true, "this": true, "that": true,
	"from": true, "our": true, "your": true, "their": true, "they": true,
	"work": true, "team": true, "role": true, "job": true, "join": true,
	"about": true, "which": true, "what": true, "who": true, "how": true,
	"can": true, "not": true, "but": true, "all": true, "also": true,
	"more": true, "than": true, "into": true, "has": true, "its": true,
	"was": true, "were": true, "been": true, "each": true, "new": true,
	"use": true, "using": true, "used": true, "well": true, "good": true,
}

// Keywords tokenizes text into a lowercase keyword set (>= 3 chars).
// Tech suffixes like "c++", "c#" and "node.js" survive tokenization.
// Call once per resume and reuse for batch job scoring.
func Keywords(text string) map[string]bool {
	kw := make(map[string]bool)
	var word strings.Builder

	flush := func() {
		w := strings.TrimRight(word.String(), ".")
		word.Reset()
		if len([]rune(w)) >= 3 && !stopWords[w] {
			kw[w] = true
		}
	}

	for _, r := range strings.ToLower(text) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '+' || r == '#' || r == '.' {
			word.WriteRune(r)
		} else {
			flush()
		}
	}
	flush()

	return kw
}

// Score returns the Jaccard similarity between the resume keyword set and
// the job text, scaled to 0-100 and rounded to one decimal.
func Score(resumeKeywords map[string]bool, jobText string) float64 {
	jobKeywords := Keywords(jobText)
	if len(resumeKeywords) == 0 || len(jobKeywords) == 0 {
		return 0
	}

	intersection := 0
	for kw := range jobKeywords {
		if resumeKeywords[kw] {
			intersection++
		}
	}

	union := len(resumeKeywords) + len(jobKeywords) - intersection

	return math.Round(float64(intersection)/float64(union)*1000) / 10
}
