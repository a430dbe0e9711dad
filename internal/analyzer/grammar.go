package analyzer

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/pcameron/webscan/internal/extractor"
	"github.com/pcameron/webscan/internal/scanner"
)

// Finding kinds emitted by the grammar analyzer.
const (
	KindMisspelling   = "misspelling"
	KindRepeatedWord  = "repeated_word"
	KindDoublePunct   = "double_punctuation"
	KindUncapitalized = "uncapitalized_sentence"
)

// commonMisspellings maps frequent misspellings to their corrections.
var commonMisspellings = map[string]string{
	"accomodate":  "accommodate",
	"acheive":     "achieve",
	"adress":      "address",
	"beleive":     "believe",
	"definately":  "definitely",
	"enviroment":  "environment",
	"existance":   "existence",
	"goverment":   "government",
	"independant": "independent",
	"neccessary":  "necessary",
	"occured":     "occurred",
	"recieve":     "receive",
	"seperate":    "separate",
	"succesful":   "successful",
	"teh":         "the",
	"untill":      "until",
	"wich":        "which",
}

var (
	wordRe         = regexp.MustCompile(`[A-Za-z']+`)
	repeatedWordRe = regexp.MustCompile(`(?i)\b([a-z']+)\s+\1\b`)
	doublePunctRe  = regexp.MustCompile(`[,;:]{2,}|\.{4,}|[!?]{3,}`)
	sentenceEndRe  = regexp.MustCompile(`[.!?]\s+`)
)

// Grammar performs rule-based language checks over the extracted page
// text: common misspellings, doubled words, stray punctuation, and
// uncapitalized sentence starts.
type Grammar struct{}

// NewGrammar builds a grammar analyzer.
func NewGrammar() *Grammar {
	return &Grammar{}
}

// Name implements scanner.Analyzer.
func (a *Grammar) Name() string { return "grammar" }

// Analyze reads the page's text artifact when present, falling back to
// stripping the page body, and reports language findings.
func (a *Grammar) Analyze(_ context.Context, input scanner.AnalyzerInput) ([]scanner.Finding, error) {
	text, err := a.pageText(input)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(text) == "" {
		return nil, scanner.ErrStageSkipped
	}
	return AnalyzeText(a.Name(), input.Page.URL, text), nil
}

func (a *Grammar) pageText(input scanner.AnalyzerInput) (string, error) {
	if ref, ok := input.Artifacts["text"]; ok {
		data, err := os.ReadFile(ref.Path)
		if err != nil {
			return "", fmt.Errorf("read text artifact: %w", err)
		}
		// Drop the URL/Title header the text extractor prepends.
		if _, body, found := strings.Cut(string(data), strings.Repeat("=", 70)+"\n"); found {
			return body, nil
		}
		return string(data), nil
	}
	if len(input.Page.Body) == 0 {
		return "", nil
	}
	return extractor.PageText(input.Page.Body)
}

// AnalyzeText runs the rule set over arbitrary text on behalf of the
// named analyzer. The OCR analyzer reuses it for recognized image text.
func AnalyzeText(analyzer, sourceURL, text string) []scanner.Finding {
	var findings []scanner.Finding

	add := func(kind, message, context string) {
		findings = append(findings, scanner.Finding{
			Analyzer:  analyzer,
			Kind:      kind,
			Message:   message,
			SourceURL: sourceURL,
			Context:   context,
		})
	}

	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}

		for _, word := range wordRe.FindAllString(trimmed, -1) {
			if fix, bad := commonMisspellings[strings.ToLower(word)]; bad {
				add(KindMisspelling,
					fmt.Sprintf("%q is likely a misspelling of %q", word, fix),
					snippet(trimmed))
			}
		}

		if m := repeatedWordRe.FindStringSubmatch(trimmed); m != nil {
			add(KindRepeatedWord,
				fmt.Sprintf("word %q appears twice in a row", strings.ToLower(m[1])),
				snippet(trimmed))
		}

		if m := doublePunctRe.FindString(trimmed); m != "" {
			add(KindDoublePunct,
				fmt.Sprintf("stray punctuation sequence %q", m),
				snippet(trimmed))
		}

		findings = append(findings, uncapitalizedSentences(analyzer, sourceURL, trimmed)...)
	}

	return findings
}

// uncapitalizedSentences flags sentences that open with a lowercase
// letter. The first sentence of a line is exempt: headings and list
// items legitimately start lowercase.
func uncapitalizedSentences(analyzer, sourceURL, line string) []scanner.Finding {
	var findings []scanner.Finding
	locs := sentenceEndRe.FindAllStringIndex(line, -1)
	for _, loc := range locs {
		rest := line[loc[1]:]
		if rest == "" {
			continue
		}
		first := rune(rest[0])
		if first >= 'a' && first <= 'z' {
			findings = append(findings, scanner.Finding{
				Analyzer:  analyzer,
				Kind:      KindUncapitalized,
				Message:   "sentence starts with a lowercase letter",
				SourceURL: sourceURL,
				Context:   snippet(rest),
			})
		}
	}
	return findings
}

func snippet(s string) string {
	const maxLen = 120
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
