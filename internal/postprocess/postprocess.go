// Package postprocess strips common LLM artifacts from oracle output.
//
// Every oracle implementation runs its raw completion through Clean before
// handing it to the refinement loop, so drafts and critiques never carry
// reasoning traces or chatty preambles into the next round.
package postprocess

import (
	"regexp"
	"strings"
)

// Clean removes, in order: reasoning blocks, preambles that announce the
// answer, a code fence wrapping the whole answer, and matching outer quotes.
func Clean(text string) string {
	text = removeThinkingBlocks(text)
	text = removePreamble(text)
	text = removeFenceWrapping(text)
	text = removeQuoteWrapping(text)
	return strings.TrimSpace(text)
}

// RE2 has no backreferences, so each tag pair is listed.
var thinkingBlockRe = regexp.MustCompile(
	`(?is)<thinking>.*?</thinking>|<think>.*?</think>|<reasoning>.*?</reasoning>|<reflection>.*?</reflection>`,
)

// An opening tag without its closing tag means the model was cut off.
var truncatedThinkingRe = regexp.MustCompile(
	`(?is)(?:<thinking>|<think>|<reasoning>|<reflection>).*$`,
)

func removeThinkingBlocks(text string) string {
	text = thinkingBlockRe.ReplaceAllString(text, "")
	text = truncatedThinkingRe.ReplaceAllString(text, "")
	return strings.TrimSpace(text)
}

// preamblePatterns are anchored at the start and require a trailing colon,
// so ordinary first sentences are left alone.
var preamblePatterns = []*regexp.Regexp{
	// "Here is / Here's [the|my|an] [revised|improved|updated|final] [draft|version|text|critique|feedback|review]:"
	regexp.MustCompile(`(?i)^here(?:'s| is)(?: the| my| an?)? (?:revised |improved |updated |rewritten |final )?(?:draft|version|text|critique|feedback|review|tagline|answer)\s*:`),
	// "[The] [revised|improved] [draft|version]:"
	regexp.MustCompile(`(?i)^(?:the )?(?:revised|improved|updated|rewritten|final) (?:draft|version|text)\s*:`),
	// "Certainly / Sure / Of course[,] here is ...:"
	regexp.MustCompile(`(?i)^(?:certainly|sure|of course|absolutely)[,.!]? here(?:'s| is)(?: the| my| an?)? (?:revised |improved |updated |rewritten |final )?(?:draft|version|text|critique|feedback|review|tagline|answer)\s*:`),
}

func removePreamble(text string) string {
	for _, re := range preamblePatterns {
		if loc := re.FindStringIndex(text); loc != nil && loc[0] == 0 {
			text = strings.TrimSpace(text[loc[1]:])
		}
	}
	return text
}

// wholeFenceRe matches an answer that is a single fenced block, optionally
// tagged with a language such as ```markdown.
var wholeFenceRe = regexp.MustCompile("(?s)^```[a-zA-Z]*\\n(.*?)\\n?```$")

func removeFenceWrapping(text string) string {
	if m := wholeFenceRe.FindStringSubmatch(text); m != nil && !strings.Contains(m[1], "```") {
		return strings.TrimSpace(m[1])
	}
	return text
}

// removeQuoteWrapping strips one matching pair of outer quotes:
//
//	"…"  '…'  «…»  “…”  ‘…’
func removeQuoteWrapping(text string) string {
	runes := []rune(text)
	n := len(runes)
	if n < 2 {
		return text
	}
	first, last := runes[0], runes[n-1]
	if (first == '"' && last == '"') ||
		(first == '\'' && last == '\'') ||
		(first == '«' && last == '»') ||
		(first == '“' && last == '”') ||
		(first == '‘' && last == '’') {
		return strings.TrimSpace(string(runes[1 : n-1]))
	}
	return text
}
