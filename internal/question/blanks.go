package question

import "regexp"

// CanonicalBlank is the single placeholder every cloze blank is rewritten to.
const CanonicalBlank = "________"

// blankPattern matches the blank spellings found in source data: runs of three
// or more underscores, empty ASCII or full-width bracket pairs, and the
// literal _blank_ token.
var blankPattern = regexp.MustCompile(`_blank_|_{3,}|\[[\s\x{3000}]*\]|\([\s\x{3000}]*\)|\{[\s\x{3000}]*\}|（[\s\x{3000}]*）|【[\s\x{3000}]*】|〔[\s\x{3000}]*〕`)

// CanonicalizeBlanks rewrites every blank placeholder in s to CanonicalBlank.
func CanonicalizeBlanks(s string) string {
	return blankPattern.ReplaceAllString(s, CanonicalBlank)
}
