// Package textstats provides the pure text analysis functions used by
// the text metrics worker: word and keyword counting, sentence
// statistics, Flesch reading ease, and a composite complexity score.
package textstats

import (
	"math"
	"regexp"
	"strings"
)

var (
	// wordPattern matches words including hyphenated and apostrophe
	// forms ("cost-effective", "don't").
	wordPattern = regexp.MustCompile(`\b[A-Za-z0-9]+(?:[-'][A-Za-z0-9]+)*\b`)

	// tagPattern strips residual XML/HTML tags before counting.
	tagPattern = regexp.MustCompile(`<[^>]*>`)

	// entityPattern strips character entities like &amp; and &#167;.
	entityPattern = regexp.MustCompile(`&#?[A-Za-z0-9]+;`)

	// sentencePattern splits on terminal punctuation runs.
	sentencePattern = regexp.MustCompile(`[.!?]+`)
)

// Clean removes markup and entities, leaving plain prose.
func Clean(text string) string {
	text = tagPattern.ReplaceAllString(text, " ")
	text = entityPattern.ReplaceAllString(text, " ")
	return text
}

// Words returns the word tokens of the cleaned text.
func Words(text string) []string {
	return wordPattern.FindAllString(Clean(text), -1)
}

// WordCount counts the words in the cleaned text.
func WordCount(text string) int {
	return len(Words(text))
}

// Sentences splits cleaned text into non-empty sentences.
func Sentences(text string) []string {
	parts := sentencePattern.Split(Clean(text), -1)
	sentences := make([]string, 0, len(parts))
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			sentences = append(sentences, strings.TrimSpace(p))
		}
	}
	return sentences
}

// CountSyllables estimates the syllables in a single word by counting
// vowel groups, ignoring a silent trailing "e". Minimum is 1.
func CountSyllables(word string) int {
	word = strings.ToLower(word)
	count := 0
	prevVowel := false
	for _, r := range word {
		vowel := strings.ContainsRune("aeiouy", r)
		if vowel && !prevVowel {
			count++
		}
		prevVowel = vowel
	}
	if strings.HasSuffix(word, "e") && !strings.HasSuffix(word, "le") && count > 1 {
		count--
	}
	if count < 1 {
		count = 1
	}
	return count
}

// IsComplexWord reports whether a word has three or more syllables.
func IsComplexWord(word string) bool {
	return CountSyllables(word) >= 3
}

// KeywordCount counts case-insensitive whole-word occurrences of a
// keyword in the cleaned text. Multi-word keywords match as phrases.
func KeywordCount(text, keyword string) int {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return 0
	}
	pattern, err := regexp.Compile(`(?i)\b` + regexp.QuoteMeta(keyword) + `\b`)
	if err != nil {
		return 0
	}
	return len(pattern.FindAllString(Clean(text), -1))
}

// CamelCase converts a lowercased multi-word keyword to its camelCase
// metric key ("public comment" -> "publicComment").
func CamelCase(keyword string) string {
	fields := strings.Fields(strings.ToLower(strings.TrimSpace(keyword)))
	if len(fields) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString(fields[0])
	for _, f := range fields[1:] {
		b.WriteString(strings.ToUpper(f[:1]))
		b.WriteString(f[1:])
	}
	return b.String()
}

// KeywordFrequency counts every keyword, keyed by its camelCase form.
func KeywordFrequency(text string, keywords []string) map[string]int {
	freq := make(map[string]int, len(keywords))
	for _, k := range keywords {
		key := CamelCase(k)
		if key == "" {
			continue
		}
		freq[key] = KeywordCount(text, k)
	}
	return freq
}

// AverageSentenceLength returns the rounded mean words per sentence.
func AverageSentenceLength(text string) int {
	sentences := Sentences(text)
	if len(sentences) == 0 {
		return 0
	}
	words := WordCount(text)
	return int(math.Round(float64(words) / float64(len(sentences))))
}

// FleschScore computes the Flesch reading ease, clamped to [0,100].
func FleschScore(text string) int {
	words := Words(text)
	sentences := Sentences(text)
	if len(words) == 0 || len(sentences) == 0 {
		return 0
	}

	syllables := 0
	for _, w := range words {
		syllables += CountSyllables(w)
	}

	score := 206.835 -
		1.015*(float64(len(words))/float64(len(sentences))) -
		84.6*(float64(syllables)/float64(len(words)))

	return clamp(int(math.Round(score)), 0, 100)
}

// ComplexityScore computes the composite complexity in [0,100]:
// 40 points for average sentence length (capped at 30 words),
// 40 points for the ratio of complex words, and 20 points for
// sentence-length variance (capped at 100).
func ComplexityScore(text string) int {
	words := Words(text)
	sentences := Sentences(text)
	if len(words) == 0 || len(sentences) == 0 {
		return 0
	}

	avgLen := float64(len(words)) / float64(len(sentences))

	complexWords := 0
	for _, w := range words {
		if IsComplexWord(w) {
			complexWords++
		}
	}
	complexRatio := float64(complexWords) / float64(len(words))

	variance := sentenceLengthVariance(sentences, avgLen)

	score := 40*math.Min(avgLen/30, 1) +
		40*complexRatio +
		20*math.Min(variance/100, 1)

	return clamp(int(math.Round(score)), 0, 100)
}

// sentenceLengthVariance is the population variance of per-sentence
// word counts around the given mean.
func sentenceLengthVariance(sentences []string, mean float64) float64 {
	if len(sentences) == 0 {
		return 0
	}
	var sum float64
	for _, s := range sentences {
		n := float64(len(wordPattern.FindAllString(s, -1)))
		sum += (n - mean) * (n - mean)
	}
	return sum / float64(len(sentences))
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
