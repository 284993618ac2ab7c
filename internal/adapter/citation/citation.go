// Package citation finds [SOURCE n] markers in generated answers and
// measures how much of an answer is backed by them.
package citation

import (
	"sort"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"docqa/internal/adapter/analyzer"
	"docqa/internal/domain"
)

const keyword = "source"

// MinSentenceLength is the shortest sentence, in characters after trimming
// terminal punctuation, that counts towards faithfulness.
const MinSentenceLength = 10

// Extract returns the distinct source labels cited in answer, ordered
// numerically. Both "[SOURCE n]" and "[SOURCE n: text]" are recognised;
// the keyword is case-insensitive and labels are canonical decimals.
func Extract(answer string) []string {
	seen := make(map[int]bool)
	for i := 0; i < len(answer); i++ {
		if answer[i] != '[' {
			continue
		}
		if n, _, ok := parseMarker(answer[i+1:]); ok {
			seen[n] = true
		}
	}

	nums := make([]int, 0, len(seen))
	for n := range seen {
		nums = append(nums, n)
	}
	sort.Ints(nums)

	labels := make([]string, len(nums))
	for i, n := range nums {
		labels[i] = strconv.Itoa(n)
	}
	return labels
}

// HasMarker reports whether s contains at least one citation marker.
func HasMarker(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] == '[' {
			if _, _, ok := parseMarker(s[i+1:]); ok {
				return true
			}
		}
	}
	return false
}

// parseMarker parses the text following '[' and returns the cited number
// and the byte length of the marker up to and including its ']'.
func parseMarker(s string) (n, size int, ok bool) {
	if len(s) < len(keyword) || !strings.EqualFold(s[:len(keyword)], keyword) {
		return 0, 0, false
	}
	pos := len(keyword)

	ws := len(s[pos:]) - len(strings.TrimLeftFunc(s[pos:], unicode.IsSpace))
	if ws == 0 {
		return 0, 0, false
	}
	pos += ws

	digits := 0
	for pos+digits < len(s) && s[pos+digits] >= '0' && s[pos+digits] <= '9' {
		digits++
	}
	if digits == 0 {
		return 0, 0, false
	}
	n, err := strconv.Atoi(s[pos : pos+digits])
	if err != nil || n < 1 {
		return 0, 0, false
	}
	pos += digits

	switch {
	case strings.HasPrefix(s[pos:], "]"):
		return n, pos + 1, true
	case strings.HasPrefix(s[pos:], ":"):
		end := strings.IndexByte(s[pos:], ']')
		if end <= 1 {
			return 0, 0, false
		}
		return n, pos + end + 1, true
	}
	return 0, 0, false
}

// collapseMarkers rewrites every marker as "[SOURCE n]" so punctuation in
// a marker's free text cannot end a sentence.
func collapseMarkers(answer string) string {
	var b strings.Builder
	b.Grow(len(answer))
	for i := 0; i < len(answer); i++ {
		if answer[i] == '[' {
			if n, size, ok := parseMarker(answer[i+1:]); ok {
				b.WriteString("[SOURCE ")
				b.WriteString(strconv.Itoa(n))
				b.WriteByte(']')
				i += size
				continue
			}
		}
		b.WriteByte(answer[i])
	}
	return b.String()
}

// Faithfulness returns the fraction of substantive sentences in answer that
// carry a citation marker. Markers are located before the answer is split
// into sentences. Sentences shorter than MinSentenceLength are
// ignored; an answer without substantive sentences scores 0. The retrieved
// chunks do not affect the score.
func Faithfulness(answer string, _ []domain.RetrievedChunk) float64 {
	total, cited := 0, 0
	for _, sentence := range analyzer.Sentences(collapseMarkers(answer)) {
		if utf8.RuneCountInString(analyzer.StripTerminal(sentence)) < MinSentenceLength {
			continue
		}
		total++
		if HasMarker(sentence) {
			cited++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(cited) / float64(total)
}

// Validate splits labels into those that refer to one of n retrieved
// sources and those that point outside the context.
func Validate(labels []string, n int) (valid, dangling []string) {
	for _, label := range labels {
		num, err := strconv.Atoi(label)
		if err == nil && num >= 1 && num <= n {
			valid = append(valid, label)
		} else {
			dangling = append(dangling, label)
		}
	}
	return valid, dangling
}
