package fdiff

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/pmezard/go-difflib/difflib"
)

// DefaultThreshold is the minimum similarity accepted for fuzzy matches.
const DefaultThreshold = 0.9

var (
	ErrEmptyOriginal  = errors.New("original block is empty")
	ErrAmbiguous      = errors.New("ambiguous: multiple verbatim matches")
	ErrNoMatch        = errors.New("no match found")
	ErrBelowThreshold = fmt.Errorf("%w: best fuzzy match is below threshold", ErrNoMatch)
)

// Location is a located span in the file content. Start and End are byte
// offsets.
type Location struct {
	Start  int
	End    int
	Method Method
}

// Locate finds the unique region of content that original refers to. An
// exact match is preferred; a fuzzy sliding-window search is only used when
// original does not occur verbatim at all.
//
// A fuzzy match is accepted on the similarity between original and the span
// aligned inside the best window, not on the ratio of the window itself.
// That span is what gets replaced, and Method.Score reports its similarity.
func Locate(content, original string, threshold float64) (Location, error) {
	if isBlank(original) {
		return Location{}, ErrEmptyOriginal
	}

	if start := strings.Index(content, original); start != -1 {
		if strings.Contains(content[start+1:], original) {
			return Location{}, ErrAmbiguous
		}
		return Location{Start: start, End: start + len(original), Method: Verbatim}, nil
	}

	return locateFuzzy(content, original, threshold)
}

// runeText is a string split into one-rune elements together with the byte
// offset of every rune boundary.
type runeText struct {
	elems   []string
	offsets []int
}

func newRuneText(s string) runeText {
	n := utf8.RuneCountInString(s)
	rt := runeText{elems: make([]string, 0, n), offsets: make([]int, 0, n+1)}
	for i, r := range s {
		rt.elems = append(rt.elems, string(r))
		rt.offsets = append(rt.offsets, i)
	}
	rt.offsets = append(rt.offsets, len(s))
	return rt
}

func windowStarts(contentLen, window, step int) []int {
	if contentLen <= window {
		return []int{0}
	}
	var starts []int
	last := 0
	for i := 0; i+window <= contentLen; i += step {
		starts = append(starts, i)
		last = i
	}
	if last+window < contentLen {
		starts = append(starts, contentLen-window)
	}
	return starts
}

func locateFuzzy(content, original string, threshold float64) (Location, error) {
	text := newRuneText(content)
	orig := newRuneText(original)
	if len(text.elems) == 0 {
		return Location{}, fmt.Errorf("%w: file is empty", ErrNoMatch)
	}

	window := len(orig.elems) * 3 / 2
	step := max(1, window/3)

	matcher := difflib.NewMatcherWithJunk(nil, orig.elems, false, nil)
	bestRatio := -1.0
	bestStart, bestEnd := -1, -1
	for _, i := range windowStarts(len(text.elems), window, step) {
		end := min(i+window, len(text.elems))
		matcher.SetSeq1(text.elems[i:end])
		ratio := matcher.Ratio()
		if ratio <= bestRatio {
			continue
		}
		bestRatio = ratio
		bestStart, bestEnd = alignedSpan(matcher.GetMatchingBlocks())
		if bestStart >= 0 {
			bestStart += i
			bestEnd += i
		}
	}

	if bestStart < 0 || bestEnd <= bestStart {
		return Location{}, fmt.Errorf("%w: fuzzy alignment produced an empty span", ErrNoMatch)
	}

	score := Similarity(strings.Join(text.elems[bestStart:bestEnd], ""), original)
	if score < threshold {
		return Location{}, fmt.Errorf("%w (best %.2f, threshold %.2f)", ErrBelowThreshold, score, threshold)
	}

	return Location{
		Start:  text.offsets[bestStart],
		End:    text.offsets[bestEnd],
		Method: Method{Fuzzy: true, Score: score},
	}, nil
}

// alignedSpan returns the window-relative rune range covered by the
// matching blocks, or -1, -1 when nothing matched.
func alignedSpan(blocks []difflib.Match) (int, int) {
	start, end := -1, -1
	for _, b := range blocks {
		if b.Size == 0 {
			continue
		}
		if start == -1 {
			start = b.A
		}
		end = b.A + b.Size
	}
	return start, end
}

// Similarity returns the Ratcliff-Obershelp ratio of a and b, compared
// rune by rune. Equal strings score 1.
func Similarity(a, b string) float64 {
	m := difflib.NewMatcherWithJunk(newRuneText(a).elems, newRuneText(b).elems, false, nil)
	return m.Ratio()
}
