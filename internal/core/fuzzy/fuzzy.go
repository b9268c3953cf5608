// Package fuzzy scores string similarity on a 0..100 scale.
// WRatio blends plain, token and partial ratios the way rapidfuzz does,
// so thresholds tuned against that library carry over.
package fuzzy

import (
	"math"
	"sort"
	"strings"
)

// Scorer returns a similarity in [0, 100]
type Scorer func(a, b string) int

const (
	unbaseScale = 0.95
	partialNear = 0.9
	partialFar  = 0.6
)

// Score is WRatio rounded to the nearest integer
func Score(a, b string) int { return int(math.Round(WRatio(a, b))) }

// WRatio is the weighted ratio: plain ratio for similar lengths,
// partial ratios scaled down as the length gap grows
func WRatio(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 || len(rb) == 0 {
		return 0
	}
	lenRatio := float64(max(len(ra), len(rb))) / float64(min(len(ra), len(rb)))

	end := ratioRunes(ra, rb)
	if lenRatio < 1.5 {
		return math.Max(end, TokenRatio(a, b)*unbaseScale)
	}

	scale := partialNear
	if lenRatio >= 8 {
		scale = partialFar
	}
	end = math.Max(end, PartialRatio(a, b)*scale)
	return math.Max(end, PartialTokenRatio(a, b)*unbaseScale*scale)
}

// Ratio is the normalized indel similarity of a and b
func Ratio(a, b string) float64 { return ratioRunes([]rune(a), []rune(b)) }

func ratioRunes(a, b []rune) float64 {
	total := len(a) + len(b)
	if total == 0 {
		return 100
	}
	return 200 * float64(lcs(a, b)) / float64(total)
}

// lcs is the longest common subsequence length
func lcs(a, b []rune) int {
	if len(a) < len(b) {
		a, b = b, a
	}
	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			switch {
			case a[i-1] == b[j-1]:
				cur[j] = prev[j-1] + 1
			case prev[j] >= cur[j-1]:
				cur[j] = prev[j]
			default:
				cur[j] = cur[j-1]
			}
		}
		prev, cur = cur, prev
	}
	return prev[len(b)]
}

// PartialRatio is the best Ratio of the shorter string against any
// same-length window of the longer one, windows clipped at either end included
func PartialRatio(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 || len(rb) == 0 {
		return 0
	}
	if len(ra) > len(rb) {
		ra, rb = rb, ra
	}
	best := partialWindows(ra, rb)
	if len(ra) == len(rb) && best < 100 {
		best = math.Max(best, partialWindows(rb, ra))
	}
	return best
}

func partialWindows(short, long []rune) float64 {
	m := len(short)
	best := 0.0
	for start := -(m - 1); start < len(long); start++ {
		lo, hi := max(start, 0), min(start+m, len(long))
		if lo >= hi {
			continue
		}
		if r := ratioRunes(short, long[lo:hi]); r > best {
			best = r
			if best == 100 {
				break
			}
		}
	}
	return best
}

// TokenSortRatio compares the strings after sorting their whitespace tokens
func TokenSortRatio(a, b string) float64 {
	return Ratio(sortedJoin(strings.Fields(a)), sortedJoin(strings.Fields(b)))
}

// TokenSetRatio compares the shared tokens against each side's remainder
func TokenSetRatio(a, b string) float64 {
	sect, onlyA, onlyB := tokenSets(a, b)
	if len(sect)+len(onlyA) == 0 || len(sect)+len(onlyB) == 0 {
		return 0
	}
	if len(sect) > 0 && (len(onlyA) == 0 || len(onlyB) == 0) {
		return 100
	}

	base := sortedJoin(sect)
	withA := strings.TrimSpace(base + " " + sortedJoin(onlyA))
	withB := strings.TrimSpace(base + " " + sortedJoin(onlyB))

	best := Ratio(withA, withB)
	if len(sect) > 0 {
		best = math.Max(best, Ratio(base, withA))
		best = math.Max(best, Ratio(base, withB))
	}
	return best
}

// TokenRatio is the better of TokenSortRatio and TokenSetRatio
func TokenRatio(a, b string) float64 {
	return math.Max(TokenSortRatio(a, b), TokenSetRatio(a, b))
}

// PartialTokenRatio is PartialRatio over sorted tokens; any shared token scores 100
func PartialTokenRatio(a, b string) float64 {
	ta, tb := strings.Fields(a), strings.Fields(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}
	sect, onlyA, onlyB := tokenSets(a, b)
	if len(sect) > 0 {
		return 100
	}
	best := PartialRatio(sortedJoin(ta), sortedJoin(tb))
	if len(onlyA) != len(ta) || len(onlyB) != len(tb) {
		best = math.Max(best, PartialRatio(sortedJoin(onlyA), sortedJoin(onlyB)))
	}
	return best
}

// tokenSets splits both sides on whitespace into deduplicated sorted sets
func tokenSets(a, b string) (sect, onlyA, onlyB []string) {
	sa, sb := set(strings.Fields(a)), set(strings.Fields(b))
	for t := range sa {
		if _, ok := sb[t]; ok {
			sect = append(sect, t)
		} else {
			onlyA = append(onlyA, t)
		}
	}
	for t := range sb {
		if _, ok := sa[t]; !ok {
			onlyB = append(onlyB, t)
		}
	}
	return sect, onlyA, onlyB
}

func set(ts []string) map[string]struct{} {
	m := make(map[string]struct{}, len(ts))
	for _, t := range ts {
		m[t] = struct{}{}
	}
	return m
}

func sortedJoin(ts []string) string {
	cp := append([]string(nil), ts...)
	sort.Strings(cp)
	return strings.Join(cp, " ")
}

// Match is the best choice ExtractOne found
type Match struct {
	Choice string
	Score  int
}

// ExtractOne returns the highest scoring choice with a score of at least cutoff.
// Equal scores resolve to the lexicographically smallest choice.
func ExtractOne(query string, choices []string, score Scorer, cutoff int) (Match, bool) {
	if score == nil {
		score = Score
	}
	var best Match
	found := false
	for _, c := range choices {
		s := score(query, c)
		if s < cutoff {
			continue
		}
		if !found || s > best.Score || (s == best.Score && c < best.Choice) {
			best = Match{Choice: c, Score: s}
			found = true
		}
	}
	return best, found
}
