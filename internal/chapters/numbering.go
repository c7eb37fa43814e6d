// Package chapters derives chapter numbers from free-form chapter titles and
// detects gaps in a series' chapter sequence.
package chapters

import (
	"math"
	"regexp"
	"slices"
	"strconv"
)

var (
	numberRe  = regexp.MustCompile(`(\d+(?:\.\d+)?)`)
	decimalRe = regexp.MustCompile(`(\d+\.\d+)`)
)

// ExtractChapterNumber pulls a chapter number out of a title.
//
// With three or more numbers in the title only a decimal ("27.1") is trusted
// and the title yields nothing when none is present. With two numbers the
// last one wins ("S2 - Episode 104" is 104). A single number is used as is.
func ExtractChapterNumber(title string) (float64, bool) {
	matches := numberRe.FindAllString(title, -1)

	switch n := len(matches); {
	case n >= 3:
		if m := decimalRe.FindString(title); m != "" {
			return parseNumber(m)
		}
		return 0, false
	case n == 2:
		return parseNumber(matches[1])
	case n == 1:
		return parseNumber(matches[0])
	default:
		return 0, false
	}
}

// CalculateMissingChapters reports chapter numbers absent from a series.
//
// Supplementary ".5" chapters are ignored. Every whole number from 1 to the
// highest chapter without an entry is reported. When most chapters are split
// into sub-chapters (.1, .2, ...), those fractions become the expected
// pattern and each chapter lacking a whole-number entry is checked for them.
func CalculateMissingChapters(numbers []float64) []float64 {
	if len(numbers) == 0 {
		return []float64{}
	}

	byWhole := make(map[int]map[float64]struct{})
	for _, n := range numbers {
		whole := int(math.Floor(n))
		fraction := roundFraction(n)
		if math.Abs(fraction-0.5) < 1e-9 {
			continue
		}
		if byWhole[whole] == nil {
			byWhole[whole] = make(map[float64]struct{})
		}
		byWhole[whole][fraction] = struct{}{}
	}
	if len(byWhole) == 0 {
		return []float64{}
	}

	wholes := make([]int, 0, len(byWhole))
	for w := range byWhole {
		wholes = append(wholes, w)
	}
	slices.Sort(wholes)
	highest := wholes[len(wholes)-1]

	missing := []float64{}
	for i := 1; i <= highest; i++ {
		if _, ok := byWhole[i]; !ok {
			missing = append(missing, float64(i))
		}
	}

	counts := make(map[float64]int)
	for _, fractions := range byWhole {
		for f := range fractions {
			counts[f]++
		}
	}

	threshold := max(2, int(math.Floor(float64(len(byWhole))*0.3)))
	var expected []float64
	for f, c := range counts {
		if c >= threshold && f != 0 {
			expected = append(expected, f)
		}
	}
	slices.Sort(expected)

	for _, whole := range wholes {
		fractions := byWhole[whole]
		if _, complete := fractions[0]; complete {
			continue
		}
		for _, f := range expected {
			if _, ok := fractions[f]; !ok {
				missing = append(missing, round1(float64(whole)+f))
			}
		}
	}

	slices.Sort(missing)
	return missing
}

func roundFraction(n float64) float64 {
	return math.Round((n-math.Floor(n))*10) / 10
}

func round1(n float64) float64 {
	return math.Round(n*10) / 10
}

func parseNumber(s string) (float64, bool) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
