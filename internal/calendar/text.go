package calendar

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var months = map[string]time.Month{
	"enero":      time.January,
	"febrero":    time.February,
	"marzo":      time.March,
	"abril":      time.April,
	"mayo":       time.May,
	"junio":      time.June,
	"julio":      time.July,
	"agosto":     time.August,
	"septiembre": time.September,
	"setiembre":  time.September,
	"octubre":    time.October,
	"noviembre":  time.November,
	"diciembre":  time.December,
}

var (
	spanishDate = regexp.MustCompile(`(\d{1,2})\s+de\s+([a-z]+)(?:\s+de\s+(\d{4}))?`)
	isoDate     = regexp.MustCompile(`(\d{4})-(\d{2})-(\d{2})`)
	// S17A6, T30J6, D30A6, M31G6, X29Y6, plus CER bonds TZX26 / TZXD6.
	instrumentPatterns = []*regexp.Regexp{
		regexp.MustCompile(`\b[STXMD]\d{1,2}[A-Z]\d{1,2}\b`),
		regexp.MustCompile(`\bTZXD?\d{1,2}\b`),
	}
	maturitiesPattern = regexp.MustCompile(`\$?\s*([\d]+(?:[.,]\d+)?)\s*billones`)
	announcementWords = []string{"licitacion", "llamado"}
	openingWords      = []string{"comenzara", "iniciara", "apertura"}
	closingWords      = []string{"finalizara", "cierre", "hasta"}
)

// fold lowercases s and strips diacritics, so "Licitación" and "LICITACION" compare equal.
func fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.ToLower(out)
}

func isAnnouncement(title string) bool {
	folded := fold(title)
	for _, w := range announcementWords {
		if strings.Contains(folded, w) {
			return true
		}
	}
	return false
}

// extractDate finds "14 de enero [de 2026]" or "2026-01-14" in text. A date without a year takes
// whichever of last, current, or next year lands closest to now.
func extractDate(text string, now time.Time, loc *time.Location) (time.Time, bool) {
	folded := fold(text)
	for _, m := range spanishDate.FindAllStringSubmatch(folded, -1) {
		month, ok := months[m[2]]
		if !ok {
			continue
		}
		day, _ := strconv.Atoi(m[1])
		if m[3] != "" {
			year, _ := strconv.Atoi(m[3])
			if date, ok := civilDate(year, month, day, loc); ok {
				return date, true
			}
			continue
		}
		if date, ok := nearestYear(month, day, now, loc); ok {
			return date, true
		}
	}
	if m := isoDate.FindStringSubmatch(text); m != nil {
		year, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		day, _ := strconv.Atoi(m[3])
		if date, ok := civilDate(year, time.Month(month), day, loc); ok {
			return date, true
		}
	}
	return time.Time{}, false
}

func nearestYear(month time.Month, day int, now time.Time, loc *time.Location) (time.Time, bool) {
	var (
		best  time.Time
		found bool
	)
	year := now.In(loc).Year()
	for _, y := range []int{year - 1, year, year + 1} {
		date, ok := civilDate(y, month, day, loc)
		if !ok {
			continue
		}
		if !found || absDuration(date.Sub(now)) < absDuration(best.Sub(now)) {
			best, found = date, true
		}
	}
	return best, found
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}

// civilDate rejects dates time.Date would normalize (e.g. 31 de febrero).
func civilDate(year int, month time.Month, day int, loc *time.Location) (time.Time, bool) {
	if month < time.January || month > time.December || day < 1 {
		return time.Time{}, false
	}
	t := time.Date(year, month, day, 0, 0, 0, 0, loc)
	if t.Month() != month || t.Day() != day {
		return time.Time{}, false
	}
	return t, true
}

func extractInstruments(text string) []string {
	upper := strings.ToUpper(text)
	seen := make(map[string]struct{})
	var out []string
	for _, re := range instrumentPatterns {
		for _, m := range re.FindAllString(upper, -1) {
			if _, ok := seen[m]; ok {
				continue
			}
			seen[m] = struct{}{}
			out = append(out, m)
		}
	}
	sort.Strings(out)
	return out
}

// extractMaturities reads "$9,6 billones" as 9.6e12 ARS. Zero when absent.
func extractMaturities(text string) float64 {
	m := maturitiesPattern.FindStringSubmatch(fold(text))
	if m == nil {
		return 0
	}
	v, err := strconv.ParseFloat(strings.Replace(m[1], ",", ".", 1), 64)
	if err != nil {
		return 0
	}
	return v * 1e12
}

// extractClock finds the first HH:MM following one of keywords.
func extractClock(text string, keywords []string) string {
	folded := fold(text)
	for _, kw := range keywords {
		re := regexp.MustCompile(regexp.QuoteMeta(kw) + `[^0-9]*(\d{1,2}:\d{2})`)
		if m := re.FindStringSubmatch(folded); m != nil {
			return m[1]
		}
	}
	return ""
}
