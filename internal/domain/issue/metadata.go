package issue

import (
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"

	"github.com/turtacn/Issue-Intelligence/internal/domain/mention"
)

// MetadataConfig limits the metadata lists.
type MetadataConfig struct {
	TopKeywords    int
	TopSources     int
	MaxRegions     int
	ExtraStopwords []string
}

// Metadata is the descriptive summary of an issue's linked mentions.
type Metadata struct {
	Keywords []string
	Sources  []string
	Regions  []string
}

// MetadataExtractor derives keywords, sources and regions from mentions.
type MetadataExtractor struct {
	cfg       MetadataConfig
	stopwords map[string]struct{}
}

// NewMetadataExtractor builds an extractor with the built-in stopword list
// plus cfg.ExtraStopwords.
func NewMetadataExtractor(cfg MetadataConfig) *MetadataExtractor {
	if cfg.TopKeywords <= 0 {
		cfg.TopKeywords = 10
	}
	if cfg.TopSources <= 0 {
		cfg.TopSources = 5
	}
	if cfg.MaxRegions <= 0 {
		cfg.MaxRegions = 10
	}
	stop := make(map[string]struct{}, len(englishStopwords)+len(cfg.ExtraStopwords))
	for _, w := range englishStopwords {
		stop[w] = struct{}{}
	}
	for _, w := range cfg.ExtraStopwords {
		stop[fold(w)] = struct{}{}
	}
	return &MetadataExtractor{cfg: cfg, stopwords: stop}
}

// Extract recomputes all metadata from the full mention set.
func (x *MetadataExtractor) Extract(mentions []*mention.Mention) Metadata {
	texts := make([]string, 0, len(mentions))
	sources := make([]string, 0, len(mentions))
	regions := make([]string, 0, len(mentions))
	for _, m := range mentions {
		texts = append(texts, m.Text)
		if s := strings.TrimSpace(m.Source); s != "" {
			sources = append(sources, s)
		}
		if r := strings.TrimSpace(m.Region); r != "" {
			regions = append(regions, r)
		}
	}
	return Metadata{
		Keywords: x.Keywords(texts),
		Sources:  topN(sources, x.cfg.TopSources),
		Regions:  topN(regions, x.cfg.MaxRegions),
	}
}

// Keywords returns the most frequent non-stopword tokens across texts.
func (x *MetadataExtractor) Keywords(texts []string) []string {
	var tokens []string
	for _, t := range texts {
		for _, tok := range Tokenize(t) {
			if _, stop := x.stopwords[tok]; stop {
				continue
			}
			tokens = append(tokens, tok)
		}
	}
	return topN(tokens, x.cfg.TopKeywords)
}

// Label builds a human title from the leading keywords.
func (x *MetadataExtractor) Label(mentions []*mention.Mention, topicKey string) string {
	texts := make([]string, 0, len(mentions))
	for _, m := range mentions {
		texts = append(texts, m.Text)
	}
	kw := x.Keywords(texts)
	if len(kw) == 0 {
		return "Issue in " + topicKey
	}
	if len(kw) > 3 {
		kw = kw[:3]
	}
	return cases.Title(language.Und).String(strings.Join(kw, " "))
}

// Tokenize normalizes text (NFKC, case folded) and splits it into words of
// at least three runes. Pure numbers are dropped.
func Tokenize(text string) []string {
	fields := strings.FieldsFunc(fold(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := fields[:0]
	for _, f := range fields {
		if len([]rune(f)) < 3 || isNumeric(f) {
			continue
		}
		out = append(out, f)
	}
	return out
}

func fold(s string) string {
	return cases.Fold().String(norm.NFKC.String(s))
}

func isNumeric(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

// topN orders values by descending frequency, ties alphabetically.
func topN(values []string, n int) []string {
	counts := make(map[string]int, len(values))
	for _, v := range values {
		counts[v]++
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if counts[keys[i]] != counts[keys[j]] {
			return counts[keys[i]] > counts[keys[j]]
		}
		return keys[i] < keys[j]
	})
	if len(keys) > n {
		keys = keys[:n]
	}
	return keys
}

var englishStopwords = []string{
	"about", "above", "after", "again", "against", "all", "also", "and", "any", "are",
	"because", "been", "before", "being", "below", "between", "both", "but", "can",
	"could", "did", "does", "doing", "down", "during", "each", "even", "few", "for",
	"from", "further", "get", "got", "had", "has", "have", "having", "her", "here",
	"hers", "herself", "him", "himself", "his", "how", "http", "https", "into", "its",
	"itself", "just", "like", "more", "most", "much", "must", "myself", "nor", "not",
	"now", "off", "once", "one", "only", "other", "our", "ours", "ourselves", "out",
	"over", "own", "rt", "same", "she", "should", "some", "still", "such", "than",
	"that", "the", "their", "theirs", "them", "themselves", "then", "there", "these",
	"they", "this", "those", "through", "too", "under", "until", "very", "was", "way",
	"were", "what", "when", "where", "which", "while", "who", "whom", "why", "will",
	"with", "would", "www", "you", "your", "yours", "yourself", "yourselves",
}
