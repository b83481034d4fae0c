package event

import (
	"strings"

	"github.com/pfrederiksen/insead-events/internal/logger"
)

// DefaultRegionKeywords is the keyword set used when no configuration overrides it
var DefaultRegionKeywords = []string{
	"asia", "singapore", "china", "japan", "korea",
	"india", "indonesia", "malaysia", "thailand", "vietnam",
}

// Normalizer turns raw card text into canonical event fields
type Normalizer struct {
	keywords []string
	log      *logger.Logger
}

// NewNormalizer creates a Normalizer for the given region keywords.
// The keyword slice is copied; a nil logger falls back to the default logger.
func NewNormalizer(keywords []string, log *logger.Logger) *Normalizer {
	kw := make([]string, 0, len(keywords))
	for _, k := range keywords {
		k = strings.ToLower(strings.TrimSpace(k))
		if k != "" {
			kw = append(kw, k)
		}
	}
	if log == nil {
		log = logger.Default()
	}
	return &Normalizer{keywords: kw, log: log}
}

// Date parses raw date text into YYYY-MM-DD.
// Unrecognized text yields "" and a warning; it is never an error.
func (n *Normalizer) Date(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return ""
	}
	parsed := ParseDate(raw)
	if parsed.IsZero() {
		n.log.Warn("Could not parse date string", logger.Fields{"raw": raw})
		return ""
	}
	return FormatDate(parsed)
}

// ClassifyRegion reports whether a location mentions any configured region keyword
func (n *Normalizer) ClassifyRegion(location string) bool {
	if location == "" {
		return false
	}
	lower := strings.ToLower(location)
	for _, k := range n.keywords {
		if strings.Contains(lower, k) {
			return true
		}
	}
	return false
}
