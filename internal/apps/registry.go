package apps

import (
	"fmt"
	"strings"
)

// EnvAppKey names the environment variable holding the default application key
const EnvAppKey = "CRAV_APP_KEY"

// Category groups hosted applications by what they are for
type Category int

const (
	Creative Category = iota
	Business
	Analysis
	Developer
	Gaming
)

var categoryNames = [...]string{
	Creative:  "creative",
	Business:  "business",
	Analysis:  "analysis",
	Developer: "developer",
	Gaming:    "gaming",
}

// String returns the lowercase category name
func (c Category) String() string {
	if c < 0 || int(c) >= len(categoryNames) {
		return fmt.Sprintf("category(%d)", int(c))
	}
	return categoryNames[c]
}

// MarshalText encodes the category as its name
func (c Category) MarshalText() ([]byte, error) {
	if c < 0 || int(c) >= len(categoryNames) {
		return nil, fmt.Errorf("unknown category %d", int(c))
	}
	return []byte(categoryNames[c]), nil
}

// UnmarshalText decodes a category name
func (c *Category) UnmarshalText(b []byte) error {
	parsed, err := ParseCategory(string(b))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// ParseCategory maps a category name back to its value
func ParseCategory(s string) (Category, error) {
	for i, name := range categoryNames {
		if strings.EqualFold(s, name) {
			return Category(i), nil
		}
	}
	return 0, fmt.Errorf("unknown category %q", s)
}

// Descriptor identifies one hosted application
type Descriptor struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Category Category `json:"category"`
}

type entry struct {
	key  string
	desc Descriptor
}

// registry is ordered; lookups are exact-match on key
var registry = []entry{
	{"crav-logo-studio", Descriptor{ID: "logo-studio", Name: "Logo Studio", Category: Creative}},
	{"crav-brand-kit", Descriptor{ID: "brand-kit", Name: "Brand Kit", Category: Creative}},
	{"crav-video-editor", Descriptor{ID: "video-editor", Name: "Video Editor", Category: Creative}},
	{"crav-image-forge", Descriptor{ID: "image-forge", Name: "Image Forge", Category: Creative}},
	{"crav-invoice-hub", Descriptor{ID: "invoice-hub", Name: "Invoice Hub", Category: Business}},
	{"crav-crm-lite", Descriptor{ID: "crm-lite", Name: "CRM Lite", Category: Business}},
	{"crav-proposal-writer", Descriptor{ID: "proposal-writer", Name: "Proposal Writer", Category: Business}},
	{"crav-market-insights", Descriptor{ID: "market-insights", Name: "Market Insights", Category: Analysis}},
	{"crav-data-lens", Descriptor{ID: "data-lens", Name: "Data Lens", Category: Analysis}},
	{"crav-survey-analyzer", Descriptor{ID: "survey-analyzer", Name: "Survey Analyzer", Category: Analysis}},
	{"crav-code-assist", Descriptor{ID: "code-assist", Name: "Code Assist", Category: Developer}},
	{"crav-api-playground", Descriptor{ID: "api-playground", Name: "API Playground", Category: Developer}},
	{"crav-trivia-arena", Descriptor{ID: "trivia-arena", Name: "Trivia Arena", Category: Gaming}},
	{"crav-word-quest", Descriptor{ID: "word-quest", Name: "Word Quest", Category: Gaming}},
}

// Resolve looks up the descriptor registered under appKey.
// Empty and unknown keys report false.
func Resolve(appKey string) (Descriptor, bool) {
	if appKey == "" {
		return Descriptor{}, false
	}
	for _, e := range registry {
		if e.key == appKey {
			return e.desc, true
		}
	}
	return Descriptor{}, false
}

// Keys returns the registered application keys in registry order
func Keys() []string {
	keys := make([]string, len(registry))
	for i, e := range registry {
		keys[i] = e.key
	}
	return keys
}

// DefaultKey returns the application key supplied by the environment, or ""
func DefaultKey(lookup func(string) (string, bool)) string {
	if lookup == nil {
		return ""
	}
	key, _ := lookup(EnvAppKey)
	return strings.TrimSpace(key)
}
