package claimscan

import "regexp"

// Pattern is one compiled claim-shaped phrase matcher. ToolGroup and
// ValueGroup name the capture indexes carrying a tool hint and a claimed
// value; zero means the group is absent.
type Pattern struct {
	Name       string
	Regex      *regexp.Regexp
	ToolGroup  int
	ValueGroup int
}

// DefaultPatterns covers the phrase shapes that signal "a tool ran and this
// is its result". Order matters: earlier patterns are more specific and win
// the per-line dedupe.
func DefaultPatterns() []Pattern {
	return []Pattern{
		{
			Name:       "first_person_invocation",
			Regex:      regexp.MustCompile(`(?i)\bI\s+(?:checked|retrieved|got|fetched|called|used|executed|queried)\s+([\w.\-]+)\s*(?:and|to|for)?\s*[:\-]?\s*(.*)`),
			ToolGroup:  1,
			ValueGroup: 2,
		},
		{
			Name:       "tool_suffix_report",
			Regex:      regexp.MustCompile(`(?i)\b([\w.\-]+_(?:api|tool|service))\s+(?:returned|gave|showed|provided|reports?|says)[:\s]*(.+)`),
			ToolGroup:  1,
			ValueGroup: 2,
		},
		{
			Name:       "named_service_report",
			Regex:      regexp.MustCompile(`(?i)\b(?:the|my)\s+(\w+)\s+(?:tool|api|service|function|system|database)\s+(?:returned|shows|indicates|reports|confirms|says)[:\-\s]*(.+)`),
			ToolGroup:  1,
			ValueGroup: 2,
		},
		{
			Name:       "attribution",
			Regex:      regexp.MustCompile(`(?i)\b(?:according\s+to|based\s+on|using)\s+(?:the\s+)?([\w.\-]+)(?:\s+(?:tool|api|service|function|system))?[,:\-]\s*(.+)`),
			ToolGroup:  1,
			ValueGroup: 2,
		},
		{
			Name:       "generic_call_report",
			Regex:      regexp.MustCompile(`(?i)\b(?:api|tool|service|system)\s+(?:call|query|request)\s+(?:returned|gave|showed)[:\s]*(.+)`),
			ValueGroup: 1,
		},
		{
			Name:       "fresh_data",
			Regex:      regexp.MustCompile(`(?i)\b(?:current|latest|real-time|updated)\s+(\w+)(?:\s+(?:data|information|status|price|temperature|value))?\s+(?:is|was|shows?)[:\s]*(.+)`),
			ToolGroup:  1,
			ValueGroup: 2,
		},
		{
			Name:       "metric_value",
			Regex:      regexp.MustCompile(`(?i)\b(?:status|state|value|price|temperature|count|amount|balance)\s*(?:is|was|of|[:=])\s*([\d,.]+\s*[%°CF$€£¥]?|\$[\d,.]+)`),
			ValueGroup: 1,
		},
		{
			Name:       "temporal_assertion",
			Regex:      regexp.MustCompile(`(?i)\b(?:as\s+of\s+(?:now|today)|right\s+now|at\s+this\s+moment)[:\s,]+(.+)`),
			ValueGroup: 1,
		},
	}
}

// toolVocabulary binds a tool family to the vocabulary that implies it.
type toolVocabulary struct {
	tool  string
	words []string
}

// impliedTools maps domain vocabulary to a likely tool family; used when a
// line carries claim-shaped data but no explicit tool reference. Slice order
// is the priority when a line carries vocabulary from more than one family.
var impliedTools = []toolVocabulary{
	{"weather", []string{"temperature", "humidity", "rain", "snow", "wind", "forecast"}},
	{"stock", []string{"price", "trading", "market", "shares", "stocks", "ticker"}},
	{"finance", []string{"balance", "account", "payment", "transaction"}},
	{"database", []string{"record", "entry", "query", "row"}},
	{"news", []string{"headline", "article", "breaking"}},
}

// domainKeywords are the vocabulary the matcher uses for keyword-overlap
// scoring. Kept here so extractor and matcher share one list.
var domainKeywords = []string{
	"temperature", "price", "cost", "value", "amount", "count", "number",
	"status", "state", "condition", "level", "rate", "percentage",
	"balance", "total", "sum", "average", "maximum", "minimum",
	"weather", "stock", "market", "news", "forecast", "ticker",
	"current", "latest", "updated", "recent",
}

var (
	quotedValueRe   = regexp.MustCompile(`"([^"]+)"|'([^']+)'`)
	unitValueRe     = regexp.MustCompile(`[\d,]+\.?\d*\s*(?:°[CF]?|[%$€£¥])`)
	currencyValueRe = regexp.MustCompile(`[$€£¥][\d,]+\.?\d*`)
	plainNumberRe   = regexp.MustCompile(`[\d,]+\.?\d*`)
	toolTokenRe     = regexp.MustCompile(`(?i)\b([\w.\-]+_(?:api|tool|service))\b`)
)
