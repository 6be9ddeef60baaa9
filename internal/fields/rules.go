package fields

import (
	"regexp"
	"strings"

	"github.com/joseph-ayodele/submissions-tracker/constants"
)

// Strategy selects how a rule turns a matched label into a value.
type Strategy int

const (
	// RemainderOrNext takes the rest of the labeled line, or the next non-empty line.
	RemainderOrNext Strategy = iota
	// Choice picks one of a fixed set of options.
	Choice
	// Section captures the lines between a start marker and an end marker.
	Section
	// Pattern runs a regular expression over the whole text.
	Pattern
)

// Option is one allowed answer of a Choice rule.
type Option struct {
	Value string
	Match *regexp.Regexp
}

// Rule declares how one field is found in a document.
type Rule struct {
	Field    string
	Info     bool             // true -> result lands in the info map
	Labels   []*regexp.Regexp // anchored at the start of a segment
	Strategy Strategy
	Value    *regexp.Regexp // optional; first submatch (or whole match) becomes the value
	Options  []Option
	Ends     []*regexp.Regexp
	Format   func(m []string) string

	// LabelOnly restricts a Choice to the lines around its label.
	LabelOnly bool
}

func label(p string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)^[\s*•\-]*(?:` + p + `)\s*(?:[:#–\-=.?]+\s*|\s+|$)`)
}

func labels(ps ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(ps))
	for i, p := range ps {
		out[i] = label(p)
	}
	return out
}

func opt(value, pattern string) Option {
	return Option{Value: value, Match: regexp.MustCompile(`(?i)` + pattern)}
}

func options(values []string, patterns ...string) []Option {
	out := make([]Option, len(values))
	for i, v := range values {
		p := regexp.QuoteMeta(v)
		if i < len(patterns) && patterns[i] != "" {
			p = patterns[i]
		}
		out[i] = opt(v, p)
	}
	return out
}

func stripCommas(s string) string { return strings.ReplaceAll(s, ",", "") }

// DefaultRules is the rule table for sequencing submission forms. Rules are
// evaluated in order; each segment of text is claimed by at most one rule.
var DefaultRules = []Rule{
	{
		Field:  constants.FieldProjectID,
		Labels: labels(`service\s+project(?:\s+(?:id|number|no\.?))?`, `project(?:\s*(?:id|number|no\.?|#))?`),
		Value:  regexp.MustCompile(`^([A-Za-z0-9][A-Za-z0-9_.\-]*\d[A-Za-z0-9_.\-]*)`),
	},
	{
		Field:  constants.FieldOwner,
		Labels: labels(`(?:project\s+)?owner`, `submitted\s+by`, `submitter`, `pi(?:\s+name)?`, `principal\s+investigator`),
	},
	{
		Field:  constants.FieldSourceOrganism,
		Labels: labels(`source\s+organism`, `organism`, `species`),
	},
	{
		Field:    constants.FieldSequencingType,
		Labels:   labels(`sequencing\s+type`, `library\s+prep(?:aration)?(?:\s+kit)?`, `sequencing\s+kit`),
		Strategy: Choice,
		Options: options(constants.SequencingTypes,
			`ligation\s+sequencing\s+with\s+barcoding|SQK-NBD114`,
			`ligation\s+sequencing(?:\s+\(SQK-LSK114\))?|SQK-LSK114`,
			`rapid\s+sequencing\s+with\s+barcoding|SQK-RBK114`,
			`rapid\s+sequencing(?:\s+\(SQK-RAD114\))?|SQK-RAD114`,
		),
	},
	{
		Field:    constants.FieldSampleType,
		Labels:   labels(`sample\s+type`),
		Strategy: Choice,
		Options: options(constants.SampleTypes,
			`high\s+molecular\s+weight|\bHMW\b|\bgDNA\b`,
			`fragmented\s+DNA`,
			`PCR\s+amplicons?`,
			`\bcDNA\b`,
		),
	},
	{
		Field:    constants.FieldNotes,
		Labels:   labels(`additional\s+comments(?:\s*/\s*special\s+needs)?`, `special\s+needs`, `comments`, `notes`),
		Strategy: Section,
		Ends:     labels(`bioinformatics`, `i\s+would\s+like`, `data\s+delivery`, `signature`, `date\s+received`),
	},
	{
		Field:     constants.InfoSampleBuffer,
		Info:      true,
		Labels:    labels(`sample\s+buffer`),
		Strategy:  Choice,
		Options:   []Option{opt("EB", `\bEB\b|elution\s+buffer`), opt("Nuclease-Free Water", `nuclease[\s-]*free\s+water|\bNFW\b`)},
		LabelOnly: true,
	},
	{
		Field:     constants.InfoContainsHumanDNA,
		Info:      true,
		Labels:    labels(`(?:do\s+these\s+samples\s+)?contains?\s+human\s+DNA`),
		Strategy:  Choice,
		Options:   []Option{opt("No", `^\s*(?:\[\s*x\s*\]\s*)?no\b`), opt("Yes", `^\s*(?:\[\s*x\s*\]\s*)?yes\b`)},
		LabelOnly: true,
	},
	{
		Field:    constants.InfoFlowCellType,
		Info:     true,
		Labels:   labels(`flow\s+cell(?:\s+type)?`),
		Strategy: Choice,
		Options:  []Option{opt("MinION Flow Cell", `minion`), opt("PromethION Flow Cell", `promethion`)},
	},
	{
		Field:  constants.InfoGenomeSize,
		Info:   true,
		Labels: labels(`\*?\s*approx\.?\s*genome\s+size`, `genome\s+size`),
		Value:  regexp.MustCompile(`(?i)^(\d[\d,.]*\s*(?:[kmg]b|bp)?)`),
	},
	{
		Field:  constants.InfoCoverageNeeded,
		Info:   true,
		Labels: labels(`\*?\s*approx\.?\s*coverage(?:\s+needed)?`, `coverage(?:\s+needed)?`),
		Value:  regexp.MustCompile(`(?i)^(\d+\s*x?(?:\s*[-–]\s*\d+\s*x?)?)`),
	},
	{
		Field:  constants.InfoEstimatedFlowCells,
		Info:   true,
		Labels: labels(`estimated\s+number\s+of\s+flow\s+cells`, `number\s+of\s+flow\s+cells`),
		Value:  regexp.MustCompile(`^(\d+)`),
	},
	{
		Field:    constants.InfoBasecalling,
		Info:     true,
		Labels:   labels(`basecalling(?:\s+(?:method|model|preference))?`),
		Strategy: Choice,
		Options: []Option{
			opt("SUP (Super-High Accuracy)", `\bSUP\b|super[\s-]*high\s+accuracy`),
			opt("HAC (High Accuracy)", `\bHAC\b|high\s+accuracy`),
			opt("Methylation", `methylation`),
		},
	},
	{
		Field:    constants.InfoFileFormat,
		Info:     true,
		Labels:   labels(`(?:output\s+)?file\s+format`, `data\s+format`),
		Strategy: Choice,
		Options:  []Option{opt("FASTQ / BAM", `FASTQ\s*/\s*BAM|\bFASTQ\b|\bBAM\b`), opt("POD5", `\bPOD5\b`)},
	},
	{
		Field:  constants.InfoNotificationEmail,
		Info:   true,
		Labels: labels(`(?:please\s+send\s+notifications?\s+to\s+(?:these\s+)?)?e-?mail\s+address(?:es)?`, `(?:notification\s+)?e-?mail`),
		Value:  regexp.MustCompile(`([A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,})`),
	},
	{
		Field:    constants.InfoDataDelivery,
		Info:     true,
		Labels:   labels(`data\s+delivery(?:\s+method)?`),
		Strategy: Choice,
		Options: []Option{
			opt("ITS Research Computing storage (/proj)", `research\s+computing\s+storage|/proj\b`),
			opt("Web download URL", `url\s+to\s+download|download\s+url`),
			opt("Pre-arranged method", `pre-?arranged`),
		},
	},
	{
		Field:    constants.InfoExpectedReads,
		Info:     true,
		Strategy: Pattern,
		Value:    regexp.MustCompile(`(?i)(\d[\d,]*)\s*[-–]\s*(\d[\d,]*)\s*reads\s+per\s+sample`),
		Format:   func(m []string) string { return stripCommas(m[1]) + " - " + stripCommas(m[2]) },
	},
	{
		Field:    constants.InfoAmpliconLength,
		Info:     true,
		Strategy: Pattern,
		Value:    regexp.MustCompile(`(?i)amplicon\s+length\s*(?:is|:|of)?\s*(\d+\s*bp)`),
	},
}
