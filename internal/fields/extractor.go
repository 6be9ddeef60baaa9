package fields

import (
	"log/slog"
	"regexp"
	"strings"

	"github.com/joseph-ayodele/submissions-tracker/constants"
)

const (
	maxValueLen  = 512
	choiceWindow = 4 // lines after a Choice label searched for its options
)

// Result holds the known fields found in a document plus every other
// labeled fact, keyed by normalized label.
type Result struct {
	Fields map[string]string
	Info   map[string]string
}

// Get returns a known field value.
func (r Result) Get(field string) (string, bool) {
	v, ok := r.Fields[field]
	return v, ok
}

type Extractor struct {
	rules  []Rule
	logger *slog.Logger
}

// NewExtractor builds an extractor over rules; nil means DefaultRules.
func NewExtractor(rules []Rule, logger *slog.Logger) *Extractor {
	if rules == nil {
		rules = DefaultRules
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{rules: rules, logger: logger}
}

type segment struct {
	line int
	text string
}

var (
	reGenericLabel = regexp.MustCompile(`^\s*([A-Za-z][A-Za-z0-9 /()#.'&-]{0,48}?)\s*:\s*(.*)$`)
	reMark         = regexp.MustCompile(`(?i)\[\s*[x✓✔]\s*\]|\(\s*x\s*\)|[☒☑■✓✔]`)
	reSpaces       = regexp.MustCompile(`\s+`)
	reNonKey       = regexp.MustCompile(`[^a-z0-9]+`)
)

// Extract runs every rule over lines. The first matching segment, scanning
// top to bottom, decides a field. Absent fields are simply missing.
func (e *Extractor) Extract(lines []string) Result {
	res := Result{Fields: map[string]string{}, Info: map[string]string{}}
	segs := e.segments(lines)
	claimed := make([]bool, len(segs))
	text := strings.Join(lines, "\n")

	for _, r := range e.rules {
		var (
			val string
			ok  bool
		)
		switch r.Strategy {
		case RemainderOrNext:
			val, ok = e.remainderOrNext(r, segs, claimed)
		case Choice:
			val, ok = e.choice(r, segs, claimed)
		case Section:
			val, ok = e.section(r, segs, claimed)
		case Pattern:
			val, ok = pattern(r, text)
		}
		if !ok {
			continue
		}
		if r.Info {
			res.Info[r.Field] = val
		} else {
			res.Fields[r.Field] = val
		}
	}

	e.generic(segs, claimed, &res)
	e.logger.Debug("field extraction done", "fields", len(res.Fields), "info", len(res.Info))
	return res
}

// segments splits lines where a rule label followed by a colon starts mid
// line after a previous "label: value" pair, so "Owner: A Organism: B"
// yields two segments while "Source Organism: B" stays whole.
func (e *Extractor) segments(lines []string) []segment {
	var out []segment
	for i, l := range lines {
		if strings.TrimSpace(l) == "" || l == "\f" {
			continue
		}
		start := 0
		for pos := 1; pos < len(l); pos++ {
			if l[pos-1] != ' ' || l[pos] == ' ' || !strings.Contains(l[start:pos], ":") {
				continue
			}
			n := e.colonLabelLen(l[pos:])
			if n == 0 {
				continue
			}
			if s := strings.TrimSpace(l[start:pos]); s != "" {
				out = append(out, segment{line: i, text: s})
				start = pos
			}
			pos += n - 1
		}
		if s := strings.TrimSpace(l[start:]); s != "" {
			out = append(out, segment{line: i, text: s})
		}
	}
	return out
}

// colonLabelLen returns the length of a rule label at the start of s when
// that label is terminated by a colon, else 0.
func (e *Extractor) colonLabelLen(s string) int {
	for _, r := range e.rules {
		for _, re := range r.Labels {
			loc := re.FindStringIndex(s)
			if loc == nil {
				continue
			}
			if strings.HasSuffix(strings.TrimSpace(s[:loc[1]]), ":") {
				return loc[1]
			}
		}
	}
	return 0
}

func (e *Extractor) isLabel(s string) bool {
	return e.colonLabelLen(s) > 0 || reGenericLabel.MatchString(s) && !strings.Contains(s, "://")
}

func matchLabel(r Rule, s string) (string, bool) {
	for _, re := range r.Labels {
		if loc := re.FindStringIndex(s); loc != nil {
			return strings.TrimSpace(s[loc[1]:]), true
		}
	}
	return "", false
}

func (e *Extractor) remainderOrNext(r Rule, segs []segment, claimed []bool) (string, bool) {
	for i, sg := range segs {
		if claimed[i] {
			continue
		}
		rest, ok := matchLabel(r, sg.text)
		if !ok {
			continue
		}
		used := []int{i}
		if rest == "" {
			if j := nextSegment(segs, i); j >= 0 && !claimed[j] && !e.isLabel(segs[j].text) {
				rest = segs[j].text
				used = append(used, j)
			}
		} else if e.colonLabelLen(rest) > 0 {
			// "Project Owner: X" is not a project id
			continue
		}
		val := clean(applyValue(r.Value, rest))
		if val == "" {
			continue
		}
		for _, u := range used {
			claimed[u] = true
		}
		return val, true
	}
	return "", false
}

func (e *Extractor) choice(r Rule, segs []segment, claimed []bool) (string, bool) {
	for i, sg := range segs {
		if claimed[i] {
			continue
		}
		rest, ok := matchLabel(r, sg.text)
		if !ok {
			continue
		}
		window := []segment{{line: sg.line, text: rest}}
		used := []int{i}
		for j := i + 1; j < len(segs) && segs[j].line <= sg.line+choiceWindow; j++ {
			if claimed[j] || e.isLabel(segs[j].text) {
				break
			}
			window = append(window, segs[j])
			used = append(used, j)
		}
		if v, ok := pickOption(r.Options, window); ok {
			claimed[i] = true
			for _, u := range used[1:] {
				claimed[u] = true
			}
			return v, true
		}
		// a bare labeled answer that names no known option is kept verbatim
		if v := clean(rest); v != "" && !r.LabelOnly {
			claimed[i] = true
			return v, true
		}
	}
	if r.LabelOnly {
		return "", false
	}
	return pickOption(r.Options, segs)
}

// pickOption prefers an option on a checked line, then the first option in
// rule order present anywhere in segs.
func pickOption(opts []Option, segs []segment) (string, bool) {
	for _, sg := range segs {
		if !reMark.MatchString(sg.text) {
			continue
		}
		for _, o := range opts {
			if o.Match.MatchString(reMark.ReplaceAllString(sg.text, "")) {
				return o.Value, true
			}
		}
	}
	for _, o := range opts {
		for _, sg := range segs {
			if o.Match.MatchString(sg.text) {
				return o.Value, true
			}
		}
	}
	return "", false
}

func (e *Extractor) section(r Rule, segs []segment, claimed []bool) (string, bool) {
	for i, sg := range segs {
		if claimed[i] {
			continue
		}
		rest, ok := matchLabel(r, sg.text)
		if !ok {
			continue
		}
		var parts []string
		if rest != "" {
			parts = append(parts, rest)
		}
		used := []int{i}
		last := sg.line
		for j := i + 1; j < len(segs); j++ {
			nx := segs[j]
			// a skipped line number means a blank line or page break: paragraph ends
			if nx.line > last+1 || claimed[j] || isEnd(r, nx.text) || e.isLabel(nx.text) {
				break
			}
			if nx.line == last && len(parts) > 0 {
				parts[len(parts)-1] += " " + nx.text
			} else {
				parts = append(parts, nx.text)
			}
			used = append(used, j)
			last = nx.line
		}
		val := strings.TrimSpace(strings.Join(parts, "\n"))
		if val == "" {
			continue
		}
		for _, u := range used {
			claimed[u] = true
		}
		if len(val) > maxValueLen*4 {
			val = val[:maxValueLen*4]
		}
		return val, true
	}
	return "", false
}

func isEnd(r Rule, s string) bool {
	for _, re := range r.Ends {
		if re.MatchString(s) {
			return true
		}
	}
	return false
}

func pattern(r Rule, text string) (string, bool) {
	m := r.Value.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	var v string
	switch {
	case r.Format != nil:
		v = r.Format(m)
	case len(m) > 1:
		v = m[1]
	default:
		v = m[0]
	}
	v = clean(v)
	return v, v != ""
}

// generic records every unclaimed "Label: value" segment under a snake_case key.
func (e *Extractor) generic(segs []segment, claimed []bool, res *Result) {
	known := map[string]struct{}{}
	for _, f := range constants.KnownFields {
		known[f] = struct{}{}
	}
	for i, sg := range segs {
		if claimed[i] || e.colonLabelLen(sg.text) > 0 || strings.Contains(sg.text, "://") {
			continue
		}
		m := reGenericLabel.FindStringSubmatch(sg.text)
		if m == nil {
			continue
		}
		key := NormalizeKey(m[1])
		val := clean(m[2])
		if key == "" || val == "" {
			continue
		}
		if _, ok := known[key]; ok {
			continue
		}
		if _, ok := res.Info[key]; ok {
			continue
		}
		res.Info[key] = val
		claimed[i] = true
	}
}

// NormalizeKey turns a free-form label into a snake_case key.
func NormalizeKey(label string) string {
	k := reNonKey.ReplaceAllString(strings.ToLower(label), "_")
	return strings.Trim(k, "_")
}

func nextSegment(segs []segment, i int) int {
	for j := i + 1; j < len(segs); j++ {
		if segs[j].line != segs[i].line {
			return j
		}
	}
	return -1
}

func applyValue(re *regexp.Regexp, s string) string {
	if re == nil {
		return s
	}
	m := re.FindStringSubmatch(s)
	if m == nil {
		return ""
	}
	if len(m) > 1 {
		return m[1]
	}
	return m[0]
}

func clean(s string) string {
	s = strings.TrimSpace(reSpaces.ReplaceAllString(s, " "))
	s = strings.TrimRight(s, ",;")
	if len(s) > maxValueLen {
		s = s[:maxValueLen]
	}
	return s
}
