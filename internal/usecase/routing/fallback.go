package routing

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"docroute/internal/domain"
)

// category is one rule of the keyword classifier.
type category struct {
	intent     string
	agent      domain.AgentKey
	answerType domain.AnswerType
	confidence float64
	match      func(q string) bool
}

var (
	greetingRe   = regexp.MustCompile(`^\s*(hi|hello|hey|hiya|yo|greetings|good (morning|afternoon|evening)|thanks|thank you|how are you)\b`)
	metadataRe   = regexp.MustCompile(`\b(title[sd]?|sender|sent by|who sent|author|dated?|category|categories|document type|file type|doc type|metadata|received on|uploaded)\b`)
	contentQARe  = regexp.MustCompile(`\b(what does|what is|what are|explain|summari[sz]e|summary|according to|say about|says about|mention(s|ed)?|describe|tell me about|why)\b`)
	relationalRe = regexp.MustCompile(`\b(related|linked|links? to|references?|refers? to|connected|attached|attachments?)\b`)
	diffRe       = regexp.MustCompile(`\b(compare|comparison|difference|differences|differ|versus|vs|changed between|diff)\b`)
	analyticsRe  = regexp.MustCompile(`\b(how many|count|total|average|sum|statistics|stats|trend|percentage|most|least)\b`)
	timelineRe   = regexp.MustCompile(`\b(timeline|chronolog\w*|over time|sequence of events|history of|when did)\b`)
	extractionRe = regexp.MustCompile(`\b(extract|list all|pull out|find all|get all|table of)\b`)

	focusRefRe   = regexp.MustCompile(`\b(this|that|the same) (document|doc|file|one|email|letter|report|contract)\b|\b(it|its)\b`)
	ordinalRe    = regexp.MustCompile(`\b(first|second|third|fourth|fifth|sixth|seventh|eighth|ninth|tenth|last|1st|2nd|3rd|[4-9]th|10th)\b|(?:#|number |no\. ?)(\d{1,2})\b`)
	previewRe    = regexp.MustCompile(`\b(preview|show me|open|display)\b`)
	quotedRe     = regexp.MustCompile(`["“]([^"”]+)["”]`)
	metaFieldRes = map[string]*regexp.Regexp{
		"title":    regexp.MustCompile(`\btitle[sd]?\b`),
		"sender":   regexp.MustCompile(`\b(sender|sent by|who sent|author)\b`),
		"date":     regexp.MustCompile(`\b(dated?|when was|received on)\b`),
		"category": regexp.MustCompile(`\b(category|categories)\b`),
		"type":     regexp.MustCompile(`\b(document type|file type|doc type)\b`),
	}
)

var ordinalWords = map[string]int{
	"first": 1, "second": 2, "third": 3, "fourth": 4, "fifth": 5,
	"sixth": 6, "seventh": 7, "eighth": 8, "ninth": 9, "tenth": 10,
	"1st": 1, "2nd": 2, "3rd": 3, "4th": 4, "5th": 5, "6th": 6,
	"7th": 7, "8th": 8, "9th": 9, "10th": 10,
}

var stopwords = map[string]bool{
	"the": true, "and": true, "for": true, "with": true, "what": true, "which": true,
	"does": true, "this": true, "that": true, "from": true, "about": true, "have": true,
	"there": true, "their": true, "were": true, "when": true, "where": true, "who": true,
	"document": true, "documents": true, "please": true, "show": true, "tell": true,
	"into": true, "than": true, "then": true, "them": true, "they": true, "your": true,
	"would": true, "could": true, "should": true, "between": true, "also": true,
}

// categories are evaluated in order; the first match wins.
var categories = []category{
	{domain.IntentGreeting, domain.AgentCasual, domain.AnswerContent, 0.7, isGreeting},
	{domain.IntentMetadataQuery, domain.AgentMetadata, domain.AnswerMetadata, 0.65, metadataRe.MatchString},
	{domain.IntentContentQA, domain.AgentContent, domain.AnswerContent, 0.6, contentQARe.MatchString},
	{domain.IntentLinkedDocuments, domain.AgentContent, domain.AnswerMixed, 0.55, relationalRe.MatchString},
	{domain.IntentDiff, domain.AgentContent, domain.AnswerContent, 0.55, diffRe.MatchString},
	{domain.IntentAnalytics, domain.AgentContent, domain.AnswerMixed, 0.55, analyticsRe.MatchString},
	{domain.IntentTimeline, domain.AgentContent, domain.AnswerMixed, 0.55, timelineRe.MatchString},
	{domain.IntentExtraction, domain.AgentContent, domain.AnswerContent, 0.55, extractionRe.MatchString},
}

var defaultCategory = category{
	intent: domain.IntentContentQA, agent: domain.AgentContent,
	answerType: domain.AnswerContent, confidence: 0.5,
}

// isGreeting requires a greeting opener and a short utterance, so
// "hi, what does the lease say about pets" is not small talk.
func isGreeting(q string) bool {
	return greetingRe.MatchString(q) && len(strings.Fields(q)) <= 6 && !contentQARe.MatchString(q)
}

// KeywordClassifier is the deterministic classifier used when the LLM
// classifier fails. It is total: every question yields a decision.
type KeywordClassifier struct{}

// Classify routes q by keyword rules and resolves references against memory.
func (KeywordClassifier) Classify(q domain.Question) domain.RoutingDecision {
	text := strings.ToLower(strings.TrimSpace(q.Text))

	cat := defaultCategory
	for _, c := range categories {
		if c.match(text) {
			cat = c
			break
		}
	}

	d := domain.RoutingDecision{
		AgentType:    string(cat.agent),
		PrimaryAgent: string(cat.agent),
		Confidence:   cat.confidence,
		Intent:       cat.intent,
		AnswerType:   cat.answerType,
		Reasoning:    fmt.Sprintf("keyword fallback matched %s", cat.intent),
		Target:       domain.Target{Prefer: domain.PreferNone},
		Fallback:     true,
	}
	if cat.intent == domain.IntentGreeting {
		return d
	}

	if cat.intent == domain.IntentMetadataQuery {
		d.RequiredFields = requiredFields(text)
	}
	if len(q.Memory.ActiveFilters) > 0 {
		d.Filters = make(map[string]string, len(q.Memory.ActiveFilters))
		for k, v := range q.Memory.ActiveFilters {
			d.Filters[k] = v
		}
	}

	d.Target, d.NeedsClarification = resolveTarget(text, q.Memory)
	d.Entities = extractEntities(q.Text)
	d.ExpandedQuery = keywords(text)
	return d
}

func requiredFields(text string) []string {
	var out []string
	for _, f := range []string{"title", "sender", "date", "category", "type"} {
		if metaFieldRes[f].MatchString(text) {
			out = append(out, f)
		}
	}
	return out
}

// resolveTarget maps "this document" onto the focus set and "the second one"
// onto the last list. A reference with nothing to resolve against needs
// clarification.
func resolveTarget(text string, mem domain.Memory) (domain.Target, bool) {
	t := domain.Target{Prefer: domain.PreferNone, WantPreview: previewRe.MatchString(text)}

	if m := ordinalRe.FindStringSubmatch(text); m != nil {
		n := 0
		switch {
		case m[2] != "":
			n, _ = strconv.Atoi(m[2])
		case m[1] == "last":
			n = len(mem.LastListDocIDs)
		default:
			n = ordinalWords[m[1]]
		}
		if len(mem.LastListDocIDs) == 0 || n < 1 || n > len(mem.LastListDocIDs) {
			return t, true
		}
		t.Prefer = domain.PreferList
		t.Ordinal = &n
		return t, false
	}

	if focusRefRe.MatchString(text) {
		if len(mem.FocusDocIDs) == 0 && len(mem.LastCitedDocIDs) == 0 {
			return t, true
		}
		t.Prefer = domain.PreferFocus
	}
	return t, false
}

// extractEntities returns quoted phrases and runs of capitalised words that
// do not start the sentence.
func extractEntities(text string) []string {
	seen := map[string]bool{}
	var out []string
	add := func(s string) {
		s = strings.TrimSpace(s)
		key := strings.ToLower(s)
		if s == "" || seen[key] {
			return
		}
		seen[key] = true
		out = append(out, s)
	}

	for _, m := range quotedRe.FindAllStringSubmatch(text, -1) {
		add(m[1])
	}
	unquoted := quotedRe.ReplaceAllString(text, " ")

	var run []string
	flush := func() {
		if len(run) > 0 {
			add(strings.Join(run, " "))
			run = nil
		}
	}
	for i, w := range strings.Fields(unquoted) {
		w = strings.TrimFunc(w, func(r rune) bool { return unicode.IsPunct(r) })
		if w == "" {
			flush()
			continue
		}
		first := []rune(w)[0]
		if i > 0 && unicode.IsUpper(first) && !stopwords[strings.ToLower(w)] {
			run = append(run, w)
			continue
		}
		flush()
	}
	flush()

	if len(out) > 10 {
		out = out[:10]
	}
	return out
}

// keywords returns the distinct content words of text, in order.
func keywords(text string) []string {
	seen := map[string]bool{}
	var out []string
	for _, w := range strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		if len(w) < 4 || stopwords[w] || seen[w] {
			continue
		}
		seen[w] = true
		out = append(out, w)
	}
	return out
}
