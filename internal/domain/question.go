package domain

// DefaultHistoryLimit is how many recent conversation turns are kept for context.
const DefaultHistoryLimit = 6

// Turn is one entry of the conversation history.
type Turn struct {
	Role    string `json:"role"    yaml:"role"`
	Content string `json:"content" yaml:"content"`
}

// Memory is the caller-owned conversational state carried across turns.
// It is opaque to the routing core except for reference resolution.
type Memory struct {
	FocusDocIDs     []string          `json:"focus_doc_ids,omitempty"      yaml:"focus_doc_ids,omitempty"`
	LastCitedDocIDs []string          `json:"last_cited_doc_ids,omitempty" yaml:"last_cited_doc_ids,omitempty"`
	LastListDocIDs  []string          `json:"last_list_doc_ids,omitempty"  yaml:"last_list_doc_ids,omitempty"`
	ActiveFilters   map[string]string `json:"active_filters,omitempty"     yaml:"active_filters,omitempty"`
}

// IsEmpty reports whether the memory carries no references or filters.
func (m Memory) IsEmpty() bool {
	return len(m.FocusDocIDs) == 0 && len(m.LastCitedDocIDs) == 0 &&
		len(m.LastListDocIDs) == 0 && len(m.ActiveFilters) == 0
}

// Question is the immutable input of one question-answer cycle.
type Question struct {
	Text    string `json:"text"`
	History []Turn `json:"history,omitempty"`
	Memory  Memory `json:"memory"`
}

// RecentHistory returns at most n of the most recent turns, oldest first.
// The returned slice is a copy; the question itself is never mutated.
func (q Question) RecentHistory(n int) []Turn {
	if n <= 0 || len(q.History) == 0 {
		return nil
	}
	start := 0
	if len(q.History) > n {
		start = len(q.History) - n
	}
	out := make([]Turn, len(q.History)-start)
	copy(out, q.History[start:])
	return out
}

// Document is a candidate document returned by the retrieval collaborator.
// Earlier entries in a document list are considered more relevant.
type Document struct {
	ID           string            `json:"id"                 yaml:"id"`
	Title        string            `json:"title"              yaml:"title"`
	Snippet      string            `json:"snippet,omitempty"  yaml:"snippet,omitempty"`
	Content      string            `json:"content,omitempty"  yaml:"content,omitempty"`
	DocumentType string            `json:"document_type"      yaml:"document_type"`
	Metadata     map[string]string `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// Citation points an answer at the document that grounds it.
type Citation struct {
	DocID   string `json:"doc_id"`
	DocName string `json:"doc_name"`
	Snippet string `json:"snippet,omitempty"`
}
