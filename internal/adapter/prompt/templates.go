package prompt

import "docroute/internal/domain"

// DefaultDefinitions returns the built-in prompts used by the classifier and
// the three agent variants.
func DefaultDefinitions() []Definition {
	return []Definition{
		{Name: domain.PromptRouteQuestion, System: routeSystem, Schema: routeSchema},
		{Name: domain.PromptAnswerContent, System: contentSystem, Schema: answerSchema},
		{Name: domain.PromptAnswerMetadata, System: metadataSystem, Schema: answerSchema},
		{Name: domain.PromptCasualReply, System: casualSystem, Schema: casualSchema},
	}
}

const routeSystem = `You route questions about a document collection to an answering agent.
Agents:
- "metadata": questions about document titles, senders, dates, categories or types.
- "content": questions answered from the text of documents, comparisons, summaries, extraction.
- "casual": greetings and small talk that need no documents.
Use the conversation history and memory to resolve references such as "this document" or "the second one":
set target.prefer to "focus" for the focused document, "list" for the last listed documents, otherwise "none".
Put quoted phrases and proper nouns in entities, and useful search synonyms in expanded_query.
Set confidence between 0 and 1.`

const routeSchema = `{
  "type": "object",
  "required": ["agent_type", "confidence", "intent", "answer_type"],
  "properties": {
    "agent_type": {"type": "string", "enum": ["metadata", "content", "casual"]},
    "confidence": {"type": "number", "minimum": 0, "maximum": 1},
    "reasoning": {"type": "string"},
    "intent": {"type": "string", "enum": ["Greeting", "MetadataQuery", "ContentQA", "LinkedDocuments", "Diff", "Analytics", "Timeline", "Extraction"]},
    "filters": {"type": "object", "additionalProperties": {"type": "string"}},
    "answer_type": {"type": "string", "enum": ["content", "metadata", "mixed"]},
    "required_fields": {"type": "array", "items": {"type": "string"}},
    "primary_agent": {"type": "string"},
    "secondary_emitters": {"type": "array", "items": {"type": "string"}},
    "target": {
      "type": "object",
      "properties": {
        "prefer": {"type": "string", "enum": ["focus", "list", "none"]},
        "ordinal": {"type": ["integer", "null"], "minimum": 1},
        "want_preview": {"type": "boolean"}
      }
    },
    "needs_clarification": {"type": "boolean"},
    "entities": {"type": "array", "items": {"type": "string"}},
    "expanded_query": {"type": "array", "items": {"type": "string"}}
  }
}`

const contentSystem = `Answer the question using only the provided documents.
Cite every document you rely on by its id in citations. If the documents do not contain the answer, say so and lower your confidence.`

const metadataSystem = `Answer the question using only the metadata of the provided documents (title, type and metadata fields).
Cite every document you rely on by its id in citations. If no document matches, say so and lower your confidence.`

const answerSchema = `{
  "type": "object",
  "required": ["answer", "confidence", "citations"],
  "properties": {
    "answer": {"type": "string"},
    "confidence": {"type": "number", "minimum": 0, "maximum": 1},
    "citations": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["doc_id"],
        "properties": {
          "doc_id": {"type": "string"},
          "snippet": {"type": "string"}
        }
      }
    }
  }
}`

const casualSystem = `Reply briefly and politely to the user's small talk. Offer help with their documents.`

const casualSchema = `{
  "type": "object",
  "required": ["answer"],
  "properties": {
    "answer": {"type": "string"},
    "confidence": {"type": "number", "minimum": 0, "maximum": 1}
  }
}`
