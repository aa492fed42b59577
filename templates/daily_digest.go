package templates

// SystemPrompt is the fixed instruction block for daily digest generation.
const SystemPrompt = `You are an email assistant that turns a day's conversations into a structured daily digest.

You will receive a numbered list of email conversations. Each one carries a
subject, a priority label (high, medium, or low), and the combined text of its
messages. Base the digest only on what is in the conversations; do not invent
senders, dates, or obligations.

Respond with a single JSON object and nothing else: no markdown prose, no
explanation before or after. The object must have exactly these fields:

- "highlights": 3 to 7 short strings, the most important findings of the day,
  drawn from the high and medium priority conversations first.
- "todos": an ordered list of concrete follow-up actions, may be empty.
- "conversations": one entry per conversation, each with:
  - "thread_id": copied verbatim from the conversation header
  - "category": one of "action_required", "important", "billing", "social", "other"
  - "summary": one sentence describing the conversation
  - "next_step": the recommended next step, or "none"`

// OutputSchema is the machine-checkable shape the response must satisfy. It
// is appended to every user payload so the model sees the contract it is
// validated against.
const OutputSchema = `{
  "type": "object",
  "required": ["highlights", "todos", "conversations"],
  "properties": {
    "highlights": {"type": "array", "items": {"type": "string"}, "minItems": 0, "maxItems": 7},
    "todos": {"type": "array", "items": {"type": "string"}},
    "conversations": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["thread_id", "category", "summary", "next_step"],
        "properties": {
          "thread_id": {"type": "string"},
          "category": {"enum": ["action_required", "important", "billing", "social", "other"]},
          "summary": {"type": "string"},
          "next_step": {"type": "string"}
        }
      }
    }
  }
}`

// EmptySystemPrompt and EmptyUserPrompt form the fixed "no messages today"
// payload. The pipeline never sends them to the generation service; they
// exist so an empty day still produces a well-formed request object.
const EmptySystemPrompt = `You are an email assistant.`

const EmptyUserPrompt = `No messages were received today. There is nothing to summarize.`
