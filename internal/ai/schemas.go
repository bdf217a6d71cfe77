package ai

import "encoding/json"

// JSON Schemas sent in structured-output mode. Field bounds mirror the
// clipping applied after parsing, so a strict provider and a lax one end up
// with the same stored shape.

var factsSchema = json.RawMessage(`{
  "type": "object",
  "additionalProperties": false,
  "properties": {
    "who": {"type": "array", "items": {"type": "string", "maxLength": 100}, "maxItems": 10},
    "what": {"type": "string", "maxLength": 200},
    "when": {"type": "string", "maxLength": 100},
    "where": {"type": "string", "maxLength": 100},
    "why": {"type": "string", "maxLength": 200},
    "how": {"type": "string", "maxLength": 200},
    "numbers": {"type": "object", "additionalProperties": {"type": "string", "maxLength": 50}},
    "quotes": {
      "type": "array",
      "maxItems": 5,
      "items": {
        "type": "object",
        "additionalProperties": false,
        "properties": {
          "speaker": {"type": "string", "maxLength": 100},
          "content": {"type": "string", "maxLength": 200}
        },
        "required": ["speaker", "content"]
      }
    },
    "verified_facts": {"type": "array", "items": {"type": "string", "maxLength": 200}, "maxItems": 10}
  },
  "required": ["who", "what", "when", "where", "why", "how", "numbers", "quotes", "verified_facts"]
}`)

var rewriteSchema = json.RawMessage(`{
  "type": "object",
  "additionalProperties": false,
  "properties": {
    "title": {"type": "string", "maxLength": 200},
    "content": {"type": "string", "maxLength": 8000},
    "key_points": {
      "type": "array",
      "items": {"type": "string", "maxLength": 100},
      "minItems": 3,
      "maxItems": 3
    },
    "reading_time": {"type": "string"},
    "disclaimer": {"type": "string", "maxLength": 300}
  },
  "required": ["title", "content", "key_points", "reading_time", "disclaimer"]
}`)

var probeSchema = json.RawMessage(`{
  "type": "object",
  "properties": {"test": {"type": "string"}},
  "required": ["test"]
}`)
