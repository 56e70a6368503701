package openai

import (
	"fmt"
)

const transcriptionResponseSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "properties": {
    "text": {
      "type": "string"
    },
    "confidence": {
      "type": "number",
      "minimum": 0,
      "maximum": 1
    }
  },
  "required": ["text", "confidence"],
  "additionalProperties": false
}`

const transcriptionPromptTemplate = `Transcribe the text content of the given image and return it as JSON.

Output ONLY valid JSON which complies with the schema given below. Do not include any preamble, explanation,
greeting, or acknowledgment. Start your response directly with the opening brace { and end with the closing
brace }. Your output must exactly follow this schema:

%s

Rules:
- Transcribe every legible word exactly as written, in natural reading order.
- Preserve line breaks as \n inside the "text" string.
- Do not describe the image, do not summarize, do not correct spelling; output the written content only.
- If nothing in the image is legible, return "text": "".
- "confidence" is your own estimate of transcription accuracy, from 0.0 (guessing) to 1.0 (certain). Lower
  it for smudged, cropped, or heavily stylized writing.
- The JSON must parse without errors; no trailing commas, no extra keys, and no extraneous text outside the object.

Example (printed label):
Output:
{
  "text": "GROCERY LIST\njuice\nbread",
  "confidence": 0.96
}

Example (cursive, partly smudged):
Output:
{
  "text": "meet sarah at the station\n3pm thursday",
  "confidence": 0.61
}

Example (blank page):
Output:
{
  "text": "",
  "confidence": 0.0
}`

// transcriptionRequest is the user-turn text accompanying the image bytes.
const transcriptionRequest = "Transcribe this note."

// buildTranscriptionPrompt creates the system prompt with the response
// schema embedded.
func buildTranscriptionPrompt() string {
	return fmt.Sprintf(transcriptionPromptTemplate, transcriptionResponseSchema)
}
