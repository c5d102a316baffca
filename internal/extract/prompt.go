package extract

// systemPrompt fixes the output schema. The model is asked for a bare JSON
// array so the strict decode succeeds on well-behaved responses.
const systemPrompt = `You extract campus events from messages and feed items.
Respond with only a JSON array, no prose and no code fences. Each element is
one event object with these keys:
  "title": short event name (required)
  "event_description": one or two sentences describing the event
  "start_time": ISO-8601 start, e.g. 2024-11-05T18:00:00 (required)
  "end_time": ISO-8601 end, or null when unknown
  "location": where the event takes place, as written in the text
  "author_name": the organizer or speaker
  "author_email": contact email, or null
  "host": list of hosting groups or departments
  "categories": list of short category labels
  "picture_link": image URL, or null
Do not guess a location or time that the text does not state. Omit an event
rather than inventing its title or start time. If the text describes no
event, respond with [].`

const userPromptPrefix = "Extract every event from the following text.\n\n"
