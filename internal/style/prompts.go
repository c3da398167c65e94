package style

const analyzerSystemPrompt = `You are an expert email analyst with a deep understanding of writing style and tone.
Always respond with valid JSON, without markdown formatting or code blocks.`

const analyzerUserPrompt = `I have a collection of email question/answer pairs written by one user. Analyze how they write.

Provide:
1. A detailed summary of their writing habits and style
2. Up to %d distinct style categories they switch between (e.g. formal business, casual professional, friendly, technical)
3. For each category, the key characteristics that define it

Email pairs:
%s

Respond with a JSON object matching this schema:
{
  "overall_style_summary": "string",
  "categories": [
    {
      "name": "string",
      "description": "string",
      "key_characteristics": ["string"]
    }
  ]
}

Return ONLY the JSON object, no markdown fences or other text.`

const generatorSystemPrompt = `You are an expert email writer who mimics writing styles precisely.
Always respond with valid JSON, without markdown formatting or code blocks.`

const generatorUserPrompt = `Generate %d synthetic emails in the following style category.

Category: %s
Description: %s
Key characteristics: %s

The emails must sound like the user described, but be completely new emails on varied topics.
Make them realistic and vary their length and purpose. Each email starts with a "Subject:" line.

The user's original emails, for reference:
%s

Return a JSON array of %d strings, each string one complete email.
Return ONLY the JSON array, no markdown fences or other text.`
