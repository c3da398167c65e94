package drafter

const systemPrompt = `You draft emails that match a specific user's writing style.
Return only the email content with no additional comments or explanations.`

const userPrompt = `Draft an email to %s about %s including these key points:
%s

Style: %s

Examples of previous emails:
%s

Generate a complete email with subject, greeting, body covering all key points, and sign-off.`
