package feedback

const regenerateSystemPrompt = `You are an expert email writer who revises emails to match a user's style.
Respond with the revised email only: no commentary, no markdown.`

const regenerateUserPrompt = `Rewrite the following email. The reviewer rejected it.

Category: %s
Reviewer rating (0-100): %d
Reviewer feedback: %s

Original email:
%s

Keep the purpose of the email and the category's style, and address the feedback directly.
Start with a "Subject:" line.`
