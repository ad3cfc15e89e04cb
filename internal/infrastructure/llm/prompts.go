package llm

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"

	"jan-server/services/grant-scout/internal/domain/summary"
	"jan-server/services/grant-scout/internal/infrastructure/scraper"
)

const recordSchema = `Respond with a JSON object of the form {"grants": [ ... ]}. Each element has these string fields:
name, organization, description, eligibility, amount, deadline, applicationProcess, url, category,
and optionally requirementDetails, exclusions, contactInfo.
Use an empty string when a required value is unknown. Do not invent URLs. Return {"grants": []} when nothing matches.`

const researcherRole = "You are a research assistant that finds government and private funding programmes, grants and subsidies and reports them as structured data."

func searchMessages(query, category string, web bool) []openai.ChatCompletionMessage {
	var b strings.Builder
	if web {
		b.WriteString("List funding programmes that are currently published on the web and open for applications, ")
		b.WriteString("preferring official announcement pages with a working application URL.\n")
	} else {
		b.WriteString("List funding programmes relevant to the request below.\n")
	}
	fmt.Fprintf(&b, "Request: %s\n", query)
	if category != "" {
		fmt.Fprintf(&b, "Only include programmes in the category: %s\n", category)
	}
	b.WriteString("\n")
	b.WriteString(recordSchema)

	return []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: researcherRole},
		{Role: openai.ChatMessageRoleUser, Content: b.String()},
	}
}

func extractionMessages(site, query string, pages []scraper.Page) []openai.ChatCompletionMessage {
	var b strings.Builder
	fmt.Fprintf(&b, "The following pages were collected from the website %q while searching for: %s\n", site, query)
	b.WriteString("Extract every funding programme they describe. Use the page URL when a programme has no better link.\n\n")
	for i, page := range pages {
		fmt.Fprintf(&b, "--- Page %d ---\nURL: %s\n", i+1, page.URL)
		if page.Title != "" {
			fmt.Fprintf(&b, "Title: %s\n", page.Title)
		}
		b.WriteString(page.Content)
		b.WriteString("\n\n")
	}
	b.WriteString(recordSchema)

	return []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: researcherRole},
		{Role: openai.ChatMessageRoleUser, Content: b.String()},
	}
}

func summaryMessages(in summary.Input) ([]openai.ChatCompletionMessage, error) {
	data, err := json.Marshal(in.Grants)
	if err != nil {
		return nil, err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Write a markdown report titled %q covering the funding programmes below.\n", in.Title)
	if in.IncludeIntro {
		b.WriteString("Start with a short introduction giving an overview of the programmes.\n")
	} else {
		b.WriteString("Do not write an introduction.\n")
	}
	b.WriteString("Give every programme its own section with organization, amount, deadline, eligibility and how to apply, linking the url.\n")
	if in.IncludeConclusion {
		b.WriteString("Finish with a conclusion comparing the programmes and suggesting which to prioritise.\n")
	} else {
		b.WriteString("Do not write a conclusion.\n")
	}
	b.WriteString("Output only the markdown document.\n\nProgrammes (JSON):\n")
	b.Write(data)

	return []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: "You write clear, well structured markdown reports about funding programmes."},
		{Role: openai.ChatMessageRoleUser, Content: b.String()},
	}, nil
}
