package pipeline

import (
	"fmt"
	"strings"

	"github.com/inklet-app/inklet/backend/internal/models"
)

const extractSystem = `You distill personal notes into structured insights.
Respond with a single JSON object and nothing else:
{"key_points":[],"concept_groups":[{"name":"","items":[]}],"themes":[],"pain_points":[],"emotional_tone":""}
key_points are the sharpest observations across all notes. themes are the
deeper threads connecting them. emotional_tone is one short label.`

const topicsSystem = `You propose article topics from extracted insights.
Respond with a single JSON object and nothing else:
{"topics":[{"title":"","angle":"","note_connection":"","insight_connection":"","platform":""}]}
Propose exactly 5 topics. platform must be one of: blog, newsletter,
twitter, linkedin. note_connection explains how the topic ties back to the
author's notes; insight_connection explains which insight it develops.`

const articleSystem = `You write a complete article in the author's chosen
voice. The article must be an original elaboration of the insights — never
copy the author's notes verbatim. Aim for several hundred up to about a
thousand words. Respond with a single JSON object and nothing else:
{"title":"","body":"","quote":""}
quote is one highlighted sentence lifted from your own body text.`

const cardSystem = `You turn an article into short shareable card copy.
Respond with a single JSON object and nothing else, using only the
requested fields.`

func buildExtractPrompt(notes []models.Note, style string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Writing voice: %s\n\nNotes:\n", style)
	for i, n := range notes {
		fmt.Fprintf(&sb, "%d. %s\n%s\n\n", i+1, n.Title, n.Body)
	}
	sb.WriteString("Extract the structured insights from these notes.")
	return sb.String()
}

func buildTopicsPrompt(in *models.Insight, style string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Writing voice: %s\n\nKey points:\n", style)
	for _, p := range in.KeyPoints {
		fmt.Fprintf(&sb, "- %s\n", p)
	}
	if len(in.Themes) > 0 {
		sb.WriteString("\nThemes:\n")
		for _, t := range in.Themes {
			fmt.Fprintf(&sb, "- %s\n", t)
		}
	}
	if in.EmotionalTone != "" {
		fmt.Fprintf(&sb, "\nEmotional tone: %s\n", in.EmotionalTone)
	}
	sb.WriteString("\nPropose 5 article topics grounded in these insights.")
	return sb.String()
}

func buildArticlePrompt(topic *models.TopicCandidate, in *models.Insight, style string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Writing voice: %s\n\nTopic: %s\nAngle: %s\nTarget platform: %s\n",
		style, topic.Title, topic.Angle, topic.Platform)
	sb.WriteString("\nInsights to draw on:\n")
	for _, p := range in.KeyPoints {
		fmt.Fprintf(&sb, "- %s\n", p)
	}
	for _, t := range in.Themes {
		fmt.Fprintf(&sb, "- %s\n", t)
	}
	sb.WriteString("\nWrite the full article now.")
	return sb.String()
}

func buildCardPrompt(a *models.Article) string {
	return fmt.Sprintf(`Article title: %s

Article body:
%s

Return JSON: {"title":"","key_quote":""}
title is a punchy card headline, key_quote the single strongest sentence.`,
		a.Title, a.Body)
}

func buildCardVariantsPrompt(a *models.Article) string {
	return fmt.Sprintf(`Article title: %s

Article body:
%s

Return JSON: {"reflective_quote":"","action_quote":""}
reflective_quote invites the reader to pause and look inward;
action_quote pushes the reader toward one concrete step.`,
		a.Title, a.Body)
}
