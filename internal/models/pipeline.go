package models

import (
	"encoding/json"
	"strings"
)

// Platform tags a topic can target. Anything else normalizes to PlatformBlog.
const (
	PlatformBlog       = "blog"
	PlatformNewsletter = "newsletter"
	PlatformTwitter    = "twitter"
	PlatformLinkedIn   = "linkedin"
)

// TopicBatchSize is the number of candidates every topic proposal returns.
const TopicBatchSize = 5

// Insight holds what the model distilled out of the selected notes.
type Insight struct {
	KeyPoints     []string       `json:"key_points" bson:"key_points"`
	ConceptGroups []ConceptGroup `json:"concept_groups" bson:"concept_groups"`
	Themes        []string       `json:"themes" bson:"themes"`
	PainPoints    []string       `json:"pain_points" bson:"pain_points"`
	EmotionalTone string         `json:"emotional_tone" bson:"emotional_tone"`
}

// ConceptGroup is a named cluster of related ideas from the notes.
type ConceptGroup struct {
	Name  string   `json:"name" bson:"name"`
	Items []string `json:"items" bson:"items"`
}

// Normalize guarantees every list field is a non-nil ordered slice.
func (in *Insight) Normalize() {
	if in.KeyPoints == nil {
		in.KeyPoints = []string{}
	}
	if in.ConceptGroups == nil {
		in.ConceptGroups = []ConceptGroup{}
	}
	for i := range in.ConceptGroups {
		if in.ConceptGroups[i].Items == nil {
			in.ConceptGroups[i].Items = []string{}
		}
	}
	if in.Themes == nil {
		in.Themes = []string{}
	}
	if in.PainPoints == nil {
		in.PainPoints = []string{}
	}
	in.EmotionalTone = strings.TrimSpace(in.EmotionalTone)
}

// TopicCandidate is one proposed direction for an article.
type TopicCandidate struct {
	Title             string `json:"title" bson:"title"`
	Angle             string `json:"angle" bson:"angle"`
	NoteConnection    string `json:"note_connection" bson:"note_connection"`
	InsightConnection string `json:"insight_connection" bson:"insight_connection"`
	Platform          string `json:"platform" bson:"platform"`
}

// NormalizePlatform maps free-form platform labels onto the closed set.
func NormalizePlatform(p string) string {
	switch strings.ToLower(strings.TrimSpace(p)) {
	case PlatformNewsletter:
		return PlatformNewsletter
	case PlatformTwitter, "x":
		return PlatformTwitter
	case PlatformLinkedIn:
		return PlatformLinkedIn
	default:
		return PlatformBlog
	}
}

// TopicBatch is the model's topic proposal envelope.
type TopicBatch struct {
	Topics []TopicCandidate `json:"topics"`
}

// UnmarshalJSON accepts either {"topics":[...]} or a bare top-level array,
// since models return both shapes for the same prompt.
func (b *TopicBatch) UnmarshalJSON(data []byte) error {
	type alias TopicBatch
	var a alias
	if err := json.Unmarshal(data, &a); err == nil && a.Topics != nil {
		b.Topics = a.Topics
		return nil
	}
	var list []TopicCandidate
	if err := json.Unmarshal(data, &list); err != nil {
		return err
	}
	b.Topics = list
	return nil
}

func (b *TopicBatch) Normalize() {
	if b.Topics == nil {
		b.Topics = []TopicCandidate{}
	}
	for i := range b.Topics {
		b.Topics[i].Platform = NormalizePlatform(b.Topics[i].Platform)
	}
}

// Article is the long-form output of the draft stage.
type Article struct {
	Title string `json:"title" bson:"title"`
	Body  string `json:"body" bson:"body"`
	Quote string `json:"quote" bson:"quote"`
}

func (a *Article) Normalize() {
	a.Title = strings.TrimSpace(a.Title)
	a.Body = strings.TrimSpace(a.Body)
	a.Quote = strings.TrimSpace(a.Quote)
}

// CardCopy is the short shareable copy derived from an article.
type CardCopy struct {
	Title           string `json:"title" bson:"title"`
	KeyQuote        string `json:"key_quote" bson:"key_quote"`
	ReflectiveQuote string `json:"reflective_quote" bson:"reflective_quote"`
	ActionQuote     string `json:"action_quote" bson:"action_quote"`
}

func (c *CardCopy) Normalize() {
	c.Title = strings.TrimSpace(c.Title)
	c.KeyQuote = strings.TrimSpace(c.KeyQuote)
	c.ReflectiveQuote = strings.TrimSpace(c.ReflectiveQuote)
	c.ActionQuote = strings.TrimSpace(c.ActionQuote)
}
