package works

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/inklet-app/inklet/backend/internal/models"
)

func TestRenderMarkdown(t *testing.T) {
	work := &models.Work{
		Article: models.Article{
			Title: "The Discipline of Presence",
			Body:  "Presence is built in ordinary moments.",
			Quote: "One quiet choice at a time.",
		},
		Card: models.CardCopy{
			ReflectiveQuote: "Where did you rush past your own life today?",
			ActionQuote:     "Put the phone down for one meal.",
		},
	}

	md := string(renderMarkdown(work))
	assert.True(t, strings.HasPrefix(md, "# The Discipline of Presence\n"))
	assert.Contains(t, md, "> One quiet choice at a time.")
	assert.Contains(t, md, "Presence is built in ordinary moments.")
	assert.Contains(t, md, "*Where did you rush past your own life today?*")
	assert.Contains(t, md, "**Put the phone down for one meal.**")
}

func TestRenderMarkdownOmitsEmptySections(t *testing.T) {
	work := &models.Work{
		Article: models.Article{Title: "T", Body: "B"},
	}
	md := string(renderMarkdown(work))
	assert.NotContains(t, md, ">")
	assert.NotContains(t, md, "---")
}

func TestSlug(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"The Discipline of Presence", "the-discipline-of-presence"},
		{"  Hello, World!  ", "hello-world"},
		{"---", "untitled"},
		{"", "untitled"},
		{"Ünïcode Füll", "ncode-fll"},
		{strings.Repeat("a", 60), strings.Repeat("a", 40)},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, slug(tc.in), tc.in)
	}
}
