package pipeline

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/inklet-app/inklet/backend/internal/llm"
	"github.com/inklet-app/inklet/backend/internal/models"
)

// fakeClient routes each generation call through fn; safe for the parallel
// card calls.
type fakeClient struct {
	mu    sync.Mutex
	calls int
	fn    func(req llm.Request) (*llm.Response, error)
}

func (f *fakeClient) Generate(_ context.Context, req llm.Request) (*llm.Response, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	return f.fn(req)
}

func (f *fakeClient) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func textClient(text string) *fakeClient {
	return &fakeClient{fn: func(llm.Request) (*llm.Response, error) {
		return &llm.Response{Text: text}, nil
	}}
}

func newTestService(c llm.Client) *Service {
	policy := llm.Policy{MaxAttempts: 3, BaseDelay: time.Millisecond, Sleep: func(time.Duration) {}}
	return NewService(c, policy, zap.NewNop())
}

func testNotes() []models.Note {
	return []models.Note{
		{ID: "n1", Title: "A quiet walk taught me patience.", Body: "A quiet walk taught me patience."},
		{ID: "n2", Title: "Lost a deal today, learned to listen better.", Body: "Lost a deal today, learned to listen better."},
		{ID: "n3", Title: "Morning coffee with my daughter.", Body: "Morning coffee with my daughter."},
	}
}

func TestExtractRequiresTwoNotes(t *testing.T) {
	c := textClient("{}")
	svc := newTestService(c)

	_, err := svc.Extract(context.Background(), testNotes()[:1], "Stephen Covey")
	var se *StageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, CodeInputValidation, se.Code)
	assert.Equal(t, 0, c.callCount(), "validation failures must not spend a generation call")
}

func TestExtractRequiresStyle(t *testing.T) {
	svc := newTestService(textClient("{}"))
	_, err := svc.Extract(context.Background(), testNotes(), "  ")
	var se *StageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, CodeInputValidation, se.Code)
}

func TestExtractParsesWellFormedOutput(t *testing.T) {
	svc := newTestService(textClient(`{
		"key_points":["slowness is a teacher","listening beats talking"],
		"concept_groups":[{"name":"presence","items":["walks","coffee"]}],
		"themes":["attention"],
		"pain_points":["rushed mornings"],
		"emotional_tone":"grateful"
	}`))

	in, err := svc.Extract(context.Background(), testNotes(), "Stephen Covey")
	require.NoError(t, err)
	assert.Len(t, in.KeyPoints, 2)
	assert.Equal(t, "grateful", in.EmotionalTone)
}

func TestExtractBackfillsKeyPointsFromThemes(t *testing.T) {
	svc := newTestService(textClient(`{"key_points":[],"themes":["patience","presence"]}`))

	in, err := svc.Extract(context.Background(), testNotes(), "Stephen Covey")
	require.NoError(t, err)
	assert.Equal(t, []string{"patience", "presence"}, in.KeyPoints)
}

func TestExtractBackfillsKeyPointsFromTitles(t *testing.T) {
	svc := newTestService(textClient(`{"key_points":[],"themes":[]}`))

	in, err := svc.Extract(context.Background(), testNotes(), "Stephen Covey")
	require.NoError(t, err)
	require.Len(t, in.KeyPoints, 3)
	assert.Equal(t, "A quiet walk taught me patience.", in.KeyPoints[0])
}

func TestExtractBackfillsKeyPointsFromPlaceholders(t *testing.T) {
	svc := newTestService(textClient("no structure at all"))

	untitled := []models.Note{
		{ID: "n1", Body: "body one"},
		{ID: "n2", Body: "body two"},
	}
	in, err := svc.Extract(context.Background(), untitled, "Stephen Covey")
	require.NoError(t, err)
	assert.Equal(t, placeholderKeyPoints, in.KeyPoints)
}

func TestExtractSurfacesCapabilityFailure(t *testing.T) {
	c := &fakeClient{fn: func(llm.Request) (*llm.Response, error) {
		return nil, &llm.CallError{Kind: llm.KindRefused, Message: "SAFETY"}
	}}
	svc := newTestService(c)

	_, err := svc.Extract(context.Background(), testNotes(), "Stephen Covey")
	var se *StageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, CodeGeneration, se.Code)
	assert.Equal(t, llm.KindRefused, llm.KindOf(err))
}

func topicJSON(n int) string {
	var sb strings.Builder
	sb.WriteString(`{"topics":[`)
	for i := 0; i < n; i++ {
		if i > 0 {
			sb.WriteString(",")
		}
		sb.WriteString(`{"title":"topic","angle":"angle","note_connection":"nc","insight_connection":"ic","platform":"blog"}`)
	}
	sb.WriteString("]}")
	return sb.String()
}

func TestProposeTopicsAlwaysExactlyFive(t *testing.T) {
	insight := &models.Insight{KeyPoints: []string{"kp1", "kp2"}, Themes: []string{"theme"}}
	for _, n := range []int{0, 3, 5, 7} {
		svc := newTestService(textClient(topicJSON(n)))
		topics, err := svc.ProposeTopics(context.Background(), insight, "Stephen Covey")
		require.NoError(t, err, "n=%d", n)
		assert.Len(t, topics, models.TopicBatchSize, "n=%d", n)
	}
}

func TestProposeTopicsPadsWithInsightDerivedPlaceholders(t *testing.T) {
	insight := &models.Insight{KeyPoints: []string{"kp1"}, Themes: []string{"attention"}}
	svc := newTestService(textClient("garbage"))

	topics, err := svc.ProposeTopics(context.Background(), insight, "Stephen Covey")
	require.NoError(t, err)
	require.Len(t, topics, 5)
	assert.Equal(t, "kp1", topics[0].Title)
	for _, topic := range topics {
		assert.NotEmpty(t, topic.Title)
		assert.Equal(t, models.PlatformBlog, topic.Platform)
	}
}

func TestProposeTopicsNormalizesPlatforms(t *testing.T) {
	insight := &models.Insight{KeyPoints: []string{"kp"}}
	svc := newTestService(textClient(`{"topics":[
		{"title":"a","platform":"X"},
		{"title":"b","platform":"LinkedIn"},
		{"title":"c","platform":"mastodon"},
		{"title":"d","platform":"newsletter"},
		{"title":"e","platform":""}
	]}`))

	topics, err := svc.ProposeTopics(context.Background(), insight, "Stephen Covey")
	require.NoError(t, err)
	assert.Equal(t, models.PlatformTwitter, topics[0].Platform)
	assert.Equal(t, models.PlatformLinkedIn, topics[1].Platform)
	assert.Equal(t, models.PlatformBlog, topics[2].Platform)
	assert.Equal(t, models.PlatformNewsletter, topics[3].Platform)
	assert.Equal(t, models.PlatformBlog, topics[4].Platform)
}

func TestProposeTopicsRequiresInsight(t *testing.T) {
	svc := newTestService(textClient("{}"))
	_, err := svc.ProposeTopics(context.Background(), nil, "Stephen Covey")
	var se *StageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, CodeInputValidation, se.Code)
}

func TestDraftArticleStructuredOutput(t *testing.T) {
	svc := newTestService(textClient(`{"title":"On Patience","body":"A long body about patience.","quote":"Patience is a practice."}`))
	topic := &models.TopicCandidate{Title: "Patience", Angle: "daily life", Platform: models.PlatformBlog}
	insight := &models.Insight{KeyPoints: []string{"kp"}}

	a, err := svc.DraftArticle(context.Background(), topic, insight, "Stephen Covey")
	require.NoError(t, err)
	assert.Equal(t, "On Patience", a.Title)
	assert.Equal(t, "Patience is a practice.", a.Quote)
}

func TestDraftArticleUnstructuredFallsBackToRawBody(t *testing.T) {
	raw := "Patience, I have learned, is not waiting. It is how we behave while waiting. " +
		"Every quiet walk is a rehearsal for the moments that matter most."
	svc := newTestService(textClient(raw))
	topic := &models.TopicCandidate{Title: "Patience", Platform: models.PlatformBlog}
	insight := &models.Insight{KeyPoints: []string{"kp"}}

	a, err := svc.DraftArticle(context.Background(), topic, insight, "Stephen Covey")
	require.NoError(t, err)
	assert.Equal(t, "Patience", a.Title, "title defaults to the chosen topic")
	assert.Equal(t, raw, a.Body, "raw text becomes the body")
	assert.NotEmpty(t, a.Quote)
	assert.LessOrEqual(t, len([]rune(a.Quote)), 120)
}

func TestDraftArticleRequiresTopicAndInsight(t *testing.T) {
	svc := newTestService(textClient("{}"))
	insight := &models.Insight{}

	_, err := svc.DraftArticle(context.Background(), nil, insight, "s")
	var se *StageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, CodeInputValidation, se.Code)

	_, err = svc.DraftArticle(context.Background(), &models.TopicCandidate{Title: "t"}, nil, "s")
	require.ErrorAs(t, err, &se)
	assert.Equal(t, CodeInputValidation, se.Code)
}

func cardRouter(base, variants string) *fakeClient {
	return &fakeClient{fn: func(req llm.Request) (*llm.Response, error) {
		if strings.Contains(req.Prompt, "reflective_quote") {
			return &llm.Response{Text: variants}, nil
		}
		return &llm.Response{Text: base}, nil
	}}
}

func TestComposeCardMergesParallelCalls(t *testing.T) {
	c := cardRouter(
		`{"title":"Card Title","key_quote":"The strongest line."}`,
		`{"reflective_quote":"Pause and look back.","action_quote":"Take one small step today."}`,
	)
	svc := newTestService(c)
	article := &models.Article{Title: "On Patience", Body: "body", Quote: "q"}

	card, err := svc.ComposeCard(context.Background(), article)
	require.NoError(t, err)
	assert.Equal(t, "Card Title", card.Title)
	assert.Equal(t, "The strongest line.", card.KeyQuote)
	assert.Equal(t, "Pause and look back.", card.ReflectiveQuote)
	assert.Equal(t, "Take one small step today.", card.ActionQuote)
	assert.Equal(t, 2, c.callCount())
}

func TestComposeCardDefaultsEveryField(t *testing.T) {
	svc := newTestService(textClient("not json"))
	article := &models.Article{Title: "On Patience", Body: "body text", Quote: "A highlighted quote."}

	card, err := svc.ComposeCard(context.Background(), article)
	require.NoError(t, err)
	assert.Equal(t, "On Patience", card.Title)
	assert.Equal(t, "A highlighted quote.", card.KeyQuote)
	assert.Equal(t, "A highlighted quote.", card.ReflectiveQuote)
	assert.Equal(t, "On Patience", card.ActionQuote)
}

func TestComposeCardFailsWhenAnyJoinedCallFails(t *testing.T) {
	c := &fakeClient{fn: func(req llm.Request) (*llm.Response, error) {
		if strings.Contains(req.Prompt, "reflective_quote") {
			return nil, errors.New("variant call down")
		}
		return &llm.Response{Text: `{"title":"t","key_quote":"k"}`}, nil
	}}
	svc := newTestService(c)
	article := &models.Article{Title: "t", Body: "b"}

	_, err := svc.ComposeCard(context.Background(), article)
	var se *StageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, CodeGeneration, se.Code)
}

// TestPipelineEndToEnd walks all four stages with scripted model output.
func TestPipelineEndToEnd(t *testing.T) {
	client := &fakeClient{fn: func(req llm.Request) (*llm.Response, error) {
		switch req.System {
		case extractSystem:
			return &llm.Response{Text: `{"key_points":["patience grows in quiet moments","listening is a competitive advantage","small rituals anchor the day"],"themes":["presence"],"emotional_tone":"reflective"}`}, nil
		case topicsSystem:
			return &llm.Response{Text: topicJSON(5)}, nil
		case articleSystem:
			body := strings.Repeat("Presence is built in ordinary moments, one quiet choice at a time. ", 30)
			return &llm.Response{Text: `{"title":"The Discipline of Presence","body":"` + strings.TrimSpace(body) + `","quote":"Presence is built in ordinary moments."}`}, nil
		default:
			if strings.Contains(req.Prompt, "reflective_quote") {
				return &llm.Response{Text: `{"reflective_quote":"Where did you rush past your own life today?","action_quote":"Put the phone down for one meal."}`}, nil
			}
			return &llm.Response{Text: `{"title":"Presence","key_quote":"Presence is built in ordinary moments."}`}, nil
		}
	}}
	svc := newTestService(client)
	ctx := context.Background()

	insight, err := svc.Extract(ctx, testNotes(), "Stephen Covey")
	require.NoError(t, err)
	require.NotEmpty(t, insight.KeyPoints)

	topics, err := svc.ProposeTopics(ctx, insight, "Stephen Covey")
	require.NoError(t, err)
	require.Len(t, topics, 5)

	article, err := svc.DraftArticle(ctx, &topics[0], insight, "Stephen Covey")
	require.NoError(t, err)
	require.NotEmpty(t, article.Title)
	words := len(strings.Fields(article.Body))
	assert.Greater(t, words, 100, "article body should be of plausible length")

	card, err := svc.ComposeCard(ctx, article)
	require.NoError(t, err)
	assert.NotEmpty(t, card.ReflectiveQuote)
	assert.NotEmpty(t, card.ActionQuote)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	got := truncate("one two three four five", 10)
	assert.Equal(t, "one two", got)
	assert.Equal(t, "", truncate("   ", 10))
}
