package pipeline

import (
	"context"
	"strings"
	"unicode"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/inklet-app/inklet/backend/internal/llm"
	"github.com/inklet-app/inklet/backend/internal/models"
)

// placeholderKeyPoints is the last-resort backfill when neither the model
// output, the themes, nor the note titles yield a single key point.
var placeholderKeyPoints = []string{
	"Small daily moments carry lessons worth writing down.",
	"Revisiting your own words reveals patterns you missed the first time.",
}

// Service runs the four generation stages. The run state itself is held by
// the caller and passed back stage by stage; the service is stateless.
type Service struct {
	client llm.Client
	policy llm.Policy
	logger *zap.Logger
}

func NewService(client llm.Client, policy llm.Policy, logger *zap.Logger) *Service {
	return &Service{client: client, policy: policy, logger: logger}
}

func (s *Service) generate(ctx context.Context, system, prompt string, temperature float64, maxTokens int) (string, error) {
	resp, _, err := llm.CallWithRetry(ctx, s.logger, func(ctx context.Context) (*llm.Response, error) {
		return s.client.Generate(ctx, llm.Request{
			System:          system,
			Prompt:          prompt,
			Temperature:     temperature,
			MaxOutputTokens: maxTokens,
		})
	}, s.policy)
	if err != nil {
		return "", err
	}
	return resp.Text, nil
}

// Extract distills the selected notes into an Insight. At least two notes
// are required; with fewer there is nothing to connect and the stage fails
// validation rather than returning an empty result.
func (s *Service) Extract(ctx context.Context, notes []models.Note, style string) (*models.Insight, error) {
	if len(notes) < 2 {
		return nil, validationErr("select at least 2 notes to extract insights")
	}
	if strings.TrimSpace(style) == "" {
		return nil, validationErr("a writing style is required")
	}

	raw, err := s.generate(ctx, extractSystem, buildExtractPrompt(notes, style), 0.7, 2048)
	if err != nil {
		return nil, generationErr("insight extraction failed", err)
	}

	insight, outcome := llm.Extract(raw, func() *models.Insight { return &models.Insight{} })
	if outcome != llm.ParsedDirect {
		s.logger.Info("insight output repaired", zap.String("path", outcome.String()))
	}

	s.backfillKeyPoints(insight, notes)
	return insight, nil
}

// backfillKeyPoints guarantees a non-empty key-point list: themes first,
// then note titles, then the constant placeholders.
func (s *Service) backfillKeyPoints(in *models.Insight, notes []models.Note) {
	if len(in.KeyPoints) > 0 {
		return
	}
	if len(in.Themes) > 0 {
		in.KeyPoints = append(in.KeyPoints, in.Themes...)
		return
	}
	for _, n := range notes {
		if t := strings.TrimSpace(n.Title); t != "" {
			in.KeyPoints = append(in.KeyPoints, t)
		}
	}
	if len(in.KeyPoints) == 0 {
		in.KeyPoints = append(in.KeyPoints, placeholderKeyPoints...)
	}
}

// ProposeTopics returns exactly TopicBatchSize candidates, padding with
// insight-derived placeholders when generation comes up short.
func (s *Service) ProposeTopics(ctx context.Context, in *models.Insight, style string) ([]models.TopicCandidate, error) {
	if in == nil {
		return nil, validationErr("extract insights before proposing topics")
	}

	raw, err := s.generate(ctx, topicsSystem, buildTopicsPrompt(in, style), 0.9, 2048)
	if err != nil {
		return nil, generationErr("topic proposal failed", err)
	}

	batch, outcome := llm.Extract(raw, func() *models.TopicBatch { return &models.TopicBatch{} })
	if outcome != llm.ParsedDirect {
		s.logger.Info("topic output repaired", zap.String("path", outcome.String()))
	}

	topics := batch.Topics
	if len(topics) > models.TopicBatchSize {
		topics = topics[:models.TopicBatchSize]
	}
	for len(topics) < models.TopicBatchSize {
		topics = append(topics, placeholderTopic(in, len(topics)))
	}
	return topics, nil
}

func placeholderTopic(in *models.Insight, index int) models.TopicCandidate {
	title := "Another look at what you wrote"
	if index < len(in.KeyPoints) {
		title = in.KeyPoints[index]
	}
	angle := "A personal reflection developed from your own notes."
	if len(in.Themes) > 0 {
		angle = "Explores the theme: " + in.Themes[index%len(in.Themes)]
	}
	return models.TopicCandidate{
		Title:             title,
		Angle:             angle,
		NoteConnection:    "Drawn directly from the notes you selected.",
		InsightConnection: "Builds on the extracted key points.",
		Platform:          models.PlatformBlog,
	}
}

// DraftArticle writes the full article for one chosen topic. Originality
// (no verbatim reuse of note text) is a prompt-level contract enforced by
// the system instruction, not verified mechanically here.
func (s *Service) DraftArticle(ctx context.Context, topic *models.TopicCandidate, in *models.Insight, style string) (*models.Article, error) {
	if topic == nil || strings.TrimSpace(topic.Title) == "" {
		return nil, validationErr("choose a topic before drafting")
	}
	if in == nil {
		return nil, validationErr("extract insights before drafting")
	}

	raw, err := s.generate(ctx, articleSystem, buildArticlePrompt(topic, in, style), 0.8, 8192)
	if err != nil {
		return nil, generationErr("article draft failed", err)
	}

	article, outcome := llm.Extract(raw, func() *models.Article {
		// Unstructured output still makes an article: the raw text is the
		// body and the quote is carved off the top of it.
		return &models.Article{Title: topic.Title, Body: raw, Quote: truncate(raw, 120)}
	})
	if outcome != llm.ParsedDirect {
		s.logger.Info("article output repaired", zap.String("path", outcome.String()))
	}

	if article.Title == "" {
		article.Title = topic.Title
	}
	if article.Body == "" {
		article.Body = raw
	}
	if article.Quote == "" {
		article.Quote = truncate(article.Body, 120)
	}
	return article, nil
}

// ComposeCard produces the shareable card copy for an article. The base
// copy and the two style variants are independent sub-fields, so they are
// fetched by two parallel calls joined before returning; either call
// failing fails the stage.
func (s *Service) ComposeCard(ctx context.Context, article *models.Article) (*models.CardCopy, error) {
	if article == nil || article.Title == "" || article.Body == "" {
		return nil, validationErr("draft an article before composing a card")
	}

	var base, variants *models.CardCopy
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		raw, err := s.generate(gctx, cardSystem, buildCardPrompt(article), 0.8, 1024)
		if err != nil {
			return err
		}
		base, _ = llm.Extract(raw, func() *models.CardCopy { return &models.CardCopy{} })
		return nil
	})
	g.Go(func() error {
		raw, err := s.generate(gctx, cardSystem, buildCardVariantsPrompt(article), 0.9, 1024)
		if err != nil {
			return err
		}
		variants, _ = llm.Extract(raw, func() *models.CardCopy { return &models.CardCopy{} })
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, generationErr("card composition failed", err)
	}

	card := &models.CardCopy{
		Title:           base.Title,
		KeyQuote:        base.KeyQuote,
		ReflectiveQuote: variants.ReflectiveQuote,
		ActionQuote:     variants.ActionQuote,
	}
	if card.Title == "" {
		card.Title = article.Title
	}
	if card.KeyQuote == "" {
		card.KeyQuote = article.Quote
	}
	if card.KeyQuote == "" {
		card.KeyQuote = truncate(article.Body, 120)
	}
	if card.ReflectiveQuote == "" {
		card.ReflectiveQuote = card.KeyQuote
	}
	if card.ActionQuote == "" {
		card.ActionQuote = card.Title
	}
	return card, nil
}

// truncate cuts s to at most n runes, trimming back to a word boundary.
func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	cut := string(runes[:n])
	if i := strings.LastIndexFunc(cut, unicode.IsSpace); i > 0 {
		cut = cut[:i]
	}
	return strings.TrimSpace(cut)
}
