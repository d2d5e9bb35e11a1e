package daily

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/inklet-app/inklet/backend/internal/llm"
	"github.com/inklet-app/inklet/backend/internal/models"
)

const dailySystem = `You compose a short daily inspiration card from a few
of the author's own notes. The message must be a warm paraphrase in your
own words — never quote the notes verbatim. Recommend one piece of YouTube
media that fits the mood, with up to 3 alternate links for the same or a
closely related piece. Respond with a single JSON object and nothing else:
{"title":"","message":"","media":{"title":"","author":"","url":"","alternates":[],"reason":""}}`

// fallbackMessage is the final resort when both generation and the sampled
// note text come up empty.
const fallbackMessage = "Your notes are waiting for you. Write one line today and see where it leads."

// ErrNoNotes means the corpus is empty; the job fails fast without
// spending a generation call.
var ErrNoNotes = errors.New("nothing to summarize: no notes exist yet")

// ErrBusy means another run for the same user and date holds the lock.
var ErrBusy = errors.New("daily card generation already in progress")

// NoteCorpus lists a user's full note corpus for sampling.
type NoteCorpus interface {
	ListNotesByUser(ctx context.Context, userID string) ([]models.Note, error)
}

// CardStore persists daily cards keyed by (user, date) with upsert
// semantics: repeated runs for the same date converge to one row.
type CardStore interface {
	UpsertDailyCard(ctx context.Context, card *models.DailyCard) error
	GetDailyCard(ctx context.Context, userID, date string) (*models.DailyCard, error)
}

// Locker guards against a manual trigger racing the schedule.
type Locker interface {
	AcquireDayLock(ctx context.Context, userID, date string) (bool, error)
	ReleaseDayLock(ctx context.Context, userID, date string)
}

// dailyPayload is the model's response shape for one card.
type dailyPayload struct {
	Title   string          `json:"title"`
	Message string          `json:"message"`
	Media   models.MediaRef `json:"media"`
}

func (p *dailyPayload) Normalize() {
	p.Title = strings.TrimSpace(p.Title)
	p.Message = strings.TrimSpace(p.Message)
	if p.Media.Alternates == nil {
		p.Media.Alternates = []string{}
	}
}

// Job generates the one-per-day inspiration card.
type Job struct {
	corpus  NoteCorpus
	cards   CardStore
	locker  Locker
	client  llm.Client
	probe   Prober
	policy  llm.Policy
	logger  *zap.Logger
	shuffle func(n int, swap func(i, j int))
}

func NewJob(corpus NoteCorpus, cards CardStore, locker Locker, client llm.Client, probe Prober, policy llm.Policy, logger *zap.Logger) *Job {
	return &Job{
		corpus:  corpus,
		cards:   cards,
		locker:  locker,
		client:  client,
		probe:   probe,
		policy:  policy,
		logger:  logger,
		shuffle: rand.Shuffle,
	}
}

// RunOnce generates and upserts the card for the calendar date of now.
// Running it again on the same date overwrites the stored card. When the
// store write fails the computed card is still returned alongside the
// error so the caller's result is not lost.
func (j *Job) RunOnce(ctx context.Context, userID string, now time.Time) (*models.DailyCard, error) {
	date := now.Format(models.DateKey)

	ok, err := j.locker.AcquireDayLock(ctx, userID, date)
	if err != nil {
		return nil, fmt.Errorf("acquire day lock: %w", err)
	}
	if !ok {
		return nil, ErrBusy
	}
	defer j.locker.ReleaseDayLock(ctx, userID, date)

	notes, err := j.corpus.ListNotesByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load notes: %w", err)
	}
	if len(notes) == 0 {
		return nil, ErrNoNotes
	}

	sample := j.sampleNotes(notes, 2)

	raw, err := j.generate(ctx, sample)
	if err != nil {
		return nil, fmt.Errorf("daily generation: %w", err)
	}

	payload, outcome := llm.Extract(raw, func() *dailyPayload { return &dailyPayload{} })
	if outcome != llm.ParsedDirect {
		j.logger.Info("daily output repaired",
			zap.String("user_id", userID), zap.String("path", outcome.String()))
	}

	card := &models.DailyCard{
		UserID:    userID,
		Date:      date,
		Title:     payload.Title,
		Message:   payload.Message,
		Media:     payload.Media,
		UpdatedAt: now.UTC(),
	}
	for _, n := range sample {
		card.NoteIDs = append(card.NoteIDs, n.ID)
	}

	j.repairMessage(card, sample)
	j.resolveMedia(ctx, card)
	card.Normalize()

	if err := j.cards.UpsertDailyCard(ctx, card); err != nil {
		j.logger.Error("persist daily card", zap.String("date", date), zap.Error(err))
		return card, fmt.Errorf("persist daily card: %w", err)
	}

	j.logger.Info("daily card generated",
		zap.String("user_id", userID),
		zap.String("date", date),
		zap.Int("notes_sampled", len(sample)),
		zap.Bool("media_resolved", card.Media.URL != ""))
	return card, nil
}

// sampleNotes draws up to k notes uniformly via an unbiased shuffle.
func (j *Job) sampleNotes(notes []models.Note, k int) []models.Note {
	shuffled := make([]models.Note, len(notes))
	copy(shuffled, notes)
	j.shuffle(len(shuffled), func(a, b int) {
		shuffled[a], shuffled[b] = shuffled[b], shuffled[a]
	})
	if len(shuffled) > k {
		shuffled = shuffled[:k]
	}
	return shuffled
}

func (j *Job) generate(ctx context.Context, sample []models.Note) (string, error) {
	var sb strings.Builder
	sb.WriteString("Today's sampled notes:\n\n")
	for i, n := range sample {
		fmt.Fprintf(&sb, "%d. %s\n%s\n\n", i+1, n.Title, n.Body)
	}
	sb.WriteString("Compose today's inspiration card.")

	resp, _, err := llm.CallWithRetry(ctx, j.logger, func(ctx context.Context) (*llm.Response, error) {
		return j.client.Generate(ctx, llm.Request{
			System:          dailySystem,
			Prompt:          sb.String(),
			Temperature:     0.9,
			MaxOutputTokens: 1024,
		})
	}, j.policy)
	if err != nil {
		return "", err
	}
	return resp.Text, nil
}

// repairMessage guarantees a non-empty message: generated text, then a
// truncated concatenation of the sampled notes, then the constant line.
func (j *Job) repairMessage(card *models.DailyCard, sample []models.Note) {
	if strings.TrimSpace(card.Title) == "" {
		card.Title = "Today's reflection"
	}
	if strings.TrimSpace(card.Message) != "" {
		return
	}
	var parts []string
	for _, n := range sample {
		if b := strings.TrimSpace(n.Body); b != "" {
			parts = append(parts, b)
		}
	}
	joined := strings.Join(parts, " ")
	if len(joined) > 200 {
		joined = strings.TrimSpace(joined[:200])
	}
	if joined != "" {
		card.Message = joined
	} else {
		card.Message = fallbackMessage
	}
}

// resolveMedia walks [primary, alternates...] in order, keeps only links
// with the expected YouTube shape, and accepts the first one the probe can
// reach. Everything else is discarded; if nothing is reachable the link is
// cleared — an empty link beats a broken one.
func (j *Job) resolveMedia(ctx context.Context, card *models.DailyCard) {
	candidates := make([]string, 0, 1+len(card.Media.Alternates))
	if card.Media.URL != "" {
		candidates = append(candidates, card.Media.URL)
	}
	candidates = append(candidates, card.Media.Alternates...)

	card.Media.URL = ""
	card.Media.Alternates = []string{}

	for _, link := range candidates {
		if !isYouTubeLink(link) {
			continue
		}
		if j.probe.Probe(ctx, link) {
			card.Media.URL = link
			return
		}
	}
}
