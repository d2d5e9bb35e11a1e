package models

import (
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// DateKey is the calendar-day layout used as the daily card's identity key.
const DateKey = "2006-01-02"

// MediaRef is a recommended piece of media attached to a daily card.
// URL is either empty or a link that passed the reachability probe.
type MediaRef struct {
	Title      string   `json:"title" bson:"title"`
	Author     string   `json:"author" bson:"author"`
	URL        string   `json:"url" bson:"url"`
	Alternates []string `json:"alternates" bson:"alternates"`
	Reason     string   `json:"reason" bson:"reason"`
}

// DailyCard is the one-per-day inspiration artifact. Regenerating the same
// date overwrites the stored row rather than adding another.
type DailyCard struct {
	ID        primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	UserID    string             `json:"user_id" bson:"user_id"`
	Date      string             `json:"date" bson:"date"`
	Title     string             `json:"title" bson:"title"`
	Message   string             `json:"message" bson:"message"`
	Media     MediaRef           `json:"media" bson:"media"`
	NoteIDs   []string           `json:"note_ids" bson:"note_ids"`
	UpdatedAt time.Time          `json:"updated_at" bson:"updated_at"`
}

func (d *DailyCard) Normalize() {
	d.Title = strings.TrimSpace(d.Title)
	d.Message = strings.TrimSpace(d.Message)
	d.Media.Title = strings.TrimSpace(d.Media.Title)
	d.Media.Author = strings.TrimSpace(d.Media.Author)
	d.Media.URL = strings.TrimSpace(d.Media.URL)
	if d.Media.Alternates == nil {
		d.Media.Alternates = []string{}
	}
	d.Media.Reason = strings.TrimSpace(d.Media.Reason)
	if d.NoteIDs == nil {
		d.NoteIDs = []string{}
	}
}

// Work is a finished article plus its card copy saved by the user.
type Work struct {
	ID        primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	UserID    string             `json:"user_id" bson:"user_id"`
	Style     string             `json:"style" bson:"style"`
	Topic     TopicCandidate     `json:"topic" bson:"topic"`
	Article   Article            `json:"article" bson:"article"`
	Card      CardCopy           `json:"card" bson:"card"`
	ExportKey string             `json:"export_key" bson:"export_key"`
	CreatedAt time.Time          `json:"created_at" bson:"created_at"`
}
