package diary

import (
	"time"

	"github.com/google/uuid"
)

// Mood is the emotional tone the structuring step assigns to an entry.
type Mood string

const (
	MoodHappy   Mood = "happy"
	MoodNeutral Mood = "neutral"
	MoodSad     Mood = "sad"
	MoodAnxious Mood = "anxious"
	MoodExcited Mood = "excited"
)

var validMoods = map[Mood]bool{
	MoodHappy:   true,
	MoodNeutral: true,
	MoodSad:     true,
	MoodAnxious: true,
	MoodExcited: true,
}

// NormalizeMood coerces anything outside the closed mood set to neutral.
// Lenient on purpose: an unrecognized mood from the language model is a
// policy decision to accept, not an error.
func NormalizeMood(m string) Mood {
	if validMoods[Mood(m)] {
		return Mood(m)
	}
	return MoodNeutral
}

// Entry represents a single persisted diary record derived from one audio
// submission. Entries are written once and never updated in place.
type Entry struct {
	ID          uuid.UUID `json:"id"`
	Title       string    `json:"title"`
	Content     string    `json:"content"`
	Transcript  string    `json:"transcript"`
	Mood        Mood      `json:"mood"`
	KeyEvents   []string  `json:"key_events"`
	Todos       []string  `json:"todos"`
	Tags        []string  `json:"tags"`
	AudioPath   string    `json:"audio_path,omitempty"`
	DurationSec float64   `json:"duration_sec"`
	CreatedAt   time.Time `json:"created_at"`
}

// ListItem is the projection of an Entry used for list and search
// responses. It deliberately omits content and transcript.
type ListItem struct {
	ID          uuid.UUID `json:"id"`
	Title       string    `json:"title"`
	Mood        Mood      `json:"mood"`
	Tags        []string  `json:"tags"`
	DurationSec float64   `json:"duration_sec"`
	CreatedAt   time.Time `json:"created_at"`
}
