package adventure

import "time"

// Button names as they appear in device button events. Only left and right
// drive story transitions.
const (
	ButtonLeft  = "left"
	ButtonRight = "right"
)

// Chapter is one node of a story graph. Left and Right name the chapters
// the respective buttons lead to; an empty edge means the button does
// nothing at this point in the story.
type Chapter struct {
	ID    string `yaml:"id"`
	Track string `yaml:"track"`
	Left  string `yaml:"left,omitempty"`
	Right string `yaml:"right,omitempty"`
}

// Content is one branching story.
type Content struct {
	ID       string             `yaml:"id"`
	Title    string             `yaml:"title"`
	Start    string             `yaml:"start"`
	Chapters map[string]Chapter `yaml:"-"`
}

// ContentSource resolves story content by ID.
type ContentSource interface {
	Get(contentID string) (Content, bool)
}

// Session is a player's position inside one story. Sessions are keyed by
// (player, content); the same player can hold positions in several stories
// at once.
type Session struct {
	PlayerID       string
	ContentID      string
	ChapterID      string
	CreatedAt      time.Time
	TransitionedAt time.Time
}
