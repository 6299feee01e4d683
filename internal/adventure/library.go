package adventure

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// libraryFile is the YAML shape of a content library on disk.
type libraryFile struct {
	Stories []storyFile `yaml:"stories"`
}

type storyFile struct {
	ID       string    `yaml:"id"`
	Title    string    `yaml:"title"`
	Start    string    `yaml:"start"`
	Chapters []Chapter `yaml:"chapters"`
}

// Library is an in-memory content source loaded from a YAML file. Content
// is validated on load; a library never hands out a story with dangling
// edges.
type Library struct {
	stories map[string]Content
}

// LoadLibrary reads and validates a content library.
func LoadLibrary(path string) (*Library, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading content library: %w", err)
	}

	var file libraryFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing content library: %w", err)
	}

	lib := &Library{stories: make(map[string]Content, len(file.Stories))}
	for _, s := range file.Stories {
		content, err := buildContent(s)
		if err != nil {
			return nil, err
		}
		if _, dup := lib.stories[content.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate story %q", ErrInvalidContent, content.ID)
		}
		lib.stories[content.ID] = content
	}
	return lib, nil
}

func buildContent(s storyFile) (Content, error) {
	if s.ID == "" {
		return Content{}, fmt.Errorf("%w: story without id", ErrInvalidContent)
	}
	if len(s.Chapters) == 0 {
		return Content{}, fmt.Errorf("%w: story %q has no chapters", ErrInvalidContent, s.ID)
	}

	chapters := make(map[string]Chapter, len(s.Chapters))
	for _, ch := range s.Chapters {
		if ch.ID == "" {
			return Content{}, fmt.Errorf("%w: story %q has a chapter without id", ErrInvalidContent, s.ID)
		}
		if ch.Track == "" {
			return Content{}, fmt.Errorf("%w: chapter %q in story %q has no track", ErrInvalidContent, ch.ID, s.ID)
		}
		if _, dup := chapters[ch.ID]; dup {
			return Content{}, fmt.Errorf("%w: duplicate chapter %q in story %q", ErrInvalidContent, ch.ID, s.ID)
		}
		chapters[ch.ID] = ch
	}

	if _, ok := chapters[s.Start]; !ok {
		return Content{}, fmt.Errorf("%w: story %q start chapter %q does not exist", ErrInvalidContent, s.ID, s.Start)
	}
	for _, ch := range chapters {
		for _, edge := range []string{ch.Left, ch.Right} {
			if edge == "" {
				continue
			}
			if _, ok := chapters[edge]; !ok {
				return Content{}, fmt.Errorf("%w: chapter %q in story %q points at missing chapter %q",
					ErrInvalidContent, ch.ID, s.ID, edge)
			}
		}
	}

	return Content{ID: s.ID, Title: s.Title, Start: s.Start, Chapters: chapters}, nil
}

// Get returns the story with the given ID.
func (l *Library) Get(contentID string) (Content, bool) {
	c, ok := l.stories[contentID]
	return c, ok
}

// Len returns how many stories the library holds.
func (l *Library) Len() int {
	return len(l.stories)
}
