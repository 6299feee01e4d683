package adventure

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeLibrary(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "content.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

const validLibrary = `
stories:
  - id: story-1
    title: The Fork
    start: ch-1
    chapters:
      - id: ch-1
        track: trk-1
        left: ch-2
        right: ch-3
      - id: ch-2
        track: trk-2
      - id: ch-3
        track: trk-3
`

func TestLoadLibrary(t *testing.T) {
	lib, err := LoadLibrary(writeLibrary(t, validLibrary))
	if err != nil {
		t.Fatalf("LoadLibrary: %v", err)
	}
	if lib.Len() != 1 {
		t.Fatalf("library holds %d stories, want 1", lib.Len())
	}

	c, ok := lib.Get("story-1")
	if !ok {
		t.Fatal("story-1 missing")
	}
	if c.Start != "ch-1" || len(c.Chapters) != 3 {
		t.Errorf("content = %+v", c)
	}
	if c.Chapters["ch-1"].Left != "ch-2" || c.Chapters["ch-1"].Right != "ch-3" {
		t.Errorf("start chapter edges = %+v", c.Chapters["ch-1"])
	}
}

func TestLoadLibraryValidation(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{
			"dangling edge",
			`
stories:
  - id: s
    start: a
    chapters:
      - {id: a, track: t, left: missing}
`,
		},
		{
			"missing start chapter",
			`
stories:
  - id: s
    start: nowhere
    chapters:
      - {id: a, track: t}
`,
		},
		{
			"chapter without track",
			`
stories:
  - id: s
    start: a
    chapters:
      - {id: a}
`,
		},
		{
			"duplicate chapter",
			`
stories:
  - id: s
    start: a
    chapters:
      - {id: a, track: t}
      - {id: a, track: t2}
`,
		},
		{
			"story without chapters",
			`
stories:
  - id: s
    start: a
`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadLibrary(writeLibrary(t, tt.yaml))
			if !errors.Is(err, ErrInvalidContent) {
				t.Errorf("err = %v, want ErrInvalidContent", err)
			}
		})
	}
}

func TestLoadLibraryMissingFile(t *testing.T) {
	if _, err := LoadLibrary(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("missing file should error")
	}
}
