package catalog

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"podbase/internal/models"
)

func writeCatalog(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "episodes.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

const validCatalog = `
podcast: A Gentleman's Disagreement
episodes:
  - id: 7
    title: The Late One
    audio: episode_7.mp3
    speakers:
      1: {name: Mark, role: host}
      2: {name: Paul, role: guest}
  - id: 5
    title: The Early One
    audio: audio/episode_5.mp3
    transcript: episode_5.json
    speakers:
      1: {name: Mark, role: host}
`

func TestLoad(t *testing.T) {
	c, err := Load(writeCatalog(t, validCatalog))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if c.Podcast != "A Gentleman's Disagreement" {
		t.Errorf("Podcast = %q", c.Podcast)
	}
	if len(c.Episodes) != 2 {
		t.Fatalf("got %d episodes, want 2", len(c.Episodes))
	}
	// Episodes come back sorted by id regardless of file order.
	if c.Episodes[0].ID != 5 || c.Episodes[1].ID != 7 {
		t.Errorf("episode order = [%d %d], want [5 7]", c.Episodes[0].ID, c.Episodes[1].ID)
	}

	ep, ok := c.Episode(7)
	if !ok {
		t.Fatal("Episode(7) not found")
	}
	if ep.Audio != "episode_7.mp3" || ep.Title != "The Late One" {
		t.Errorf("Episode(7) = %+v", ep)
	}
	if got := ep.SpeakerNames(); got[1] != "Mark" || got[2] != "Paul" {
		t.Errorf("SpeakerNames() = %v", got)
	}

	if _, ok := c.Episode(99); ok {
		t.Error("Episode(99) found, want missing")
	}
}

func TestEpisodeEntryStem(t *testing.T) {
	tests := []struct {
		audio string
		want  string
	}{
		{"episode_5.mp3", "episode_5"},
		{"audio/episode_5.mp3", "episode_5"},
		{"episode_5", "episode_5"},
		{"nested/dir/ep.10.wav", "ep.10"},
	}
	for _, tt := range tests {
		if got := (EpisodeEntry{Audio: tt.audio}).Stem(); got != tt.want {
			t.Errorf("Stem(%q) = %q, want %q", tt.audio, got, tt.want)
		}
	}
}

func TestLoadRejectsInvalidCatalogs(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name: "unknown field",
			content: `
podcast: P
episodes:
  - id: 1
    title: T
    audio: a.mp3
    colour: blue
`,
			wantErr: "field colour not found",
		},
		{
			name: "duplicate episode id",
			content: `
podcast: P
episodes:
  - {id: 1, title: A, audio: a.mp3}
  - {id: 1, title: B, audio: b.mp3}
`,
			wantErr: "duplicate episode id 1",
		},
		{
			name: "non-positive id",
			content: `
podcast: P
episodes:
  - {id: 0, title: A, audio: a.mp3}
`,
			wantErr: "id must be positive",
		},
		{
			name: "missing audio",
			content: `
podcast: P
episodes:
  - {id: 1, title: A}
`,
			wantErr: "audio file not set",
		},
		{
			name: "same name on two slots",
			content: `
podcast: P
episodes:
  - id: 1
    title: A
    audio: a.mp3
    speakers:
      1: {name: Mark, role: host}
      2: {name: Mark, role: guest}
`,
			wantErr: "assigned to slots 1 and 2",
		},
		{
			name: "duplicate slot key",
			content: `
podcast: P
episodes:
  - id: 1
    title: A
    audio: a.mp3
    speakers:
      1: {name: Mark, role: host}
      1: {name: Paul, role: guest}
`,
			wantErr: "already defined",
		},
		{
			name: "unknown role",
			content: `
podcast: P
episodes:
  - id: 1
    title: A
    audio: a.mp3
    speakers:
      1: {name: Mark, role: producer}
`,
			wantErr: `unknown role "producer"`,
		},
		{
			name: "nameless speaker",
			content: `
podcast: P
episodes:
  - id: 1
    title: A
    audio: a.mp3
    speakers:
      1: {role: host}
`,
			wantErr: "has no name",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeCatalog(t, tt.content))
			if err == nil {
				t.Fatal("Load() succeeded, want error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Load() error = %v, want substring %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Fatal("Load() of missing file succeeded, want error")
	}
}

func TestSelect(t *testing.T) {
	c, err := Load(writeCatalog(t, validCatalog))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	all, err := c.Select(nil)
	if err != nil {
		t.Fatalf("Select(nil) error = %v", err)
	}
	if len(all) != 2 {
		t.Errorf("Select(nil) returned %d entries, want 2", len(all))
	}

	some, err := c.Select([]int{7})
	if err != nil {
		t.Fatalf("Select([7]) error = %v", err)
	}
	if len(some) != 1 || some[0].ID != 7 {
		t.Errorf("Select([7]) = %+v", some)
	}

	_, err = c.Select([]int{5, 42, 99})
	if err == nil {
		t.Fatal("Select with unknown ids succeeded, want error")
	}
	if !strings.Contains(err.Error(), "[42 99]") {
		t.Errorf("Select error = %v, want missing ids [42 99]", err)
	}
}

func TestModelSpeakers(t *testing.T) {
	ep := EpisodeEntry{
		ID: 3,
		Speakers: map[int]SpeakerEntry{
			2: {Name: "Paul", Role: models.RoleGuest},
			1: {Name: "Mark", Role: models.RoleHost},
		},
	}

	got := ModelSpeakers(ep)
	if len(got) != 2 {
		t.Fatalf("got %d speakers, want 2", len(got))
	}
	if got[0].Slot != 1 || got[0].Name != "Mark" || got[0].Role != models.RoleHost {
		t.Errorf("speaker[0] = %+v", got[0])
	}
	if got[1].Slot != 2 || got[1].Name != "Paul" {
		t.Errorf("speaker[1] = %+v", got[1])
	}
	for i, sp := range got {
		if sp.Episode != models.EpisodeRecordID(3) {
			t.Errorf("speaker[%d].Episode = %v, want episode:3", i, sp.Episode)
		}
	}
}
