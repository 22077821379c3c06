// Package catalog loads the episode catalog, a YAML file describing the
// podcast and its episodes. The catalog is configuration, not state:
// processing status lives in the store, the catalog only says what exists
// and where the audio is.
package catalog

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"podbase/internal/models"
)

// SpeakerEntry names one diarization slot of an episode.
type SpeakerEntry struct {
	Name string             `yaml:"name"`
	Role models.SpeakerRole `yaml:"role"`
}

// EpisodeEntry describes one episode of the podcast.
type EpisodeEntry struct {
	ID       int                  `yaml:"id"`
	Title    string               `yaml:"title"`
	Audio    string               `yaml:"audio"`
	Speakers map[int]SpeakerEntry `yaml:"speakers"`

	// Transcript optionally points at a pre-existing raw transcript
	// file, used instead of calling the transcription service.
	Transcript string `yaml:"transcript"`
}

// Stem returns the audio file name without its extension. It keys the
// raw transcript and snapshot files for this episode.
func (e EpisodeEntry) Stem() string {
	base := filepath.Base(e.Audio)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// SpeakerNames returns the slot-to-name map used to label formatted
// segments.
func (e EpisodeEntry) SpeakerNames() map[int]string {
	names := make(map[int]string, len(e.Speakers))
	for slot, sp := range e.Speakers {
		names[slot] = sp.Name
	}
	return names
}

// Catalog is the parsed episode catalog.
type Catalog struct {
	Podcast  string         `yaml:"podcast"`
	Episodes []EpisodeEntry `yaml:"episodes"`
}

// Load reads and validates the catalog at path. Unknown YAML fields,
// duplicate episode ids, and duplicate speaker slots or names within an
// episode are errors.
func Load(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: open %s: %w", path, err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)

	var c Catalog
	if err := dec.Decode(&c); err != nil {
		return nil, fmt.Errorf("catalog: parse %s: %w", path, err)
	}
	if err := c.validate(); err != nil {
		return nil, fmt.Errorf("catalog: %s: %w", path, err)
	}

	sort.Slice(c.Episodes, func(i, j int) bool {
		return c.Episodes[i].ID < c.Episodes[j].ID
	})
	return &c, nil
}

func (c *Catalog) validate() error {
	seen := make(map[int]bool, len(c.Episodes))
	for _, ep := range c.Episodes {
		if ep.ID <= 0 {
			return fmt.Errorf("episode %q: id must be positive, got %d", ep.Title, ep.ID)
		}
		if seen[ep.ID] {
			return fmt.Errorf("duplicate episode id %d", ep.ID)
		}
		seen[ep.ID] = true

		if ep.Audio == "" {
			return fmt.Errorf("episode %d: audio file not set", ep.ID)
		}

		names := make(map[string]int, len(ep.Speakers))
		for slot, sp := range ep.Speakers {
			if slot <= 0 {
				return fmt.Errorf("episode %d: speaker slot must be positive, got %d", ep.ID, slot)
			}
			if sp.Name == "" {
				return fmt.Errorf("episode %d: speaker slot %d has no name", ep.ID, slot)
			}
			if sp.Role != models.RoleHost && sp.Role != models.RoleGuest {
				return fmt.Errorf("episode %d: speaker %q: unknown role %q", ep.ID, sp.Name, sp.Role)
			}
			if prev, ok := names[sp.Name]; ok {
				return fmt.Errorf("episode %d: speaker %q assigned to slots %d and %d", ep.ID, sp.Name, prev, slot)
			}
			names[sp.Name] = slot
		}
	}
	return nil
}

// Episode returns the entry with the given id, or false if the catalog
// does not contain it.
func (c *Catalog) Episode(id int) (EpisodeEntry, bool) {
	for _, ep := range c.Episodes {
		if ep.ID == id {
			return ep, true
		}
	}
	return EpisodeEntry{}, false
}

// Select returns the entries for the given ids, in catalog order. An id
// not present in the catalog is an error. An empty ids slice selects
// every episode.
func (c *Catalog) Select(ids []int) ([]EpisodeEntry, error) {
	if len(ids) == 0 {
		return c.Episodes, nil
	}
	want := make(map[int]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	var out []EpisodeEntry
	for _, ep := range c.Episodes {
		if want[ep.ID] {
			out = append(out, ep)
			delete(want, ep.ID)
		}
	}
	if len(want) > 0 {
		missing := make([]int, 0, len(want))
		for id := range want {
			missing = append(missing, id)
		}
		sort.Ints(missing)
		return nil, fmt.Errorf("catalog: unknown episode ids %v", missing)
	}
	return out, nil
}

// ModelSpeakers converts an entry's speaker map into store rows, ordered
// by slot.
func ModelSpeakers(ep EpisodeEntry) []models.Speaker {
	slots := make([]int, 0, len(ep.Speakers))
	for slot := range ep.Speakers {
		slots = append(slots, slot)
	}
	sort.Ints(slots)

	out := make([]models.Speaker, 0, len(slots))
	for _, slot := range slots {
		sp := ep.Speakers[slot]
		out = append(out, models.Speaker{
			Episode: models.EpisodeRecordID(ep.ID),
			Slot:    slot,
			Name:    sp.Name,
			Role:    sp.Role,
		})
	}
	return out
}
