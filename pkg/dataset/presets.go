package dataset

import (
	"context"
	"embed"
	"fmt"
	"strings"
)

//go:embed presets/*.txt
var presetFS embed.FS

// PresetSpec describes a built-in word list.
type PresetSpec struct {
	ID          string
	Title       string
	Description string
}

// Presets lists the built-in word lists in display order.
var Presets = []PresetSpec{
	{ID: "baby-names", Title: "Baby Names", Description: "soft vowels and flowing endings"},
	{ID: "pokemon", Title: "Pokémon", Description: "punchy sounds and iconic suffixes"},
	{ID: "cocktails", Title: "Cocktails", Description: "exotic letters and spirited flair"},
	{ID: "minerals", Title: "Minerals", Description: "latinate suffixes and crystalline sounds"},
	{ID: "countries", Title: "Countries", Description: "names from every corner of the world"},
}

// PresetIDs returns the preset ids in display order.
func PresetIDs() []string {
	ids := make([]string, len(Presets))
	for i, p := range Presets {
		ids[i] = p.ID
	}
	return ids
}

// Preset returns the documents of a built-in word list.
func Preset(id string) ([]string, error) {
	id = strings.ToLower(strings.TrimSpace(id))
	for _, p := range Presets {
		if p.ID != id {
			continue
		}
		b, err := presetFS.ReadFile("presets/" + p.ID + ".txt")
		if err != nil {
			return nil, err
		}
		docs := ParseDocs(string(b))
		if len(docs) == 0 {
			return nil, ErrEmpty
		}
		return docs, nil
	}
	return nil, fmt.Errorf("dataset: unknown preset %q (want one of %s)", id, strings.Join(PresetIDs(), ", "))
}

// DefaultPath is fetched from NamesURL when it does not exist yet.
const DefaultPath = "input.txt"

// Resolve returns the training documents and a label for the run log. A
// preset other than "" or "none" wins over path.
func Resolve(ctx context.Context, preset, path string) ([]string, string, error) {
	if p := strings.TrimSpace(preset); p != "" && p != "none" {
		docs, err := Preset(p)
		if err != nil {
			return nil, "", err
		}
		return docs, "preset:" + strings.ToLower(p), nil
	}
	if path == DefaultPath {
		if err := Download(ctx, NamesURL, path); err != nil {
			return nil, "", err
		}
	}
	docs, err := Load(path)
	if err != nil {
		return nil, "", err
	}
	return docs, path, nil
}
