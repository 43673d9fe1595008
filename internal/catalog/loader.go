package catalog

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/nonamep-p/rpg-core/internal/errors"
)

// Content file names expected under the data directory. Each file
// holds a JSON array of definitions.
const (
	ItemsFile        = "items.json"
	MonstersFile     = "monsters.json"
	DungeonsFile     = "dungeons.json"
	SkillsFile       = "skills.json"
	ClassesFile      = "classes.json"
	AchievementsFile = "achievements.json"
	RecipesFile      = "recipes.json"
	ShopsFile        = "shops.json"
	ArchetypesFile   = "archetypes.json"
)

// Load reads every content file from dir and returns the validated
// catalog. A missing file, malformed JSON, or failed validation all
// error out; the caller should treat that as fatal at startup.
func Load(dir string) (*Catalog, error) {
	data := &Data{}

	if err := readFile(dir, ItemsFile, &data.Items); err != nil {
		return nil, err
	}
	if err := readFile(dir, MonstersFile, &data.Monsters); err != nil {
		return nil, err
	}
	if err := readFile(dir, DungeonsFile, &data.Dungeons); err != nil {
		return nil, err
	}
	if err := readFile(dir, SkillsFile, &data.Skills); err != nil {
		return nil, err
	}
	if err := readFile(dir, ClassesFile, &data.Classes); err != nil {
		return nil, err
	}
	if err := readFile(dir, AchievementsFile, &data.Achievements); err != nil {
		return nil, err
	}
	if err := readFile(dir, RecipesFile, &data.Recipes); err != nil {
		return nil, err
	}
	if err := readFile(dir, ShopsFile, &data.Shops); err != nil {
		return nil, err
	}
	if err := readFile(dir, ArchetypesFile, &data.Archetypes); err != nil {
		return nil, err
	}

	return New(data)
}

func readFile(dir, name string, v interface{}) error {
	path := filepath.Join(dir, name)
	b, err := os.ReadFile(path) // #nosec G304 -- path comes from server config
	if err != nil {
		return errors.Wrapf(err, "failed to read content file %s", path)
	}
	if err := json.Unmarshal(b, v); err != nil {
		return errors.Wrapf(err, "failed to parse content file %s", path)
	}
	return nil
}
