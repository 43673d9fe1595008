package testutils

import (
	"time"

	"github.com/nonamep-p/rpg-core/internal/entities"
)

const (
	// TestCharacterName is the default character name for test fixtures
	TestCharacterName = "Test Hero"

	// TestUserID is the default owning user for test fixtures
	TestUserID = "user_123"
)

// testTime is a fixed creation time so fixtures compare stably.
var testTime = time.Date(2025, 1, 15, 10, 30, 0, 0, time.UTC)

// CreateTestCharacter creates a level-1 warrior with sensible defaults.
// Tests mutate the returned struct for their scenario.
func CreateTestCharacter(userID string) *entities.Character {
	return &entities.Character{
		ID:      "char_test_001",
		UserID:  userID,
		Name:    TestCharacterName,
		ClassID: entities.ClassWarrior,
		Level:   1,
		XP:      0,
		Gold:    100,
		HP:      100,
		MaxHP:   100,
		SP:      50,
		MaxSP:   50,
		Stats: entities.Stats{
			Attack:       15,
			Defense:      10,
			Speed:        8,
			Intelligence: 5,
			Luck:         5,
			Agility:      7,
		},
		Inventory: map[string]int32{"health_potion": 3},
		SkillIDs:  []string{"slash", "power_strike"},
		CraftSkills: map[string]entities.CraftSkill{
			entities.CraftBlacksmithing: {Level: 1, XP: 0},
		},
		XPMult:       1.0,
		GoldMult:     1.0,
		PvP:          entities.PvPRecord{Rating: 1000},
		Achievements: map[string]int64{},
		Version:      1,
		CreatedAt:    testTime.Unix(),
		UpdatedAt:    testTime.Unix(),
	}
}

// CreateTestMage creates a level-1 mage for class-sensitive tests.
func CreateTestMage(userID string) *entities.Character {
	c := CreateTestCharacter(userID)
	c.ID = "char_test_002"
	c.Name = "Test Mage"
	c.ClassID = entities.ClassMage
	c.HP, c.MaxHP = 70, 70
	c.SP, c.MaxSP = 100, 100
	c.Stats = entities.Stats{
		Attack:       8,
		Defense:      5,
		Speed:        6,
		Intelligence: 15,
		Luck:         8,
		Agility:      5,
	}
	c.SkillIDs = []string{"slash", "fireball"}
	c.CraftSkills = map[string]entities.CraftSkill{
		entities.CraftAlchemy: {Level: 1, XP: 0},
	}
	return c
}
