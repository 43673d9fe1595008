package testutils

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nonamep-p/rpg-core/internal/catalog"
	"github.com/nonamep-p/rpg-core/internal/entities"
)

// CreateTestCatalog builds a compact, internally consistent content set
// covering every collection, for engine and orchestrator tests.
func CreateTestCatalog(t *testing.T) *catalog.Catalog {
	c, err := catalog.New(TestCatalogData())
	require.NoError(t, err, "failed to build test catalog")
	return c
}

// tenGoblinFloors builds a plain ten-floor descent with a boss at the
// bottom, for floor-progression tests.
func tenGoblinFloors() []catalog.FloorDefinition {
	floors := make([]catalog.FloorDefinition, 0, 10)
	for i := 0; i < 9; i++ {
		floors = append(floors, catalog.FloorDefinition{
			Spawns: []catalog.SpawnEntry{
				{MonsterID: "goblin", Weight: 2},
				{MonsterID: "wolf", Weight: 1},
			},
		})
	}
	return append(floors, catalog.FloorDefinition{BossID: "goblin_king", RewardMult: 2})
}

// TestCatalogData returns the raw content behind CreateTestCatalog, for
// tests that want to mutate a collection before loading.
func TestCatalogData() *catalog.Data {
	return &catalog.Data{
		Items: []*catalog.ItemDefinition{
			{
				ID: "iron_sword", Name: "Iron Sword",
				Type: entities.ItemTypeWeapon, Rarity: entities.RarityCommon,
				Effects: map[string]float64{catalog.EffectAttack: 5},
				Price:   100,
			},
			{
				ID: "flame_blade", Name: "Flame Blade",
				Type: entities.ItemTypeWeapon, Rarity: entities.RarityRare,
				Element: entities.ElementFire,
				Effects: map[string]float64{catalog.EffectAttack: 12},
				Price:   900,
			},
			{
				ID: "leather_armor", Name: "Leather Armor",
				Type: entities.ItemTypeArmor, Rarity: entities.RarityCommon,
				Effects: map[string]float64{catalog.EffectDefense: 3},
				Price:   60,
			},
			{
				ID: "wooden_shield", Name: "Wooden Shield",
				Type: entities.ItemTypeShield, Rarity: entities.RarityCommon,
				Effects: map[string]float64{catalog.EffectDefense: 2},
				Price:   40,
			},
			{
				ID: "lucky_charm", Name: "Lucky Charm",
				Type: entities.ItemTypeAccessory, Rarity: entities.RarityUncommon,
				Effects: map[string]float64{catalog.EffectLuck: 5},
				Price:   120,
			},
			{
				ID: "health_potion", Name: "Health Potion",
				Type: entities.ItemTypeConsumable, Rarity: entities.RarityCommon,
				Effects: map[string]float64{catalog.EffectHP: 50},
				Price:   25,
			},
			{
				ID: "mana_potion", Name: "Mana Potion",
				Type: entities.ItemTypeConsumable, Rarity: entities.RarityCommon,
				Effects: map[string]float64{catalog.EffectSP: 30},
				Price:   20,
			},
			{
				ID: "antidote", Name: "Antidote",
				Type: entities.ItemTypeConsumable, Rarity: entities.RarityCommon,
				Cures: []entities.StatusType{entities.StatusPoison},
				Price: 30,
			},
			{
				ID: "haste_potion", Name: "Haste Potion",
				Type: entities.ItemTypeConsumable, Rarity: entities.RarityUncommon,
				Grants: entities.StatusHaste,
				Price:  75,
			},
			{
				ID: "iron_ingot", Name: "Iron Ingot",
				Type: entities.ItemTypeMaterial, Rarity: entities.RarityCommon,
				Price: 10,
			},
			{
				ID: "wolf_pelt", Name: "Wolf Pelt",
				Type: entities.ItemTypeMaterial, Rarity: entities.RarityCommon,
				Price: 8,
			},
			{
				ID: "forge", Name: "Forge",
				Type: entities.ItemTypeMaterial, Rarity: entities.RarityUncommon,
				Price: 250,
			},
		},
		Monsters: []*catalog.MonsterDefinition{
			{
				ID: "goblin", Name: "Goblin", Level: 2,
				HP: 40, Attack: 8, Defense: 3, Speed: 6,
				Intelligence: 2, Luck: 3, Agility: 5,
				GoldReward: 15, XPReward: 25,
				Loot: []catalog.LootEntry{
					{ItemID: "health_potion", Chance: 0.3, Quantity: 1},
				},
			},
			{
				ID: "wolf", Name: "Wolf", Level: 3,
				HP: 55, Attack: 11, Defense: 4, Speed: 12,
				Intelligence: 2, Luck: 4, Agility: 9,
				GoldReward: 22, XPReward: 40,
				Loot: []catalog.LootEntry{
					{ItemID: "wolf_pelt", Chance: 0.6, Quantity: 1},
				},
			},
			{
				ID: "goblin_king", Name: "Goblin King", Level: 5,
				HP: 150, Attack: 18, Defense: 10, Speed: 8,
				Intelligence: 4, Luck: 5, Agility: 6,
				GoldReward: 100, XPReward: 200,
				Boss: true,
			},
		},
		Dungeons: []*catalog.DungeonDefinition{
			{
				ID: "goblin_warren", Name: "Goblin Warren",
				MinLevel: 1,
				Floors: []catalog.FloorDefinition{
					{Spawns: []catalog.SpawnEntry{
						{MonsterID: "goblin", Weight: 3},
						{MonsterID: "wolf", Weight: 1},
					}},
					{Spawns: []catalog.SpawnEntry{
						{MonsterID: "goblin", Weight: 1},
						{MonsterID: "wolf", Weight: 1},
					}, RewardMult: 1.5},
					{BossID: "goblin_king", RewardMult: 2},
				},
				BonusItemIDs: []string{"health_potion", "wolf_pelt"},
			},
			{
				ID: "deep_warren", Name: "Deep Warren",
				MinLevel: 1,
				Floors:   tenGoblinFloors(),
			},
		},
		Skills: []*catalog.SkillDefinition{
			{
				ID: "slash", Name: "Slash",
				LevelReq: 1, Price: 0, SPCost: 20, Power: 1.5,
			},
			{
				ID: "power_strike", Name: "Power Strike",
				ClassID: "warrior", LevelReq: 1, Price: 50,
				SPCost: 10, Cooldown: 2, Power: 1.5,
			},
			{
				ID: "fireball", Name: "Fireball",
				ClassID: "mage", LevelReq: 1, Price: 50,
				SPCost: 12, Power: 1.6,
				Element: entities.ElementFire,
				Status:  entities.StatusBurn, StatusChance: 0.3,
			},
			{
				ID: "heal", Name: "Heal",
				LevelReq: 2, Price: 100, SPCost: 15, Heal: 40,
			},
			{
				ID: "battle_cry", Name: "Battle Cry",
				LevelReq: 3, Price: 120, SPCost: 10,
				Status: entities.StatusBlessing, StatusChance: 1.0,
			},
		},
		Classes: []*catalog.ClassDefinition{
			{
				ID: "warrior", Name: "Warrior",
				BaseHP: 100, BaseSP: 50,
				BaseStats: entities.Stats{
					Attack: 15, Defense: 10, Speed: 8,
					Intelligence: 5, Luck: 5, Agility: 7,
				},
				GrowthWeights: map[string]float64{
					"attack": 0.3, "defense": 0.3, "hp": 0.2, "max_hp": 0.2,
				},
				StartingSkillIDs: []string{"power_strike"},
				StartingItems:    map[string]int32{"iron_sword": 1, "health_potion": 3},
			},
			{
				ID: "mage", Name: "Mage",
				BaseHP: 70, BaseSP: 100,
				BaseStats: entities.Stats{
					Attack: 8, Defense: 5, Speed: 6,
					Intelligence: 15, Luck: 8, Agility: 5,
				},
				GrowthWeights: map[string]float64{
					"intelligence": 0.4, "sp": 0.3, "max_sp": 0.3,
				},
				StartingSkillIDs: []string{"fireball"},
				StartingItems:    map[string]int32{"mana_potion": 3},
			},
		},
		Achievements: []*catalog.AchievementDefinition{
			{
				ID: "first_battle", Name: "First Blood",
				Counter: catalog.CounterBattlesWon, Threshold: 1,
				RewardGold: 50, RewardXP: 25,
			},
			{
				ID: "monster_slayer", Name: "Monster Slayer",
				Counter: catalog.CounterBattlesWon, Threshold: 10,
				RewardGold: 150, RewardXP: 100,
			},
			{
				ID: "dungeon_crawler", Name: "Dungeon Crawler",
				Counter: catalog.CounterDungeonsCompleted, Threshold: 5,
				RewardGold: 250, RewardXP: 150,
			},
			{
				ID: "boss_hunter", Name: "Boss Hunter",
				Counter: catalog.CounterBossesDefeated, Threshold: 3,
				RewardGold: 300, RewardXP: 200,
			},
			{
				ID: "wealthy", Name: "Wealthy",
				Counter: catalog.CounterGold, Threshold: 1000,
				RewardXP: 100,
			},
		},
		Recipes: []*catalog.RecipeDefinition{
			{
				ID: "iron_sword", Name: "Iron Sword",
				OutputItemID: "iron_sword", OutputQuantity: 1,
				Materials:  map[string]int32{"iron_ingot": 2, "wolf_pelt": 1},
				Stations:   []string{"forge"},
				Discipline: entities.CraftBlacksmithing, SkillReq: 1,
				DurationSeconds: 30, XP: 10, FailureChance: 0.10,
			},
		},
		Shops: []*catalog.ShopDefinition{
			{
				ID: "general_store", Name: "General Store",
				ItemIDs: []string{
					"health_potion", "mana_potion", "antidote", "haste_potion",
					"iron_sword", "leather_armor", "wooden_shield", "lucky_charm",
					"iron_ingot", "forge",
				},
				Markup: 1.0,
			},
		},
		Archetypes: []*catalog.FactionArchetype{
			{
				ID: "knights", Name: "Knights Order",
				StatBonus: map[string]int32{"attack": 10},
			},
			{
				ID: "merchants", Name: "Merchant Guild",
				GoldMult: 1.2,
			},
		},
	}
}
