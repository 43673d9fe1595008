package entities

// Well-known class IDs shipped in the class catalog. The set is open:
// classes are data, and the catalog may define more.
const (
	ClassWarrior = "warrior"
	ClassMage    = "mage"
	ClassArcher  = "archer"
	ClassRogue   = "rogue"
)

// Element is a damage element. Physical is the default for unarmed
// and element-less weapons.
type Element string

// Damage elements
const (
	ElementPhysical  Element = "physical"
	ElementFire      Element = "fire"
	ElementIce       Element = "ice"
	ElementLightning Element = "lightning"
	ElementHoly      Element = "holy"
	ElementShadow    Element = "shadow"
	ElementPoison    Element = "poison"
)

// StatusType identifies a combat status effect.
type StatusType string

// Status effect types
const (
	StatusBurn     StatusType = "burn"
	StatusPoison   StatusType = "poison"
	StatusBleed    StatusType = "bleed"
	StatusRegen    StatusType = "regen"
	StatusStun     StatusType = "stun"
	StatusFrost    StatusType = "frost"
	StatusHaste    StatusType = "haste"
	StatusSlow     StatusType = "slow"
	StatusShield   StatusType = "shield"
	StatusBlessing StatusType = "blessing"
	StatusWeakness StatusType = "weakness"
)

// ItemType classifies catalog items.
type ItemType string

// Item types
const (
	ItemTypeWeapon     ItemType = "weapon"
	ItemTypeArmor      ItemType = "armor"
	ItemTypeShield     ItemType = "shield"
	ItemTypeAccessory  ItemType = "accessory"
	ItemTypeConsumable ItemType = "consumable"
	ItemTypeMaterial   ItemType = "material"
)

// Stackable reports whether items of this type stack in an inventory.
// Equipment never stacks.
func (t ItemType) Stackable() bool {
	return t == ItemTypeConsumable || t == ItemTypeMaterial
}

// Rarity grades catalog items.
type Rarity string

// Item rarities
const (
	RarityCommon    Rarity = "common"
	RarityUncommon  Rarity = "uncommon"
	RarityRare      Rarity = "rare"
	RarityEpic      Rarity = "epic"
	RarityLegendary Rarity = "legendary"
)

// EquipSlot is a character equipment slot.
type EquipSlot string

// Equipment slots
const (
	SlotWeapon    EquipSlot = "weapon"
	SlotArmor     EquipSlot = "armor"
	SlotShield    EquipSlot = "shield"
	SlotAccessory EquipSlot = "accessory"
)

// SlotForItemType maps an equippable item type to its slot.
func SlotForItemType(t ItemType) (EquipSlot, bool) {
	switch t {
	case ItemTypeWeapon:
		return SlotWeapon, true
	case ItemTypeArmor:
		return SlotArmor, true
	case ItemTypeShield:
		return SlotShield, true
	case ItemTypeAccessory:
		return SlotAccessory, true
	default:
		return "", false
	}
}

// BattleKind distinguishes how a battle was started.
type BattleKind string

// Battle kinds
const (
	BattleKindHunt    BattleKind = "hunt"
	BattleKindDuel    BattleKind = "duel"
	BattleKindDungeon BattleKind = "dungeon"
)

// BattleState is the lifecycle state of a battle session.
type BattleState string

// Battle states
const (
	BattleStateActive BattleState = "active"
	BattleStateWon    BattleState = "won"
	BattleStateLost   BattleState = "lost"
	BattleStateFled   BattleState = "fled"
)

// Terminal reports whether the battle has resolved.
func (s BattleState) Terminal() bool {
	return s == BattleStateWon || s == BattleStateLost || s == BattleStateFled
}

// ActionType is a combat action a combatant can take on its turn.
type ActionType string

// Combat actions
const (
	ActionAttack   ActionType = "attack"
	ActionSkill    ActionType = "skill"
	ActionDefend   ActionType = "defend"
	ActionItem     ActionType = "item"
	ActionFlee     ActionType = "flee"
	ActionUltimate ActionType = "ultimate"
)

// CombatantKind distinguishes player-driven combatants from monsters.
type CombatantKind string

// Combatant kinds
const (
	CombatantPlayer  CombatantKind = "player"
	CombatantMonster CombatantKind = "monster"
)

// MonsterStyle is the fighting style rolled when a monster spawns.
type MonsterStyle string

// Monster fighting styles
const (
	StyleAggressive MonsterStyle = "aggressive"
	StyleDefensive  MonsterStyle = "defensive"
	StyleDesperate  MonsterStyle = "desperate"
)

// DungeonState is the lifecycle state of a dungeon run.
type DungeonState string

// Dungeon run states
const (
	DungeonStateExploring DungeonState = "exploring"
	DungeonStateInBattle  DungeonState = "in_battle"
)

// CraftJobState is the lifecycle state of a crafting job.
type CraftJobState string

// Craft job states
const (
	CraftJobActive    CraftJobState = "active"
	CraftJobSucceeded CraftJobState = "succeeded"
	CraftJobFailed    CraftJobState = "failed"
	CraftJobCancelled CraftJobState = "cancelled"
)

// Terminal reports whether the job has resolved.
func (s CraftJobState) Terminal() bool {
	return s == CraftJobSucceeded || s == CraftJobFailed || s == CraftJobCancelled
}

// FactionRole is a member's role within a faction.
type FactionRole string

// Faction roles
const (
	RoleOwner   FactionRole = "owner"
	RoleOfficer FactionRole = "officer"
	RoleMember  FactionRole = "member"
)

// Well-known crafting disciplines. Recipes name their discipline, so
// the set is open like classes.
const (
	CraftBlacksmithing = "blacksmithing"
	CraftAlchemy       = "alchemy"
	CraftJewelcrafting = "jewelcrafting"
)

// StatName identifies a base stat addressable by name. HP and SP name
// the max pools; cultivation trains hp, sp, attack, defense, speed,
// and luck.
type StatName string

// Stat names
const (
	StatHP           StatName = "hp"
	StatSP           StatName = "sp"
	StatAttack       StatName = "attack"
	StatDefense      StatName = "defense"
	StatSpeed        StatName = "speed"
	StatIntelligence StatName = "intelligence"
	StatLuck         StatName = "luck"
	StatAgility      StatName = "agility"
)
