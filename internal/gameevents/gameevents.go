// Package gameevents routes domain notifications between orchestrators
// over the rpg-toolkit event bus. Combat, dungeon, and economy publish
// here; the achievement tracker subscribes.
package gameevents

import (
	"context"

	"github.com/KirkDiggler/rpg-toolkit/core"
	"github.com/KirkDiggler/rpg-toolkit/events"
)

// Topics published by the game core.
const (
	TopicBattleStarted    = "combat.battle_started"
	TopicCombatVictory    = "combat.victory"
	TopicCombatDefeat     = "combat.defeat"
	TopicCombatFled       = "combat.fled"
	TopicDungeonCompleted = "dungeon.completed"
	TopicCraftCompleted   = "crafting.completed"
	TopicGoldChanged      = "economy.gold_changed"
	TopicLevelUp          = "character.level_up"
)

// payloadKey is the event-context slot the payload rides in.
const payloadKey = "payload"

// Payload carries the facts subscribers need without reloading state.
// Fields irrelevant to a topic stay zero.
type Payload struct {
	CharacterID  string
	BattleID     string
	DungeonID    string
	DungeonRunID string
	CraftJobID   string
	MonsterID    string
	Boss         bool
	Gold         int64
	XP           int64
	Level        int32
}

// entityRef satisfies core.Entity for event sourcing without holding
// the full record.
type entityRef struct {
	id  string
	typ string
}

func (e entityRef) GetID() string   { return e.id }
func (e entityRef) GetType() string { return e.typ }

// CharacterRef returns an event source entity for a character ID.
func CharacterRef(id string) core.Entity {
	return entityRef{id: id, typ: "character"}
}

// Publish emits topic on bus, sourced from the payload's character.
// A nil bus drops the event so callers never have to branch.
func Publish(ctx context.Context, bus events.EventBus, topic string, payload Payload) error {
	if bus == nil {
		return nil
	}
	evt := events.NewGameEvent(topic, CharacterRef(payload.CharacterID), nil)
	evt.Context().Set(payloadKey, payload)
	return bus.Publish(ctx, evt)
}

// PayloadFrom extracts the payload Publish attached to an event.
func PayloadFrom(evt events.Event) (Payload, bool) {
	v, ok := evt.Context().Get(payloadKey)
	if !ok {
		return Payload{}, false
	}
	p, ok := v.(Payload)
	return p, ok
}

// Subscribe attaches fn to topic and returns the subscription ID.
// Events without a payload are ignored rather than failed, since
// other publishers may share the bus.
func Subscribe(bus events.EventBus, topic string, fn func(context.Context, Payload) error) string {
	return bus.SubscribeFunc(topic, 0, func(ctx context.Context, evt events.Event) error {
		p, ok := PayloadFrom(evt)
		if !ok {
			return nil
		}
		return fn(ctx, p)
	})
}
