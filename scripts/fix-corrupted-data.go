package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/redis/go-redis/v9"
)

// Minimal view of a stored character, enough to spot bad multipliers.
type characterData struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	XPMult   *float64 `json:"xp_mult"`
	GoldMult *float64 `json:"gold_mult"`
}

// Characters written before the rebirth multipliers existed come back
// with xp_mult/gold_mult of zero, which silences all XP and gold gains.
// This scans every character key, reports corrupted or zero-multiplier
// records, and (with confirmation) resets bad multipliers to 1.0.
func main() {
	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		redisURL = "redis://localhost:6379"
	}

	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		log.Fatal("Failed to parse Redis URL:", err)
	}

	client := redis.NewClient(opt)
	ctx := context.Background()

	if err := client.Ping(ctx).Err(); err != nil {
		log.Fatal("Failed to connect to Redis:", err)
	}

	fmt.Println("Connected to Redis:", redisURL)
	fmt.Println("Scanning for characters with broken multipliers...")

	iter := client.Scan(ctx, 0, "character:*", 0).Iterator()

	var brokenKeys []string
	var corruptedKeys []string
	var checkedCount int

	for iter.Next(ctx) {
		key := iter.Val()
		checkedCount++

		data, err := client.Get(ctx, key).Result()
		if err != nil {
			fmt.Printf("Error reading %s: %v\n", key, err)
			continue
		}

		var char characterData
		if err := json.Unmarshal([]byte(data), &char); err != nil {
			fmt.Printf("✗ Corrupted JSON in %s\n", key)
			corruptedKeys = append(corruptedKeys, key)
			continue
		}

		if badMult(char.XPMult) || badMult(char.GoldMult) {
			fmt.Printf("✗ Zero multipliers on %s (%s)\n", key, char.Name)
			brokenKeys = append(brokenKeys, key)
		}
	}

	if err := iter.Err(); err != nil {
		log.Fatal("Error during scan:", err)
	}

	fmt.Printf("\nChecked %d keys: %d with bad multipliers, %d unparseable\n",
		checkedCount, len(brokenKeys), len(corruptedKeys))

	for _, key := range corruptedKeys {
		fmt.Printf("  unparseable, fix by hand: %s\n", key)
	}

	if len(brokenKeys) == 0 {
		fmt.Println("Nothing to repair!")
		return
	}

	fmt.Print("\nReset bad multipliers to 1.0 on these characters? (yes/no): ")
	var response string
	fmt.Scanln(&response)

	if response != "yes" {
		fmt.Println("Aborted - no changes made")
		return
	}

	for _, key := range brokenKeys {
		if err := repairKey(ctx, client, key); err != nil {
			fmt.Printf("Failed to repair %s: %v\n", key, err)
		} else {
			fmt.Printf("Repaired %s\n", key)
		}
	}
	fmt.Println("\nRepair complete!")
}

func badMult(m *float64) bool {
	return m == nil || *m <= 0
}

// repairKey rewrites the record with sane multipliers, preserving every
// other field as stored. Raw map round-trip so unknown fields survive.
func repairKey(ctx context.Context, client *redis.Client, key string) error {
	data, err := client.Get(ctx, key).Result()
	if err != nil {
		return err
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal([]byte(data), &raw); err != nil {
		return err
	}

	one, _ := json.Marshal(1.0)
	for _, field := range []string{"xp_mult", "gold_mult"} {
		var v float64
		if existing, ok := raw[field]; !ok || json.Unmarshal(existing, &v) != nil || v <= 0 {
			raw[field] = one
		}
	}

	fixed, err := json.Marshal(raw)
	if err != nil {
		return err
	}
	return client.Set(ctx, key, fixed, 0).Err()
}
