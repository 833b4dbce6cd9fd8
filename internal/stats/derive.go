package stats

import (
	"math"

	"github.com/AIEngineerX/BagsWorld-sub012/internal/engine"
)

// Reputation tiers and stat caps.
const (
	TierWidth = 100

	BaseHP      = 100
	HPPerTier   = 15
	MaxHPBonus  = 150
	BaseAttack  = 10
	AtkPerTier  = 3
	MaxAtkBonus = 30
	BaseDefense = 5
	DefPerTier  = 0.8
	MaxDefBonus = 15
	BaseSpeed   = 20 // ticks between attacks at tier 0
	MinSpeed    = 10

	SpriteVariants = 18
	DamageVariance = 0.15
)

// Combat is the stat block derived from a reputation score.
type Combat struct {
	HP      int `json:"hp"`
	MaxHP   int `json:"maxHp"`
	Attack  int `json:"attack"`
	Defense int `json:"defense"`
	Speed   int `json:"speed"`
}

// Tier buckets a reputation score. Negative scores share tier 0.
func Tier(reputation int) int {
	if reputation <= 0 {
		return 0
	}
	return reputation / TierWidth
}

// FromReputation maps a reputation score to combat stats.
func FromReputation(reputation int) Combat {
	tier := Tier(reputation)
	hp := BaseHP + min(tier*HPPerTier, MaxHPBonus)
	return Combat{
		HP:      hp,
		MaxHP:   hp,
		Attack:  BaseAttack + min(tier*AtkPerTier, MaxAtkBonus),
		Defense: BaseDefense + min(int(math.Floor(float64(tier)*DefPerTier)), MaxDefBonus),
		Speed:   max(BaseSpeed-tier, MinSpeed),
	}
}

// SpriteVariant hashes a handle into [0, SpriteVariants). The hash is a 32-bit
// shift-and-subtract over the handle's runes so it is stable across processes.
func SpriteVariant(handle string) int {
	var h int32
	for _, r := range handle {
		h = (h << 5) - h + int32(r)
	}
	v := int(h)
	if v < 0 {
		v = -v
	}
	return v % SpriteVariants
}

// DamageFromStats resolves one hit. Base damage is attack minus defense scaled by a
// ±DamageVariance roll, floored, and never below 1. When defense outweighs attack the
// negative base floors to the minimum, so heavily armoured fighters still take chip damage.
func DamageFromStats(r engine.Source, attack, defense int) int {
	base := float64(attack - defense)
	dmg := int(math.Floor(base * engine.Variance(r, DamageVariance)))
	if dmg < 1 {
		return 1
	}
	return dmg
}
