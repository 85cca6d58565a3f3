package models

// RewardDef describes a single reward. Scene on-complete rewards use ID and Amount;
// pool rewards also carry Type, GameID and Denom.
type RewardDef struct {
	ID     string   `json:"id,omitempty" toml:"id"`
	Type   string   `json:"type,omitempty" toml:"type"`
	GameID string   `json:"game_id,omitempty" toml:"game_id"`
	Denom  *float64 `json:"denom,omitempty" toml:"denom"`
	Amount int64    `json:"amount" toml:"amount"`
}

// PoolVariant - один вариант (набор наград) пула с неотрицательным весом.
type PoolVariant struct {
	ID      string      `json:"id" toml:"id"`
	Weight  int64       `json:"weight" toml:"weight"`
	Rewards []RewardDef `json:"rewards" toml:"rewards"`
}

// RewardPool is a weighted set of reward bundles.
type RewardPool struct {
	Title    string        `json:"title" toml:"title"`
	Variants []PoolVariant `json:"variants" toml:"variants"`
}

// WeightOverride replaces the weight of the base variant with the same id.
type WeightOverride struct {
	VariantID string `json:"variant_id" toml:"variant_id"`
	Weight    int64  `json:"weight" toml:"weight"`
}

// ChestDef ссылается на базовый пул и частичный список переопределений весов.
type ChestDef struct {
	PoolID    string           `json:"pool_id" toml:"pool_id"`
	Overrides []WeightOverride `json:"overrides,omitempty" toml:"overrides"`
}

// Weights returns the variant weights in pool order.
func (p RewardPool) Weights() []int64 {
	weights := make([]int64, len(p.Variants))
	for i, v := range p.Variants {
		weights[i] = v.Weight
	}
	return weights
}

// Clone делает глубокую копию пула, чтобы снимок не разделял память с кэшем контента.
func (p RewardPool) Clone() RewardPool {
	out := RewardPool{Title: p.Title, Variants: make([]PoolVariant, len(p.Variants))}
	for i, v := range p.Variants {
		out.Variants[i] = PoolVariant{ID: v.ID, Weight: v.Weight, Rewards: CloneRewards(v.Rewards)}
	}
	return out
}

// MergeOverrides возвращает новый пул: веса совпадающих по id вариантов заменяются,
// несовпадающие переопределения игнорируются. Исходный пул не изменяется.
func (p RewardPool) MergeOverrides(overrides []WeightOverride) RewardPool {
	merged := p.Clone()
	if len(overrides) == 0 {
		return merged
	}
	index := make(map[string]int, len(merged.Variants))
	for i, v := range merged.Variants {
		index[v.ID] = i
	}
	for _, o := range overrides {
		if i, ok := index[o.VariantID]; ok {
			merged.Variants[i].Weight = o.Weight
		}
	}
	return merged
}

// CloneRewards deep-copies a reward list.
func CloneRewards(in []RewardDef) []RewardDef {
	if in == nil {
		return nil
	}
	out := make([]RewardDef, len(in))
	for i, r := range in {
		out[i] = r
		if r.Denom != nil {
			d := *r.Denom
			out[i].Denom = &d
		}
	}
	return out
}

// Reward sources
const (
	RewardSourceEffect        = "effect"
	RewardSourceSceneComplete = "scene_complete"
	RewardSourceChest         = "chest"
)

// RewardApplied - награда, фактически выданная пользователю.
type RewardApplied struct {
	Source string   `json:"source"`
	Type   string   `json:"type,omitempty"`
	ID     string   `json:"id,omitempty"`
	GameID string   `json:"game_id,omitempty"`
	Denom  *float64 `json:"denom,omitempty"`
	Amount int64    `json:"amount"`
}

// AppliedFrom converts a reward definition into an applied reward.
func AppliedFrom(source string, r RewardDef) RewardApplied {
	return RewardApplied{
		Source: source,
		Type:   r.Type,
		ID:     r.ID,
		GameID: r.GameID,
		Denom:  r.Denom,
		Amount: r.Amount,
	}
}
