// Package lottery implements the deterministic weighted draw used to resolve chests.
// Все функции чистые: одинаковые входы всегда дают одинаковый результат.
package lottery

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/cyprus7/quest-engine/internal/models"
)

// SeedSeparator joins the identifiers a seed is built from.
const SeedSeparator = ":"

// ErrUnitOutOfRange is returned when the draw value is outside [0,1).
var ErrUnitOutOfRange = errors.New("unit value out of range [0,1)")

// CumulativeTable returns running sums of weights, validating them on the way.
func CumulativeTable(weights []int64) ([]int64, error) {
	cumulative := make([]int64, len(weights))
	var total int64
	for i, w := range weights {
		if w < 0 {
			return nil, fmt.Errorf("%w: weight[%d]=%d", models.ErrInvalidWeight, i, w)
		}
		total += w
		cumulative[i] = total
	}
	if total <= 0 {
		return nil, models.ErrDegeneratePool
	}
	return cumulative, nil
}

// PickIndex выбирает индекс по весам: первый i, для которого u*total < cumulative[i].
// Граничные значения попадают в нижнюю корзину, поэтому u=0 всегда дает первый
// индекс с ненулевым весом.
func PickIndex(weights []int64, u float64) (int, error) {
	if u < 0 || u >= 1 {
		return 0, fmt.Errorf("%w: %v", ErrUnitOutOfRange, u)
	}
	cumulative, err := CumulativeTable(weights)
	if err != nil {
		return 0, err
	}
	total := cumulative[len(cumulative)-1]
	target := u * float64(total)
	i := sort.Search(len(cumulative), func(i int) bool {
		return target < float64(cumulative[i])
	})
	if i == len(cumulative) {
		// u*total может округлиться до total при u очень близком к 1.
		i = lastNonZero(weights)
	}
	return i, nil
}

func lastNonZero(weights []int64) int {
	for i := len(weights) - 1; i >= 0; i-- {
		if weights[i] > 0 {
			return i
		}
	}
	return len(weights) - 1
}

// Seeder derives reproducible draws from a process-wide secret.
type Seeder struct {
	secret []byte
}

// NewSeeder creates a Seeder. The secret must not be empty.
func NewSeeder(secret []byte) (*Seeder, error) {
	if len(secret) == 0 {
		return nil, errors.New("lottery seed secret cannot be empty")
	}
	key := make([]byte, len(secret))
	copy(key, secret)
	return &Seeder{secret: key}, nil
}

// Seed builds the seed bytes from stable identifiers.
func (s *Seeder) Seed(parts ...string) []byte {
	return []byte(strings.Join(parts, SeedSeparator))
}

// UnitInterval maps seed bytes to a value in [0,1): HMAC-SHA256, первые 8 байт
// как big-endian uint64, верхние 53 бита, масштаб 2^-53.
func (s *Seeder) UnitInterval(seed []byte) float64 {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write(seed)
	digest := mac.Sum(nil)
	v := binary.BigEndian.Uint64(digest[:8]) >> 11
	return float64(v) / (1 << 53)
}

// CombinationID returns a stable identifier of an unordered reward set.
func CombinationID(rewards []models.RewardDef) string {
	parts := make([]string, len(rewards))
	for i, r := range rewards {
		parts[i] = canonicalReward(r)
	}
	sort.Strings(parts)
	sum := sha256.Sum256([]byte(strings.Join(parts, ";")))
	return hex.EncodeToString(sum[:16])
}

func canonicalReward(r models.RewardDef) string {
	denom := ""
	if r.Denom != nil {
		denom = strconv.FormatFloat(*r.Denom, 'f', 8, 64)
	}
	return strings.Join([]string{r.Type, r.GameID, denom, strconv.FormatInt(r.Amount, 10)}, "|")
}
