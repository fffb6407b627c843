package dialer

import (
	"math/rand"
	"sort"

	"github.com/acme/sales-dialer/internal/domain"
)

// orderQueue sorts queue in place for the given strategy. Priority and time
// ordering are stable so equal keys keep their submission order.
func orderQueue(queue []domain.DialTarget, strategy domain.Strategy, rng *rand.Rand) {
	switch strategy {
	case domain.StrategyPriority:
		sort.SliceStable(queue, func(i, j int) bool {
			return queue[i].Priority() < queue[j].Priority()
		})
	case domain.StrategyTime:
		sort.SliceStable(queue, func(i, j int) bool {
			return queue[i].LastContact < queue[j].LastContact
		})
	case domain.StrategyRandom:
		rng.Shuffle(len(queue), func(i, j int) {
			queue[i], queue[j] = queue[j], queue[i]
		})
	}
}
