package order

import (
	"fmt"
	"math/rand/v2"
	"time"
)

// orderNumberAttempts bounds retries on order number collisions.
const orderNumberAttempts = 10

// orderNumber formats ORD-<YYYYMMDD>-<suffix>.
func orderNumber(now time.Time, suffix int) string {
	return fmt.Sprintf("ORD-%s-%04d", now.Format("20060102"), suffix)
}

func randomSuffix() int {
	return 1000 + rand.IntN(9000)
}
