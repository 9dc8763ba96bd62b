package orders

import (
	"crypto/rand"
	"math/big"
	"strconv"
	"strings"
	"time"
)

const base36Alphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// NumberGenerator returns a new human-facing order number.
type NumberGenerator func(now time.Time) string

// NewOrderNumber formats ORD-<base36 millis>-<4 random base36 chars>.
func NewOrderNumber(now time.Time) string {
	millis := strings.ToUpper(strconv.FormatInt(now.UnixMilli(), 36))
	return "ORD-" + millis + "-" + randomBase36(4)
}

func randomBase36(n int) string {
	var b strings.Builder
	b.Grow(n)
	max := big.NewInt(int64(len(base36Alphabet)))
	for i := 0; i < n; i++ {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			b.WriteByte(base36Alphabet[time.Now().UnixNano()%int64(len(base36Alphabet))])
			continue
		}
		b.WriteByte(base36Alphabet[idx.Int64()])
	}
	return b.String()
}
