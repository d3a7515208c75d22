package checkout

import (
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/speps/go-hashids/v2"
)

// OrderNumberGenerator produces short, human-readable order numbers that do
// not leak sequential database ids.
type OrderNumberGenerator struct {
	h *hashids.HashID
}

func NewOrderNumberGenerator(salt string) (*OrderNumberGenerator, error) {
	data := hashids.NewData()
	data.Salt = salt
	data.MinLength = 10
	data.Alphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ123456789"

	h, err := hashids.NewWithData(data)
	if err != nil {
		return nil, fmt.Errorf("order number generator: %w", err)
	}
	return &OrderNumberGenerator{h: h}, nil
}

func (g *OrderNumberGenerator) Generate(userID int64) string {
	// The nonce keeps numbers unique even when one user checks out twice in
	// the same nanosecond tick on a coarse clock.
	code, err := g.h.EncodeInt64([]int64{
		userID,
		time.Now().UnixMilli(),
		rand.Int63n(1 << 20),
	})
	if err != nil {
		// Only reachable with negative inputs, which we never pass.
		code = fmt.Sprintf("%d%d", userID, time.Now().UnixNano())
	}
	return "MRC-" + strings.ToUpper(code)
}
