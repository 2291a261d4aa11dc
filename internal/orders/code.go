package orders

import (
	"fmt"
	"math/rand/v2"
	"time"
)

const codeAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// NewCode generates a customer-facing order code, PV-<unix-millis>-<4 random
// uppercase base36 chars>, e.g. PV-1718000000000-AB3D. Uniqueness is
// probabilistic; collisions within one millisecond are accepted as
// negligible and not checked against the store.
func NewCode() string {
	var suffix [4]byte
	for i := range suffix {
		suffix[i] = codeAlphabet[rand.IntN(len(codeAlphabet))]
	}
	return fmt.Sprintf("PV-%d-%s", time.Now().UnixMilli(), suffix[:])
}
