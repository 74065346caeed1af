package workflow

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"
)

// GenerateLoanID builds a human-readable loan id: CL-YYYYMMDD-NNNN.
// The four-digit suffix is drawn from crypto/rand; it is still low entropy,
// so callers must rely on the unique index on loan_id and retry on conflict.
func GenerateLoanID(now time.Time) string {
	n, err := rand.Int(rand.Reader, big.NewInt(10000))
	if err != nil {
		// crypto/rand only fails when the OS entropy source is broken;
		// fall back to the wall clock like the legacy generator did.
		return fmt.Sprintf("CL-%s-%04d", now.Format("20060102"), now.UnixMilli()%10000)
	}
	return fmt.Sprintf("CL-%s-%04d", now.Format("20060102"), n.Int64())
}
