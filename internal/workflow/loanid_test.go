package workflow

import (
	"regexp"
	"testing"
	"time"
)

var loanIDRe = regexp.MustCompile(`^CL-\d{8}-\d{4}$`)

func TestGenerateLoanIDFormat(t *testing.T) {
	now := time.Date(2024, 6, 15, 10, 30, 0, 0, time.UTC)

	for i := 0; i < 100; i++ {
		id := GenerateLoanID(now)
		if !loanIDRe.MatchString(id) {
			t.Fatalf("loan id %q does not match CL-YYYYMMDD-NNNN", id)
		}
		if id[3:11] != "20240615" {
			t.Fatalf("loan id %q does not carry the creation date", id)
		}
	}
}

func TestGenerateLoanIDSuffixVaries(t *testing.T) {
	now := time.Now()
	seen := map[string]bool{}
	for i := 0; i < 200; i++ {
		seen[GenerateLoanID(now)] = true
	}
	// 200 draws from 10000 values collide sometimes, but never all of them
	if len(seen) < 2 {
		t.Fatalf("suffix never varied across 200 generations")
	}
}
