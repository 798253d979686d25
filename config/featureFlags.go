package config

import (
	"os"
	"strings"
	"time"
)

// StrictAllocation rejects allocations that would push an obligation's applied
// amount above its final amount. Off by default: overpayment is classified as Paid.
//
// Set via env:
// - STRICT_ALLOCATION=true
func StrictAllocation() bool {
	return boolFromEnv("STRICT_ALLOCATION")
}

// LedgerLockTTL is how long a per-obligation Redis lock is held before it
// expires on its own (LEDGER_LOCK_TTL_SECONDS, default 30).
func LedgerLockTTL() time.Duration {
	return time.Duration(intFromEnv("LEDGER_LOCK_TTL_SECONDS", 30)) * time.Second
}

// LedgerLockWait bounds how long a caller waits for a contended lock before
// the call fails with a storage conflict (LEDGER_LOCK_WAIT_MS, default 2000).
func LedgerLockWait() time.Duration {
	return time.Duration(intFromEnv("LEDGER_LOCK_WAIT_MS", 2000)) * time.Millisecond
}

// ProductCostCacheTTL controls the Redis read cache of saved product costs
// (PRODUCT_COST_CACHE_SECONDS, default 3600; 0 disables expiry).
func ProductCostCacheTTL() time.Duration {
	return time.Duration(intFromEnv("PRODUCT_COST_CACHE_SECONDS", 3600)) * time.Second
}

func boolFromEnv(key string) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	return v == "1" || v == "true" || v == "yes" || v == "y"
}
