package main

import (
	"os"
	"strconv"
	"time"

	"github.com/mmdatafocus/reconcile_backend/workflow"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// newOutboxDispatcherFromEnv applies optional overrides:
// - OUTBOX_DISPATCH_MAX_ATTEMPTS (default 20)
// - OUTBOX_DISPATCH_BASE_BACKOFF_SECONDS (default 5)
// - OUTBOX_DISPATCH_BATCH_SIZE (default 50)
// - OUTBOX_DISPATCH_POLL_MS (default 500)
func newOutboxDispatcherFromEnv(db *gorm.DB, logger *logrus.Logger, publisher workflow.Publisher) *workflow.OutboxDispatcher {
	d := workflow.NewOutboxDispatcher(db, logger, publisher)
	if n, ok := positiveIntFromEnv("OUTBOX_DISPATCH_MAX_ATTEMPTS"); ok {
		d.MaxAttempts = n
	}
	if n, ok := positiveIntFromEnv("OUTBOX_DISPATCH_BASE_BACKOFF_SECONDS"); ok {
		d.InitialBackoff = time.Duration(n) * time.Second
	}
	if n, ok := positiveIntFromEnv("OUTBOX_DISPATCH_BATCH_SIZE"); ok {
		d.BatchSize = n
	}
	if n, ok := positiveIntFromEnv("OUTBOX_DISPATCH_POLL_MS"); ok {
		d.PollInterval = time.Duration(n) * time.Millisecond
	}
	return d
}

func positiveIntFromEnv(key string) (int, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}
