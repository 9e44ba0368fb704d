//go:build integration

package testutil

import (
	"fmt"
	"os"
	"strings"
	"testing"
	"time"
)

const defaultBrokers = "localhost:9092"

// TestBrokers returns the Redpanda seed brokers used by the relay tests.
// Override with INTEGRATION_REDPANDA_BROKERS (comma separated).
func TestBrokers() []string {
	raw := os.Getenv("INTEGRATION_REDPANDA_BROKERS")
	if raw == "" {
		raw = defaultBrokers
	}

	var brokers []string
	for _, b := range strings.Split(raw, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}

// TestTopicName returns a fresh relay topic per test, so documents
// published by one test never show up in another's consumer.
func TestTopicName(t *testing.T) string {
	t.Helper()
	name := strings.NewReplacer("/", "-", " ", "-", "_", "-").Replace(strings.ToLower(t.Name()))
	return fmt.Sprintf("pdv-docs-%s-%d", name, time.Now().UnixNano())
}
