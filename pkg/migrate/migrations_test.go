package migrate

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestMigrationDirIsValid(t *testing.T) {
	if err := ValidateDir("migrations"); err != nil {
		t.Fatalf("ValidateDir: %v", err)
	}
}

func TestSubscriptionsMigrationContainsConstraints(t *testing.T) {
	content := readMigration(t, "*_create_subscriptions.sql")

	checks := []string{
		"CREATE TYPE subscription_status AS ENUM",
		"'completed'",
		"CREATE TABLE IF NOT EXISTS subscriptions",
		"CHECK (interval_months > 0)",
		"CHECK (completed_cycles >= 0)",
		"idx_subscriptions_next_charge_at",
		"DROP TABLE IF EXISTS subscriptions",
	}
	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestPaymentTokensMigrationEnforcesSingleDefault(t *testing.T) {
	content := readMigration(t, "*_create_payment_tokens.sql")

	checks := []string{
		"ux_payment_tokens_token",
		"ux_payment_tokens_default_per_owner",
		"WHERE is_default AND archived_at IS NULL",
	}
	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestTransactionsMigrationDeduplicatesPaymentID(t *testing.T) {
	content := readMigration(t, "*_create_transactions.sql")

	if !strings.Contains(content, "CREATE UNIQUE INDEX ux_transactions_payment_id") {
		t.Error("payment_id unique index missing")
	}
	if !strings.Contains(content, "REFERENCES subscriptions(id)") {
		t.Error("subscription foreign key missing")
	}
}

func readMigration(t *testing.T, pattern string) string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join("migrations", pattern))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no migration matching %q", pattern)
	}
	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	return string(data)
}
