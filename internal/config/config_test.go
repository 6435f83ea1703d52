package config_test

import (
	"testing"

	"github.com/veilgate/ludens/internal/config"
	"github.com/veilgate/ludens/internal/mcp"
)

func TestLogLevelIsValid(t *testing.T) {
	t.Parallel()

	valid := []config.LogLevel{config.LogDebug, config.LogInfo, config.LogWarn, config.LogError}
	for _, l := range valid {
		if !l.IsValid() {
			t.Errorf("%q should be valid", l)
		}
	}
	invalid := []config.LogLevel{"", "trace", "INFO", "verbose"}
	for _, l := range invalid {
		if l.IsValid() {
			t.Errorf("%q should be invalid", l)
		}
	}
}

func TestStoreBackendIsValid(t *testing.T) {
	t.Parallel()

	if !config.StoreMemory.IsValid() || !config.StoreSQLite.IsValid() {
		t.Error("built-in backends should be valid")
	}
	for _, b := range []config.StoreBackend{"", "postgres", "redis", "SQLITE"} {
		if b.IsValid() {
			t.Errorf("%q should be invalid", b)
		}
	}
}

func TestBudgetTierIsValid(t *testing.T) {
	t.Parallel()

	valid := []config.BudgetTier{config.BudgetTierFast, config.BudgetTierStandard, config.BudgetTierDeep}
	for _, b := range valid {
		if !b.IsValid() {
			t.Errorf("%q should be valid", b)
		}
	}
	for _, b := range []config.BudgetTier{"", "FAST", "slow"} {
		if b.IsValid() {
			t.Errorf("%q should be invalid", b)
		}
	}
}

func TestBudgetTierMapping(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   config.BudgetTier
		want mcp.BudgetTier
	}{
		{config.BudgetTierFast, mcp.BudgetFast},
		{config.BudgetTierStandard, mcp.BudgetStandard},
		{config.BudgetTierDeep, mcp.BudgetDeep},
		{"", mcp.BudgetStandard},
		{"bogus", mcp.BudgetStandard},
	}
	for _, tt := range tests {
		if got := tt.in.Tier(); got != tt.want {
			t.Errorf("Tier(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestBehaviorKindIsValid(t *testing.T) {
	t.Parallel()

	valid := []config.BehaviorKind{config.BehaviorWander, config.BehaviorFollow, config.BehaviorLua}
	for _, k := range valid {
		if !k.IsValid() {
			t.Errorf("%q should be valid", k)
		}
	}
	for _, k := range []config.BehaviorKind{"", "idle", "Wander"} {
		if k.IsValid() {
			t.Errorf("%q should be invalid", k)
		}
	}
}
