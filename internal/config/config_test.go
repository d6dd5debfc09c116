package config

import (
	"testing"

	"github.com/candlerush/arcade/internal/domain"
)

// TestGameDefaultsMatchDomainConstants pins the env defaults for the fee and
// position sizing to the single source of truth in the domain package.
func TestGameDefaultsMatchDomainConstants(t *testing.T) {
	t.Setenv("GAME_FEE_RATE", "")
	t.Setenv("GAME_POSITION_RATIO", "")

	cfg, err := load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !cfg.Game.FeeRate.Equal(domain.TradingFeeRate) {
		t.Errorf("FeeRate default = %s, want %s", cfg.Game.FeeRate, domain.TradingFeeRate)
	}
	if !cfg.Game.PositionRatio.Equal(domain.PositionSizeRatio) {
		t.Errorf("PositionRatio default = %s, want %s", cfg.Game.PositionRatio, domain.PositionSizeRatio)
	}
}
