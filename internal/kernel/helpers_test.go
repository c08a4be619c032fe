package kernel_test

import "github.com/atlas-desktop/econsim-kernel/internal/kernel"

// f returns a pointer to v, for populating the kernel's nullable numeric
// fields from a test's literal values.
func f(v float64) *float64 { return &v }

func i64(v int64) *int64 { return &v }

// usaMacro builds a single-country USA state matching spec §8 scenario 1's
// literal inputs: an inflation gap the Taylor rule should respond to.
func usaMacro() *kernel.GlobalState {
	state := kernel.NewGlobalState("USD")
	_ = state.WithCountry("USA", kernel.CountryState{
		Macro: kernel.Macro{
			Gdp:             f(21000),
			PotentialGdp:    f(21000),
			Inflation:       f(0.08),
			PolicyRate:      f(0.02),
			NeutralRate:     f(0.025),
			InflationTarget: f(0.02),
			OutputGap:       f(0.0),
		},
	})
	return state
}
