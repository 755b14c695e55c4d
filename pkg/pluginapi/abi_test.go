package pluginapi

import "testing"

// TestAbiRangeAcceptance covers scenario S5's ABI bounds check: a plugin
// declaring [1.0, 1.65535] is accepted against this runtime's 1.0 ABI, a
// plugin declaring [2.0, 2.0] is rejected.
func TestAbiRangeAcceptance(t *testing.T) {
	runtime := AbiPacked()

	accepted := Info{AbiMin: (1 << 16) | 0, AbiMax: (1 << 16) | 65535}
	if !accepted.compatible(runtime) {
		t.Errorf("expected [1.0,1.65535] to accept runtime ABI %d", runtime)
	}

	rejected := Info{AbiMin: (2 << 16) | 0, AbiMax: (2 << 16) | 0}
	if rejected.compatible(runtime) {
		t.Errorf("expected [2.0,2.0] to reject runtime ABI %d", runtime)
	}
}

func TestAbiZeroBoundsMeansDontCare(t *testing.T) {
	if !(Info{}).compatible(AbiPacked()) {
		t.Error("a zero-valued Info (both bounds unset) should be treated as compatible")
	}
}

// TestAbiSingleSidedBoundIsCheckedIndependently covers a plugin that
// declares only one bound: the unset bound must not force rejection.
func TestAbiSingleSidedBoundIsCheckedIndependently(t *testing.T) {
	runtime := AbiPacked()

	floorOnly := Info{AbiMin: runtime}
	if !floorOnly.compatible(runtime) {
		t.Errorf("expected a floor-only Info at exactly the runtime ABI to be compatible")
	}
	if (Info{AbiMin: runtime + 1}).compatible(runtime) {
		t.Error("expected a floor above the runtime ABI to reject")
	}

	ceilingOnly := Info{AbiMax: runtime}
	if !ceilingOnly.compatible(runtime) {
		t.Errorf("expected a ceiling-only Info at exactly the runtime ABI to be compatible")
	}
	if (Info{AbiMax: runtime - 1}).compatible(runtime) {
		t.Error("expected a ceiling below the runtime ABI to reject")
	}
}
