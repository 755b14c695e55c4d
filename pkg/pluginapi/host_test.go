package pluginapi

import (
	"encoding/json"
	"testing"

	"objectir/pkg/vm"
)

func TestHostGetAllClassNamesJson(t *testing.T) {
	machine := vm.New()
	machine.RegisterClass(vm.NewClass("Program"))
	host := newHost(machine)

	out, err := host.GetAllClassNamesJson()
	if err != nil {
		t.Fatalf("GetAllClassNamesJson: %v", err)
	}
	var names []string
	if err := json.Unmarshal([]byte(out), &names); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	found := false
	for _, n := range names {
		if n == "Program" {
			found = true
		}
	}
	if !found {
		t.Errorf("names = %v, want to contain Program", names)
	}
}

// TestReplaceMethodInstructionsJsonBySignature covers scenario S5's patch
// path end to end through the JSON host surface.
func TestReplaceMethodInstructionsJsonBySignature(t *testing.T) {
	machine := vm.New()
	program := vm.NewClass("Program")
	main := vm.NewMethod("Main", vm.PrimitiveRef(vm.PrimVoid), true, false)
	main.SetInstructions([]vm.Instruction{{Op: vm.OpRet}}, nil)
	program.AddMethod(main)
	machine.RegisterClass(program)

	host := newHost(machine)
	instructionsJSON := `[{"opCode":"ldstr","operand":{"type":"string","value":"Patched"}},` +
		`{"opCode":"call","operand":{"method":{"declaringType":"System.Console","name":"WriteLine","parameterTypes":["string"]}}},` +
		`{"opCode":"ret"}]`

	if err := host.ReplaceMethodInstructionsJsonBySignature("Program", "Main", "[]", instructionsJSON); err != nil {
		t.Fatalf("ReplaceMethodInstructionsJsonBySignature: %v", err)
	}
	if len(main.Instructions()) != 3 {
		t.Fatalf("method body was not patched, len = %d", len(main.Instructions()))
	}
}

func TestRuntimeGetPluginAbiVersionPacked(t *testing.T) {
	host := newHost(vm.New())
	if got := host.RuntimeGetPluginAbiVersionPacked(); got != AbiPacked() {
		t.Errorf("got %d, want %d", got, AbiPacked())
	}
}
