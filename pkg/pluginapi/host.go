package pluginapi

import (
	"encoding/json"

	objerr "objectir/pkg/errors"
	"objectir/pkg/vm"
)

// Host is the surface a loaded plugin is handed at init time: the JSON
// introspection and instruction-patching entrypoints the original C ABI
// exposes as free functions taking an opaque VM pointer (§4.G). There is
// no FreeString: Go's garbage collector owns every string this returns.
type Host struct {
	machine *vm.VirtualMachine
}

func newHost(machine *vm.VirtualMachine) *Host { return &Host{machine: machine} }

// Machine exposes the underlying VM for plugins that want direct access
// beyond the JSON surface (a Go plugin links this package directly, so
// nothing stops it, but the JSON methods below are the supported path).
func (h *Host) Machine() *vm.VirtualMachine { return h.machine }

// GetAllClassNamesJson returns a JSON array of every registered class
// alias, mirroring ObjectIR_PluginGetAllClassNamesJson.
func (h *Host) GetAllClassNamesJson() (string, error) {
	names := h.machine.Registry().AllClassNames()
	out, err := json.Marshal(names)
	if err != nil {
		return "", objerr.Wrap(objerr.Unimplemented, err, "failed to marshal class name list")
	}
	return string(out), nil
}

// GetClassMetadataJson returns a class's reflective metadata as JSON,
// mirroring ObjectIR_PluginGetClassMetadataJson. When includeInstructions
// is set, every IR-bodied method's instructions[] field is populated.
func (h *Host) GetClassMetadataJson(className string, includeInstructions bool) (string, error) {
	return h.machine.ExportClassMetadata(className, includeInstructions)
}

// ReplaceMethodInstructionsJson parses a JSON instruction array and
// installs it as methodName's new body on className, mirroring
// ObjectIR_PluginReplaceMethodInstructionsJson.
func (h *Host) ReplaceMethodInstructionsJson(className, methodName, instructionsJSON string) error {
	instructions, err := vm.DecodeInstructions(json.RawMessage(instructionsJSON))
	if err != nil {
		return err
	}
	return h.machine.ReplaceMethodInstructions(className, methodName, instructions, nil)
}

// ReplaceMethodInstructionsJsonBySignature mirrors
// ObjectIR_PluginReplaceMethodInstructionsJsonBySignature: the
// disambiguating parameter-type list is itself a JSON array of strings.
func (h *Host) ReplaceMethodInstructionsJsonBySignature(className, methodName, parameterTypesJSON, instructionsJSON string) error {
	var parameterTypes []string
	if err := json.Unmarshal([]byte(parameterTypesJSON), &parameterTypes); err != nil {
		return objerr.Wrap(objerr.BadOpcode, err, "malformed parameter type list")
	}
	instructions, err := vm.DecodeInstructions(json.RawMessage(instructionsJSON))
	if err != nil {
		return err
	}
	return h.machine.ReplaceMethodInstructionsBySignature(className, methodName, vm.NormalizeTypeNames(parameterTypes), instructions, nil)
}

// RuntimeGetPluginAbiVersionPacked mirrors
// ObjectIR_RuntimeGetPluginAbiVersionPacked.
func (h *Host) RuntimeGetPluginAbiVersionPacked() uint32 { return AbiPacked() }
