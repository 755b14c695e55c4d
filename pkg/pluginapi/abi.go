// Package pluginapi loads native-plugin method bodies at runtime. The
// original runtime's C ABI (struct-size-prelude versioning, thread-local
// error strings, manually-freed JSON buffers) is translated here to the
// idiomatic Go equivalent: plugins are themselves Go plugins opened with
// the standard library's plugin package, and the handshake/init/shutdown
// entrypoints are ordinary exported Go functions instead of C symbols.
package pluginapi

// AbiMajor/AbiMinor/AbiPacked mirror the original's
// OBJECTIR_PLUGIN_ABI_MAJOR/MINOR/VERSION_PACKED constants: a plugin's
// declared [min,max] range is checked against this packed value during
// the optional GetInfo handshake.
const (
	AbiMajor uint32 = 1
	AbiMinor uint32 = 0
)

// AbiPacked returns (major<<16)|(minor&0xFFFF), this runtime's plugin ABI
// version.
func AbiPacked() uint32 {
	return (AbiMajor << 16) | (AbiMinor & 0xFFFF)
}

// Info is what a plugin's optional GetInfo hook returns: the ABI range it
// supports and a name/version for diagnostics. Each bound is checked
// independently and only when non-zero, so a plugin may declare just a
// floor, just a ceiling, both, or neither ("don't care").
type Info struct {
	AbiMin  uint32
	AbiMax  uint32
	Name    string
	Version string
}

func (i Info) compatible(runtime uint32) bool {
	if i.AbiMin != 0 && runtime < i.AbiMin {
		return false
	}
	if i.AbiMax != 0 && runtime > i.AbiMax {
		return false
	}
	return true
}
