package pluginapi

import (
	"plugin"

	objerr "objectir/pkg/errors"
	"objectir/pkg/vm"
)

// Exported symbol names a plugin .so must (or may) provide, kept
// ABI-identical to the original C entrypoints' names.
const (
	symGetInfo  = "ObjectIR_PluginGetInfo"
	symInit     = "ObjectIR_PluginInit"
	symShutdown = "ObjectIR_PluginShutdown"
)

// InitFunc is the required entrypoint signature: given the host surface,
// register classes/native methods and return false (or an error) to
// abort loading.
type InitFunc func(host *Host) (bool, error)

// GetInfoFunc is the optional ABI-handshake entrypoint signature.
type GetInfoFunc func() Info

// ShutdownFunc is the optional teardown entrypoint signature.
type ShutdownFunc func(host *Host) error

// Handle is a loaded plugin, registered with the VM as a vm.Plugin so
// VirtualMachine.Shutdown tears it down in reverse load order.
type Handle struct {
	path     string
	info     Info
	host     *Host
	shutdown ShutdownFunc
}

func (h *Handle) Path() string { return h.path }
func (h *Handle) Info() Info   { return h.info }

// Shutdown runs the plugin's optional shutdown hook, best-effort: a
// plugin that panics or returns an error does not block the rest of the
// VM's teardown (the caller, VirtualMachine.Shutdown, already isolates
// this per plugin). Per §4.H, a panicking shutdown hook is suppressed
// entirely, the same as the original's "exceptions suppressed" rule for
// PluginShutdown.
func (h *Handle) Shutdown() error {
	if h.shutdown == nil {
		return nil
	}
	defer func() { recover() }()
	return h.shutdown(h.host)
}

// callInit runs a plugin's Init entrypoint, converting a panic into
// PluginInitFailed the same way §4.H requires a thrown exception from
// PluginInit to fail loading rather than crash the host.
func callInit(initFn func(*Host) (bool, error), host *Host, path string) (ok bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
			err = objerr.New(objerr.PluginInitFailed, "plugin init panicked: %s: %v", path, r)
		}
	}()
	ok, err = initFn(host)
	if err != nil {
		return false, objerr.Wrap(objerr.PluginInitFailed, err, "plugin init failed: %s", path)
	}
	return ok, nil
}

// Loader opens and registers native plugins against a single VM.
type Loader struct {
	machine *vm.VirtualMachine
}

func NewLoader(machine *vm.VirtualMachine) *Loader {
	return &Loader{machine: machine}
}

// Load opens the plugin at path, performs the optional ABI handshake,
// runs its required Init entrypoint, and registers it with the VM for
// reverse-order shutdown (§4.G).
func (l *Loader) Load(path string) (*Handle, error) {
	lib, err := plugin.Open(path)
	if err != nil {
		return nil, objerr.Wrap(objerr.PluginInitFailed, err, "failed to open plugin: %s", path)
	}

	host := newHost(l.machine)
	handle := &Handle{path: path, host: host}

	if sym, err := lib.Lookup(symGetInfo); err == nil {
		getInfo, ok := sym.(func() Info)
		if !ok {
			return nil, objerr.New(objerr.AbiIncompatible, "%s has the wrong signature in %s", symGetInfo, path)
		}
		info := getInfo()
		if !info.compatible(AbiPacked()) {
			return nil, objerr.New(objerr.AbiIncompatible, "plugin %s declares ABI range [%d,%d], runtime is %d", path, info.AbiMin, info.AbiMax, AbiPacked())
		}
		handle.info = info
	}

	initSym, err := lib.Lookup(symInit)
	if err != nil {
		return nil, objerr.Wrap(objerr.PluginMissingEntry, err, "%s missing %s", path, symInit)
	}
	initFn, ok := initSym.(func(*Host) (bool, error))
	if !ok {
		return nil, objerr.New(objerr.AbiIncompatible, "%s has the wrong signature in %s", symInit, path)
	}
	ok2, err := callInit(initFn, host, path)
	if err != nil {
		return nil, err
	}
	if !ok2 {
		return nil, objerr.New(objerr.PluginInitFailed, "plugin init returned false: %s", path)
	}

	if sym, err := lib.Lookup(symShutdown); err == nil {
		shutdownFn, ok := sym.(func(*Host) error)
		if !ok {
			return nil, objerr.New(objerr.AbiIncompatible, "%s has the wrong signature in %s", symShutdown, path)
		}
		handle.shutdown = shutdownFn
	}

	l.machine.RegisterPlugin(handle)
	return handle, nil
}
