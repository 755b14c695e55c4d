// Command objectir is a minimal demo driver for the engine: it builds an
// in-process module with vm.Builder (the textual/JSON/FOB module loaders
// are out of scope for this engine; see spec §1) and invokes an entry
// point on it, printing the result the way the original standalone
// executable does.
package main

import (
	"flag"
	"fmt"
	"os"

	objerr "objectir/pkg/errors"
	"objectir/pkg/vm"
)

func main() {
	entryFlag := flag.String("entry", "Program.Main", "entry point as Class.Method")
	flag.Parse()

	className, methodName, err := splitEntryPoint(*entryFlag)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(64)
	}

	machine, err := buildDemoModule()
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to build module:", err)
		os.Exit(70)
	}
	defer machine.Shutdown()

	class, err := machine.Registry().Get(className)
	if err != nil {
		fmt.Fprintf(os.Stderr, "entry class %q not found: %v\n", className, err)
		os.Exit(1)
	}

	args := make([]vm.Value, 0, flag.NArg())
	for _, a := range flag.Args() {
		args = append(args, vm.String(a))
	}

	result, err := machine.InvokeStatic(class, vm.CallTarget{DeclaringType: className, Name: methodName, ParameterTypes: parameterTypesFor(args)}, args)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
	if !result.IsNull() {
		fmt.Println("Result:", result.ToDisplayString())
	}
}

func splitEntryPoint(entry string) (class, method string, err error) {
	for i := len(entry) - 1; i >= 0; i-- {
		if entry[i] == '.' {
			return entry[:i], entry[i+1:], nil
		}
	}
	return "", "", objerr.New(objerr.MethodNotFound, "invalid entry point %q, expected Class.Method", entry)
}

// parameterTypesFor derives a permissive signature request from argv
// values: every command-line argument arrives as a string, so overload
// resolution only needs arity plus "string" in each slot.
func parameterTypesFor(args []vm.Value) []string {
	if len(args) == 0 {
		return nil
	}
	types := make([]string, len(args))
	for i := range types {
		types[i] = "string"
	}
	return types
}

// buildDemoModule stands up a tiny Program.Main that writes a greeting,
// demonstrating the builder, the class registry, and Console.WriteLine
// dispatch without requiring an external module file.
func buildDemoModule() (*vm.VirtualMachine, error) {
	builder := vm.NewBuilder()

	builder.
		Class("Program").
		Method("Main", vm.PrimitiveRef(vm.PrimVoid), true).
		NativeImpl(func(this *vm.Object, args []vm.Value, machine *vm.VirtualMachine) (vm.Value, error) {
			machine.WriteOutput("Hello from ObjectIR\n")
			return vm.Null, nil
		}).
		EndMethod().
		EndClass()

	return builder.Build()
}
