// Command kernel is the trampoline rt0 assembly jumps into after
// setting up a minimal stack: it is the only Go symbol the boot glue
// calls, and it must never return (if it does, rt0 halts the CPU).
// Grounded on gopher-os-gopher-os/boot.go's package-main trampoline and
// on spec.md §2's boot-time control flow.
package main

import "minikern/internal/kernel"

func main() {
	kernel.Kmain(0, 0)
}
