// nfreeze launches a deployed bundle: a TOML manifest plus frozen
// bytecode blobs produced by the build tooling.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/tliron/commonlog"

	"github.com/agenthands/nfreeze/pkg/launch"

	_ "github.com/tliron/commonlog/simple"
)

func main() {
	flags := flag.NewFlagSet("nfreeze", flag.ExitOnError)
	bundle := flags.String("bundle", "bundle.toml", "path to the bundle manifest")
	verbosity := flags.Int("v", 0, "log verbosity (0 = quiet)")
	flags.Parse(os.Args[1:])

	commonlog.Configure(*verbosity, nil)

	manifest, err := launch.LoadManifest(*bundle)
	if err != nil {
		fmt.Fprintf(os.Stderr, "nfreeze: %v\n", err)
		os.Exit(1)
	}

	// The frozen program sees the post-flag argument vector, program
	// name first, the way the host shell invoked it.
	args := append([]string{os.Args[0]}, flags.Args()...)
	opts, err := manifest.Options(args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "nfreeze: %v\n", err)
		os.Exit(1)
	}

	os.Exit(launch.Start(opts))
}
