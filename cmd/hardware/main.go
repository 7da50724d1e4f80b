// hardware prints the live product name and BIOS version as seen by every
// vendor info source, so operators can copy the exact strings into
// extra/system_vendor on the node.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/pflag"

	"github.com/darkit/biosverify"
)

var sourceKinds = []biosverify.SourceKind{biosverify.SourceDMIDecode, biosverify.SourceSysfs, biosverify.SourceGHW}

var marshalIndent = json.MarshalIndent

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	flagSet := pflag.NewFlagSet("hardware", pflag.ContinueOnError)
	flagSet.SetOutput(stderr)
	sysfsRoot := flagSet.String("sysfs-root", "/sys/class/dmi/id", "DMI sysfs directory")
	sudo := flagSet.String("sudo", "auto", "run dmidecode through sudo: auto, always or never")
	verbose := flagSet.BoolP("verbose", "v", false, "log probe warnings and values")
	if err := flagSet.Parse(args); err != nil {
		if err == pflag.ErrHelp {
			return 0
		}
		return 2
	}

	level := slog.LevelError
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	mode, err := biosverify.ParseSudoMode(*sudo)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 2
	}
	prober := biosverify.NewProber(logger)
	prober.Sudo = mode

	ctx := context.Background()
	result := make(map[biosverify.SourceKind]biosverify.VendorInfo)
	for _, kind := range sourceKinds {
		source, err := biosverify.NewSource(kind, prober, *sysfsRoot, logger)
		if err != nil {
			fmt.Fprintf(stderr, "error: %v\n", err)
			return 2
		}
		result[kind] = source.VendorInfo(ctx)
	}

	out, err := marshalIndent(result, "", "  ")
	if err != nil {
		fmt.Fprintf(stderr, "error: encode vendor info: %v\n", err)
		return 2
	}
	fmt.Fprintf(stdout, "%s\n", out)
	return 0
}
