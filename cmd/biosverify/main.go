// biosverify runs the verify_bios_version cleaning step against a node
// record on the local machine.
//
//	biosverify --node node.json
//	biosverify --list-steps
//	biosverify --support
//
// Exit status is 0 when the step passes, 1 when cleaning fails (the failure
// message is written to stderr verbatim) and 2 on usage or configuration
// errors.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/pflag"

	"github.com/darkit/biosverify"
	"github.com/darkit/biosverify/config"
)

var version = "dev"

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	var (
		configPath string
		nodePath   string
		source     string
		listSteps  bool
		support    bool
		asJSON     bool
		showVer    bool
	)

	flagSet := pflag.NewFlagSet("biosverify", pflag.ContinueOnError)
	flagSet.SetOutput(stderr)
	flagSet.StringVar(&configPath, "config", "", "config file (default: search ./biosverify.yaml, /etc/biosverify)")
	flagSet.StringVar(&nodePath, "node", "", "node record file (JSON or YAML) carrying extra/system_vendor")
	flagSet.StringVar(&source, "source", "", "vendor info source: dmidecode, sysfs or ghw (overrides config)")
	flagSet.BoolVar(&listSteps, "list-steps", false, "print the clean steps this manager provides and exit")
	flagSet.BoolVar(&support, "support", false, "print the hardware support level and exit")
	flagSet.BoolVar(&asJSON, "json", false, "print the verification report as JSON")
	flagSet.BoolVar(&showVer, "version", false, "print version and exit")

	if err := flagSet.Parse(args); err != nil {
		if err == pflag.ErrHelp {
			return 0
		}
		return 2
	}

	if showVer {
		fmt.Fprintf(stdout, "biosverify %s (%s v%s)\n", version, biosverify.ManagerName, biosverify.ManagerVersion)
		return 0
	}

	cfg, err := config.NewLoader().Load(configPath)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 2
	}
	if source != "" {
		cfg.Source = source
		if err := cfg.Validate(); err != nil {
			fmt.Fprintf(stderr, "error: %v\n", err)
			return 2
		}
	}

	logger, closer, err := config.NewLogger(cfg.Logging, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 2
	}
	defer closer.Close()

	manager, err := cfg.NewManager(nil, logger)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 2
	}

	if support {
		fmt.Fprintln(stdout, manager.EvaluateHardwareSupport())
		return 0
	}

	if listSteps {
		return writeJSON(stdout, stderr, manager.CleanSteps(nil))
	}

	if nodePath == "" {
		fmt.Fprintln(stderr, "error: --node is required")
		return 2
	}
	node, err := config.LoadNode(nodePath)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 2
	}

	report, verifyErr := manager.Verifier.Verify(context.Background(), node)
	if asJSON {
		if code := writeJSON(stdout, stderr, report); code != 0 {
			return code
		}
	}
	if verifyErr != nil {
		fmt.Fprintln(stderr, verifyErr)
		return 1
	}
	if !asJSON {
		fmt.Fprintf(stdout, "%s: %s\n", biosverify.StepVerifyBIOSVersion, report.Outcome)
	}
	return 0
}

func writeJSON(stdout, stderr io.Writer, v interface{}) int {
	encoder := json.NewEncoder(stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(v); err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 2
	}
	return 0
}
