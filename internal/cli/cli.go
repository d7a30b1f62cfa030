// Package cli handles command line interface logic
package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/fatih/color"
	"github.com/retroenv/decompverify/internal/cartimage"
	"github.com/retroenv/decompverify/internal/config"
	"github.com/retroenv/decompverify/internal/labels"
	"github.com/retroenv/decompverify/internal/memory"
	"github.com/retroenv/decompverify/internal/options"
	"github.com/retroenv/decompverify/internal/scenario"
	"github.com/retroenv/retrogolib/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	errNoROM    = errors.New("no cartridge image configured, use --rom")
	errNoSource = errors.New("no assembly source configured, use --source")
)

// BuildInfo contains the version information of the binary.
type BuildInfo struct {
	Version string
	Commit  string
	Date    string
}

// app holds the state that is shared by all commands of an invocation.
type app struct {
	build    BuildInfo
	registry *scenario.Registry
	settings *viper.Viper

	configFile string
	opts       options.Program
	logger     *log.Logger
}

// Execute parses the arguments and runs the selected command. The registry
// contains the decompiled routines that scenario files can reference.
func Execute(ctx context.Context, args []string, build BuildInfo, registry *scenario.Registry) error {
	cmd := NewRootCommand(build, registry)
	cmd.SetArgs(args)
	return cmd.ExecuteContext(ctx)
}

// NewRootCommand returns the root command with all sub commands attached.
func NewRootCommand(build BuildInfo, registry *scenario.Registry) *cobra.Command {
	if registry == nil {
		registry = scenario.NewRegistry()
	}
	a := &app{
		build:    build,
		registry: registry,
		settings: config.NewSettings(),
	}

	root := &cobra.Command{
		Use:   "decompverify",
		Short: "Verify decompiled NES routines against the original cartridge",
		Long: `decompverify checks decompiled routines of a NES game against the original
cartridge image and its disassembly.

Label addresses are computed from the assembly source, the program region of
the cartridge image is loaded into a simulated 64 KiB address space and
scenario files describe the input and expected output bytes of a routine.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&a.configFile, "config", "c", "", "config file (default: "+config.DefaultConfigName+" if present)")
	flags.String("rom", "", "cartridge image file")
	flags.String("source", "", "assembly source file of the cartridge image")
	flags.String("header-size", "", "offset of the program data in the image (default 16)")
	flags.String("program-size", "", "number of program bytes to load (default $8000)")
	flags.String("base-address", "", "address to load the program data to (default $8000)")
	flags.Bool("debug", false, "enable debug logging")
	flags.BoolP("quiet", "q", false, "quiet mode")
	flags.Bool("no-color", false, "disable colored output")

	bindings := map[string]string{
		config.KeyROM:         "rom",
		config.KeySource:      "source",
		config.KeyHeaderSize:  "header-size",
		config.KeyProgramSize: "program-size",
		config.KeyBaseAddress: "base-address",
		config.KeyDebug:       "debug",
		config.KeyQuiet:       "quiet",
		config.KeyNoColor:     "no-color",
	}
	for key, name := range bindings {
		// binding only fails for a nil flag
		_ = a.settings.BindPFlag(key, flags.Lookup(name))
	}

	root.AddCommand(
		a.labelsCommand(),
		a.lookupCommand(),
		a.checkCommand(),
		a.inspectCommand(),
		a.compareCommand(),
		a.runCommand(),
		a.exportCommand(),
		a.versionCommand(),
	)
	return root
}

// setup merges the settings sources and creates the logger.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	opts, err := config.LoadSettings(a.settings, a.configFile)
	if err != nil {
		return fmt.Errorf("loading settings: %w", err)
	}
	a.opts = opts
	a.logger = config.CreateLogger(opts.Debug, opts.Quiet)

	if opts.NoColor {
		color.NoColor = true
	}

	if opts.Config != "" {
		a.logger.Debug("Using config file", log.String("file", opts.Config))
	}
	return nil
}

func (a *app) layout() cartimage.Layout {
	return a.opts.CartridgeLayout()
}

// resolver parses the configured assembly source.
func (a *app) resolver() (*labels.Resolver, error) {
	if a.opts.Source == "" {
		return nil, errNoSource
	}
	resolver, err := labels.FromFile(a.opts.Source,
		labels.WithBaseAddress(a.opts.BaseAddress),
		labels.WithLogger(a.logger))
	if err != nil {
		return nil, err
	}
	return resolver, nil
}

// image reads the configured cartridge image.
func (a *app) image() ([]byte, error) {
	if a.opts.ROM == "" {
		return nil, errNoROM
	}
	return cartimage.Read(a.opts.ROM)
}

// memory returns a memory space that contains the program region of the
// configured cartridge image.
func (a *app) memory() (*memory.Space, error) {
	image, err := a.image()
	if err != nil {
		return nil, err
	}

	mem := memory.New()
	if err := cartimage.Load(mem, image, a.layout()); err != nil {
		return nil, err
	}
	return mem, nil
}
