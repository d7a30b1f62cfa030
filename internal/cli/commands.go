package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/retroenv/decompverify/internal/cartimage"
	"github.com/retroenv/decompverify/internal/fileprocessor"
	"github.com/retroenv/decompverify/internal/labels"
	"github.com/retroenv/decompverify/internal/scenario"
	"github.com/retroenv/decompverify/internal/verification"
	"github.com/retroenv/decompverify/internal/writer"
	"github.com/retroenv/retrogolib/log"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var (
	errLabelNotFound    = errors.New("label not found")
	errBlocksMismatch   = errors.New("data blocks do not match the cartridge image")
	errScenariosFailed  = errors.New("scenarios failed")
	errByteCountTooHigh = errors.New("byte count out of range")
)

var (
	colorPass    = color.New(color.FgGreen, color.Bold)
	colorFail    = color.New(color.FgRed, color.Bold)
	colorAddress = color.New(color.FgCyan)
	colorWarning = color.New(color.FgYellow)
)

// labelEntry is the YAML representation of a label.
type labelEntry struct {
	Name    string `yaml:"name"`
	Address string `yaml:"address"`
	Bank    int    `yaml:"bank"`
}

func (a *app) labelsCommand() *cobra.Command {
	var asYAML, warnings, routines bool

	cmd := &cobra.Command{
		Use:   "labels",
		Short: "List the label addresses of the assembly source",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			resolver, err := a.resolver()
			if err != nil {
				return err
			}

			symbols := resolver.Labels()
			if routines {
				symbols = resolver.Routines()
			}

			out := cmd.OutOrStdout()
			if asYAML {
				if err := writeLabelsYAML(out, symbols); err != nil {
					return err
				}
			} else {
				for _, sym := range symbols {
					colorAddress.Fprintf(out, "$%04X", sym.Address)
					fmt.Fprintf(out, " %s\n", sym.Name)
				}
			}

			if warnings {
				for _, warning := range resolver.Warnings() {
					colorWarning.Fprintln(cmd.ErrOrStderr(), warning.String())
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asYAML, "yaml", false, "output the labels as YAML")
	cmd.Flags().BoolVar(&warnings, "warnings", false, "print the lines that could not be interpreted")
	cmd.Flags().BoolVar(&routines, "routines", false, "only list labels that are jsr or jmp targets")
	return cmd
}

func writeLabelsYAML(out io.Writer, symbols []labels.Symbol) error {
	entries := make([]labelEntry, 0, len(symbols))
	for _, sym := range symbols {
		entries = append(entries, labelEntry{
			Name:    sym.Name,
			Address: fmt.Sprintf("$%04X", sym.Address),
			Bank:    sym.Bank,
		})
	}

	encoder := yaml.NewEncoder(out)
	encoder.SetIndent(2)
	if err := encoder.Encode(entries); err != nil {
		return fmt.Errorf("encoding labels: %w", err)
	}
	if err := encoder.Close(); err != nil {
		return fmt.Errorf("encoding labels: %w", err)
	}
	return nil
}

func (a *app) lookupCommand() *cobra.Command {
	var count uint

	cmd := &cobra.Command{
		Use:   "lookup <label>...",
		Short: "Print the address of labels and optionally the bytes of the image at it",
		Example: `  decompverify lookup MaxLeftXSpdData --bytes 3 --rom smb.nes --source smbdism.asm
  decompverify lookup GameEngine ProcessWhirlpools`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if count > 0x100 {
				return fmt.Errorf("%w: %d", errByteCountTooHigh, count)
			}

			resolver, err := a.resolver()
			if err != nil {
				return err
			}

			var dump func(address uint16) []byte
			if count > 0 {
				mem, err := a.memory()
				if err != nil {
					return err
				}
				dump = func(address uint16) []byte {
					return mem.Dump(address, count)
				}
			}

			out := cmd.OutOrStdout()
			for _, label := range args {
				address, ok := resolver.Address(label)
				if !ok {
					return fmt.Errorf("%w: %s", errLabelNotFound, label)
				}

				fmt.Fprintf(out, "%s ", label)
				colorAddress.Fprintf(out, "$%04X", address)
				if dump != nil {
					fmt.Fprintf(out, " %s", hexBytes(dump(address)))
				}
				fmt.Fprintln(out)
			}
			return nil
		},
	}

	cmd.Flags().UintVarP(&count, "bytes", "b", 0, "number of image bytes to print at the label address")
	return cmd
}

func hexBytes(data []byte) string {
	parts := make([]string, len(data))
	for i, b := range data {
		parts[i] = fmt.Sprintf("%02X", b)
	}
	return strings.Join(parts, " ")
}

func (a *app) checkCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Check the data blocks of the assembly source against the cartridge image",
		Long: `check resolves the assembly source, loads the program region of the
cartridge image and compares every data directive whose bytes are located in
the loaded region with the memory content. Mismatches indicate wrong label
addresses or a wrong layout.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			resolver, err := a.resolver()
			if err != nil {
				return err
			}
			mem, err := a.memory()
			if err != nil {
				return err
			}

			layout := a.layout()
			region := verification.Region{
				Start: layout.BaseAddress,
				Size:  layout.ProgramSize,
			}
			report := verification.Blocks(a.logger, mem, region, resolver.DataBlocks())

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%d labels, %d data blocks checked, %d skipped, %d passes\n",
				resolver.Len(), report.Checked, report.Skipped, resolver.Passes())

			if len(report.Failed) > 0 {
				colorFail.Fprintf(out, "FAIL")
				fmt.Fprintf(out, " %d data blocks differ\n", len(report.Failed))
				return fmt.Errorf("%w: %d blocks", errBlocksMismatch, len(report.Failed))
			}
			colorPass.Fprintln(out, "OK")
			return nil
		},
	}
}

func (a *app) inspectCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect",
		Short: "Print the iNES header details of the cartridge image",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			image, err := a.image()
			if err != nil {
				return err
			}
			info, err := cartimage.Inspect(image)
			if err != nil {
				return err
			}

			layout := a.layout()
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "PRG:     %d bytes\n", info.PRGSize)
			fmt.Fprintf(out, "CHR:     %d bytes\n", info.CHRSize)
			fmt.Fprintf(out, "Trainer: %d bytes\n", info.TrainerSize)
			fmt.Fprintf(out, "Mapper:  %d\n", info.Mapper)
			fmt.Fprintf(out, "Mirror:  %d\n", info.Mirror)
			fmt.Fprintf(out, "Battery: %d\n", info.Battery)
			fmt.Fprintf(out, "Layout:  %s\n", layout)

			if !info.Fits(layout) {
				colorWarning.Fprintln(out, "The program region is not inside of the PRG data of the image")
			}
			return nil
		},
	}
}

func (a *app) compareCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "compare <expected image> <actual image>",
		Short: "Compare two cartridge images, for example the original and a reassembled one",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			expected, err := cartimage.Read(args[0])
			if err != nil {
				return err
			}
			actual, err := cartimage.Read(args[1])
			if err != nil {
				return err
			}

			if err := verification.CompareImages(a.logger, expected, actual); err != nil {
				return err
			}
			colorPass.Fprintln(cmd.OutOrStdout(), "OK")
			return nil
		},
	}
}

func (a *app) runCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "run <scenario file>...",
		Short: "Run the scenarios of YAML scenario files against the registered routines",
		Long: `run executes scenarios that are described in YAML files:

  name: process whirlpools
  routine: ProcessWhirlpools
  seed:
    AreaType: 0x00
  expect:
    Whirlpool_Flag+1: 0x00

Memory locations are numbers or label expressions of the assembly source.
Every scenario starts with a cleared memory that contains the program region
of the cartridge image, unless load is set to false.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			files, err := fileprocessor.GetFilesToProcess(args)
			if err != nil {
				return err
			}

			var resolver scenario.Resolver
			if a.opts.Source != "" {
				r, err := a.resolver()
				if err != nil {
					return err
				}
				resolver = r
			}

			runnerOptions := []scenario.Option{scenario.WithRegistry(a.registry)}
			if a.opts.ROM != "" {
				image, err := a.image()
				if err != nil {
					return err
				}
				runnerOptions = append(runnerOptions, scenario.WithImage(image, a.layout()))
			}
			runner := scenario.NewRunner(a.logger, runnerOptions...)

			out := cmd.OutOrStdout()
			report := func(file string, result scenario.Result) {
				if result.Passed() {
					colorPass.Fprint(out, "PASS")
					fmt.Fprintf(out, " %s\n", result.Name)
					return
				}
				colorFail.Fprint(out, "FAIL")
				fmt.Fprintf(out, " %s: %v\n", result.Name, result.Err)
				a.logger.Debug("Scenario failed", log.String("file", file), log.Err(result.Err))
			}

			summary, err := fileprocessor.ProcessFiles(cmd.Context(), a.logger, runner, resolver, files, report)
			if err != nil {
				return err
			}

			fmt.Fprintf(out, "%d files, %d passed, %d failed\n", summary.Files, summary.Passed(), summary.Failed())
			if summary.Failed() > 0 {
				return fmt.Errorf("%w: %d of %d", errScenariosFailed, summary.Failed(), len(summary.Results))
			}
			return nil
		},
	}
}

func (a *app) exportCommand() *cobra.Command {
	var (
		format, pkg, output string
		tables              bool
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the label addresses as Go constants or assembler aliases",
		Long: `export writes the resolved label addresses and constants of the assembly
source to a file that generated code can import to refer to ROM data by name.
If a cartridge image is configured, its checksums are added as header.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) (err error) {
			resolver, err := a.resolver()
			if err != nil {
				return err
			}

			options := writer.Options{
				Format:     writer.Format(format),
				Package:    pkg,
				DataTables: tables,
			}
			if a.opts.ROM != "" {
				image, err := a.image()
				if err != nil {
					return err
				}
				info, err := cartimage.Inspect(image)
				if err != nil {
					return err
				}
				options.Checksums = &info.Checksums
			}

			out := cmd.OutOrStdout()
			if output != "" {
				file, createErr := os.Create(output)
				if createErr != nil {
					return fmt.Errorf("creating export file: %w", createErr)
				}
				defer func() {
					if closeErr := file.Close(); closeErr != nil && err == nil {
						err = fmt.Errorf("closing export file: %w", closeErr)
					}
				}()
				out = file
			}

			return writer.New(resolver, out, options).Write()
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", string(writer.FormatGo), "export format (go/asm)")
	cmd.Flags().StringVarP(&pkg, "package", "p", "labels", "package name of the generated Go file")
	cmd.Flags().StringVarP(&output, "output", "o", "", "name of the output file, printed on console if no name given")
	cmd.Flags().BoolVar(&tables, "tables", false, "export data tables as byte slices")
	return cmd
}

func (a *app) versionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "decompverify %s\n", fileprocessor.VersionString(a.build.Version, a.build.Commit))
			if a.build.Date != "" {
				fmt.Fprintf(out, "built %s\n", a.build.Date)
			}
			if names := a.registry.Names(); len(names) > 0 {
				fmt.Fprintf(out, "routines: %s\n", strings.Join(names, ", "))
			}
			return nil
		},
	}
}
