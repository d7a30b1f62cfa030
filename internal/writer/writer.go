// Package writer implements the export of resolved labels, constants and
// data tables, so that generated code can refer to them by name.
package writer

import (
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/retroenv/decompverify/internal/cartimage"
	"github.com/retroenv/decompverify/internal/labels"
)

const dataBytesPerLine = 16

// Format of the exported file.
type Format string

// Supported export formats.
const (
	FormatGo  Format = "go"
	FormatAsm Format = "asm"
)

var errUnsupportedFormat = errors.New("unsupported export format")

type lineWriterFunc func(line string, byteCount int) error

// Source provides the resolved symbols of an assembly source.
type Source interface {
	Labels() []labels.Symbol
	Constants() map[string]uint16
	DataBlocks() []labels.DataBlock
}

// Options of the writer.
type Options struct {
	Format     Format
	Package    string               // package name of generated Go code
	DataTables bool                 // export complete data blocks as byte tables
	Checksums  *cartimage.Checksums // optional checksums of the verified image
}

// Writer writes the symbols of a source.
type Writer struct {
	source  Source
	options Options
	writer  io.Writer
}

// New creates a new writer.
func New(source Source, writer io.Writer, options Options) *Writer {
	if options.Format == "" {
		options.Format = FormatGo
	}
	if options.Package == "" {
		options.Package = "labels"
	}
	return &Writer{
		source:  source,
		options: options,
		writer:  writer,
	}
}

// Write outputs the complete export file.
func (w Writer) Write() error {
	switch w.options.Format {
	case FormatGo:
		return w.writeGo()
	case FormatAsm:
		return w.writeAsm()
	default:
		return fmt.Errorf("%w '%s'", errUnsupportedFormat, w.options.Format)
	}
}

func (w Writer) writeGo() error {
	if _, err := fmt.Fprintln(w.writer, "// Code generated by decompverify. DO NOT EDIT."); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	if err := w.WriteCommentHeader("//"); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w.writer, "\npackage %s\n", w.options.Package); err != nil {
		return fmt.Errorf("writing package: %w", err)
	}

	if err := w.writeGoConstants("Label addresses.", goAliases(labelAliases(w.source.Labels()))); err != nil {
		return err
	}
	if err := w.writeGoConstants("Constant definitions.", goAliases(w.source.Constants())); err != nil {
		return err
	}

	if !w.options.DataTables {
		return nil
	}
	for _, block := range w.dataTables() {
		if err := w.writeGoTable(block); err != nil {
			return err
		}
	}
	return nil
}

func (w Writer) writeGoConstants(comment string, aliases map[string]uint16) error {
	if len(aliases) == 0 {
		return nil
	}

	if _, err := fmt.Fprintf(w.writer, "\n// %s\nconst (\n", comment); err != nil {
		return fmt.Errorf("writing const block: %w", err)
	}
	for _, name := range sortedNames(aliases) {
		if _, err := fmt.Fprintf(w.writer, "\t%s = 0x%04X\n", name, aliases[name]); err != nil {
			return fmt.Errorf("writing constant: %w", err)
		}
	}
	if _, err := fmt.Fprintln(w.writer, ")"); err != nil {
		return fmt.Errorf("writing const block: %w", err)
	}
	return nil
}

func (w Writer) writeGoTable(block labels.DataBlock) error {
	name := goIdentifier(block.Label) + "Table"
	if _, err := fmt.Fprintf(w.writer, "\n// %s contains the data at $%04X.\nvar %s = []byte{\n", name, block.Address, name); err != nil {
		return fmt.Errorf("writing table: %w", err)
	}

	lineWriter := func(line string, _ int) error {
		_, err := fmt.Fprintf(w.writer, "\t%s,\n", line)
		return err
	}
	if err := w.BundleDataWrites(block.Bytes, "", "0x%02x, ", lineWriter); err != nil {
		return fmt.Errorf("writing table %s: %w", name, err)
	}

	if _, err := fmt.Fprintln(w.writer, "}"); err != nil {
		return fmt.Errorf("writing table: %w", err)
	}
	return nil
}

func (w Writer) writeAsm() error {
	if err := w.WriteCommentHeader(";"); err != nil {
		return err
	}
	if err := w.OutputAliasMap(labelAliases(w.source.Labels())); err != nil {
		return err
	}
	if err := w.OutputAliasMap(w.source.Constants()); err != nil {
		return err
	}

	if !w.options.DataTables {
		return nil
	}
	for _, block := range w.dataTables() {
		if _, err := fmt.Fprintf(w.writer, "; %s\n", block.Label); err != nil {
			return fmt.Errorf("writing table label: %w", err)
		}
		if err := w.BundleDataWrites(block.Bytes, ".byte ", "$%02x, ", nil); err != nil {
			return fmt.Errorf("writing table %s: %w", block.Label, err)
		}
	}
	return nil
}

// dataTables returns the labeled data blocks that have all bytes known.
func (w Writer) dataTables() []labels.DataBlock {
	var tables []labels.DataBlock
	for _, block := range w.source.DataBlocks() {
		if block.Label != "" && block.Len() > 0 && block.Complete() {
			tables = append(tables, block)
		}
	}
	return tables
}

// BundleDataWrites bundles writes of data bytes to print dataBytesPerLine bytes per line.
func (w Writer) BundleDataWrites(data []byte, prefix, byteFormat string, lineWriter lineWriterFunc) error {
	remaining := len(data)
	for i := 0; remaining > 0; {
		toWrite := min(remaining, dataBytesPerLine)

		buf := &strings.Builder{}
		buf.WriteString(prefix)

		for j := range toWrite {
			if _, err := fmt.Fprintf(buf, byteFormat, data[i+j]); err != nil {
				return fmt.Errorf("writing data byte: %w", err)
			}
		}

		line := strings.TrimRight(buf.String(), ", ")

		if lineWriter != nil {
			if err := lineWriter(line, toWrite); err != nil {
				return fmt.Errorf("writing data line using custom writer: %w", err)
			}
		} else {
			if _, err := fmt.Fprintf(w.writer, "%s\n", line); err != nil {
				return fmt.Errorf("writing data line: %w", err)
			}
		}

		i += toWrite
		remaining -= toWrite
	}

	return nil
}

// OutputAliasMap outputs an alias map, for labels or constants.
func (w Writer) OutputAliasMap(aliases map[string]uint16) error {
	if len(aliases) == 0 {
		return nil
	}

	if _, err := fmt.Fprintln(w.writer); err != nil {
		return fmt.Errorf("writing line: %w", err)
	}

	for _, name := range sortedNames(aliases) {
		if _, err := fmt.Fprintf(w.writer, "%s = $%04X\n", name, aliases[name]); err != nil {
			return fmt.Errorf("writing alias: %w", err)
		}
	}

	if _, err := fmt.Fprintln(w.writer); err != nil {
		return fmt.Errorf("writing line: %w", err)
	}
	return nil
}

// WriteCommentHeader writes the CRC32 checksums of the verified image as
// comments to the output.
func (w Writer) WriteCommentHeader(comment string) error {
	sums := w.options.Checksums
	if sums == nil {
		return nil
	}

	if _, err := fmt.Fprintf(w.writer, "%s PRG CRC32 checksum: %08x\n", comment, sums.PRG); err != nil {
		return fmt.Errorf("writing prg checksum: %w", err)
	}
	if _, err := fmt.Fprintf(w.writer, "%s CHR CRC32 checksum: %08x\n", comment, sums.CHR); err != nil {
		return fmt.Errorf("writing chr checksum: %w", err)
	}
	if _, err := fmt.Fprintf(w.writer, "%s Overall CRC32 checksum: %08x\n", comment, sums.Overall); err != nil {
		return fmt.Errorf("writing overall checksum: %w", err)
	}
	return nil
}

func labelAliases(symbols []labels.Symbol) map[string]uint16 {
	aliases := make(map[string]uint16, len(symbols))
	for _, sym := range symbols {
		// local labels are not addressable from other code
		if strings.Contains(sym.Name, ".") {
			continue
		}
		aliases[sym.Name] = sym.Address
	}
	return aliases
}

// goAliases converts the names to exported Go identifiers.
func goAliases(aliases map[string]uint16) map[string]uint16 {
	converted := make(map[string]uint16, len(aliases))
	for name, value := range aliases {
		converted[goIdentifier(name)] = value
	}
	return converted
}

// goIdentifier returns an exported Go identifier for a symbol name.
func goIdentifier(name string) string {
	name = labels.FunctionName(name)
	return strings.ToUpper(name[:1]) + name[1:]
}

func sortedNames(aliases map[string]uint16) []string {
	// sort the aliases by name before outputting to avoid random map order
	names := make([]string, 0, len(aliases))
	for name := range aliases {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
