package asmsource

import (
	"strings"
	"testing"

	"github.com/retroenv/decompverify/internal/arch/m6502"
	"github.com/retroenv/retrogolib/assert"
)

func kinds(src *Source) []Kind {
	result := make([]Kind, 0, len(src.Statements))
	for _, stmt := range src.Statements {
		result = append(result, stmt.Kind)
	}
	return result
}

//nolint:funlen // test functions can be long
func TestParse(t *testing.T) {
	input := strings.Join([]string{
		"; header comment",
		"",
		"Player_X = $86",
		"SND_DELAY equ 10",
		"       .org $8000",
		"Start: sei ; disable irq",
		"Loop:  lda #$10",
		"       jmp Loop",
		"MaxLeftXSpdData:",
		"      .db $d8, $e8, $f0",
		"Msg   .byte \"HI;\", 0",
		"Vectors: .dw Start, Start",
	}, "\n")

	src := Parse(input)
	assert.Empty(t, src.Warnings)

	expected := []Kind{
		KindComment, KindBlank, KindConstant, KindConstant, KindOrigin,
		KindLabel, KindInstruction, KindLabel, KindInstruction, KindInstruction,
		KindLabel, KindData, KindLabel, KindData, KindLabel, KindData,
	}
	actual := kinds(src)
	assert.Equal(t, len(expected), len(actual))
	for i := range expected {
		assert.Equal(t, expected[i], actual[i], "statement %d", i)
	}

	constant := src.Statements[2]
	assert.Equal(t, "Player_X", constant.Name)
	assert.Equal(t, "$86", constant.Expression)
	assert.Equal(t, 3, constant.Line)

	assert.Equal(t, "10", src.Statements[3].Expression)
	assert.Equal(t, "$8000", src.Statements[4].Expression)

	start := src.Statements[5]
	assert.Equal(t, "Start", start.Name)
	assert.Equal(t, 6, start.Line)
	sei := src.Statements[6]
	assert.Equal(t, "sei", sei.Mnemonic)
	assert.Equal(t, m6502.NoOperand, sei.Operand.Form)

	lda := src.Statements[8]
	assert.Equal(t, m6502.Immediate, lda.Operand.Form)
	assert.Equal(t, "$10", lda.Operand.Expression)

	db := src.Statements[11]
	assert.Equal(t, 1, db.Data.Width)
	assert.Len(t, db.Data.Items, 3)
	assert.Equal(t, "$d8", db.Data.Items[0].Expression)

	msg := src.Statements[12]
	assert.Equal(t, "Msg", msg.Name)
	text := src.Statements[13].Data
	assert.Len(t, text.Items, 2)
	assert.True(t, text.Items[0].IsText)
	assert.Equal(t, "HI;", text.Items[0].Text)

	words := src.Statements[15].Data
	assert.Equal(t, 2, words.Width)
	assert.Len(t, words.Items, 2)
}

func TestParseDirectives(t *testing.T) {
	tests := []struct {
		line     string
		kind     Kind
		mnemonic string
	}{
		{"*= $C000", KindOrigin, "*="},
		{".base $6000", KindOrigin, ".base"},
		{".pad $FFFA, $FF", KindOrigin, ".pad"},
		{".enum $0300", KindOrigin, ".enum"},
		{".ende", KindDirective, ".ende"},
		{".segment \"CODE\"", KindDirective, ".segment"},
		{".index 8", KindDirective, ".index"},
		{"hex 00 01 ff", KindData, "hex"},
		{".dsb 4, $ff", KindData, ".dsb"},
		{".dsw 2", KindData, ".dsw"},
		{".dc.b 1,2", KindData, ".dc.b"},
		{"lda.w $10", KindInstruction, "lda"},
		{"  -  bne -", KindInstruction, "bne"},
	}

	for _, test := range tests {
		t.Run(test.line, func(t *testing.T) {
			src := Parse(test.line)
			assert.Empty(t, src.Warnings)
			last := src.Statements[len(src.Statements)-1]
			assert.Equal(t, test.kind, last.Kind)
			assert.Equal(t, test.mnemonic, last.Mnemonic)
		})
	}
}

func TestParseForcedSize(t *testing.T) {
	src := Parse("  lda.w $10\n  sta.b Value")
	assert.Equal(t, m6502.ForceAbsolute, src.Statements[0].Operand.Force)
	assert.Equal(t, m6502.ForceZeroPage, src.Statements[1].Operand.Force)
}

func TestParseLabelVariants(t *testing.T) {
	src := Parse("First: Second: nop\nNoColon lda #1\n@local: rts\nTight:inx")

	var names []string
	for _, stmt := range src.Statements {
		if stmt.Kind == KindLabel {
			names = append(names, stmt.Name)
		}
	}
	assert.Equal(t, "First,Second,NoColon,@local,Tight", strings.Join(names, ","))
	assert.Empty(t, src.Warnings)
}

func TestParseDirectiveNamedLabels(t *testing.T) {
	src := Parse(strings.Join([]string{
		".org $8000",
		"Code  nop",
		"End   nop",
		"Bank  .db 1",
		"After: cmp #' '",
		"  .code",
		"  bank 1",
	}, "\n"))
	assert.Empty(t, src.Warnings)

	var names []string
	for _, stmt := range src.Statements {
		if stmt.Kind == KindLabel {
			names = append(names, stmt.Name)
		}
	}
	assert.Equal(t, "Code,End,Bank,After", strings.Join(names, ","))

	cmp := src.Statements[len(src.Statements)-3]
	assert.Equal(t, KindInstruction, cmp.Kind)
	assert.Equal(t, "' '", cmp.Operand.Expression)
	assert.Equal(t, KindDirective, src.Statements[len(src.Statements)-2].Kind)
	assert.Equal(t, KindDirective, src.Statements[len(src.Statements)-1].Kind)
}

func TestParseUnexpectedDirectiveArguments(t *testing.T) {
	src := Parse("  .ende $10\nEnd lda #1\n  .code segment")
	assert.Len(t, src.Warnings, 2)
	assert.Equal(t, 1, src.Warnings[0].Line)
	assert.Contains(t, src.Warnings[0].Reason, "unexpected arguments '$10'")
	assert.Equal(t, 3, src.Warnings[1].Line)

	// End followed by an instruction is a label
	assert.Equal(t, KindLabel, src.Statements[1].Kind)
	assert.Equal(t, "End", src.Statements[1].Name)
}

func TestParseWarnings(t *testing.T) {
	input := strings.Join([]string{
		"  .org",
		"  frobnicate $10",
		"  .db",
		"  lda ($10",
		"  .incbin \"chr.bin\"",
		"  .macro Push",
		"  pha",
		"  .endm",
		"  hex 0",
	}, "\n")

	src := Parse(input)
	assert.Len(t, src.Warnings, 7)

	lines := make([]int, 0, len(src.Warnings))
	for _, warning := range src.Warnings {
		lines = append(lines, warning.Line)
		assert.NotEmpty(t, warning.Reason)
	}
	assert.Equal(t, 1, lines[0])
	assert.Equal(t, 2, lines[1])
	assert.Equal(t, 3, lines[2])
	assert.Equal(t, 5, lines[4])
	assert.Equal(t, 6, lines[5])
	assert.Equal(t, 9, lines[6])

	assert.Contains(t, src.Warnings[1].String(), "line 2")
	assert.Contains(t, src.Warnings[1].String(), "frobnicate")

	// the macro body does not produce instructions
	for _, stmt := range src.Statements {
		assert.False(t, stmt.Kind == KindInstruction && stmt.Mnemonic == "pha")
	}
}

func TestStripComment(t *testing.T) {
	code, ok := stripComment(`  .db "a;b", ';' ; comment`)
	assert.True(t, ok)
	assert.Equal(t, `  .db "a;b", ';' `, code)

	code, ok = stripComment("  nop")
	assert.False(t, ok)
	assert.Equal(t, "  nop", code)
}
