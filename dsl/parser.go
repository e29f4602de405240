package dsl

import (
	"fmt"
	"io"
	"strconv"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

var (
	dslLexer = lexer.MustSimple([]lexer.SimpleRule{
		{Name: "LineComment", Pattern: `//[^\n]*`},
		{Name: "BlockComment", Pattern: `/\*[^*]*\*+(?:[^/*][^*]*\*+)*/`},
		{Name: "Whitespace", Pattern: `[ \t\r\n]+`},
		{Name: "String", Pattern: `"(?:\\.|[^"])*"`},
		{Name: "Pitch", Pattern: `[a-gA-G](?:##|bb|#|b|n)?/\d+`},
		{Name: "Fraction", Pattern: `\d+/\d+`},
		{Name: "Number", Pattern: `\d+`},
		{Name: "Ident", Pattern: `[A-Za-z_][A-Za-z0-9_#|]*`},
		{Name: "Punct", Pattern: `[{}():]`},
	})

	identTokenType  = mustTokenType("Ident")
	elidedTokenType = map[lexer.TokenType]bool{
		mustTokenType("LineComment"):  true,
		mustTokenType("BlockComment"): true,
		mustTokenType("Whitespace"):   true,
	}

	scoreParser = participle.MustBuild[Score](
		participle.Lexer(dslLexer),
		participle.Elide("Whitespace", "LineComment", "BlockComment"),
		participle.UseLookahead(2),
	)
)

// Score is the root AST node of a score file.
//
//	score "Minuet" composer "Petzold" {
//	  measure {
//	    part "Piano" {
//	      stave clef treble key G time 3/4
//	      voice { d/5:q g/4:8 a/4:8 (g/4 b/4):q beam 1 2 }
//	    }
//	  }
//	}
type Score struct {
	Pos      lexer.Position `parser:"" json:"-"`
	Title    StringLiteral  `parser:"'score' @String?"`
	Composer StringLiteral  `parser:"( 'composer' @String )?"`
	Measures []*Measure     `parser:"'{' @@* '}'"`
}

// Measure groups the parts sounding together.
type Measure struct {
	Pos   lexer.Position `parser:"" json:"-"`
	Parts []*Part        `parser:"'measure' '{' @@* '}'"`
}

// Part lists its staves first, then its voices. A part without staves reuses the staves
// of the same part in the previous measure.
type Part struct {
	Pos    lexer.Position `parser:"" json:"-"`
	Name   StringLiteral  `parser:"'part' @String?"`
	Staves []*Stave       `parser:"'{' @@*"`
	Voices []*Voice       `parser:"@@* '}'"`
}

// Stave declares clef/key/time changes; undeclared attributes carry over.
type Stave struct {
	Pos   lexer.Position `parser:"" json:"-"`
	Attrs []*StaveAttr   `parser:"'stave' @@*"`
}

// StaveAttr is one of `clef <name>`, `key <name>` or `time <n/d|C|C|>`.
type StaveAttr struct {
	Clef *string `parser:"  'clef' @Ident"`
	Key  *string `parser:"| 'key' @Ident"`
	Time *string `parser:"| 'time' @(Fraction | Ident)"`
}

// Voice is a sequence of notes with optional beam and tie groups.
type Voice struct {
	Pos   lexer.Position `parser:"" json:"-"`
	Stave *int           `parser:"'voice' ( 'stave' @Number )?"`
	Items []*VoiceItem   `parser:"'{' @@* '}'"`
}

// VoiceItem is a note, a `beam i j...` group or a `tie i j` pair; indices refer to notes.
type VoiceItem struct {
	Beam *BeamGroup `parser:"  @@"`
	Tie  *TiePair   `parser:"| @@"`
	Note *Note      `parser:"| @@"`
}

type BeamGroup struct {
	Pos   lexer.Position `parser:"" json:"-"`
	Notes []int          `parser:"'beam' @Number @Number+"`
}

type TiePair struct {
	Pos  lexer.Position `parser:"" json:"-"`
	From int            `parser:"'tie' @Number"`
	To   int            `parser:"@Number"`
}

// Note is `pitch:duration`, `(pitch pitch...):duration` or `r:duration`.
// The duration may carry trailing dots written as `d` (`q`, `8`, `qd`, `8d`).
type Note struct {
	Pos      lexer.Position `parser:"" json:"-"`
	Head     *NoteHead      `parser:"@@"`
	Duration []string       `parser:"':' @(Number | Ident) @'d'*"`
}

type NoteHead struct {
	Chord []string `parser:"  '(' @Pitch+ ')'"`
	Pitch string   `parser:"| @Pitch"`
	Rest  bool     `parser:"| @('r' | 'rest')"`
}

// StringLiteral unquotes Go-style strings on capture.
type StringLiteral string

// Capture implements participle.Capture.
func (s *StringLiteral) Capture(values []string) error {
	if len(values) == 0 {
		return fmt.Errorf("string literal capture requires value")
	}
	val, err := strconv.Unquote(values[0])
	if err != nil {
		return err
	}
	*s = StringLiteral(val)
	return nil
}

// Parse parses score notation from an io.Reader.
func Parse(r io.Reader) (*Score, error) {
	return scoreParser.Parse("", r)
}

// ParseString parses score notation from a string.
func ParseString(input string) (*Score, error) {
	return scoreParser.ParseString("", input)
}

// LooksLikeScore reports whether the first significant token of input is the `score` keyword.
func LooksLikeScore(input string) bool {
	lex, err := dslLexer.LexString("", input)
	if err != nil {
		return false
	}
	for {
		tok, err := lex.Next()
		if err != nil || tok.EOF() {
			return false
		}
		if elidedTokenType[tok.Type] {
			continue
		}
		return tok.Type == identTokenType && tok.Value == "score"
	}
}

func mustTokenType(name string) lexer.TokenType {
	symbols := dslLexer.Symbols()
	tt, ok := symbols[name]
	if !ok {
		panic(fmt.Sprintf("token %s not defined", name))
	}
	return tt
}
