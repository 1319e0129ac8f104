// Package directive turns the raw lines of an embedded fragment into a
// CodeUnit. Each line is either one directive, selected by its first
// whitespace-delimited token, or ordinary native source.
package directive

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/reglet-dev/embedc/domain/entities"
	"github.com/reglet-dev/embedc/domain/errors"
)

// Directive keywords.
const (
	KeywordGlobal    = "GLOBAL"
	KeywordCC        = "CC"
	KeywordImportAll = "IMPORTALL"
	KeywordImport    = "IMPORT"
	KeywordDef       = "DEF"
	KeywordReturn    = "RETURN"
	KeywordPost      = "POST"
)

// DefaultFuncName names the function of a transient fragment.
const DefaultFuncName = "func"

// DefaultIncludes open every generated preamble.
var DefaultIncludes = []string{
	"#include <string.h>",
	"#include <stdio.h>",
	"#include <stdlib.h>",
	"#include <stdint.h>",
	"#include <wchar.h>",
}

// Fragment is one embedded block of native source.
type Fragment struct {
	File   string
	Line   int // host line of the first fragment line
	Lines  []string
	Inline bool
}

// NewFragment splits source into lines.
func NewFragment(file string, line int, source string, inline bool) Fragment {
	return Fragment{File: file, Line: line, Lines: SplitLines(source), Inline: inline}
}

// SplitLines splits fragment text on newlines, dropping carriage returns.
func SplitLines(source string) []string {
	lines := strings.Split(source, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimRight(l, "\r")
	}
	return lines
}

type parserConfig struct {
	toolchain string
	includes  []string
}

// Option configures a Parser.
type Option func(*parserConfig)

// WithToolchain sets the toolchain recorded on units without a CC directive.
func WithToolchain(cc string) Option {
	return func(c *parserConfig) {
		c.toolchain = cc
	}
}

// WithIncludes replaces the default preamble includes.
func WithIncludes(includes ...string) Option {
	return func(c *parserConfig) {
		c.includes = includes
	}
}

// Parser parses fragments into code units.
type Parser struct {
	config parserConfig
}

// NewParser creates a Parser with the given options.
func NewParser(opts ...Option) *Parser {
	cfg := parserConfig{includes: DefaultIncludes}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Parser{config: cfg}
}

var (
	reRefSpace   = regexp.MustCompile(`&\s+`)
	reStarSpace  = regexp.MustCompile(`\s+\*`)
	reArraySpace = regexp.MustCompile(`\s+\[\]`)
	reArrayRef   = regexp.MustCompile(`\[\]&`)
	reReturn     = regexp.MustCompile(`^\s*RETURN\s+`)
)

// Parse builds a CodeUnit from frag. The unit's function name is
// DefaultFuncName; callers compiling several units into one artifact rename it.
func (p *Parser) Parse(frag Fragment) (*entities.CodeUnit, error) {
	unit := &entities.CodeUnit{
		FuncName:   DefaultFuncName,
		Source:     []string{""},
		ReturnType: entities.DefaultReturnType,
		Preamble:   append([]string(nil), p.config.includes...),
		Toolchain:  p.config.toolchain,
		Inline:     frag.Inline,
		File:       frag.File,
		Line:       frag.Line,
		Functions:  make(map[string]entities.FuncPtr),
	}

	subline := frag.Line - 1
	if subline < 0 {
		subline = 0
	}
	if frag.File != "" {
		unit.Preamble = append(unit.Preamble, fmt.Sprintf("#line %d \"%s\"", subline+1, sanitizeFilename(frag.File)))
	}

	importSpec := false
	for _, line := range frag.Lines {
		subline++
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		marker := fmt.Sprintf("#line %d", subline)
		fail := func(reason string) error {
			return &errors.ParseError{File: frag.File, Line: subline, Text: line, Reason: reason}
		}

		directive := fields[0]
		switch {
		case strings.HasPrefix(directive, "#"):
			unit.Preamble = append(unit.Preamble, marker, line)

		case directive == KeywordGlobal:
			unit.Preamble = append(unit.Preamble, marker, strip(line, KeywordGlobal))

		case directive == KeywordCC:
			cc := strip(line, KeywordCC)
			if cc == "" {
				return nil, fail("Invalid CC syntax")
			}
			unit.Toolchain = cc

		case directive == KeywordImportAll:
			unit.ImportAll = true

		case directive == KeywordImport:
			items := strings.Fields(cleanImportLine(line))
			if len(items) != 3 {
				return nil, fail("Invalid IMPORT syntax")
			}
			importSpec = true
			unit.AddArgument(items[1], strings.ReplaceAll(items[2], ";", ""))

		case directive == KeywordDef:
			if len(fields) < 3 {
				return nil, fail("Invalid DEF syntax")
			}
			def := entities.FuncPtr{Name: fields[2], ReturnType: fields[1], ArgTypes: fields[3:]}
			argName := entities.FuncPtrPrefix + def.Name
			unit.Functions[argName] = def
			unit.AddArgument("void*", argName)
			unit.Source = append(unit.Source, marker, funcPtrDecl(def, argName))

		case directive == KeywordReturn:
			rest := reReturn.ReplaceAllString(line, "")
			rtype, expr, _ := strings.Cut(strings.TrimSpace(rest), " ")
			if rtype == "" || rtype == KeywordReturn {
				return nil, fail("Invalid RETURN syntax")
			}
			unit.ReturnType = rtype
			expr = strings.TrimSuffix(strings.TrimSpace(expr), ";")
			unit.Source = append(unit.Source, marker, fmt.Sprintf("return %s;", expr))

		case directive == KeywordPost:
			unit.Post = append(unit.Post, marker, strings.Replace(line, KeywordPost, "", 1))

		default:
			unit.Source = append(unit.Source, marker, line)
		}
	}

	if !importSpec && !unit.ImportAll {
		unit.ImportAll = true
	}
	return unit, nil
}

// strip removes the first occurrence of keyword and surrounding space.
func strip(line, keyword string) string {
	return strings.TrimSpace(strings.Replace(line, keyword, "", 1))
}

// cleanImportLine normalises spacing so an IMPORT splits into three fields.
func cleanImportLine(line string) string {
	line = reRefSpace.ReplaceAllString(line, " &")
	line = reStarSpace.ReplaceAllString(line, "* ")
	line = reArraySpace.ReplaceAllString(line, "[] ")
	line = reArrayRef.ReplaceAllString(line, "[] &")
	return line
}

// funcPtrDecl declares a typed local function pointer from the opaque argument.
func funcPtrDecl(def entities.FuncPtr, argName string) string {
	cargs := make([]string, len(def.ArgTypes))
	for i, t := range def.ArgTypes {
		cargs[i] = entities.CType(t, false)
	}
	cargstr := strings.Join(cargs, ", ")
	rtype := entities.CType(def.ReturnType, false)
	return fmt.Sprintf("%s (*%s)(%s);\n%s = (%s (*)(%s))%s;",
		rtype, def.Name, cargstr, def.Name, rtype, cargstr, argName)
}

// sanitizeFilename escapes backslashes for use inside a #line directive.
func sanitizeFilename(file string) string {
	if strings.Contains(file, `\\`) {
		return file
	}
	return strings.ReplaceAll(file, `\`, `\\`)
}
