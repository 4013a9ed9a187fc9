package osfp

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dlclark/regexp2"
)

// ExprKind tags the variant held by an ExprAlt, mirroring the way
// lib/nmap.MatchPattern keeps a regex/flags pair alongside the parsed
// Match -- here the "pattern" is this small literal/range/comparison DSL
// instead of a regular expression.
type ExprKind int

const (
	// ExprLiteral matches val by exact byte equality.
	ExprLiteral ExprKind = iota
	// ExprRange matches val as a number in [Lo, Hi].
	ExprRange
	// ExprLt matches val as a number strictly less than N.
	ExprLt
	// ExprGt matches val as a number strictly greater than N.
	ExprGt
	// exprNever never matches. Used for malformed numeric alternatives,
	// which are skipped rather than treated as a compile error or
	// re-interpreted as a literal.
	exprNever
)

// ExprAlt is one alternative of an alternation.
type ExprAlt struct {
	Kind    ExprKind
	Literal string
	Lo, Hi  uint64
	N       uint64
}

// CompiledExpr is a DB expression ("literal", "x|y|z", "3B-47", "<F", ">10")
// precompiled at parse time so scoring never re-parses a reference
// attribute's expression.
type CompiledExpr struct {
	Alts []ExprAlt
}

// hexToken recognizes a pure hexadecimal token before attempting to parse
// it, the same defensive pre-check lib/nmap.MakeMatcher applies (there, to
// the regex flags; here, to a numeric token) before handing it to a
// stricter parser.
var hexToken = regexp2.MustCompile(`^[0-9A-Fa-f]+$`, regexp2.None)

func looksHex(s string) bool {
	if s == "" {
		return false
	}
	ok, err := hexToken.MatchString(s)
	return err == nil && ok
}

// parseHexValue parses val as unsigned hexadecimal. isNumeric is true iff
// the entire string was consumed.
func parseHexValue(val string) (v uint64, isNumeric bool) {
	if !looksHex(val) {
		return 0, false
	}
	n, err := strconv.ParseUint(val, 16, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// CompileExpr precompiles a DB-side expression string. It returns an error
// only for the one case treated as fatal at parse time: a range whose high
// bound does not strictly exceed its low bound. Malformed numeric literals
// are not an error; they compile to an alternative that never matches.
func CompileExpr(raw string) (CompiledExpr, error) {
	parts := strings.Split(raw, "|")
	ce := CompiledExpr{Alts: make([]ExprAlt, 0, len(parts))}
	for _, part := range parts {
		alt, err := compileAlt(part)
		if err != nil {
			return CompiledExpr{}, err
		}
		ce.Alts = append(ce.Alts, alt)
	}
	return ce, nil
}

func compileAlt(s string) (ExprAlt, error) {
	if s == "" {
		// Empty alternatives do not match.
		return ExprAlt{Kind: exprNever}, nil
	}
	if strings.HasPrefix(s, "<") {
		n, ok := parseHexValue(s[1:])
		if !ok {
			return ExprAlt{Kind: exprNever}, nil
		}
		return ExprAlt{Kind: ExprLt, N: n}, nil
	}
	if strings.HasPrefix(s, ">") {
		n, ok := parseHexValue(s[1:])
		if !ok {
			return ExprAlt{Kind: exprNever}, nil
		}
		return ExprAlt{Kind: ExprGt, N: n}, nil
	}
	if i := strings.IndexByte(s, '-'); i > 0 && i < len(s)-1 {
		lo, loOK := parseHexValue(s[:i])
		hi, hiOK := parseHexValue(s[i+1:])
		if !loOK || !hiOK {
			return ExprAlt{Kind: exprNever}, nil
		}
		if hi <= lo {
			return ExprAlt{}, fmt.Errorf("%w: range %q requires high > low", ErrDegenerateRange, s)
		}
		return ExprAlt{Kind: ExprRange, Lo: lo, Hi: hi}, nil
	}
	return ExprAlt{Kind: ExprLiteral, Literal: s}, nil
}

// Match evaluates whether the observed literal val satisfies the compiled
// expression.
func (ce CompiledExpr) Match(val string) bool {
	v, isNumeric := parseHexValue(val)
	for _, alt := range ce.Alts {
		switch alt.Kind {
		case ExprLiteral:
			if val == alt.Literal {
				return true
			}
		case ExprRange:
			if isNumeric && v >= alt.Lo && v <= alt.Hi {
				return true
			}
		case ExprLt:
			if isNumeric && v < alt.N {
				return true
			}
		case ExprGt:
			if isNumeric && v > alt.N {
				return true
			}
		case exprNever:
			// never matches
		}
	}
	return false
}

// MatchExpr compiles raw and evaluates it against val in one step. Prefer
// CompileExpr once and reuse the CompiledExpr when scoring many observed
// values against the same DB expression (score.go does this for every
// reference attribute).
func MatchExpr(val, raw string) (bool, error) {
	ce, err := CompileExpr(raw)
	if err != nil {
		return false, err
	}
	return ce.Match(val), nil
}
