package tools

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// errDivisionByZero distinguishes the one arithmetic failure that gets its
// own user-facing message.
var errDivisionByZero = errors.New("division by zero")

var allowedExprChars = regexp.MustCompile(`^[0-9+\-*/().,\sA-Za-z\[\]]+$`)

// validateExpression rejects inputs before any tokenization happens: only a
// fixed character set is accepted and parentheses must balance.
func validateExpression(expr string) error {
	if strings.TrimSpace(expr) == "" {
		return errors.New("expression is empty")
	}
	if !allowedExprChars.MatchString(expr) {
		return errors.New("expression contains invalid characters")
	}
	depth := 0
	for _, r := range expr {
		switch r {
		case '(':
			depth++
		case ')':
			depth--
			if depth < 0 {
				return errors.New("unbalanced parentheses")
			}
		}
	}
	if depth != 0 {
		return errors.New("unbalanced parentheses")
	}
	return nil
}

// exprValue is either a scalar or a list. Lists only exist as function
// arguments ("sum([1, 2, 3])"); a list surviving to the top level is an
// error.
type exprValue struct {
	num  float64
	list []float64
}

func (v exprValue) isList() bool { return v.list != nil }

func scalar(n float64) exprValue { return exprValue{num: n} }

type tokenKind int

const (
	tokNumber tokenKind = iota
	tokIdent
	tokOp
	tokEOF
)

type token struct {
	kind tokenKind
	text string
	num  float64
}

func tokenize(expr string) ([]token, error) {
	var tokens []token
	i := 0
	for i < len(expr) {
		c := expr[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n':
			i++
		case c >= '0' && c <= '9' || c == '.':
			j := i
			for j < len(expr) && (expr[j] >= '0' && expr[j] <= '9' || expr[j] == '.') {
				j++
			}
			n, err := strconv.ParseFloat(expr[i:j], 64)
			if err != nil {
				return nil, fmt.Errorf("invalid number %q", expr[i:j])
			}
			tokens = append(tokens, token{kind: tokNumber, num: n})
			i = j
		case c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z':
			j := i
			for j < len(expr) && (expr[j] >= 'a' && expr[j] <= 'z' || expr[j] >= 'A' && expr[j] <= 'Z') {
				j++
			}
			tokens = append(tokens, token{kind: tokIdent, text: strings.ToLower(expr[i:j])})
			i = j
		case c == '*' && i+1 < len(expr) && expr[i+1] == '*':
			tokens = append(tokens, token{kind: tokOp, text: "**"})
			i += 2
		case c == '/' && i+1 < len(expr) && expr[i+1] == '/':
			tokens = append(tokens, token{kind: tokOp, text: "//"})
			i += 2
		case strings.ContainsRune("+-*/%(),[]", rune(c)):
			tokens = append(tokens, token{kind: tokOp, text: string(c)})
			i++
		default:
			return nil, fmt.Errorf("unexpected character %q", string(c))
		}
	}
	tokens = append(tokens, token{kind: tokEOF})
	return tokens, nil
}

// exprParser is a recursive-descent parser over the token stream. Precedence
// from loosest to tightest: additive, multiplicative, unary, power. Power is
// right-associative and binds tighter than a leading minus, so "-2**2"
// evaluates to -4.
type exprParser struct {
	tokens []token
	pos    int
}

func evaluate(expr string) (float64, error) {
	tokens, err := tokenize(expr)
	if err != nil {
		return 0, err
	}
	p := &exprParser{tokens: tokens}
	v, err := p.parseAdditive()
	if err != nil {
		return 0, err
	}
	if p.peek().kind != tokEOF {
		return 0, fmt.Errorf("unexpected trailing input")
	}
	if v.isList() {
		return 0, errors.New("a list is not a valid result")
	}
	return v.num, nil
}

func (p *exprParser) peek() token { return p.tokens[p.pos] }

func (p *exprParser) next() token {
	t := p.tokens[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *exprParser) acceptOp(text string) bool {
	t := p.peek()
	if t.kind == tokOp && t.text == text {
		p.pos++
		return true
	}
	return false
}

func (p *exprParser) expectOp(text string) error {
	if !p.acceptOp(text) {
		return fmt.Errorf("expected %q", text)
	}
	return nil
}

func (p *exprParser) parseAdditive() (exprValue, error) {
	left, err := p.parseMultiplicative()
	if err != nil {
		return exprValue{}, err
	}
	for {
		var op string
		switch {
		case p.acceptOp("+"):
			op = "+"
		case p.acceptOp("-"):
			op = "-"
		default:
			return left, nil
		}
		right, err := p.parseMultiplicative()
		if err != nil {
			return exprValue{}, err
		}
		if left.isList() || right.isList() {
			return exprValue{}, errors.New("lists cannot be used in arithmetic")
		}
		if op == "+" {
			left = scalar(left.num + right.num)
		} else {
			left = scalar(left.num - right.num)
		}
	}
}

func (p *exprParser) parseMultiplicative() (exprValue, error) {
	left, err := p.parseUnary()
	if err != nil {
		return exprValue{}, err
	}
	for {
		var op string
		switch {
		case p.acceptOp("*"):
			op = "*"
		case p.acceptOp("//"):
			op = "//"
		case p.acceptOp("/"):
			op = "/"
		case p.acceptOp("%"):
			op = "%"
		default:
			return left, nil
		}
		right, err := p.parseUnary()
		if err != nil {
			return exprValue{}, err
		}
		if left.isList() || right.isList() {
			return exprValue{}, errors.New("lists cannot be used in arithmetic")
		}
		if right.num == 0 && op != "*" {
			return exprValue{}, errDivisionByZero
		}
		switch op {
		case "*":
			left = scalar(left.num * right.num)
		case "/":
			left = scalar(left.num / right.num)
		case "//":
			left = scalar(math.Floor(left.num / right.num))
		case "%":
			// Python-style modulo: the result carries the sign of the
			// divisor.
			r := math.Mod(left.num, right.num)
			if r != 0 && (r < 0) != (right.num < 0) {
				r += right.num
			}
			left = scalar(r)
		}
	}
}

func (p *exprParser) parseUnary() (exprValue, error) {
	if p.acceptOp("-") {
		v, err := p.parseUnary()
		if err != nil {
			return exprValue{}, err
		}
		if v.isList() {
			return exprValue{}, errors.New("lists cannot be negated")
		}
		return scalar(-v.num), nil
	}
	if p.acceptOp("+") {
		return p.parseUnary()
	}
	return p.parsePower()
}

func (p *exprParser) parsePower() (exprValue, error) {
	base, err := p.parsePrimary()
	if err != nil {
		return exprValue{}, err
	}
	if !p.acceptOp("**") {
		return base, nil
	}
	// The exponent may itself carry a unary minus: 2**-1.
	exp, err := p.parseUnary()
	if err != nil {
		return exprValue{}, err
	}
	if base.isList() || exp.isList() {
		return exprValue{}, errors.New("lists cannot be used in arithmetic")
	}
	result := math.Pow(base.num, exp.num)
	if math.IsNaN(result) || math.IsInf(result, 0) {
		return exprValue{}, errors.New("result is out of range")
	}
	return scalar(result), nil
}

func (p *exprParser) parsePrimary() (exprValue, error) {
	t := p.peek()
	switch {
	case t.kind == tokNumber:
		p.next()
		return scalar(t.num), nil
	case t.kind == tokIdent:
		p.next()
		return p.parseCall(t.text)
	case t.kind == tokOp && t.text == "(":
		p.next()
		v, err := p.parseAdditive()
		if err != nil {
			return exprValue{}, err
		}
		if err := p.expectOp(")"); err != nil {
			return exprValue{}, err
		}
		return v, nil
	case t.kind == tokOp && t.text == "[":
		return p.parseList()
	default:
		return exprValue{}, fmt.Errorf("unexpected token %q", t.text)
	}
}

func (p *exprParser) parseList() (exprValue, error) {
	if err := p.expectOp("["); err != nil {
		return exprValue{}, err
	}
	items := []float64{}
	if !p.acceptOp("]") {
		for {
			v, err := p.parseAdditive()
			if err != nil {
				return exprValue{}, err
			}
			if v.isList() {
				return exprValue{}, errors.New("nested lists are not supported")
			}
			items = append(items, v.num)
			if p.acceptOp("]") {
				break
			}
			if err := p.expectOp(","); err != nil {
				return exprValue{}, err
			}
		}
	}
	return exprValue{list: items}, nil
}

func (p *exprParser) parseCall(name string) (exprValue, error) {
	if err := p.expectOp("("); err != nil {
		return exprValue{}, fmt.Errorf("function %q must be called with parentheses", name)
	}
	var args []exprValue
	if !p.acceptOp(")") {
		for {
			v, err := p.parseAdditive()
			if err != nil {
				return exprValue{}, err
			}
			args = append(args, v)
			if p.acceptOp(")") {
				break
			}
			if err := p.expectOp(","); err != nil {
				return exprValue{}, err
			}
		}
	}
	return applyFunction(name, args)
}

func applyFunction(name string, args []exprValue) (exprValue, error) {
	switch name {
	case "abs":
		if len(args) != 1 || args[0].isList() {
			return exprValue{}, errors.New("abs takes exactly one number")
		}
		return scalar(math.Abs(args[0].num)), nil
	case "round":
		switch len(args) {
		case 1:
			if args[0].isList() {
				return exprValue{}, errors.New("round takes numbers")
			}
			return scalar(math.Round(args[0].num)), nil
		case 2:
			if args[0].isList() || args[1].isList() {
				return exprValue{}, errors.New("round takes numbers")
			}
			shift := math.Pow(10, math.Trunc(args[1].num))
			return scalar(math.Round(args[0].num*shift) / shift), nil
		default:
			return exprValue{}, errors.New("round takes one or two arguments")
		}
	case "min", "max", "sum":
		values, err := flattenArgs(name, args)
		if err != nil {
			return exprValue{}, err
		}
		switch name {
		case "sum":
			total := 0.0
			for _, v := range values {
				total += v
			}
			return scalar(total), nil
		case "min":
			best := values[0]
			for _, v := range values[1:] {
				best = math.Min(best, v)
			}
			return scalar(best), nil
		default:
			best := values[0]
			for _, v := range values[1:] {
				best = math.Max(best, v)
			}
			return scalar(best), nil
		}
	default:
		return exprValue{}, fmt.Errorf("unknown function %q", name)
	}
}

// flattenArgs accepts either a single list argument or plain scalar
// arguments, so both "min([1, 2])" and "min(1, 2)" work.
func flattenArgs(name string, args []exprValue) ([]float64, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("%s needs at least one argument", name)
	}
	if len(args) == 1 && args[0].isList() {
		if len(args[0].list) == 0 {
			return nil, fmt.Errorf("%s of an empty list is undefined", name)
		}
		return args[0].list, nil
	}
	values := make([]float64, 0, len(args))
	for _, a := range args {
		if a.isList() {
			return nil, fmt.Errorf("%s takes either one list or plain numbers", name)
		}
		values = append(values, a.num)
	}
	return values, nil
}

// formatNumber renders a result the way a person would write it: integral
// values without a decimal point, everything else with up to ten
// significant digits.
func formatNumber(n float64) string {
	if n == math.Trunc(n) && math.Abs(n) < 1e15 {
		return strconv.FormatFloat(n, 'f', -1, 64)
	}
	return strconv.FormatFloat(n, 'g', 10, 64)
}
