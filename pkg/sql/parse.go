package sql

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

type parser struct {
	in      []byte
	offset  int
	no      int
	pos     int
	current rune
}

func newParser(in string) *parser {
	p := &parser{
		in: []byte(in),
	}
	p.Next()
	return p
}

func (s *parser) Next() rune {
	if s.offset >= len(s.in) {
		s.current = 0
		s.pos = len(s.in)
		return 0
	}
	r, size := utf8.DecodeRune(s.in[s.offset:])
	s.current = r
	s.pos = s.offset
	if r == utf8.RuneError && size <= 1 {
		// invalid encoding, keep the cursor for error reporting
		return r
	}
	s.offset += size
	s.no++
	return r
}

func (s *parser) Current() rune {
	return s.current
}

func (s *parser) Position() int {
	return s.no
}

func (s *parser) Errorf(msg string, args ...interface{}) error {
	return fmt.Errorf("%q %d: %s", string(s.in), s.Position(), fmt.Sprintf(msg, args...))
}

func (s *parser) SkipBlank() rune {
	n := s.Current()
	for unicode.IsSpace(n) {
		n = s.Next()
	}
	return n
}

func (s *parser) ParseRune(r rune) error {
	if s.Current() != r {
		return s.Errorf("%q expected", string(r))
	}
	s.Next()
	return nil
}

type state struct {
	offset  int
	no      int
	pos     int
	current rune
}

func (s *parser) state() state {
	return state{s.offset, s.no, s.pos, s.current}
}

func (s *parser) reset(m state) {
	s.offset, s.no, s.pos, s.current = m.offset, m.no, m.pos, m.current
}

// start skips blanks and returns the byte position of the next
// token. Together with surface it captures the source text of a
// node.
func (s *parser) start() int {
	s.SkipBlank()
	return s.pos
}

func (s *parser) surface(from int) string {
	return surfaceOf(string(s.in[from:s.pos]))
}

func isWordStart(r rune) bool {
	return unicode.IsLetter(r) || r == '_'
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_'
}

// parseWord consumes a bare word or returns the empty string if the
// current position does not start one.
func (s *parser) parseWord() string {
	n := s.SkipBlank()
	if !isWordStart(n) {
		return ""
	}
	w := ""
	for isWordRune(n) {
		w = w + string(n)
		n = s.Next()
	}
	return w
}

// tryKeyword consumes the given keyword if present, ignoring case.
func (s *parser) tryKeyword(kw string) bool {
	m := s.state()
	if strings.EqualFold(s.parseWord(), kw) {
		return true
	}
	s.reset(m)
	return false
}

func (s *parser) parseKeyword(kw string) error {
	if !s.tryKeyword(kw) {
		return s.Errorf("%s expected", kw)
	}
	return nil
}

// parseIdentifier consumes a possibly dotted column path. Path
// elements may be double quoted to include arbitrary characters.
// A trailing dot is kept to support prefix wildcards.
func (s *parser) parseIdentifier() (string, error) {
	n := s.SkipBlank()
	name := ""
	for {
		if n == '"' {
			part, err := s.parseQuoted('"')
			if err != nil {
				return "", err
			}
			name += part
			n = s.Current()
		} else {
			if !isWordStart(n) {
				return "", s.Errorf("identifier expected, but found %q", string(n))
			}
			for isWordRune(n) {
				name += string(n)
				n = s.Next()
			}
			n = s.Current()
		}
		if n != '.' {
			break
		}
		name += "."
		n = s.Next()
		if n == '*' {
			break
		}
	}
	return name, nil
}

func (s *parser) parseQuoted(q rune) (string, error) {
	if err := s.ParseRune(q); err != nil {
		return "", err
	}
	str := ""
	for {
		n := s.Current()
		if n == 0 {
			return "", s.Errorf("unterminated %s quoted text", string(q))
		}
		if n == utf8.RuneError && s.offset == s.pos {
			return "", s.Errorf("invalid character encoding in %s quoted text", string(q))
		}
		s.Next()
		if n == q {
			if s.Current() != q {
				return str, nil
			}
			s.Next()
		}
		str += string(n)
	}
}

////////////////////////////////////////////////////////////////////////////////

func (s *parser) parseStatement() (*SelectStatement, error) {
	stm := &SelectStatement{Limit: -1}

	if err := s.parseKeyword("SELECT"); err != nil {
		return nil, err
	}
	items, err := s.parseSelectList()
	if err != nil {
		return nil, err
	}
	stm.Select = items

	if s.tryKeyword("FROM") {
		name, err := s.parseIdentifier()
		if err != nil {
			return nil, err
		}
		stm.From = name
	}
	if s.tryKeyword("WHERE") {
		e, err := s.parseExpression()
		if err != nil {
			return nil, err
		}
		stm.Where = e
	}
	if s.tryKeyword("GROUP") {
		if err := s.parseKeyword("BY"); err != nil {
			return nil, err
		}
		list, err := s.parseExpressionList()
		if err != nil {
			return nil, err
		}
		stm.GroupBy = list
	}
	if s.tryKeyword("HAVING") {
		e, err := s.parseExpression()
		if err != nil {
			return nil, err
		}
		stm.Having = e
	}
	if s.tryKeyword("NAMED") {
		e, err := s.parseExpression()
		if err != nil {
			return nil, err
		}
		stm.Named = e
	}
	if s.tryKeyword("ORDER") {
		if err := s.parseKeyword("BY"); err != nil {
			return nil, err
		}
		for {
			e, err := s.parseExpression()
			if err != nil {
				return nil, err
			}
			desc := false
			if s.tryKeyword("DESC") {
				desc = true
			} else {
				s.tryKeyword("ASC")
			}
			stm.OrderBy = append(stm.OrderBy, OrderBy{Expr: e, Desc: desc})
			if s.SkipBlank() != ',' {
				break
			}
			s.Next()
		}
	}
	if s.tryKeyword("LIMIT") {
		n, err := s.parseInteger()
		if err != nil {
			return nil, err
		}
		stm.Limit = n
	}
	if s.tryKeyword("OFFSET") {
		n, err := s.parseInteger()
		if err != nil {
			return nil, err
		}
		stm.Offset = n
	}
	return stm, nil
}

func (s *parser) parseSelectList() ([]RowExpression, error) {
	var items []RowExpression
	for {
		item, err := s.parseSelectItem()
		if err != nil {
			return nil, err
		}
		items = append(items, item)
		if s.SkipBlank() != ',' {
			break
		}
		s.Next()
	}
	return items, nil
}

func (s *parser) parseSelectItem() (RowExpression, error) {
	from := s.start()

	if s.Current() == '*' {
		s.Next()
		return &Wildcard{surface: s.surface(from)}, nil
	}

	// a name directly followed by a star is a prefix wildcard,
	// unless the star starts a multiplication
	if isWordStart(s.Current()) || s.Current() == '"' {
		m := s.state()
		if name, err := s.parseIdentifier(); err == nil && s.Current() == '*' {
			s.Next()
			n := s.Current()
			if !isWordRune(n) && n != '(' && n != '{' && n != '\'' && n != '"' && n != '.' {
				return &Wildcard{Prefix: name, surface: s.surface(from)}, nil
			}
		}
		s.reset(m)
	}

	e, err := s.parseExpression()
	if err != nil {
		return nil, err
	}
	if s.tryKeyword("AS") {
		alias, err := s.parseIdentifier()
		if err != nil {
			return nil, err
		}
		return &ComputedColumn{Alias: alias, Expr: e, surface: s.surface(from)}, nil
	}
	if v, ok := e.(*Variable); ok {
		return v, nil
	}
	// computed columns without alias are named after their text
	return &ComputedColumn{Alias: e.Surface(), Expr: e, surface: s.surface(from)}, nil
}

func (s *parser) parseExpressionList() ([]Expression, error) {
	var list []Expression
	for {
		e, err := s.parseExpression()
		if err != nil {
			return nil, err
		}
		list = append(list, e)
		if s.SkipBlank() != ',' {
			break
		}
		s.Next()
	}
	return list, nil
}

func (s *parser) parseExpression() (Expression, error) {
	return s.parseOr()
}

func (s *parser) parseOr() (Expression, error) {
	from := s.start()
	o1, err := s.parseAnd()
	if err != nil {
		return nil, err
	}
	for s.tryKeyword("OR") {
		o2, err := s.parseAnd()
		if err != nil {
			return nil, err
		}
		o1 = &Boolean{Op: "OR", Left: o1, Right: o2, surface: s.surface(from)}
	}
	return o1, nil
}

func (s *parser) parseAnd() (Expression, error) {
	from := s.start()
	o1, err := s.parseNot()
	if err != nil {
		return nil, err
	}
	for s.tryKeyword("AND") {
		o2, err := s.parseNot()
		if err != nil {
			return nil, err
		}
		o1 = &Boolean{Op: "AND", Left: o1, Right: o2, surface: s.surface(from)}
	}
	return o1, nil
}

func (s *parser) parseNot() (Expression, error) {
	from := s.start()
	if s.tryKeyword("NOT") {
		e, err := s.parseNot()
		if err != nil {
			return nil, err
		}
		return &Not{Expr: e, surface: s.surface(from)}, nil
	}
	return s.parseCondition()
}

func (s *parser) parseCondition() (Expression, error) {
	from := s.start()
	o1, err := s.parseAdditive()
	if err != nil {
		return nil, err
	}
	for {
		op := ""
		switch s.SkipBlank() {
		case '=':
			s.Next()
			op = "="
		case '!':
			s.Next()
			if err := s.ParseRune('='); err != nil {
				return nil, err
			}
			op = "!="
		case '<':
			s.Next()
			op = "<"
			if s.Current() == '=' {
				s.Next()
				op = "<="
			} else if s.Current() == '>' {
				s.Next()
				op = "!="
			}
		case '>':
			s.Next()
			op = ">"
			if s.Current() == '=' {
				s.Next()
				op = ">="
			}
		default:
			if s.tryKeyword("IS") {
				neg := s.tryKeyword("NOT")
				w := s.parseWord()
				if w == "" {
					return nil, s.Errorf("type name expected after IS")
				}
				ty := strings.ToUpper(w)
				switch ty {
				case "NULL", "TRUE", "FALSE", "STRING", "NUMBER", "INTEGER":
				default:
					return nil, s.Errorf("unknown type %q in IS condition", w)
				}
				o1 = &IsType{Expr: o1, Negated: neg, Type: ty, surface: s.surface(from)}
				continue
			}
			return o1, nil
		}
		o2, err := s.parseAdditive()
		if err != nil {
			return nil, err
		}
		o1 = &Comparison{Op: op, Left: o1, Right: o2, surface: s.surface(from)}
	}
}

func (s *parser) parseAdditive() (Expression, error) {
	from := s.start()
	o1, err := s.parseMultiplicative()
	if err != nil {
		return nil, err
	}
	for {
		switch s.SkipBlank() {
		case '+', '-':
			op := s.Current()
			s.Next()
			o2, err := s.parseMultiplicative()
			if err != nil {
				return nil, err
			}
			o1 = &Arithmetic{Op: string(op), Left: o1, Right: o2, surface: s.surface(from)}
		default:
			return o1, nil
		}
	}
}

func (s *parser) parseMultiplicative() (Expression, error) {
	from := s.start()
	o1, err := s.parseOperand()
	if err != nil {
		return nil, err
	}
	for {
		switch s.SkipBlank() {
		case '*', '/', '%':
			op := s.Current()
			s.Next()
			o2, err := s.parseOperand()
			if err != nil {
				return nil, err
			}
			o1 = &Arithmetic{Op: string(op), Left: o1, Right: o2, surface: s.surface(from)}
		default:
			return o1, nil
		}
	}
}

func (s *parser) parseOperand() (Expression, error) {
	from := s.start()
	n := s.Current()
	switch {
	case unicode.IsDigit(n) || n == '-':
		return s.parseNumber()
	case n == '\'':
		str, err := s.parseQuoted('\'')
		if err != nil {
			return nil, err
		}
		return &Literal{Value: str, surface: s.surface(from)}, nil
	case n == '(':
		s.Next()
		e, err := s.parseExpression()
		if err != nil {
			return nil, err
		}
		s.SkipBlank()
		if err := s.ParseRune(')'); err != nil {
			return nil, err
		}
		return e, nil
	case n == '{':
		s.Next()
		items, err := s.parseSelectList()
		if err != nil {
			return nil, err
		}
		s.SkipBlank()
		if err := s.ParseRune('}'); err != nil {
			return nil, err
		}
		return &RowConstructor{Items: items, surface: s.surface(from)}, nil
	case isWordStart(n) || n == '"':
		m := s.state()
		switch strings.ToUpper(s.parseWord()) {
		case "TRUE":
			return &Literal{Value: true, surface: s.surface(from)}, nil
		case "FALSE":
			return &Literal{Value: false, surface: s.surface(from)}, nil
		case "NULL":
			return &Literal{Value: nil, surface: s.surface(from)}, nil
		}
		s.reset(m)

		name, err := s.parseIdentifier()
		if err != nil {
			return nil, err
		}
		if s.Current() == '(' {
			s.Next()
			var args []Expression
			if s.SkipBlank() != ')' {
				args, err = s.parseExpressionList()
				if err != nil {
					return nil, err
				}
			}
			s.SkipBlank()
			if err := s.ParseRune(')'); err != nil {
				return nil, err
			}
			return &FunctionCall{Name: name, Args: args, surface: s.surface(from)}, nil
		}
		return &Variable{Name: name, surface: s.surface(from)}, nil
	default:
		return nil, s.Errorf("unexpected character %q for operand", string(n))
	}
}

func (s *parser) parseNumber() (Expression, error) {
	from := s.start()
	n := s.Current()
	num := ""
	if n == '-' {
		num = "-"
		n = s.Next()
	}
	if !unicode.IsDigit(n) {
		return nil, s.Errorf("number must start with digit, but found %q", string(n))
	}
	for unicode.IsDigit(n) || n == '.' || n == 'e' || n == 'E' {
		num += string(n)
		n = s.Next()
		if (n == '+' || n == '-') && (strings.HasSuffix(num, "e") || strings.HasSuffix(num, "E")) {
			num += string(n)
			n = s.Next()
		}
	}
	v, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return nil, s.Errorf("invalid number %q", num)
	}
	return &Literal{Value: v, surface: s.surface(from)}, nil
}

func (s *parser) parseInteger() (int64, error) {
	e, err := s.parseNumber()
	if err != nil {
		return 0, err
	}
	v := e.(*Literal).Value.(float64)
	if v != math.Trunc(v) {
		return 0, s.Errorf("integer expected, but found %v", v)
	}
	return int64(v), nil
}

////////////////////////////////////////////////////////////////////////////////

// Parse parses a complete SELECT statement.
func Parse(in string) (*SelectStatement, error) {
	p := newParser(in)

	stm, err := p.parseStatement()
	if err != nil {
		return nil, err
	}
	if p.SkipBlank() != 0 {
		return nil, p.Errorf("unexpected character %q", string(p.Current()))
	}
	stm.surface = surfaceOf(in)
	return stm, nil
}

// ParseExpression parses a single scalar expression.
func ParseExpression(in string) (Expression, error) {
	p := newParser(in)

	e, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if p.SkipBlank() != 0 {
		return nil, p.Errorf("unexpected character %q", string(p.Current()))
	}
	return e, nil
}

// ParseSelectList parses a bare projection list.
func ParseSelectList(in string) ([]RowExpression, error) {
	p := newParser(in)

	items, err := p.parseSelectList()
	if err != nil {
		return nil, err
	}
	if p.SkipBlank() != 0 {
		return nil, p.Errorf("unexpected character %q", string(p.Current()))
	}
	return items, nil
}
