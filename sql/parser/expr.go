package parser

import (
	"fmt"
	"strconv"

	"dbscratch/ast"
	"dbscratch/sql/lexer"
	"dbscratch/types"
)

// parseExpr climbs precedence levels OR < AND < comparison < additive <
// multiplicative < unary < primary, the usual recursive-descent ladder —
// compile_expr (original_source/src/compile.cpp) only ever sees the
// result, so the grammar's exact shape here is new, sized to what
// SPEC_FULL's WHERE/SET clauses need.
func (p *Parser) parseExpr() (ast.Expr, error) {
	return p.parseOr()
}

func (p *Parser) parseOr() (ast.Expr, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.cur.Kind == lexer.OR {
		p.advance()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &ast.BinaryExpr{Op: ast.OpOr, Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseAnd() (ast.Expr, error) {
	left, err := p.parseComparison()
	if err != nil {
		return nil, err
	}
	for p.cur.Kind == lexer.AND {
		p.advance()
		right, err := p.parseComparison()
		if err != nil {
			return nil, err
		}
		left = &ast.BinaryExpr{Op: ast.OpAnd, Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseComparison() (ast.Expr, error) {
	left, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	op, ok := comparisonOp(p.cur.Kind)
	if !ok {
		return left, nil
	}
	p.advance()
	right, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	return &ast.BinaryExpr{Op: op, Left: left, Right: right}, nil
}

func comparisonOp(k lexer.Kind) (ast.BinOp, bool) {
	switch k {
	case lexer.EQ:
		return ast.OpEQ, true
	case lexer.NEQ:
		return ast.OpNE, true
	case lexer.LT:
		return ast.OpLT, true
	case lexer.LE:
		return ast.OpLE, true
	case lexer.GT:
		return ast.OpGT, true
	case lexer.GE:
		return ast.OpGE, true
	default:
		return 0, false
	}
}

func (p *Parser) parseAdditive() (ast.Expr, error) {
	left, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}
	for p.cur.Kind == lexer.PLUS || p.cur.Kind == lexer.MINUS {
		op := ast.OpAdd
		if p.cur.Kind == lexer.MINUS {
			op = ast.OpSub
		}
		p.advance()
		right, err := p.parseMultiplicative()
		if err != nil {
			return nil, err
		}
		left = &ast.BinaryExpr{Op: op, Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseMultiplicative() (ast.Expr, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.cur.Kind == lexer.ASTERISK || p.cur.Kind == lexer.SLASH {
		op := ast.OpMul
		if p.cur.Kind == lexer.SLASH {
			op = ast.OpDiv
		}
		p.advance()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = &ast.BinaryExpr{Op: op, Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseUnary() (ast.Expr, error) {
	switch p.cur.Kind {
	case lexer.NOT:
		p.advance()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &ast.UnaryExpr{Op: ast.OpNot, Operand: operand}, nil
	case lexer.MINUS:
		p.advance()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &ast.UnaryExpr{Op: ast.OpNeg, Operand: operand}, nil
	default:
		return p.parsePrimary()
	}
}

func (p *Parser) parsePrimary() (ast.Expr, error) {
	switch p.cur.Kind {
	case lexer.LPAREN:
		p.advance()
		expr, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if err := p.expect(lexer.RPAREN); err != nil {
			return nil, err
		}
		return expr, nil
	case lexer.NUMBER:
		lit, err := parseNumberLiteral(p.cur.Text)
		p.advance()
		return lit, err
	case lexer.STRING:
		text := p.cur.Text
		p.advance()
		return &ast.Literal{Type: types.TypeChar256, Data: []byte(text)}, nil
	case lexer.NULL:
		p.advance()
		return &ast.Literal{Type: types.TypeNull}, nil
	case lexer.IDENT:
		name := p.cur.Text
		p.advance()
		return &ast.ColumnRef{Name: name, Sem: ast.ExprSem{ColumnIndex: -1}}, nil
	default:
		return nil, fmt.Errorf("%w: in expression, got %s (%q)", ErrUnexpectedToken, p.cur.Kind, p.cur.Text)
	}
}

// parseNumberLiteral decides integer vs. float by the presence of a '.':
// a float is F64, an integer is I32, or I64 when it does not fit in 32
// bits — the
// semantic analyzer coerces this to the target column's declared type
// when the literal sits in an INSERT/UPDATE/comparison context (SPEC_FULL
// §6's "literal: type + value" leaves the exact narrowing rule open; we
// widen at semantic-resolution time rather than at parse time).
func parseNumberLiteral(text string) (*ast.Literal, error) {
	for i := 0; i < len(text); i++ {
		if text[i] == '.' {
			f, err := strconv.ParseFloat(text, 64)
			if err != nil {
				return nil, fmt.Errorf("parser: invalid float literal %q: %w", text, err)
			}
			data := make([]byte, 8)
			types.PutFloat64(types.TypeF64, data, f)
			return &ast.Literal{Type: types.TypeF64, Data: data}, nil
		}
	}
	n, err := strconv.ParseInt(text, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parser: invalid integer literal %q: %w", text, err)
	}
	if int64(int32(n)) != n {
		data := make([]byte, 8)
		types.PutInt64(types.TypeI64, data, n)
		return &ast.Literal{Type: types.TypeI64, Data: data}, nil
	}
	data := make([]byte, 4)
	types.PutInt64(types.TypeI32, data, n)
	return &ast.Literal{Type: types.TypeI32, Data: data}, nil
}
