// Package parser turns a token stream into the ast.Statement/ast.Expr
// nodes the semantic analyzer and compiler consume. Grounded on
// query_parser/parser's Parser struct (cur/peek token lookahead, one
// parseX method per statement kind) generalized from string-keyed AST
// nodes with panic-on-error parsing to typed ast nodes with (value, error)
// returns — spec.md's compiler expects a clean AST, not a parser that
// crashes the engine on malformed input.
package parser

import (
	"fmt"
	"strings"

	"dbscratch/ast"
	"dbscratch/sql/lexer"
)

// Parser is a recursive-descent parser over a two-token lookahead window.
type Parser struct {
	l    *lexer.Lexer
	cur  lexer.Token
	peek lexer.Token
}

// New returns a Parser reading tokens from l.
func New(l *lexer.Lexer) *Parser {
	p := &Parser{l: l}
	p.advance()
	p.advance()
	return p
}

// Parse lexes and parses sql, returning the single statement it names. A
// trailing semicolon is optional and consumed if present.
func Parse(sql string) (ast.Statement, error) {
	p := New(lexer.New(sql))
	stmt, err := p.ParseStatement()
	if err != nil {
		return nil, err
	}
	// CREATE TABLE's text is stored verbatim into the master catalog on
	// success (spec §6), so the statement carries it from here rather than
	// the compiler trying to reconstruct it from the parsed column list.
	if ct, ok := stmt.(*ast.CreateTableStmt); ok {
		ct.SQL = strings.TrimSuffix(strings.TrimSpace(sql), ";")
	}
	return stmt, nil
}

func (p *Parser) advance() {
	p.cur = p.peek
	p.peek = p.l.NextToken()
}

func (p *Parser) expect(k lexer.Kind) error {
	if p.cur.Kind != k {
		return fmt.Errorf("%w: expected %s, got %s (%q)", ErrUnexpectedToken, k, p.cur.Kind, p.cur.Text)
	}
	p.advance()
	return nil
}

// ParseStatement is the grammar's entry point: dispatch on the leading
// keyword.
func (p *Parser) ParseStatement() (ast.Statement, error) {
	if p.cur.Kind == lexer.END {
		return nil, ErrEmptyInput
	}

	var stmt ast.Statement
	var err error

	switch p.cur.Kind {
	case lexer.SELECT:
		stmt, err = p.parseSelect()
	case lexer.INSERT:
		stmt, err = p.parseInsert()
	case lexer.UPDATE:
		stmt, err = p.parseUpdate()
	case lexer.DELETE:
		stmt, err = p.parseDelete()
	case lexer.CREATE:
		stmt, err = p.parseCreateTable()
	case lexer.DROP:
		stmt, err = p.parseDropTable()
	case lexer.BEGIN:
		p.advance()
		stmt, err = &ast.BeginStmt{}, nil
	case lexer.COMMIT:
		p.advance()
		stmt, err = &ast.CommitStmt{}, nil
	case lexer.ROLLBACK:
		p.advance()
		stmt, err = &ast.RollbackStmt{}, nil
	default:
		return nil, fmt.Errorf("%w: %s (%q)", ErrUnexpectedToken, p.cur.Kind, p.cur.Text)
	}
	if err != nil {
		return nil, err
	}
	if p.cur.Kind == lexer.SEMICOLON {
		p.advance()
	}
	return stmt, nil
}
