package parser

import (
	"fmt"

	"dbscratch/ast"
	"dbscratch/sql/lexer"
)

// parseSelect parses `SELECT <cols> FROM <table> [WHERE expr] [ORDER BY
// col [ASC|DESC]]`, following query_parser/parser.parseSelect's
// column-list-then-FROM-then-WHERE shape, with ORDER BY added.
func (p *Parser) parseSelect() (*ast.SelectStmt, error) {
	p.advance() // SELECT

	var cols []string
	if p.cur.Kind == lexer.ASTERISK {
		p.advance()
	} else {
		for {
			if p.cur.Kind != lexer.IDENT {
				return nil, fmt.Errorf("%w: in SELECT list, got %s", ErrUnexpectedToken, p.cur.Kind)
			}
			cols = append(cols, p.cur.Text)
			p.advance()
			if p.cur.Kind != lexer.COMMA {
				break
			}
			p.advance()
		}
	}

	if err := p.expect(lexer.FROM); err != nil {
		return nil, err
	}
	if p.cur.Kind != lexer.IDENT {
		return nil, ErrExpectedIdent
	}
	table := p.cur.Text
	p.advance()

	var where ast.Expr
	if p.cur.Kind == lexer.WHERE {
		p.advance()
		w, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		where = w
	}

	var order *ast.OrderBy
	if p.cur.Kind == lexer.ORDER {
		p.advance()
		if err := p.expect(lexer.BY); err != nil {
			return nil, err
		}
		if p.cur.Kind != lexer.IDENT {
			return nil, ErrExpectedIdent
		}
		order = &ast.OrderBy{Column: p.cur.Text}
		p.advance()
		if p.cur.Kind == lexer.DESC {
			order.Desc = true
			p.advance()
		} else if p.cur.Kind == lexer.ASC {
			p.advance()
		}
	}

	return &ast.SelectStmt{Table: table, Columns: cols, Where: where, Order: order}, nil
}

// parseInsert parses `INSERT INTO <table> [(<cols>)] VALUES (<exprs>)`.
func (p *Parser) parseInsert() (*ast.InsertStmt, error) {
	p.advance() // INSERT
	if err := p.expect(lexer.INTO); err != nil {
		return nil, err
	}
	if p.cur.Kind != lexer.IDENT {
		return nil, ErrExpectedIdent
	}
	table := p.cur.Text
	p.advance()

	var cols []string
	if p.cur.Kind == lexer.LPAREN {
		p.advance()
		for p.cur.Kind != lexer.RPAREN {
			if p.cur.Kind != lexer.IDENT {
				return nil, ErrExpectedIdent
			}
			cols = append(cols, p.cur.Text)
			p.advance()
			if p.cur.Kind == lexer.COMMA {
				p.advance()
			}
		}
		p.advance() // )
	}

	if p.cur.Kind != lexer.VALUES {
		return nil, ErrExpectedValues
	}
	p.advance()

	if p.cur.Kind != lexer.LPAREN {
		return nil, ErrExpectedParen
	}
	p.advance()

	var values []ast.Expr
	for p.cur.Kind != lexer.RPAREN {
		v, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		values = append(values, v)
		if p.cur.Kind == lexer.COMMA {
			p.advance()
		} else if p.cur.Kind != lexer.RPAREN {
			return nil, fmt.Errorf("%w: in VALUES list, got %s", ErrUnexpectedToken, p.cur.Kind)
		}
	}
	p.advance() // )

	return &ast.InsertStmt{Table: table, Columns: cols, Values: values}, nil
}

// parseUpdate parses `UPDATE <table> SET <col = expr, ...> [WHERE expr]`.
func (p *Parser) parseUpdate() (*ast.UpdateStmt, error) {
	p.advance() // UPDATE
	if p.cur.Kind != lexer.IDENT {
		return nil, ErrExpectedIdent
	}
	table := p.cur.Text
	p.advance()

	if err := p.expect(lexer.SET); err != nil {
		return nil, err
	}

	var assigns []ast.Assignment
	for {
		if p.cur.Kind != lexer.IDENT {
			return nil, ErrExpectedIdent
		}
		col := p.cur.Text
		p.advance()
		if err := p.expect(lexer.EQ); err != nil {
			return nil, err
		}
		val, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		assigns = append(assigns, ast.Assignment{Column: col, Value: val})
		if p.cur.Kind != lexer.COMMA {
			break
		}
		p.advance()
	}

	var where ast.Expr
	if p.cur.Kind == lexer.WHERE {
		p.advance()
		w, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		where = w
	}

	return &ast.UpdateStmt{Table: table, Assignments: assigns, Where: where}, nil
}

// parseDelete parses `DELETE FROM <table> [WHERE expr]`.
func (p *Parser) parseDelete() (*ast.DeleteStmt, error) {
	p.advance() // DELETE
	if err := p.expect(lexer.FROM); err != nil {
		return nil, err
	}
	if p.cur.Kind != lexer.IDENT {
		return nil, ErrExpectedIdent
	}
	table := p.cur.Text
	p.advance()

	var where ast.Expr
	if p.cur.Kind == lexer.WHERE {
		p.advance()
		w, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		where = w
	}
	return &ast.DeleteStmt{Table: table, Where: where}, nil
}

// parseCreateTable parses `CREATE TABLE <name> (col type [PRIMARY KEY],
// ...)`, following query_parser/parser.parseCreateTable's column-list
// loop shape but with typed errors instead of panics.
func (p *Parser) parseCreateTable() (*ast.CreateTableStmt, error) {
	p.advance() // CREATE
	if err := p.expect(lexer.TABLE); err != nil {
		return nil, err
	}
	if p.cur.Kind != lexer.IDENT {
		return nil, ErrExpectedIdent
	}
	table := p.cur.Text
	p.advance()

	if p.cur.Kind != lexer.LPAREN {
		return nil, ErrExpectedParen
	}
	p.advance()

	var cols []ast.ColumnDef
	for p.cur.Kind != lexer.RPAREN {
		if p.cur.Kind != lexer.IDENT {
			return nil, ErrExpectedIdent
		}
		name := p.cur.Text
		p.advance()

		if p.cur.Kind != lexer.IDENT {
			return nil, fmt.Errorf("%w: expected a type name for column %q", ErrUnexpectedToken, name)
		}
		typeName := p.cur.Text
		p.advance()

		isPK := false
		if p.cur.Kind == lexer.PRIMARY {
			p.advance()
			if err := p.expect(lexer.KEY); err != nil {
				return nil, err
			}
			isPK = true
		}

		cols = append(cols, ast.ColumnDef{Name: name, TypeName: typeName, PrimaryKey: isPK})

		if p.cur.Kind == lexer.COMMA {
			p.advance()
		}
	}
	p.advance() // )

	return &ast.CreateTableStmt{Table: table, Columns: cols}, nil
}

// parseDropTable parses `DROP TABLE <name>`.
func (p *Parser) parseDropTable() (*ast.DropTableStmt, error) {
	p.advance() // DROP
	if err := p.expect(lexer.TABLE); err != nil {
		return nil, err
	}
	if p.cur.Kind != lexer.IDENT {
		return nil, ErrExpectedIdent
	}
	table := p.cur.Text
	p.advance()
	return &ast.DropTableStmt{Table: table}, nil
}
