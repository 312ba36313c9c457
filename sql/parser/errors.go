package parser

import "errors"

// Sentinel errors for the handful of malformed-input shapes common enough
// across statement kinds to be worth naming, mirroring
// query_parser/parser's ErrExpectedValues/ErrExpectedParen style.
var (
	ErrUnexpectedToken  = errors.New("parser: unexpected token")
	ErrExpectedValues   = errors.New("parser: expected VALUES")
	ErrExpectedParen    = errors.New("parser: expected (")
	ErrExpectedIdent    = errors.New("parser: expected identifier")
	ErrEmptyInput       = errors.New("parser: empty input")
	ErrUnterminatedExpr = errors.New("parser: unterminated expression")
)
