// Copyright 2024 The dscan Authors
// This file is part of the dscan library.
//
// The dscan library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The dscan library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the dscan library. If not, see <http://www.gnu.org/licenses/>.

package walletrpc

import "fmt"

// Error is the narrow error taxonomy the wallet node's responses are
// funnelled through: only "insufficient-balance" and "account-exists" get a
// distinct code; an empty code, or an error body that could not be decoded,
// becomes CodeUnknown; every other code becomes CodeInternal.
type Error struct {
	Code    string
	Status  int
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("walletrpc: %s (status %d): %s", e.Code, e.Status, e.Message)
}

const (
	CodeInsufficientBalance = "insufficient-balance"
	CodeAccountExists       = "account-exists"
	CodeInternal            = "internal-rpc-error"
	CodeUnknown             = "unknown"
)

// NewError maps a raw wire error code to the narrow taxonomy.
func NewError(code string, status int, message string) *Error {
	switch code {
	case CodeInsufficientBalance, CodeAccountExists:
		return &Error{Code: code, Status: status, Message: message}
	case "", CodeUnknown:
		return &Error{Code: CodeUnknown, Status: status, Message: message}
	default:
		return &Error{Code: CodeInternal, Status: status, Message: message}
	}
}
