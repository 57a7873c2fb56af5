package market

import (
	"fmt"
	"strings"
	"sync"
)

// Symbol is a canonical uppercase ticker. Symbols returned by a SymbolTable
// are interned: equal tickers share one backing string for the life of the
// process, so identity comparisons are cheap.
type Symbol string

// MaxSymbolLen bounds accepted ticker lengths.
const MaxSymbolLen = 16

// SymbolTable interns canonical symbols. It is owned by the service and
// shared by all workers; entries are never released.
type SymbolTable struct {
	m sync.Map // canonical string -> Symbol
}

// NewSymbolTable returns an empty SymbolTable.
func NewSymbolTable() *SymbolTable { return &SymbolTable{} }

// Intern canonicalizes and interns a ticker. It rejects empty, over-long,
// and non-ASCII tickers.
func (t *SymbolTable) Intern(raw string) (Symbol, error) {
	var s = strings.ToUpper(strings.TrimSpace(raw))
	if s == "" {
		return "", fmt.Errorf("symbol is empty")
	} else if len(s) > MaxSymbolLen {
		return "", fmt.Errorf("symbol %q exceeds %d characters", s, MaxSymbolLen)
	}
	for i := 0; i < len(s); i++ {
		var c = s[i]
		if (c < 'A' || c > 'Z') && (c < '0' || c > '9') && c != '.' && c != '-' {
			return "", fmt.Errorf("symbol %q contains invalid character %q", s, c)
		}
	}

	if v, ok := t.m.Load(s); ok {
		return v.(Symbol), nil
	}
	var v, _ = t.m.LoadOrStore(s, Symbol(s))
	return v.(Symbol), nil
}

// Len returns the number of interned symbols.
func (t *SymbolTable) Len() int {
	var n int
	t.m.Range(func(_, _ interface{}) bool { n++; return true })
	return n
}

func (s Symbol) String() string { return string(s) }
