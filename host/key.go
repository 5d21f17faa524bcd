package host

import (
	"net/url"
	"strings"

	"github.com/xraph/settle/types"
)

// Key addresses one record: "<contract>/<kind>/<part>...". Every record a
// contract owns lives under its own address, so instances never collide.
type Key string

// NewKey builds a key in contract's namespace. Parts are path-escaped, so a
// caller-supplied part cannot reach into another kind.
func NewKey(contract types.Address, kind string, parts ...string) Key {
	var b strings.Builder
	b.WriteString(string(contract))
	b.WriteByte('/')
	b.WriteString(kind)
	for _, p := range parts {
		b.WriteByte('/')
		b.WriteString(url.PathEscape(p))
	}
	return Key(b.String())
}

func (k Key) String() string { return string(k) }
