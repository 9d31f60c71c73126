package geocodec

import (
	"fmt"

	"github.com/mohammed-shakir/geoclient/pkg/jsontok"
)

// skipValue discards the value of the member whose name c is on, however
// deeply nested, and leaves c on the value's last token so the next read
// starts at the following member.
func skipValue(c jsontok.Cursor) error {
	name := c.Current().Text
	k, err := next(c)
	if err != nil {
		return fmt.Errorf("skip %q: %w", name, err)
	}
	depth := 0
	for {
		switch k {
		case jsontok.BeginObject, jsontok.BeginArray:
			depth++
		case jsontok.EndObject, jsontok.EndArray:
			depth--
		}
		if depth <= 0 {
			return nil
		}
		if k, err = next(c); err != nil {
			return fmt.Errorf("skip %q: %w", name, err)
		}
	}
}
