package xlsx

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"
)

const maxPlainFloat = 1e21

var xmlEscaper = strings.NewReplacer( //nolint:gochecknoglobals
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&apos;",
)

func writeCell(buf *bytes.Buffer, ref string, value any) {
	if n, ok := number(value); ok {
		buf.WriteString(`<c r="`)
		buf.WriteString(ref)
		buf.WriteString(`"><v>`)
		buf.WriteString(n)
		buf.WriteString(`</v></c>`)

		return
	}

	buf.WriteString(`<c r="`)
	buf.WriteString(ref)
	buf.WriteString(`" t="inlineStr"><is><t xml:space="preserve">`)
	xmlEscaper.WriteString(buf, text(value)) //nolint:errcheck
	buf.WriteString(`</t></is></c>`)
}

// number returns the cell text of value if it is a finite number.
func number(value any) (string, bool) {
	switch n := value.(type) {
	case int:
		return strconv.Itoa(n), true
	case int8:
		return strconv.FormatInt(int64(n), 10), true
	case int16:
		return strconv.FormatInt(int64(n), 10), true
	case int32:
		return strconv.FormatInt(int64(n), 10), true
	case int64:
		return strconv.FormatInt(n, 10), true
	case uint:
		return strconv.FormatUint(uint64(n), 10), true
	case uint8:
		return strconv.FormatUint(uint64(n), 10), true
	case uint16:
		return strconv.FormatUint(uint64(n), 10), true
	case uint32:
		return strconv.FormatUint(uint64(n), 10), true
	case uint64:
		return strconv.FormatUint(n, 10), true
	case float32:
		return formatFloat(float64(n), 32)
	case float64:
		return formatFloat(n, 64)
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return "", false
		}

		return formatFloat(f, 64)
	}

	return "", false
}

func formatFloat(f float64, bits int) (string, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return "", false
	}

	if f == math.Trunc(f) && math.Abs(f) < maxPlainFloat {
		return strconv.FormatFloat(f, 'f', -1, bits), true
	}

	return strconv.FormatFloat(f, 'g', -1, bits), true
}

// text returns the string form of a non-numeric value, with any characters
// that cannot appear in an XML document replaced.
func text(value any) string {
	var s string

	switch v := value.(type) {
	case nil:
	case string:
		s = v
	default:
		s = fmt.Sprint(v)
	}

	return strings.Map(func(r rune) rune {
		if r < ' ' && r != '\t' && r != '\n' && r != '\r' || r == 0xFFFE || r == 0xFFFF {
			return utf8.RuneError
		}

		return r
	}, strings.ToValidUTF8(s, string(utf8.RuneError)))
}
