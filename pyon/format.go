package pyon

import (
	"fmt"
	"math"
	"math/big"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// FormatLiteral encodes v in the literal grammar accepted by
// [ParseLiteral].  Maps must have string keys and are written with
// sorted keys.  NaN and infinities have no literal form and are
// rejected.
func FormatLiteral(v any) ([]byte, error) {
	var sb strings.Builder
	if err := writeValue(&sb, reflect.ValueOf(v), 0); err != nil {
		return nil, err
	}
	return []byte(sb.String()), nil
}

var bigIntType = reflect.TypeOf((*big.Int)(nil))

func writeValue(sb *strings.Builder, v reflect.Value, depth int) error {
	if depth > MaxDepth {
		return fmt.Errorf("pyon: nesting deeper than %d", MaxDepth)
	}
	if !v.IsValid() {
		sb.WriteString("None")
		return nil
	}
	if v.Type() == bigIntType {
		if v.IsNil() {
			sb.WriteString("None")
			return nil
		}
		sb.WriteString(v.Interface().(*big.Int).String())
		return nil
	}

	switch v.Kind() {
	case reflect.Interface, reflect.Pointer:
		if v.IsNil() {
			sb.WriteString("None")
			return nil
		}
		return writeValue(sb, v.Elem(), depth)
	case reflect.Bool:
		if v.Bool() {
			sb.WriteString("True")
		} else {
			sb.WriteString("False")
		}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		sb.WriteString(strconv.FormatInt(v.Int(), 10))
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		sb.WriteString(strconv.FormatUint(v.Uint(), 10))
	case reflect.Float32, reflect.Float64:
		return writeFloat(sb, v.Float())
	case reflect.String:
		writeString(sb, v.String())
	case reflect.Slice, reflect.Array:
		if v.Kind() == reflect.Slice && v.IsNil() {
			sb.WriteString("[]")
			return nil
		}
		sb.WriteByte('[')
		for i := 0; i < v.Len(); i++ {
			if i > 0 {
				sb.WriteString(", ")
			}
			if err := writeValue(sb, v.Index(i), depth+1); err != nil {
				return err
			}
		}
		sb.WriteByte(']')
	case reflect.Map:
		if v.Type().Key().Kind() != reflect.String {
			return fmt.Errorf("pyon: unsupported map key type %s", v.Type().Key())
		}
		keys := v.MapKeys()
		sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })
		sb.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				sb.WriteString(", ")
			}
			writeString(sb, k.String())
			sb.WriteString(": ")
			if err := writeValue(sb, v.MapIndex(k), depth+1); err != nil {
				return err
			}
		}
		sb.WriteByte('}')
	default:
		return fmt.Errorf("pyon: unsupported type %s", v.Type())
	}
	return nil
}

func writeFloat(sb *strings.Builder, f float64) error {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return fmt.Errorf("pyon: %v has no literal form", f)
	}
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".e") {
		s += ".0"
	}
	sb.WriteString(s)
	return nil
}

// writeString quotes s the way the daemon does: single quotes unless
// s contains a single quote and no double quote.
func writeString(sb *strings.Builder, s string) {
	q := byte('\'')
	if strings.IndexByte(s, '\'') >= 0 && strings.IndexByte(s, '"') < 0 {
		q = '"'
	}
	sb.WriteByte(q)
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		if r == utf8.RuneError && size == 1 {
			fmt.Fprintf(sb, `\x%02x`, s[i])
			i++
			continue
		}
		i += size
		switch {
		case r == rune(q) || r == '\\':
			sb.WriteByte('\\')
			sb.WriteRune(r)
		case r == '\n':
			sb.WriteString(`\n`)
		case r == '\r':
			sb.WriteString(`\r`)
		case r == '\t':
			sb.WriteString(`\t`)
		case r < 0x80 && !unicode.IsPrint(r):
			fmt.Fprintf(sb, `\x%02x`, r)
		case r >= 0x80 && !unicode.IsPrint(r):
			if r > 0xffff {
				fmt.Fprintf(sb, `\U%08x`, r)
			} else {
				fmt.Fprintf(sb, `\u%04x`, r)
			}
		default:
			sb.WriteRune(r)
		}
	}
	sb.WriteByte(q)
}
