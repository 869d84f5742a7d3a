package launch

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/ianaindex"
)

var (
	ErrNotRepresentable   = errors.New("launch: byte sequence not representable in active locale")
	ErrUnsupportedCharset = errors.New("launch: unsupported locale charset")
)

// LocaleDecoder converts argument bytes using the charset of the
// environment-provided locale, consulted per conversion so the
// process-wide default locale is never disturbed. LC_ALL takes
// precedence over LC_CTYPE, then LANG. The minimal C/POSIX locale
// accepts ASCII only; a conversion failure is reported, never papered
// over with replacement characters.
type LocaleDecoder struct{}

func (LocaleDecoder) DecodeArg(arg string) ([]rune, error) {
	charset := activeCharset()
	switch charset {
	case "":
		return decodeASCII(arg)
	case "UTF-8":
		return decodeUTF8(arg)
	default:
		enc, err := ianaindex.IANA.Encoding(charset)
		if err != nil || enc == nil {
			return nil, fmt.Errorf("%w: %q", ErrUnsupportedCharset, charset)
		}
		decoded, err := enc.NewDecoder().String(arg)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrNotRepresentable, err)
		}
		// x/text decoders substitute U+FFFD for undecodable input
		// instead of erroring. The legacy charsets reachable here
		// cannot encode U+FFFD themselves, so any replacement rune in
		// the output marks an invalid byte sequence.
		if strings.ContainsRune(decoded, utf8.RuneError) {
			return nil, fmt.Errorf("%w: invalid byte sequence for charset %q", ErrNotRepresentable, charset)
		}
		return []rune(decoded), nil
	}
}

// activeCharset returns the normalized charset of the environment
// locale, or "" for the minimal locale.
func activeCharset() string {
	for _, key := range []string{"LC_ALL", "LC_CTYPE", "LANG"} {
		if v := os.Getenv(key); v != "" {
			return charsetOf(v)
		}
	}
	return ""
}

// charsetOf extracts the codeset from a locale name such as
// "en_US.UTF-8@euro". Locales without a codeset, and the C/POSIX
// locales, yield "".
func charsetOf(locale string) string {
	if i := strings.IndexByte(locale, '@'); i >= 0 {
		locale = locale[:i]
	}
	if locale == "C" || locale == "POSIX" {
		return ""
	}
	i := strings.IndexByte(locale, '.')
	if i < 0 {
		return ""
	}
	cs := strings.ToUpper(locale[i+1:])
	if cs == "UTF8" {
		cs = "UTF-8"
	}
	return cs
}

func decodeASCII(arg string) ([]rune, error) {
	out := make([]rune, 0, len(arg))
	for i := 0; i < len(arg); i++ {
		if arg[i] > 0x7F {
			return nil, fmt.Errorf("%w: byte 0x%02X at offset %d", ErrNotRepresentable, arg[i], i)
		}
		out = append(out, rune(arg[i]))
	}
	return out, nil
}

func decodeUTF8(arg string) ([]rune, error) {
	out := make([]rune, 0, len(arg))
	for i := 0; i < len(arg); {
		r, size := utf8.DecodeRuneInString(arg[i:])
		if r == utf8.RuneError && size == 1 {
			return nil, fmt.Errorf("%w: invalid UTF-8 at offset %d", ErrNotRepresentable, i)
		}
		out = append(out, r)
		i += size
	}
	return out, nil
}
