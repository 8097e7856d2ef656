package dbus

import (
	"github.com/creachadair/mds/mapset"
)

// basicTypeCodes is the set of D-Bus type codes that name a scalar
// (non-container) type. It is consulted by the dict-entry key check
// and by callers deciding whether a type code needs recursion at all.
var basicTypeCodes = mapset.New[byte](
	'y', 'b', 'n', 'q', 'i', 'u', 'x', 't', 'd', 's', 'o', 'g',
)

// sigIterator walks a signature string one complete type at a time.
// It is the concrete token stream [FromSignature] and [FromIterator]
// build an ArgumentNode tree from.
type sigIterator struct {
	rest string
}

// newSigIterator returns an iterator over sig. It does not validate
// sig; malformed input surfaces as an error from the first call to
// next that reaches it.
func newSigIterator(sig string) *sigIterator {
	return &sigIterator{rest: sig}
}

// done reports whether the iterator has no further types to emit.
func (it *sigIterator) done() bool {
	return it.rest == ""
}

// next consumes and returns the text of the next complete type in the
// iterator, or an error if the remaining text doesn't start with a
// well-formed type.
func (it *sigIterator) next() (string, error) {
	n, err := typeEnd(it.rest)
	if err != nil {
		return "", err
	}
	tok := it.rest[:n]
	it.rest = it.rest[n:]
	return tok, nil
}

// validation wraps a validateSingle result so the zero value (a nil
// error, meaning "valid") can still be stored and retrieved through
// [cache], whose Get panics on a stored nil interface value if the
// error were stored unwrapped.
type validation struct{ err error }

// validateSingleCache memoizes validateSingle results, keyed by the
// exact signature text. Method and signal descriptors tend to parse
// the same handful of signatures over and over across many calls, so
// this avoids re-walking them each time; unlike an ArgumentNode tree,
// a validation result carries no parent or name to get stale.
var validateSingleCache cache[string, validation]

// validateSingle reports an error unless sig describes exactly one
// complete D-Bus type (I4).
func validateSingle(sig string) error {
	if sig == "" {
		return malformedf(sig, "empty signature")
	}
	if v, ok := validateSingleCache.Get(sig); ok {
		return v.err
	}
	n, err := typeEnd(sig)
	if err == nil && n != len(sig) {
		err = malformedf(sig, "describes more than one complete type")
	}
	validateSingleCache.Put(sig, validation{err})
	return err
}

// splitTypes splits sig, which must already be known-valid (the
// contents of a struct or the whole of a message signature), into the
// text of each complete type in sequence.
func splitTypes(sig string) ([]string, error) {
	var out []string
	it := newSigIterator(sig)
	for !it.done() {
		tok, err := it.next()
		if err != nil {
			return nil, err
		}
		out = append(out, tok)
	}
	return out, nil
}

// typeEnd returns the length, in bytes, of the single complete type
// at the front of sig, or an error if sig does not start with a
// well-formed type.
func typeEnd(sig string) (int, error) {
	if sig == "" {
		return 0, malformedf(sig, "empty signature")
	}
	switch c := sig[0]; {
	case basicTypeCodes.Has(c):
		return 1, nil
	case c == 'v':
		return 1, nil
	case c == 'a':
		if len(sig) < 2 {
			return 0, malformedf(sig, "array type code with no element type")
		}
		elemEnd := typeEnd
		if sig[1] == '{' {
			elemEnd = dictEntryEnd
		}
		n, err := elemEnd(sig[1:])
		if err != nil {
			return 0, err
		}
		return 1 + n, nil
	case c == '(':
		n, err := containerEnd(sig, '(', ')')
		if err != nil {
			return 0, err
		}
		if n == 2 {
			return 0, malformedf(sig, "struct has no fields")
		}
		return n, nil
	case c == '{':
		return 0, malformedf(sig, "dict entry outside an array")
	default:
		return 0, malformedf(sig, "unknown type code %q", string(c))
	}
}

// dictEntryEnd returns the length of the dict entry at the front of
// sig. Only typeEnd's array case calls it, since a dict entry is valid
// only as the element type of an array.
func dictEntryEnd(sig string) (int, error) {
	n, err := containerEnd(sig, '{', '}')
	if err != nil {
		return 0, err
	}
	inner := sig[1 : n-1]
	fields, err := splitTypes(inner)
	if err != nil {
		return 0, err
	}
	if len(fields) != 2 {
		return 0, malformedf(sig, "dict entry must have exactly 2 children, got %d", len(fields))
	}
	if !basicTypeCodes.Has(fields[0][0]) {
		return 0, malformedf(sig, "dict entry key %q is not a basic type", fields[0])
	}
	return n, nil
}

// containerEnd returns the length of the parenthesized or braced
// region starting at sig[0], which must be open, scanning forward
// through nested complete types until the matching close is found.
func containerEnd(sig string, open, close byte) (int, error) {
	if sig[0] != open {
		return 0, malformedf(sig, "expected %q", string(open))
	}
	i := 1
	for i < len(sig) && sig[i] != close {
		n, err := typeEnd(sig[i:])
		if err != nil {
			return 0, err
		}
		i += n
	}
	if i >= len(sig) {
		return 0, malformedf(sig, "missing closing %q", string(close))
	}
	return i + 1, nil
}
