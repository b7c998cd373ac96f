package domain

// CallKey identifies a call by its unordered participant pair.
// {A,B} and {B,A} must map to the same key, so the two ids are joined
// in a fixed total order.
type CallKey string

func NewCallKey(a, b UserID) CallKey {
	if b < a {
		a, b = b, a
	}
	return CallKey(string(a) + "|" + string(b))
}

// Involves reports whether id is one of the key's two participants.
func (k CallKey) Involves(id UserID) bool {
	a, b := k.Pair()
	return a == id || b == id
}

// Other returns the peer of id inside the key. The second result is
// false when id is not part of the key.
func (k CallKey) Other(id UserID) (UserID, bool) {
	a, b := k.Pair()
	switch id {
	case a:
		return b, true
	case b:
		return a, true
	}
	return "", false
}

func (k CallKey) Pair() (UserID, UserID) {
	s := string(k)
	for i := 0; i < len(s); i++ {
		if s[i] == '|' {
			return UserID(s[:i]), UserID(s[i+1:])
		}
	}
	return UserID(s), ""
}
