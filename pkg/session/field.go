package session

import "time"

// Field identifies one of the four independently assembled buffers.
type Field int

const (
	FieldIdentity Field = iota
	FieldName
	FieldTime
	FieldCounter
)

// String returns the wire name of the field.
func (f Field) String() string {
	switch f {
	case FieldIdentity:
		return "id"
	case FieldName:
		return "name"
	case FieldTime:
		return "time"
	case FieldCounter:
		return "beans"
	default:
		return "unknown"
	}
}

// Cap returns the buffer cap for the field.
func (f Field) Cap() int {
	switch f {
	case FieldIdentity:
		return IdentityCap
	case FieldName:
		return NameCap
	case FieldTime:
		return TimeCap
	case FieldCounter:
		return CounterCap
	default:
		return 0
	}
}

// Buffer returns the current contents of the field's buffer.
func (s *Session) Buffer(f Field) []byte {
	switch f {
	case FieldIdentity:
		return s.Identity
	case FieldName:
		return s.Name
	case FieldTime:
		return s.Time
	case FieldCounter:
		return s.Counter
	default:
		return nil
	}
}

// Append adds one decoded symbol character to the field's buffer. Appends
// beyond the cap are accepted as no-ops; the return value reports whether
// the symbol was actually stored.
func (s *Session) Append(f Field, c byte) bool {
	var ok bool
	switch f {
	case FieldIdentity:
		s.Identity, ok = appendCapped(s.Identity, c, IdentityCap)
	case FieldName:
		s.Name, ok = appendCapped(s.Name, c, NameCap)
	case FieldTime:
		s.Time, ok = appendCapped(s.Time, c, TimeCap)
	case FieldCounter:
		s.Counter, ok = appendCapped(s.Counter, c, CounterCap)
	}
	return ok
}

// Reset clears the field's buffer. Resetting the identity also voids the
// handshake so later commits cannot apply against a partial fingerprint.
func (s *Session) Reset(f Field) {
	switch f {
	case FieldIdentity:
		s.Identity = nil
		s.HandshakeAt = time.Time{}
	case FieldName:
		s.Name = nil
	case FieldTime:
		s.Time = nil
	case FieldCounter:
		s.Counter = nil
	}
}
