// Package partcode classifies scanned part codes into typed part identities.
//
// Classification is purely syntactic: a well-formed code for a part that does
// not exist still classifies successfully. Existence is resolved later by the
// hierarchy locator.
package partcode

// PartKind is the coarse classification of a scanned code.
type PartKind int

// Part kinds
const (
	KindUnknown PartKind = iota
	KindProduct
	KindPalm
	KindMotor
	KindFinger
	KindServo
	KindRotaryServo
)

var kindNames = map[PartKind]string{
	KindUnknown:     "Unknown",
	KindProduct:     "Product",
	KindPalm:        "Palm",
	KindMotor:       "Motor",
	KindFinger:      "Finger",
	KindServo:       "Servo",
	KindRotaryServo: "RotaryServo",
}

// String returns the kind name
func (k PartKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "Unknown"
}

// AllKinds returns every kind in declaration order
func AllKinds() []PartKind {
	return []PartKind{KindUnknown, KindProduct, KindPalm, KindMotor, KindFinger, KindServo, KindRotaryServo}
}

// Field keys recorded on identities
const (
	FieldReason      = "reason"
	FieldSide        = "side"
	FieldFingerKind  = "finger_kind"
	FieldTypeCode    = "type_code"
	FieldProductLine = "product_line"
	FieldSKU         = "sku"
	FieldSegments    = "segments"
)

// Side values
const (
	SideLeft  = "L"
	SideRight = "R"
)

// PartIdentity is the typed result of classifying one scanned code.
// It is immutable: Fields returns a copy.
type PartIdentity struct {
	raw         string
	kind        PartKind
	resultLabel string
	fields      map[string]string
}

func newIdentity(raw string, kind PartKind, label string, fields map[string]string) PartIdentity {
	copied := make(map[string]string, len(fields))
	for k, v := range fields {
		copied[k] = v
	}
	return PartIdentity{raw: raw, kind: kind, resultLabel: label, fields: copied}
}

func unknown(raw, reason string) PartIdentity {
	return newIdentity(raw, KindUnknown, "Unknown", map[string]string{FieldReason: reason})
}

// Raw returns the scanned string as given
func (p PartIdentity) Raw() string { return p.raw }

// Kind returns the coarse kind
func (p PartIdentity) Kind() PartKind { return p.kind }

// ResultLabel returns the fine-grained subtype label (e.g. "Finger-F-L")
func (p PartIdentity) ResultLabel() string { return p.resultLabel }

// Fields returns a copy of the extracted attributes
func (p PartIdentity) Fields() map[string]string {
	out := make(map[string]string, len(p.fields))
	for k, v := range p.fields {
		out[k] = v
	}
	return out
}

// Field returns a single extracted attribute
func (p PartIdentity) Field(key string) (string, bool) {
	v, ok := p.fields[key]
	return v, ok
}

// IsUnknown reports whether the code could not be classified
func (p PartIdentity) IsUnknown() bool { return p.kind == KindUnknown }

// Reason returns the reason recorded for an Unknown identity
func (p PartIdentity) Reason() string { return p.fields[FieldReason] }

// Equal reports whether two identities are identical in kind, label, raw and fields
func (p PartIdentity) Equal(other PartIdentity) bool {
	if p.raw != other.raw || p.kind != other.kind || p.resultLabel != other.resultLabel {
		return false
	}
	if len(p.fields) != len(other.fields) {
		return false
	}
	for k, v := range p.fields {
		if ov, ok := other.fields[k]; !ok || ov != v {
			return false
		}
	}
	return true
}
