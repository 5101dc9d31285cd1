package partcode

import (
	"fmt"
	"sort"
	"strings"
)

// Default code literals
const (
	DefaultMotorPrefix       = "M11021"
	DefaultServoPrefix       = "S12023"
	DefaultRotaryServoPrefix = "R13025"
	DefaultAssemblyPrefix    = "MO-"
	DefaultProductLinePrefix = "DX"
	DefaultLeftPalmSKU       = "60001"
	DefaultRightPalmSKU      = "60002"
)

// DefaultProductLines are the product line tokens recognized out of the box
var DefaultProductLines = []string{"DX021", "DX022"}

// fingerTypeLabels maps the 2-char finger type segment to a result label
var fingerTypeLabels = map[string]string{
	"FL": "Finger-F-L",
	"FR": "Finger-F-R",
	"ML": "Finger-M-L",
	"MR": "Finger-M-R",
	"F0": "Finger-F",
	"M0": "Finger-M",
	"D0": "Finger-D",
}

// Classifier turns raw scanned codes into PartIdentity values.
// A Classifier is immutable after construction and safe for concurrent use.
type Classifier struct {
	motorPrefix       string
	servoPrefix       string
	rotaryServoPrefix string
	assemblyPrefix    string
	productLinePrefix string
	productLines      []string
	leftSKU           string
	rightSKU          string
}

// ClassifierOption configures a Classifier
type ClassifierOption func(*Classifier)

// WithMotorPrefix overrides the motor code prefix
func WithMotorPrefix(prefix string) ClassifierOption {
	return func(c *Classifier) {
		if p := strings.TrimSpace(prefix); p != "" {
			c.motorPrefix = strings.ToUpper(p)
		}
	}
}

// WithServoPrefix overrides the servo code prefix
func WithServoPrefix(prefix string) ClassifierOption {
	return func(c *Classifier) {
		if p := strings.TrimSpace(prefix); p != "" {
			c.servoPrefix = strings.ToUpper(p)
		}
	}
}

// WithRotaryServoPrefix overrides the rotary servo code prefix
func WithRotaryServoPrefix(prefix string) ClassifierOption {
	return func(c *Classifier) {
		if p := strings.TrimSpace(prefix); p != "" {
			c.rotaryServoPrefix = strings.ToUpper(p)
		}
	}
}

// WithProductLines replaces the known product line tokens
func WithProductLines(lines ...string) ClassifierOption {
	return func(c *Classifier) {
		normalized := make([]string, 0, len(lines))
		for _, l := range lines {
			if l = strings.ToUpper(strings.TrimSpace(l)); l != "" {
				normalized = append(normalized, l)
			}
		}
		if len(normalized) > 0 {
			c.productLines = normalized
		}
	}
}

// WithPalmSKUs overrides the SKU values that mark left and right palms
func WithPalmSKUs(left, right string) ClassifierOption {
	return func(c *Classifier) {
		left, right = strings.TrimSpace(left), strings.TrimSpace(right)
		if left != "" && right != "" && !strings.EqualFold(left, right) {
			c.leftSKU = strings.ToUpper(left)
			c.rightSKU = strings.ToUpper(right)
		}
	}
}

// NewClassifier creates a classifier with the default code tables, modified by opts
func NewClassifier(opts ...ClassifierOption) *Classifier {
	c := &Classifier{
		motorPrefix:       DefaultMotorPrefix,
		servoPrefix:       DefaultServoPrefix,
		rotaryServoPrefix: DefaultRotaryServoPrefix,
		assemblyPrefix:    DefaultAssemblyPrefix,
		productLinePrefix: DefaultProductLinePrefix,
		productLines:      append([]string(nil), DefaultProductLines...),
		leftSKU:           DefaultLeftPalmSKU,
		rightSKU:          DefaultRightPalmSKU,
	}
	for _, opt := range opts {
		opt(c)
	}
	// longest line first so DX0210 is not shadowed by DX021
	sort.SliceStable(c.productLines, func(i, j int) bool {
		return len(c.productLines[i]) > len(c.productLines[j])
	})
	return c
}

var defaultClassifier = NewClassifier()

// Parse classifies raw using the default code tables
func Parse(raw string) PartIdentity {
	return defaultClassifier.Parse(raw)
}

// Parse classifies raw. It never fails: unrecognized input yields an Unknown
// identity carrying the reason.
func (c *Classifier) Parse(raw string) PartIdentity {
	code := strings.ToUpper(strings.TrimSpace(raw))
	if code == "" {
		return unknown(raw, "Empty")
	}

	switch {
	case strings.HasPrefix(code, c.motorPrefix):
		return newIdentity(raw, KindMotor, KindMotor.String(), nil)
	case strings.HasPrefix(code, c.servoPrefix):
		return newIdentity(raw, KindServo, KindServo.String(), nil)
	case strings.HasPrefix(code, c.rotaryServoPrefix):
		return newIdentity(raw, KindRotaryServo, KindRotaryServo.String(), nil)
	case strings.HasPrefix(code, c.assemblyPrefix):
		return c.parseFinger(raw, code)
	case strings.HasPrefix(code, c.productLinePrefix):
		if id, ok := c.parseProductLine(raw, code); ok {
			return id
		}
	}
	return unknown(raw, "No match")
}

func (c *Classifier) parseFinger(raw, code string) PartIdentity {
	segments := strings.Split(code, "-")
	n := len(segments)
	switch {
	case n < 4:
		return unknown(raw, fmt.Sprintf("Finger code has %d segments, need at least 4", n))
	case n == 4:
		return newIdentity(raw, KindFinger, "Finger", map[string]string{FieldSegments: "4"})
	case n > 5:
		return newIdentity(raw, KindFinger, fmt.Sprintf("Finger(%d segments)", n),
			map[string]string{FieldSegments: fmt.Sprintf("%d", n)})
	}

	typeCode := segments[3]
	fields := map[string]string{
		FieldSegments: "5",
		FieldTypeCode: typeCode,
	}
	label, ok := fingerTypeLabels[typeCode]
	if !ok {
		return newIdentity(raw, KindFinger, fmt.Sprintf("Finger(%s)", typeCode), fields)
	}

	// label is Finger-<kind>[-<side>]
	parts := strings.Split(label, "-")
	if len(parts) >= 2 {
		fields[FieldFingerKind] = parts[1]
	}
	if len(parts) == 3 {
		fields[FieldSide] = parts[2]
	}
	return newIdentity(raw, KindFinger, label, fields)
}

func (c *Classifier) parseProductLine(raw, code string) (PartIdentity, bool) {
	if line, sku, ok := strings.Cut(code, "-"); ok && line != "" && !strings.Contains(sku, "-") {
		if side := c.sideForSKU(sku); side != "" {
			return newIdentity(raw, KindPalm, "Palm-"+side, map[string]string{
				FieldSide:        side,
				FieldProductLine: line,
				FieldSKU:         sku,
			}), true
		}
	}

	for _, line := range c.productLines {
		if strings.HasPrefix(code, line) {
			return newIdentity(raw, KindProduct, line, map[string]string{FieldProductLine: line}), true
		}
	}
	return PartIdentity{}, false
}

func (c *Classifier) sideForSKU(sku string) string {
	switch sku {
	case c.leftSKU:
		return SideLeft
	case c.rightSKU:
		return SideRight
	}
	return ""
}

// PalmSideFromID derives the palm side from a stored palm id using the SKU
// suffix rule. It returns "" when the side is not determinable.
func (c *Classifier) PalmSideFromID(id string) string {
	code := strings.ToUpper(strings.TrimSpace(id))
	switch {
	case code == "":
		return ""
	case strings.HasSuffix(code, c.leftSKU):
		return SideLeft
	case strings.HasSuffix(code, c.rightSKU):
		return SideRight
	}
	return ""
}

// PalmSideFromID derives the palm side using the default SKU values
func PalmSideFromID(id string) string {
	return defaultClassifier.PalmSideFromID(id)
}
