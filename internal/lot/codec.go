// Package lot implements the 12-character production lot code printed on
// batch labels: 2 chars recipe initials, 2 chars operator initials, then two
// 4-digit base-36 minute offsets (start, finish) from the 2020-01-01 epoch.
//
// The codec is pure and stateless. It must stay byte-for-byte compatible
// with labels already in circulation, so the layout is frozen.
package lot

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Epoch is the zero point for the minute offsets in a lot code.
var Epoch = time.Date(2020, time.January, 1, 0, 0, 0, 0, time.UTC)

const (
	// CodeLength is the fixed length of a lot code.
	CodeLength = 12

	segmentLength = 4

	// segmentSpace is 36^4, the number of encodable minute values. Minute
	// offsets wrap modulo this value; wrapping is kept for compatibility
	// with already-printed labels.
	segmentSpace = 36 * 36 * 36 * 36
)

var lotFormat = regexp.MustCompile(`^[A-Z0-9]{12}$`)

// Data is the lossy tuple recovered from a lot code. The initials are
// returned verbatim; resolving them to full names is the reconciliation
// service's job. Instants carry minute granularity only.
type Data struct {
	RecipeInitials string
	UserInitials   string
	StartedAt      time.Time
	FinishedAt     time.Time
}

// Encode builds the 12-character lot code for a production run. Sub-minute
// precision of the instants is dropped (floor to the minute), so a
// decode(encode(x)) round trip recovers the instants truncated to the
// minute, not bit-identical.
func Encode(recipeName, userName string, startedAt, finishedAt time.Time) string {
	return Initials(recipeName) +
		Initials(userName) +
		encodeMinutes(startedAt) +
		encodeMinutes(finishedAt)
}

// Decode parses a lot code back into its Data tuple. It reports false for
// anything that is not exactly 12 characters or whose minute segments
// contain characters outside [0-9A-Z]; it never fails in any other way, so
// UIs can probe arbitrary input safely.
func Decode(code string) (Data, bool) {
	if len(code) != CodeLength {
		return Data{}, false
	}
	startMinutes, ok := parseMinutes(code[4:8])
	if !ok {
		return Data{}, false
	}
	finishMinutes, ok := parseMinutes(code[8:12])
	if !ok {
		return Data{}, false
	}
	return Data{
		RecipeInitials: code[0:2],
		UserInitials:   code[2:4],
		StartedAt:      Epoch.Add(time.Duration(startMinutes) * time.Minute),
		FinishedAt:     Epoch.Add(time.Duration(finishMinutes) * time.Minute),
	}, true
}

// IsValidFormat is the purely syntactic check for a lot code: exactly 12
// uppercase alphanumeric characters. It says nothing about decodability of
// the minute segments beyond the shared alphabet.
func IsValidFormat(code string) bool {
	return lotFormat.MatchString(code)
}

func encodeMinutes(t time.Time) string {
	minutes := (t.Unix() - Epoch.Unix()) / 60
	wrapped := minutes % segmentSpace
	if wrapped < 0 {
		wrapped += segmentSpace
	}
	encoded := strings.ToUpper(strconv.FormatInt(wrapped, 36))
	if pad := segmentLength - len(encoded); pad > 0 {
		encoded = strings.Repeat("0", pad) + encoded
	}
	return encoded
}

func parseMinutes(segment string) (int64, bool) {
	var n int64
	for i := 0; i < len(segment); i++ {
		c := segment[i]
		var digit int64
		switch {
		case c >= '0' && c <= '9':
			digit = int64(c - '0')
		case c >= 'A' && c <= 'Z':
			digit = int64(c-'A') + 10
		default:
			return 0, false
		}
		n = n*36 + digit
	}
	return n, true
}
