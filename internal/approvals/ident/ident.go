// Package ident builds the short, human-readable request IDs.
//
// An ID is the request type, one character for the month, one character for
// the position within the type+month bucket, and a literal "0" suffix:
//
//	A530 = type A, May, 3rd request of the bucket
//
// Positions 1-9 use digits and 10-35 use 'A'-'Z'. Buckets hold at most 35
// distinct IDs; later positions saturate to 'Z' and repeat the 35th ID.
// Callers must treat that repeat as a bucket-exhausted condition.
package ident

import (
	"fmt"
	"strings"
	"time"
)

// Suffix is the fixed trailing character of every ID.
const Suffix = "0"

// MaxPerBucket is the number of distinct IDs a type+month bucket can hold.
const MaxPerBucket = 35

const alphabet = "123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// MonthChar encodes January-September as '1'-'9' and October-December as 'A'-'C'.
func MonthChar(m time.Month) byte {
	if m < time.January || m > time.December {
		panic(fmt.Sprintf("ident: month %d out of range", m))
	}
	return alphabet[int(m)-1]
}

// SequenceChar encodes a 1-based bucket position. Positions beyond
// MaxPerBucket saturate to 'Z'.
func SequenceChar(n int) byte {
	if n < 1 {
		n = 1
	}
	if n > MaxPerBucket {
		n = MaxPerBucket
	}
	return alphabet[n-1]
}

// Prefix is the bucket key shared by every ID of a type in a month.
func Prefix(requestType string, m time.Month) string {
	return requestType + string(MonthChar(m))
}

// Generate returns the next ID for requestType in month m, given every ID
// already allocated. It has no side effects.
func Generate(requestType string, m time.Month, existing []string) string {
	prefix := Prefix(requestType, m)
	n := CountInBucket(prefix, existing) + 1
	return prefix + string(SequenceChar(n)) + Suffix
}

// CountInBucket counts IDs that belong to the bucket named by prefix.
// Only IDs of the exact generated shape are counted, so a multi-character
// type like "AB" never inflates bucket "A" counts.
func CountInBucket(prefix string, ids []string) int {
	want := len(prefix) + 2
	n := 0
	for _, id := range ids {
		if len(id) == want && strings.HasPrefix(id, prefix) && strings.HasSuffix(id, Suffix) {
			n++
		}
	}
	return n
}

// Exhausted reports whether the bucket already holds MaxPerBucket IDs.
func Exhausted(prefix string, ids []string) bool {
	return CountInBucket(prefix, ids) >= MaxPerBucket
}

// Parsed is a decoded ID.
type Parsed struct {
	RequestType string
	Month       time.Month
	Sequence    int
}

// Parse decodes id, given the set of configured request types.
func Parse(id string, requestTypes []string) (Parsed, error) {
	if len(id) < 4 || !strings.HasSuffix(id, Suffix) {
		return Parsed{}, fmt.Errorf("malformed request id %q", id)
	}
	typ := id[:len(id)-3]
	if !contains(requestTypes, typ) {
		return Parsed{}, fmt.Errorf("request id %q has unknown type %q", id, typ)
	}
	mi := strings.IndexByte(alphabet[:12], id[len(id)-3])
	if mi < 0 {
		return Parsed{}, fmt.Errorf("request id %q has bad month character", id)
	}
	si := strings.IndexByte(alphabet, id[len(id)-2])
	if si < 0 {
		return Parsed{}, fmt.Errorf("request id %q has bad sequence character", id)
	}
	return Parsed{RequestType: typ, Month: time.Month(mi + 1), Sequence: si + 1}, nil
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
