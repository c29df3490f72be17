package ident_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BrandonDHaskell/approvald/internal/approvals/ident"
)

func TestMonthChar(t *testing.T) {
	cases := map[time.Month]byte{
		time.January:   '1',
		time.May:       '5',
		time.September: '9',
		time.October:   'A',
		time.November:  'B',
		time.December:  'C',
	}
	for m, want := range cases {
		assert.Equal(t, string(want), string(ident.MonthChar(m)), "month %s", m)
	}
}

func TestSequenceChar(t *testing.T) {
	assert.Equal(t, "1", string(ident.SequenceChar(1)))
	assert.Equal(t, "9", string(ident.SequenceChar(9)))
	assert.Equal(t, "A", string(ident.SequenceChar(10)))
	assert.Equal(t, "Z", string(ident.SequenceChar(35)))
	assert.Equal(t, "Z", string(ident.SequenceChar(36)))
	assert.Equal(t, "Z", string(ident.SequenceChar(100)))
}

func TestGenerate_ThirdInMayIsA530(t *testing.T) {
	existing := []string{"A510", "A520", "B510", "A410"}
	assert.Equal(t, "A530", ident.Generate("A", time.May, existing))
}

func TestGenerate_FirstInBucket(t *testing.T) {
	assert.Equal(t, "CC10", ident.Generate("C", time.December, nil))
}

func TestGenerate_DistinctUpToBucketCap(t *testing.T) {
	var ids []string
	seen := map[string]bool{}
	for i := 0; i < ident.MaxPerBucket; i++ {
		id := ident.Generate("D", time.October, ids)
		require.False(t, seen[id], "duplicate id %s at position %d", id, i+1)
		seen[id] = true
		ids = append(ids, id)
	}
	assert.Equal(t, "DAZ0", ids[len(ids)-1])
	assert.True(t, ident.Exhausted(ident.Prefix("D", time.October), ids))
}

func TestGenerate_36thCollidesWith35th(t *testing.T) {
	var ids []string
	for i := 0; i < ident.MaxPerBucket; i++ {
		ids = append(ids, ident.Generate("E", time.March, ids))
	}
	next := ident.Generate("E", time.March, ids)
	assert.Equal(t, ids[len(ids)-1], next, "36th id must repeat the 35th")
	assert.Equal(t, "E3Z0", next)
}

func TestCountInBucket_IgnoresLongerTypes(t *testing.T) {
	ids := []string{"A110", "AB110", "A1Z0", "A11"}
	assert.Equal(t, 2, ident.CountInBucket("A1", ids))
}

func TestParse(t *testing.T) {
	types := []string{"A", "B", "XY"}

	p, err := ident.Parse("AB70", types)
	require.NoError(t, err)
	assert.Equal(t, ident.Parsed{RequestType: "A", Month: time.November, Sequence: 7}, p)

	p, err = ident.Parse("XY1Z0", types)
	require.NoError(t, err)
	assert.Equal(t, 35, p.Sequence)
	assert.Equal(t, time.January, p.Month)

	for _, bad := range []string{"", "A51", "A511", "Q510", "AD10", "A5!0"} {
		_, err := ident.Parse(bad, types)
		assert.Error(t, err, "id %q", bad)
	}
}
