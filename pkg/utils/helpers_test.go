package utils

import (
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseValue(t *testing.T) {
	assert.Equal(t, 2020, ParseValue(" 2020 "))
	assert.Equal(t, 8.5, ParseValue("8.5"))
	assert.Equal(t, "tt1234567", ParseValue("tt1234567"))
	assert.Equal(t, "", ParseValue("  "))
}

func TestIsNumeric(t *testing.T) {
	cases := []struct {
		in   interface{}
		want bool
	}{
		{1, true},
		{int32(4), true},
		{2.5, true},
		{float32(1), true},
		{"12", false},
		{nil, false},
		{true, false},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, IsNumeric(c.in), "%#v", c.in)
	}
}

func TestNumeric(t *testing.T) {
	assert.Equal(t, 3.0, Numeric(3))
	assert.Equal(t, 3.0, Numeric(int64(3)))
	assert.Equal(t, 7.0, Numeric(uint8(7)))
	assert.Equal(t, 0.0, Numeric("3"))
}

func TestIsMissing(t *testing.T) {
	assert.True(t, IsMissing(nil))
	assert.True(t, IsMissing(" "))
	assert.True(t, IsMissing(math.NaN()))
	assert.False(t, IsMissing(0))
	assert.False(t, IsMissing("x"))
}

func TestAsInt(t *testing.T) {
	cases := []struct {
		in   interface{}
		want int
		ok   bool
	}{
		{2020, 2020, true},
		{int64(1999), 1999, true},
		{2001.0, 2001, true},
		{" 1990 ", 1990, true},
		{2001.5, 0, false},
		{math.NaN(), 0, false},
		{"twenty", 0, false},
		{nil, 0, false},
	}
	for _, c := range cases {
		got, ok := AsInt(c.in)
		assert.Equal(t, c.ok, ok, "%#v", c.in)
		assert.Equal(t, c.want, got, "%#v", c.in)
	}
}

func TestAsString(t *testing.T) {
	assert.Equal(t, "", AsString(nil))
	assert.Equal(t, "8.5", AsString(8.5))
	assert.Equal(t, "12", AsString(12))
	assert.Equal(t, "abc", AsString("abc"))
}

func TestOutputManager(t *testing.T) {
	base := t.TempDir()
	om := NewOutputManager(base)

	p, err := om.ReportPath("run-1", "../escape/top_directors", "CSV")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(base, "run-1", "top_directors.csv"), p)
	assert.DirExists(t, filepath.Join(base, "run-1"))

	assert.Equal(t, "reports/run-1/top_directors.csv", om.ObjectKey("reports", "run-1", p))
	assert.Equal(t, "run-1/a.json", om.ObjectKey("", "run-1", "/tmp/a.json"))
	assert.Equal(t, "text/csv", om.ContentType(p))
	assert.Equal(t, "application/json", om.ContentType("x.JSON"))
	assert.Equal(t, "application/octet-stream", om.ContentType("x.bin"))
}
