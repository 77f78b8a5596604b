package parsers

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseProductCSV(t *testing.T) {
	data := "\xEF\xBB\xBFSKU,Name,Category,Unit,Price,Min_Stock\n" +
		"A-1,Apple,Fruit,kg,12.00,5\n" +
		"\n" +
		"B-2,Banana,,,\"1,500.5\",\n" +
		"C-3,Cherry,Fruit,box,cheap,2\n" +
		"D-4,Date\n"

	records, rowErrs, err := ParseProductCSV(strings.NewReader(data))
	require.NoError(t, err)

	require.Len(t, records, 3)
	assert.Equal(t, ParsedProductCSVRecord{Line: 2, SKU: "A-1", Name: "Apple", Category: "Fruit", Unit: "kg", Price: 1200, MinStock: 5}, records[0])
	assert.Equal(t, int64(150050), records[1].Price)
	assert.Equal(t, 4, records[1].Line)
	assert.Equal(t, "D-4", records[2].SKU)

	require.Len(t, rowErrs, 1)
	assert.Equal(t, 5, rowErrs[0].Line)
	assert.Contains(t, rowErrs[0].Message, "price")
}

func TestParseProductCSVHeader(t *testing.T) {
	_, _, err := ParseProductCSV(strings.NewReader(""))
	assert.ErrorIs(t, err, ErrEmptyCSV)

	_, _, err = ParseProductCSV(strings.NewReader("code,title\nA,B\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sku, name")
}

func TestDecodeText(t *testing.T) {
	latin := []byte("sku,name\nA-1,Caf\xe9\n")

	r, err := DecodeText(latin, EncodingAuto)
	require.NoError(t, err)
	out, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "sku,name\nA-1,Café\n", string(out))

	r, err = DecodeText([]byte("\xEF\xBB\xBFsku,name\nA-1,Café\n"), EncodingAuto)
	require.NoError(t, err)
	out, err = io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "sku,name\nA-1,Café\n", string(out))

	sjis := []byte{0x83, 0x65, 0x83, 0x58, 0x83, 0x67}
	r, err = DecodeText(sjis, EncodingShiftJIS)
	require.NoError(t, err)
	out, err = io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "テスト", string(out))

	_, err = DecodeText(latin, "ebcdic")
	assert.Error(t, err)
}

func TestIsCSV(t *testing.T) {
	assert.True(t, IsCSV([]byte("sku,name\nA-1,Apple\nB-2,Banana\n")))
	assert.True(t, IsCSV([]byte("just some text")))
	assert.False(t, IsCSV([]byte("%PDF-1.7\n%\xe2\xe3\xcf\xd3\n")))
	assert.False(t, IsCSV(append([]byte("PK\x03\x04"), bytes.Repeat([]byte{0}, 32)...)))
}

func TestWriteProductCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteProductCSV(&buf, [][]string{{"A-1", "Apple, red", "Fruit", "kg", "1200", "5"}}))
	assert.Equal(t, "sku,name,category,unit,price,min_stock\nA-1,\"Apple, red\",Fruit,kg,1200,5\n", buf.String())
}

func TestParsePrice(t *testing.T) {
	for in, want := range map[string]int64{
		"":         0,
		"0":        0,
		"12":       1200,
		"12.5":     1250,
		"12.50":    1250,
		"0.07":     7,
		"1,200":    120000,
		"1,200.99": 120099,
	} {
		got, err := ParsePrice(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	for _, in := range []string{"abc", ".50", "12.345", "12.", "-5", "1.2.3", "12.5a"} {
		_, err := ParsePrice(in)
		assert.Error(t, err, in)
	}
}

func TestFormatPriceRoundTrip(t *testing.T) {
	for _, minor := range []int64{0, 7, 1250, 120000, 123456789} {
		got, err := ParsePrice(FormatPrice(minor))
		require.NoError(t, err)
		assert.Equal(t, minor, got)
	}
	assert.Equal(t, "12.50", FormatPrice(1250))
	assert.Equal(t, "0.07", FormatPrice(7))
}

func TestParseProductCSVDecimalPrices(t *testing.T) {
	records, rowErrs, err := ParseProductCSV(strings.NewReader("sku,name,price\nA-1,Apple,12.50\nB-2,Banana,\"1,200\"\n"))
	require.NoError(t, err)
	assert.Empty(t, rowErrs)
	require.Len(t, records, 2)
	assert.Equal(t, int64(1250), records[0].Price)
	assert.Equal(t, int64(120000), records[1].Price)
}
