package pdf

import "testing"

func TestDecodeContent(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		stream string
		want   string
	}{
		{
			name:   "tj per text object",
			stream: "BT /F1 12 Tf 10 800 Td (Hello world) Tj ET\nBT 10 780 Td (Second line) Tj ET",
			want:   "Hello world\nSecond line",
		},
		{
			name:   "tj array with kerning gap",
			stream: "BT [(Hel) 20 (lo) -300 (there)] TJ ET",
			want:   "Hello there",
		},
		{
			name:   "escapes and nesting",
			stream: `BT (a \(b\) c\\d \101 (nested)) Tj ET`,
			want:   `a (b) c\d A (nested)`,
		},
		{
			name:   "hex string",
			stream: "BT <48656C6C6F> Tj ET",
			want:   "Hello",
		},
		{
			name:   "quote operators break lines",
			stream: "BT (one) Tj (two) ' 1 2 (three) \" ET",
			want:   "one\ntwo\nthree",
		},
		{
			name:   "t-star and td",
			stream: "BT (a) Tj T* (b) Tj 0 -14 Td (c) Tj 5 0 Td (d) Tj ET",
			want:   "a\nb\ncd",
		},
		{
			name:   "latin1 byte",
			stream: `BT (caf\351) Tj ET`,
			want:   "café",
		},
		{
			name:   "graphics only",
			stream: "q 1 0 0 1 0 0 cm 0 0 100 100 re f Q % comment (ignored) Tj\n",
			want:   "",
		},
		{
			name:   "inline image skipped",
			stream: "BI /W 1 /H 1 /BPC 8 ID \x00\xff(bogus) EI BT (after) Tj ET",
			want:   "after",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := decodeContent([]byte(tc.stream)); got != tc.want {
				t.Errorf("want %q, got %q", tc.want, got)
			}
		})
	}
}
