package ids

import "testing"

func TestDocKeyRoundTrips(t *testing.T) {
	cases := []struct {
		vol  VolumeId
		file FileId
	}{
		{0, 0},
		{1, 0x100},
		{42, 0x1234_5678_9abc},
		{^VolumeId(0), fileIdMask},
	}
	for _, c := range cases {
		k := NewDocKey(c.vol, c.file)
		gotVol, gotFile := k.Split()
		if gotVol != c.vol || gotFile != c.file&fileIdMask {
			t.Fatalf("NewDocKey(%d,%#x).Split() = (%d,%#x), want (%d,%#x)",
				c.vol, c.file, gotVol, gotFile, c.vol, c.file&fileIdMask)
		}
	}
}

func TestDocKeyStringParseRoundTrip(t *testing.T) {
	k := NewDocKey(9, 0xfeed_beef)
	s := k.String()
	parsed, err := ParseDocKey(s)
	if err != nil {
		t.Fatalf("ParseDocKey(%q): %v", s, err)
	}
	if parsed != k {
		t.Fatalf("round trip mismatch: got %v want %v", parsed, k)
	}
}

func TestDocKeyDisplayIsStable(t *testing.T) {
	k := NewDocKey(7, 0xabc)
	if got, want := k.String(), "7:0x000000000abc"; got != want {
		t.Fatalf("String() = %q, want %q", got, want)
	}
}

func TestParseDocKeyRejectsMalformed(t *testing.T) {
	for _, s := range []string{"", "7", "7:abc", "7:0xzz"} {
		if _, err := ParseDocKey(s); err == nil {
			t.Fatalf("ParseDocKey(%q) expected error, got nil", s)
		}
	}
}
