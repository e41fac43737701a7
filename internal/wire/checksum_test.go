package wire

import "testing"

func TestChecksum(t *testing.T) {
	tests := []struct {
		name     string
		data     []byte
		expected uint16
	}{
		{
			name:     "ICMP Echo Request example",
			data:     []byte{0x08, 0x00, 0x00, 0x00, 0x00, 0x01, 0x00, 0x01},
			expected: 0xf7fd,
		},
		{
			name:     "simple even length",
			data:     []byte{0x00, 0x01, 0x00, 0x02},
			expected: 0xfffc,
		},
		{
			name:     "odd length data",
			data:     []byte{0x00, 0x01, 0xf2},
			expected: 0x0dfe,
		},
		{
			name:     "all zeros",
			data:     []byte{0x00, 0x00, 0x00, 0x00},
			expected: 0xffff,
		},
		{
			name:     "all ones",
			data:     []byte{0xff, 0xff, 0xff, 0xff},
			expected: 0x0000,
		},
		{
			name:     "empty data",
			data:     []byte{},
			expected: 0xffff,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Checksum(tt.data); got != tt.expected {
				t.Errorf("Checksum(%v) = 0x%04x, want 0x%04x", tt.data, got, tt.expected)
			}
		})
	}
}

func TestValidateChecksumRoundTrip(t *testing.T) {
	buf := BuildICMPEcho(0x1234, 7, []byte("trippy-probe-payload"))
	if !ValidateChecksum(buf) {
		t.Fatalf("checksum of freshly built echo request does not validate")
	}

	buf[10] ^= 0xff // corrupt a payload byte
	if ValidateChecksum(buf) {
		t.Fatalf("checksum validated after corruption")
	}
}
