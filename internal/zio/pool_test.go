package zio

import "testing"

func TestGetBufferSizes(t *testing.T) {
	tests := []struct {
		request int
		wantCap int
	}{
		{1, size1k},
		{size1k, size1k},
		{size1k + 1, size8k},
		{size8k, size8k},
		{size8k + 1, size112k},
		{size112k, size112k},
		{size256k, size256k},
	}
	for _, tt := range tests {
		buf := GetBuffer(tt.request)
		if len(buf) != tt.request {
			t.Errorf("GetBuffer(%d) len = %d", tt.request, len(buf))
		}
		if cap(buf) != tt.wantCap {
			t.Errorf("GetBuffer(%d) cap = %d, want %d", tt.request, cap(buf), tt.wantCap)
		}
		PutBuffer(buf)
	}
}

func TestGetBufferOversized(t *testing.T) {
	buf := GetBuffer(size256k + 1)
	if len(buf) != size256k+1 {
		t.Errorf("len = %d", len(buf))
	}
	// Non-bucket capacity: PutBuffer must not panic.
	PutBuffer(buf)
}
