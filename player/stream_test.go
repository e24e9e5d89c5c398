package player

import (
	"bytes"
	"errors"
	"testing"
)

func TestCheckFrameSize(t *testing.T) {
	valid := [][2]int{{16, 16}, {320, 240}, {1024, 512}}
	for _, size := range valid {
		if err := CheckFrameSize(size[0], size[1], 1); err != nil {
			t.Errorf("%dx%d: unexpected error %v", size[0], size[1], err)
		}
	}

	invalid := [][2]int{{0, 16}, {15, 16}, {16, 24}, {1040, 16}, {16, 528}}
	for _, size := range invalid {
		if err := CheckFrameSize(size[0], size[1], 1); !errors.Is(err, ErrFrameSize) {
			t.Errorf("%dx%d: expected ErrFrameSize, got %v", size[0], size[1], err)
		}
	}

	// 24 bit lines take 1.5 halfwords per pixel
	if err := CheckFrameSize(688, 16, 1.5); !errors.Is(err, ErrFrameSize) {
		t.Errorf("expected ErrFrameSize, got %v", err)
	}
}

func TestReadStream(t *testing.T) {
	stream, err := ReadStream(bytes.NewReader([]byte{1, 2, 3, 4, 5}), 16, 16)
	if err != nil {
		t.Fatal(err)
	}
	if len(stream.Data) != 4 {
		t.Errorf("expected %d, got %d", 4, len(stream.Data))
	}

	if _, err := ReadStream(bytes.NewReader(nil), 17, 16); !errors.Is(err, ErrFrameSize) {
		t.Errorf("expected ErrFrameSize, got %v", err)
	}
}

func TestSynthesize(t *testing.T) {
	stream, err := Synthesize(64, 32, 0)
	if err != nil {
		t.Fatal(err)
	}

	// 8 macroblocks of 6 blocks, 2 codes each
	if len(stream.Data) != 8*6*2*2 {
		t.Errorf("expected %d, got %d", 8*6*2*2, len(stream.Data))
	}
	for i := 2; i < len(stream.Data); i += 4 {
		if stream.Data[i] != 0x00 || stream.Data[i+1] != 0xfe {
			t.Fatalf("code %d is not an end of block", i/2)
		}
	}

	shifted, err := Synthesize(64, 32, 1)
	if err != nil {
		t.Fatal(err)
	}
	if bytes.Equal(stream.Data, shifted.Data) {
		t.Error("phase did not move the bars")
	}
}

func TestBarCodes(t *testing.T) {
	y, cb, cr := barCodes(colorBars[0])
	if y != 508 || cb != 0 || cr != 0 {
		t.Errorf("white: got %d %d %d", y, cb, cr)
	}

	// black sits at the bottom of the 10 bit range
	y, _, _ = barCodes(colorBars[len(colorBars)-1])
	if y != -512 {
		t.Errorf("expected %d, got %d", -512, y)
	}
}
