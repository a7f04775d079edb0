package savecodec_test

import (
	"bytes"
	"testing"

	"github.com/FocuswithJustin/SheikahConverter/core/savecodec"
	"github.com/FocuswithJustin/SheikahConverter/internal/testsave"
)

// compareSaves reports the first differing word with some context.
func compareSaves(t *testing.T, converted, target, original []byte) {
	t.Helper()
	if len(converted) != len(target) {
		t.Fatalf("length = %d, want %d", len(converted), len(target))
	}
	for i := range converted {
		if converted[i] != target[i] {
			start := i - i%4
			end := min(start+4, len(converted))
			t.Fatalf("difference at %#08x\n[ original ] % x\n[ converted] % x\n[  target  ] % x",
				i, original[start:end], converted[start:end], target[start:end])
		}
	}
}

func TestConvert_Fixtures(t *testing.T) {
	fixtures := []struct {
		name    string
		build   *testsave.Builder
		tracker bool
	}{
		{name: "game_data", build: testsave.GameData(testsave.Version15, 0)},
		{name: "caption", build: testsave.Caption(testsave.Version15, 2)},
		{name: "option", build: testsave.Option(testsave.Version15)},
		{name: "trackblock00", build: testsave.TrackBlock(testsave.Version15), tracker: true},
	}

	for _, fx := range fixtures {
		wiiu := fx.build.Bytes(savecodec.PlatformWiiU)
		sw := fx.build.Bytes(savecodec.PlatformSwitch)

		t.Run(fx.name+" wii u to switch", func(t *testing.T) {
			got, err := savecodec.Convert(wiiu, fx.tracker)
			if err != nil {
				t.Fatalf("Convert() error = %v", err)
			}
			compareSaves(t, got, sw, wiiu)
		})

		t.Run(fx.name+" switch to wii u", func(t *testing.T) {
			got, err := savecodec.Convert(sw, fx.tracker)
			if err != nil {
				t.Fatalf("Convert() error = %v", err)
			}
			compareSaves(t, got, wiiu, sw)
		})

		t.Run(fx.name+" detect", func(t *testing.T) {
			for _, tc := range []struct {
				data []byte
				want savecodec.Platform
			}{{wiiu, savecodec.PlatformWiiU}, {sw, savecodec.PlatformSwitch}} {
				h, err := savecodec.Detect(tc.data)
				if err != nil {
					t.Fatalf("Detect() error = %v", err)
				}
				if h.Platform != tc.want || h.Version != "v1.5" {
					t.Errorf("Detect() = %+v, want %v v1.5", h, tc.want)
				}
			}
		})
	}
}

func TestConvert_DetectsAsTarget(t *testing.T) {
	wiiu := testsave.GameData(testsave.Version15, 1).Bytes(savecodec.PlatformWiiU)

	out, err := savecodec.ConvertFile(savecodec.KindGameData, wiiu)
	if err != nil {
		t.Fatalf("ConvertFile() error = %v", err)
	}
	h, err := savecodec.Detect(out)
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	if h.Platform != savecodec.PlatformWiiU.Target() {
		t.Errorf("converted platform = %v, want %v", h.Platform, savecodec.PlatformSwitch)
	}

	back, err := savecodec.ConvertFile(savecodec.KindGameData, out)
	if err != nil {
		t.Fatalf("ConvertFile() error = %v", err)
	}
	if !bytes.Equal(back, wiiu) {
		t.Error("converting twice should restore the original")
	}
}

func BenchmarkConvert(b *testing.B) {
	bld := testsave.GameData(testsave.Version15, 0)
	for i := 0; i < 2000; i++ {
		bld.Tag("Weap").Value(uint32(i) | 0x80000000)
	}
	data := bld.Bytes(savecodec.PlatformWiiU)

	b.SetBytes(int64(len(data)))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := savecodec.Convert(data, false); err != nil {
			b.Fatal(err)
		}
	}
}
