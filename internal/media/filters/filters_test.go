package filters

import "testing"

func TestSilenceDetect(t *testing.T) {
	if got := SilenceDetect(-35, 0.5); got != "silencedetect=noise=-35dB:d=0.5" {
		t.Fatalf("unexpected filter %q", got)
	}
}

func TestLoudnorm(t *testing.T) {
	if got := Loudnorm(); got != "loudnorm=I=-16:TP=-1.5:LRA=11" {
		t.Fatalf("unexpected filter %q", got)
	}
}

func TestCrossfade(t *testing.T) {
	if got := Crossfade("xf1", "2:a", "xf2", 4); got != "[xf1][2:a]acrossfade=d=4:c1=tri:c2=tri[xf2]" {
		t.Fatalf("unexpected filter %q", got)
	}
}

func TestMusicBed(t *testing.T) {
	tests := []struct {
		name     string
		loop     bool
		duration float64
		want     string
	}{
		{
			name:     "loop",
			loop:     true,
			duration: 62.016,
			want:     "[1:a]aloop=loop=-1:size=2e9,atrim=0:62.016,afade=t=out:st=59.016:d=3,volume=-24dB[bg_music]",
		},
		{
			name:     "single",
			duration: 30,
			want:     "[1:a]atrim=0:30,afade=t=out:st=27:d=3,volume=-24dB[bg_music]",
		},
		{
			name:     "short video clamps fade start",
			duration: 2,
			want:     "[1:a]atrim=0:2,afade=t=out:st=0:d=3,volume=-24dB[bg_music]",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := MusicBed("1:a", tc.loop, tc.duration, -24); got != tc.want {
				t.Fatalf("got  %q\nwant %q", got, tc.want)
			}
		})
	}
}

func TestMix(t *testing.T) {
	if got := Mix("0:a"); got != "[0:a][bg_music]amix=inputs=2:duration=first:weights=1 0.3[aout]" {
		t.Fatalf("unexpected filter %q", got)
	}
}

func TestGraphSkipsEmptyChains(t *testing.T) {
	if got := Graph("[0:a]anull[a]", "", " [a]anull[b] "); got != "[0:a]anull[a];[a]anull[b]" {
		t.Fatalf("unexpected graph %q", got)
	}
}

func TestNumber(t *testing.T) {
	cases := map[float64]string{
		4:                  "4",
		0.1:                "0.1",
		-1.5:               "-1.5",
		59.016000000000005: "59.016",
		-0.0001:            "0",
	}
	for in, want := range cases {
		if got := Number(in); got != want {
			t.Fatalf("Number(%v) = %q, want %q", in, got, want)
		}
	}
}
