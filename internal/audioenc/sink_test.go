package audioenc

import (
	"testing"

	"github.com/asticode/go-astiav"
)

func TestBitRateTierValues(t *testing.T) {
	cases := []struct {
		tier BitRateTier
		want int64
	}{
		{BitRateMinimum, 64_000},
		{BitRateLow, 96_000},
		{BitRateStandard, 128_000},
	}
	for _, c := range cases {
		if got := c.tier.BitsPerSecond(); got != c.want {
			t.Fatalf("tier %d: got %d, want %d", c.tier, got, c.want)
		}
	}
}

func TestSupportsSampleRateEmptyListMeansUnrestricted(t *testing.T) {
	if !supportsSampleRate(nil, 44100) {
		t.Fatal("expected an empty rate list to mean unrestricted")
	}
}

func TestSupportsSampleRateChecksMembership(t *testing.T) {
	rates := []int{8000, 16000, 44100}
	if !supportsSampleRate(rates, 44100) {
		t.Fatal("expected 44100 to be supported")
	}
	if supportsSampleRate(rates, 48000) {
		t.Fatal("expected 48000 to be unsupported")
	}
}

func TestPickSampleFormatReturnsFirstRecognized(t *testing.T) {
	supported := []astiav.SampleFormat{astiav.SampleFormatFltp, astiav.SampleFormatS16}
	got, ok := pickSampleFormat(supported)
	if !ok {
		t.Fatal("expected a recognized format to be found")
	}
	if got != astiav.SampleFormatFltp {
		t.Fatalf("expected first recognized format FLTP, got %v", got)
	}
}

func TestPickSampleFormatNoneRecognized(t *testing.T) {
	_, ok := pickSampleFormat(nil)
	if ok {
		t.Fatal("expected no recognized format from an empty list")
	}
}
