package gpu

import "testing"

func TestDescriptorStringWithAndWithoutBus(t *testing.T) {
	d := Descriptor{Name: "NVIDIA GeForce RTX 4090", PCIBus: "0000:01:00.0"}
	want := "NVIDIA GeForce RTX 4090 (0000:01:00.0)"
	if got := d.String(); got != want {
		t.Fatalf("got %q, want %q", got, want)
	}

	bare := Descriptor{Name: "NVIDIA GeForce RTX 4090"}
	if got := bare.String(); got != "NVIDIA GeForce RTX 4090" {
		t.Fatalf("got %q, want bare name", got)
	}
}

func TestNewPoolRejectsInvalidDimensions(t *testing.T) {
	if _, err := NewPool(Descriptor{}, 0, 1080, 0); err == nil {
		t.Fatal("expected an error for a zero width")
	}
	if _, err := NewPool(Descriptor{}, 1920, -1, 0); err == nil {
		t.Fatal("expected an error for a negative height")
	}
}
