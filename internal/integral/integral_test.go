package integral

import (
	"errors"
	"math"
	"testing"

	"spatialengine/internal/kernel"
	"spatialengine/internal/model"
)

func mustKernel(t *testing.T, typ kernel.Type, maxD float64, params ...float64) kernel.Kernel {
	t.Helper()
	k, err := kernel.New(typ, maxD, params...)
	if err != nil {
		t.Fatalf("kernel: %v", err)
	}
	return k
}

func TestFixedKernelMatchesGeometry(t *testing.T) {
	k := mustKernel(t, kernel.Fixed, 2, 1)

	var c Cache
	if err := c.Ensure(k, 1); err != nil {
		t.Fatalf("ensure 1D: %v", err)
	}
	if got := c.Full1D(); math.Abs(got-4) > 1e-9 {
		t.Fatalf("1D full integral: got=%f want=4", got)
	}
	if got := c.Value1D(0, 2); math.Abs(got-2) > 1e-9 {
		t.Fatalf("1D clipped at edge: got=%f want=2", got)
	}

	if err := c.Ensure(k, 2); err != nil {
		t.Fatalf("ensure 2D: %v", err)
	}
	want := math.Pi * 4
	if got := c.Full2D(); math.Abs(got-want)/want > 5e-3 {
		t.Fatalf("2D full integral: got=%f want=%f", got, want)
	}
	if got := c.Value2D(0, 2, 2, 2); math.Abs(got-want/2)/want > 5e-3 {
		t.Fatalf("2D half disc: got=%f want=%f", got, want/2)
	}
	if got := c.Value2D(0, 2, 0, 2); math.Abs(got-want/4)/want > 5e-3 {
		t.Fatalf("2D corner: got=%f want=%f", got, want/4)
	}
}

func TestNormalKernelApproachesClosedForm(t *testing.T) {
	// With maxD far beyond sigma the disc integral is 2*pi*sigma^2*amplitude.
	k := mustKernel(t, kernel.Normal, 5, 1, 0.5)
	var c Cache
	if err := c.Ensure(k, 2); err != nil {
		t.Fatalf("ensure: %v", err)
	}
	want := 2 * math.Pi * 0.25
	if got := c.Full2D(); math.Abs(got-want)/want > 5e-3 {
		t.Fatalf("normal full integral: got=%f want=%f", got, want)
	}
}

func TestClippedIntegralMonotonicAndBounded(t *testing.T) {
	kernels := []kernel.Kernel{
		mustKernel(t, kernel.Linear, 3, 2),
		mustKernel(t, kernel.Exponential, 3, 1, 2),
		mustKernel(t, kernel.StudentT, 3, 1, 0.5, 3),
	}
	for _, k := range kernels {
		var c Cache
		c.Resolution = 128
		if err := c.Ensure(k, 1); err != nil {
			t.Fatalf("%s: ensure 1D: %v", k, err)
		}
		full := c.Full1D()
		prev := -1.0
		for a := 0.0; a <= 3.5; a += 0.01 {
			v := c.Value1D(a, a)
			if v < prev {
				t.Fatalf("%s: 1D value decreased at %f: %f < %f", k, a, v, prev)
			}
			if v > 2*full {
				t.Fatalf("%s: 1D value %f exceeds 2x full %f", k, v, full)
			}
			prev = v
		}

		if err := c.Ensure(k, 2); err != nil {
			t.Fatalf("%s: ensure 2D: %v", k, err)
		}
		full = c.Full2D()
		prev = -1.0
		for a := 0.0; a <= 3.5; a += 0.01 {
			v := c.Value2D(a, 3, a, 3)
			if v < prev {
				t.Fatalf("%s: 2D value decreased at %f: %f < %f", k, a, v, prev)
			}
			if v > 4*full {
				t.Fatalf("%s: 2D value %f exceeds 4x full %f", k, v, full)
			}
			prev = v
		}
		if math.Abs(prev-full) > 1e-9 {
			t.Fatalf("%s: unclipped value %f differs from full %f", k, prev, full)
		}
	}
}

func TestEnsureRejectsUnsupported(t *testing.T) {
	var c Cache
	if err := c.Ensure(mustKernel(t, kernel.Fixed, 2, 1), 3); !errors.Is(err, model.ErrConfiguration) {
		t.Fatalf("expected configuration error for 3D, got %v", err)
	}
	if err := c.Ensure(kernel.Default(math.Inf(1)), 2); !errors.Is(err, model.ErrConfiguration) {
		t.Fatalf("expected configuration error for infinite distance, got %v", err)
	}
}

func TestInvalidateRebuilds(t *testing.T) {
	var c Cache
	if err := c.Ensure(mustKernel(t, kernel.Fixed, 1, 1), 1); err != nil {
		t.Fatalf("ensure: %v", err)
	}
	before := c.Full1D()
	c.Invalidate()
	if c.Valid() {
		t.Fatal("expected invalid cache")
	}
	if err := c.Ensure(mustKernel(t, kernel.Fixed, 1, 3), 1); err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if got := c.Full1D(); math.Abs(got-3*before) > 1e-9 {
		t.Fatalf("expected rebuilt table, got=%f want=%f", got, 3*before)
	}
}
