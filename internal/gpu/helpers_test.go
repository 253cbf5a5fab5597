package gpu

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	mgl32 "github.com/go-gl/mathgl/mgl32"
	"github.com/hellhand/kube/internal/frame"
	"github.com/vulkan-go/vulkan"
)

func spirv(words ...uint32) []byte {
	out := make([]byte, 4*len(words))
	for i, w := range words {
		binary.LittleEndian.PutUint32(out[i*4:], w)
	}
	return out
}

func TestDecodeSPIRV(t *testing.T) {
	words, err := decodeSPIRV(spirv(spirvMagic, 0x00010000, 42))
	if err != nil {
		t.Fatal(err)
	}
	if len(words) != 3 || words[2] != 42 {
		t.Fatalf("unexpected words %v", words)
	}

	specs := []struct {
		descr string
		code  []byte
	}{
		{"empty", nil},
		{"unaligned", []byte{0x03, 0x02, 0x23, 0x07, 0x00}},
		{"bad magic", spirv(0xdeadbeef, 1)},
	}
	for specIndex, spec := range specs {
		if _, err := decodeSPIRV(spec.code); !errors.Is(err, ErrShaderCode) {
			t.Errorf("[spec %d - %s] expected ErrShaderCode; got %v", specIndex, spec.descr, err)
		}
	}
}

func TestLoadShader(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, vertexShaderFile), spirv(spirvMagic, 7), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := loadShader(dir, vertexShaderFile); err != nil {
		t.Fatalf("expected shader to load; got %v", err)
	}
	if _, err := loadShader(dir, fragmentShaderFile); err == nil {
		t.Fatal("expected an error for a missing shader")
	}
}

func TestMemoryTypeIndex(t *testing.T) {
	local := vulkan.MemoryPropertyFlags(vulkan.MemoryPropertyDeviceLocalBit)
	visible := vulkan.MemoryPropertyFlags(hostVisible)
	types := []vulkan.MemoryPropertyFlags{local, visible, visible | local}

	if idx, err := memoryTypeIndex(types, 0b111, visible); err != nil || idx != 1 {
		t.Fatalf("expected type 1; got %d (%v)", idx, err)
	}
	if idx, err := memoryTypeIndex(types, 0b100, visible); err != nil || idx != 2 {
		t.Fatalf("expected filter to force type 2; got %d (%v)", idx, err)
	}
	if _, err := memoryTypeIndex(types, 0b001, visible); !errors.Is(err, ErrNoMemoryType) {
		t.Fatalf("expected ErrNoMemoryType; got %v", err)
	}
}

func TestSupportedFormat(t *testing.T) {
	depth := vulkan.FormatFeatureFlags(vulkan.FormatFeatureDepthStencilAttachmentBit)
	props := map[vulkan.Format]vulkan.FormatProperties{
		vulkan.FormatD32SfloatS8Uint: {OptimalTilingFeatures: depth},
		vulkan.FormatD24UnormS8Uint:  {LinearTilingFeatures: depth, OptimalTilingFeatures: depth},
	}
	query := func(f vulkan.Format) vulkan.FormatProperties { return props[f] }

	format, ok := supportedFormat(depthFormatCandidates, vulkan.ImageTilingOptimal, depth, query)
	if !ok || format != vulkan.FormatD32SfloatS8Uint {
		t.Fatalf("expected D32S8 for optimal tiling; got %d (%t)", format, ok)
	}
	format, ok = supportedFormat(depthFormatCandidates, vulkan.ImageTilingLinear, depth, query)
	if !ok || format != vulkan.FormatD24UnormS8Uint {
		t.Fatalf("expected D24S8 for linear tiling; got %d (%t)", format, ok)
	}
	if _, ok := supportedFormat([]vulkan.Format{vulkan.FormatD32Sfloat}, vulkan.ImageTilingOptimal, depth, query); ok {
		t.Fatal("expected no format to qualify")
	}
}

func TestDeviceScoring(t *testing.T) {
	discrete := scoreDeviceType(vulkan.PhysicalDeviceTypeDiscreteGpu)
	integrated := scoreDeviceType(vulkan.PhysicalDeviceTypeIntegratedGpu)
	other := scoreDeviceType(vulkan.PhysicalDeviceTypeCpu)
	if !(discrete > integrated && integrated > other) {
		t.Fatalf("expected discrete > integrated > other; got %d, %d, %d", discrete, integrated, other)
	}
	if got := deviceTypeName(vulkan.PhysicalDeviceTypeVirtualGpu); got != "virtual" {
		t.Fatalf("expected virtual; got %q", got)
	}
}

func TestVersionString(t *testing.T) {
	if got := versionString(vulkan.MakeVersion(1, 3, 250)); got != "1.3.250" {
		t.Fatalf("expected 1.3.250; got %q", got)
	}
}

func TestContainsAll(t *testing.T) {
	available := []string{"VK_KHR_swapchain", "VK_KHR_maintenance1"}
	if !containsAll(available, deviceExtensions) {
		t.Fatal("expected NUL-terminated names to match")
	}
	if containsAll(available, []string{"VK_KHR_swapchain\x00", "VK_EXT_missing\x00"}) {
		t.Fatal("expected a missing extension to be reported")
	}
}

func TestResultError(t *testing.T) {
	specs := []struct {
		res vulkan.Result
		exp error
	}{
		{vulkan.ErrorOutOfDate, frame.ErrOutOfDate},
		{vulkan.Suboptimal, frame.ErrSuboptimal},
		{vulkan.Timeout, frame.ErrTimeout},
		{vulkan.NotReady, frame.ErrTimeout},
	}
	for _, spec := range specs {
		if err := resultError(spec.res); !errors.Is(err, spec.exp) {
			t.Errorf("result %d: expected %v; got %v", spec.res, spec.exp, err)
		}
	}

	err := resultError(vulkan.ErrorDeviceLost)
	if err == nil || frame.IsStale(err) || errors.Is(err, frame.ErrTimeout) {
		t.Fatalf("expected device lost to be fatal; got %v", err)
	}
}

func TestTimeoutNanos(t *testing.T) {
	if got := timeoutNanos(0); got != vulkan.MaxUint64 {
		t.Fatalf("expected unbounded wait; got %d", got)
	}
	if got := timeoutNanos(2 * time.Millisecond); got != 2000000 {
		t.Fatalf("expected 2ms in ns; got %d", got)
	}
}

func TestCubeTransform(t *testing.T) {
	ubo := cubeTransform(0, vulkan.Extent2D{Width: 800, Height: 600})
	if !ubo.Model.ApproxEqual(mgl32.Ident4()) {
		t.Fatalf("expected identity model at t=0; got %v", ubo.Model)
	}
	if ubo.Proj[5] >= 0 {
		t.Fatalf("expected flipped Y in projection; got %f", ubo.Proj[5])
	}

	// A zero extent must not produce NaNs.
	ubo = cubeTransform(time.Second, vulkan.Extent2D{})
	for i, v := range ubo.Proj {
		if v != v {
			t.Fatalf("expected finite projection; element %d is NaN", i)
		}
	}
}

func TestAsBytes(t *testing.T) {
	if got := len(asBytes(cubeVertices)); got != 24*len(cubeVertices) {
		t.Fatalf("expected %d vertex bytes; got %d", 24*len(cubeVertices), got)
	}
	b := asBytes([]uint32{0x04030201})
	if b[0] != 1 || b[3] != 4 {
		t.Fatalf("expected little-endian index bytes; got %v", b)
	}
	if asBytes([]uint32{}) != nil {
		t.Fatal("expected nil for an empty slice")
	}
}

func TestDefaultOptions(t *testing.T) {
	t.Setenv("VK_VALIDATION", "0")
	opts := DefaultOptions()
	if opts.EnableValidation {
		t.Fatal("expected VK_VALIDATION=0 to disable validation")
	}
	if opts.FramesInFlight != frame.DefaultFramesInFlight || opts.ShaderDir != "shaders" {
		t.Fatalf("unexpected defaults %+v", opts)
	}

	t.Setenv("VK_VALIDATION", "")
	if !ValidationFromEnv() {
		t.Fatal("expected validation on by default")
	}
}
