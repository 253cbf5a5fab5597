package gpu

import (
	"encoding/binary"
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"
	"github.com/vulkan-go/vulkan"
)

//go:generate glslc ../../shaders/shader.vert -o ../../shaders/vert.spv
//go:generate glslc ../../shaders/shader.frag -o ../../shaders/frag.spv

const spirvMagic = 0x07230203

const (
	vertexShaderFile   = "vert.spv"
	fragmentShaderFile = "frag.spv"
)

// decodeSPIRV validates a SPIR-V module and returns its words. The module must
// be a non-empty multiple of four bytes and start with the SPIR-V magic number.
func decodeSPIRV(code []byte) ([]uint32, error) {
	if len(code) == 0 || len(code)%4 != 0 {
		return nil, errors.Wrapf(ErrShaderCode, "size %d is not a positive multiple of 4", len(code))
	}
	words := make([]uint32, len(code)/4)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(code[i*4:])
	}
	if words[0] != spirvMagic {
		return nil, errors.Wrapf(ErrShaderCode, "bad magic %#08x", words[0])
	}
	return words, nil
}

func loadShader(dir, name string) ([]uint32, error) {
	path := filepath.Join(dir, name)
	code, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read shader %s", path)
	}
	words, err := decodeSPIRV(code)
	if err != nil {
		return nil, errors.Wrapf(err, "load shader %s", path)
	}
	return words, nil
}

func (r *Renderer) createShaderModule(words []uint32) (vulkan.ShaderModule, error) {
	createInfo := vulkan.ShaderModuleCreateInfo{
		SType:    vulkan.StructureTypeShaderModuleCreateInfo,
		CodeSize: uint(len(words) * 4),
		PCode:    words,
	}
	var module vulkan.ShaderModule
	if res := vulkan.CreateShaderModule(r.device, &createInfo, nil, &module); res != vulkan.Success {
		return vulkan.NullShaderModule, errors.Wrap(resultError(res), "create shader module")
	}
	return module, nil
}
