package gpu

import (
	"unsafe"

	mgl32 "github.com/go-gl/mathgl/mgl32"
	"github.com/vulkan-go/vulkan"
)

// vertex matches the shader's input layout: location 0 position, location 1 colour.
type vertex struct {
	pos   mgl32.Vec3
	color mgl32.Vec3
}

// Fails to compile if the vertex layout stops matching the shader's 24-byte stride.
var _ [24]byte = [unsafe.Sizeof(vertex{})]byte{}

var cubeVertices = []vertex{
	{pos: mgl32.Vec3{-1, -1, -1}, color: mgl32.Vec3{1, 0, 0}},
	{pos: mgl32.Vec3{1, -1, -1}, color: mgl32.Vec3{0, 1, 0}},
	{pos: mgl32.Vec3{1, 1, -1}, color: mgl32.Vec3{0, 0, 1}},
	{pos: mgl32.Vec3{-1, 1, -1}, color: mgl32.Vec3{1, 1, 0}},
	{pos: mgl32.Vec3{-1, -1, 1}, color: mgl32.Vec3{1, 0, 1}},
	{pos: mgl32.Vec3{1, -1, 1}, color: mgl32.Vec3{0, 1, 1}},
	{pos: mgl32.Vec3{1, 1, 1}, color: mgl32.Vec3{1, 1, 1}},
	{pos: mgl32.Vec3{-1, 1, 1}, color: mgl32.Vec3{0.2, 0.6, 1}},
}

var cubeIndices = []uint32{
	0, 1, 2, 2, 3, 0, // back
	4, 5, 6, 6, 7, 4, // front
	4, 5, 1, 1, 0, 4, // bottom
	7, 6, 2, 2, 3, 7, // top
	4, 0, 3, 3, 7, 4, // left
	5, 1, 2, 2, 6, 5, // right
}

func (r *Renderer) createMeshBuffers() error {
	vertexBuffer, err := r.createStaticBuffer("vertex buffer", vulkan.BufferUsageVertexBufferBit, asBytes(cubeVertices))
	if err != nil {
		return err
	}
	r.vertexBuffer = vertexBuffer

	indexBuffer, err := r.createStaticBuffer("index buffer", vulkan.BufferUsageIndexBufferBit, asBytes(cubeIndices))
	if err != nil {
		return err
	}
	r.indexBuffer = indexBuffer
	return nil
}
