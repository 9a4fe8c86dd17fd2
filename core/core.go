package core

import "unsafe"

// Instance describes a graphics API instance and supporting methods.
// Once created it is ready to use.
type Instance interface {
	// Backend returns the device-level backend bound to this instance.
	Backend() Backend

	// PhysicalDevicesInfo returns a struct for each physical device
	// along with info about those devices
	PhysicalDevicesInfo() []PhysicalDeviceInfo

	// AvailableDevices returns handles of physical devices
	AvailableDevices() []PhysicalHandle

	// SetSurface adopts a window surface for rendering
	SetSurface(unsafe.Pointer)

	// Surface returns the window surface, if it's not set
	// it should return a valid but empty surface
	Surface() SurfaceHandle

	// Extensions returns available instance extensions
	Extensions() []string

	// Inner returns the inner handle of the underlying API
	Inner() interface{}

	// Destroy destroys internal members
	Destroy()
}

// FrameRenderer records the command buffers FrameSync submits. The
// presentation core treats it as a collaborator, it owns pipelines
// and passes, never synchronization.
type FrameRenderer interface {
	// RecordFrame records a command buffer targeting the swap chain
	// image at the given index.
	RecordFrame(slot int, imageIndex uint32) (CommandBufferHandle, error)

	// Recreate rebuilds size-dependent state after the swap chain
	// was recreated.
	Recreate() error

	// Destroy destroys internal members
	Destroy()
}

// ModuleSource hands out compiled shader modules by name.
type ModuleSource interface {
	// LoadModule returns the compiled code of the named shader.
	LoadModule(name string) ([]byte, error)
}

// ShaderType represents the type of shader thats loaded
type ShaderType int

// Identifies shader objects with their types
const (
	VertexShaderType ShaderType = iota
	FragmentShaderType
	UnknownShaderType
)
