package core

// Configuration defines a global configuration setting
type Configuration struct {
	Time     TimeConfiguration
	Instance InstanceConfiguration
	Device   DeviceConfiguration
	Present  PresentConfiguration
}

// TimeConfiguration is used to configure time services
type TimeConfiguration struct {
	// FramesPerSecond caps frames per second that is put out
	// To unlimit, set to 0
	FramesPerSecond int

	// EventPollDelay is the delay between event queue polls,
	// in milliseconds
	EventPollDelay int
}

// InstanceConfiguration is used to configure the API instance
type InstanceConfiguration struct {
	// DebugMode loads validation layers and debug reporting
	DebugMode bool

	Extensions []string
	Layers     []string
}

// DeviceConfiguration is used to configure the logical device
type DeviceConfiguration struct {
	Extensions []string
}

// PresentConfiguration is used to configure the swap chain and the
// frame synchronizer
type PresentConfiguration struct {
	ScreenWidth  uint32
	ScreenHeight uint32

	VSync bool

	FrameSync FrameSyncConfiguration
}
