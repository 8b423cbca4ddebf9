package driver

import "fmt"

type QueueFlags uint32

const (
	QueueGraphics QueueFlags = 1 << iota
	QueueCompute
	QueueTransfer
)

func (f QueueFlags) String() string {
	s := ""
	add := func(name string) {
		if s != "" {
			s += "|"
		}
		s += name
	}
	if f&QueueGraphics != 0 {
		add("Graphics")
	}
	if f&QueueCompute != 0 {
		add("Compute")
	}
	if f&QueueTransfer != 0 {
		add("Transfer")
	}
	if s == "" {
		return "None"
	}
	return s
}

type QueueFamily struct {
	Index      int
	Flags      QueueFlags
	QueueCount int
}

type MemoryType struct {
	PropertyFlags uint32
	HeapIndex     int
}

type Limits struct {
	MaxImageDimension2D int
}

type PhysicalDeviceInfo struct {
	Name          string
	QueueFamilies []QueueFamily
	MemoryTypes   []MemoryType
	Limits        Limits
}

type Extent struct {
	Width, Height int
}

func (e Extent) String() string {
	return fmt.Sprintf("%dx%d", e.Width, e.Height)
}

// Empty reports whether the extent covers no pixels, as with a minimised window.
func (e Extent) Empty() bool {
	return e.Width <= 0 || e.Height <= 0
}

// UndefinedExtent is reported as the current extent of surfaces whose size is decided by
// the swapchain.
const UndefinedExtent = -1

type SurfaceCapabilities struct {
	MinImageCount    int
	// MaxImageCount of 0 means there is no upper bound.
	MaxImageCount    int
	CurrentExtent    Extent
	MinImageExtent   Extent
	MaxImageExtent   Extent
	CurrentTransform uint32
}

type Format int32

const (
	FormatUndefined     Format = 0
	FormatR8G8B8A8UNorm Format = 37
	FormatR8G8B8A8SRGB  Format = 43
	FormatB8G8R8A8UNorm Format = 44
	FormatB8G8R8A8SRGB  Format = 50
)

type ColorSpace int32

const ColorSpaceSRGBNonlinear ColorSpace = 0

type SurfaceFormat struct {
	Format     Format
	ColorSpace ColorSpace
}

type PresentMode int32

const (
	PresentModeImmediate   PresentMode = 0
	PresentModeMailbox     PresentMode = 1
	PresentModeFIFO        PresentMode = 2
	PresentModeFIFORelaxed PresentMode = 3
)

func (m PresentMode) String() string {
	switch m {
	case PresentModeImmediate:
		return "Immediate"
	case PresentModeMailbox:
		return "Mailbox"
	case PresentModeFIFO:
		return "FIFO"
	case PresentModeFIFORelaxed:
		return "FIFORelaxed"
	}
	return fmt.Sprintf("PresentMode(%d)", int32(m))
}

type PipelineStage uint32

const (
	PipelineStageTopOfPipe             PipelineStage = 0x1
	PipelineStageColorAttachmentOutput PipelineStage = 0x400
	PipelineStageBottomOfPipe          PipelineStage = 0x2000
)

type CommandPoolFlags uint32

const (
	CommandPoolTransient   CommandPoolFlags = 0x1
	CommandPoolResetBuffer CommandPoolFlags = 0x2
)

type DebugSeverity int

const (
	DebugSeverityVerbose DebugSeverity = iota
	DebugSeverityInfo
	DebugSeverityWarning
	DebugSeverityError
)

type DebugMessage struct {
	Severity DebugSeverity
	Type     string
	Message  string
}

type InstanceCreateInfo struct {
	ApplicationName string
	EngineName      string
	Extensions      []string
	Layers          []string
	// DebugCallback, when set, receives validation and driver messages. The driver enables
	// its debug-messenger extension for it.
	DebugCallback func(msg DebugMessage)
	// DebugSeverity is the least severe message delivered to DebugCallback.
	DebugSeverity DebugSeverity
}

type DeviceQueueCreateInfo struct {
	FamilyIndex int
	Priorities  []float32
}

type DeviceCreateInfo struct {
	Queues     []DeviceQueueCreateInfo
	Extensions []string
}

type SwapchainCreateInfo struct {
	Surface       Surface
	MinImageCount int
	Format        Format
	ColorSpace    ColorSpace
	Extent        Extent
	PresentMode   PresentMode
	PreTransform  uint32
	// QueueFamilies lists the families sharing the images; more than one selects
	// concurrent sharing.
	QueueFamilies []int
	OldSwapchain  Swapchain
}

type RenderPassCreateInfo struct {
	ColorFormat Format
}

type FramebufferCreateInfo struct {
	RenderPass RenderPass
	Image      Image
	Format     Format
	Extent     Extent
}

type RenderPassBeginInfo struct {
	RenderPass  RenderPass
	Framebuffer Framebuffer
	Extent      Extent
	ClearColor  [4]float32
}

type SubmitInfo struct {
	WaitSemaphores   []Semaphore
	WaitStages       []PipelineStage
	CommandBuffers   []CommandBuffer
	SignalSemaphores []Semaphore
}

type PresentInfo struct {
	WaitSemaphores []Semaphore
	Swapchain      Swapchain
	ImageIndex     int
}
