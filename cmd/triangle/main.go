// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"runtime"
	"runtime/pprof"
	"runtime/trace"
	"strconv"
	"sync"
	"sync/atomic"
	"time"
	"unsafe"

	"github.com/gobuffalo/envy"
	"github.com/gobuffalo/packr"
	"github.com/joho/godotenv"
	"github.com/loov/hrtime"
	log "github.com/sirupsen/logrus"
	"github.com/veandco/go-sdl2/sdl"

	"github.com/devblok/tinyrhi/core"
	"github.com/devblok/tinyrhi/renderer"
	"github.com/devblok/tinyrhi/shaderpack"
)

func init() {
	runtime.LockOSThread()
}

// Essential globals
var (
	vkInstance  core.Instance
	vkRenderer  core.FrameRenderer
	sdlWindow   *sdl.Window
	sdlSurface  unsafe.Pointer
	frameCount  int64
	frameMicros int64

	shaderBox = packr.NewBox("./shaders")
)

// Profiling
var (
	cpuProfile   = flag.String("cpuprof", "", "Profile CPU usage to file")
	memProfile   = flag.String("memprof", "", "Profile memory usage into a file")
	traceProfile = flag.String("trace", "", "Trace output for profiling")
	debug        = flag.Bool("vkdbg", false, "Load Vulkan validation layers")
	packFile     = flag.String("pack", "", "Load shaders from a shader pack instead of the built-in ones")
	shaderDir    = flag.String("shaderdir", "", "Load shaders from a directory of compiled .spv files")
)

// loadConfiguration reads TINYRHI_* environment overrides on top of
// the defaults. A .env file next to the binary is honored when present.
func loadConfiguration() core.Configuration {
	godotenv.Load()

	cfg := core.Configuration{
		Time: core.TimeConfiguration{
			FramesPerSecond: 2000,
			EventPollDelay:  50,
		},
		Instance: core.InstanceConfiguration{
			DebugMode: *debug,
		},
		Device: core.DeviceConfiguration{
			Extensions: []string{"VK_KHR_swapchain"},
		},
		Present: core.PresentConfiguration{
			ScreenWidth:  800,
			ScreenHeight: 600,
			VSync:        true,
			FrameSync: core.FrameSyncConfiguration{
				FramesInFlight: core.DefaultFramesInFlight,
			},
		},
	}

	if width, err := strconv.Atoi(envy.Get("TINYRHI_WIDTH", "800")); err == nil {
		cfg.Present.ScreenWidth = uint32(width)
	}
	if height, err := strconv.Atoi(envy.Get("TINYRHI_HEIGHT", "600")); err == nil {
		cfg.Present.ScreenHeight = uint32(height)
	}
	if vsync, err := strconv.ParseBool(envy.Get("TINYRHI_VSYNC", "true")); err == nil {
		cfg.Present.VSync = vsync
	}
	if frames, err := strconv.Atoi(envy.Get("TINYRHI_FRAMES_IN_FLIGHT", "2")); err == nil && frames > 0 {
		cfg.Present.FrameSync.FramesInFlight = frames
	}
	return cfg
}

// boxSource serves shader modules out of the embedded resource box.
type boxSource struct {
	box packr.Box
}

func (b boxSource) LoadModule(name string) ([]byte, error) {
	return b.box.Find(name)
}

func newModuleSource() (core.ModuleSource, error) {
	switch {
	case *packFile != "":
		f, err := os.Open(*packFile)
		if err != nil {
			return nil, err
		}
		return shaderpack.Open(f)
	case *shaderDir != "":
		return core.NewShaderDirectory(*shaderDir)
	default:
		return boxSource{box: shaderBox}, nil
	}
}

func newWindow(cfg core.PresentConfiguration) *sdl.Window {
	window, err := sdl.CreateWindow("tinyrhi triangle",
		sdl.WINDOWPOS_UNDEFINED,
		sdl.WINDOWPOS_UNDEFINED,
		int32(cfg.ScreenWidth),
		int32(cfg.ScreenHeight),
		sdl.WINDOW_VULKAN|sdl.WINDOW_RESIZABLE)
	if err != nil {
		panic(err)
	}
	return window
}

func main() {
	flag.Parse()

	if *cpuProfile != "" {
		f, err := os.Create(*cpuProfile)
		if err != nil {
			panic(err)
		}
		if err := pprof.StartCPUProfile(f); err != nil {
			panic(err)
		}
		defer pprof.StopCPUProfile()
	}

	if *traceProfile != "" {
		f, err := os.Create(*traceProfile)
		if err != nil {
			panic(err)
		}
		if err := trace.Start(f); err != nil {
			panic(err)
		}
		defer trace.Stop()
	}

	configuration := loadConfiguration()

	if err := sdl.Init(sdl.INIT_VIDEO | sdl.INIT_EVENTS); err != nil {
		panic(err)
	}
	defer sdl.Quit()

	if err := sdl.VulkanLoadLibrary(""); err != nil {
		panic(err)
	}
	defer sdl.VulkanUnloadLibrary()

	sdlWindow = newWindow(configuration.Present)
	defer sdlWindow.Destroy()

	{
		cfg := configuration.Instance
		cfg.Extensions = append(cfg.Extensions, sdlWindow.VulkanGetInstanceExtensions()...)

		if vi, err := core.NewVulkanInstance(core.DefaultVulkanApplicationInfo, sdl.VulkanGetVkGetInstanceProcAddr(), cfg); err != nil {
			panic(err)
		} else {
			vkInstance = vi
		}
		defer vkInstance.Destroy()
	}

	if srf, err := sdlWindow.VulkanCreateSurface(vkInstance.Inner()); err != nil {
		panic(err)
	} else {
		sdlSurface = srf
		vkInstance.SetSurface(sdlSurface)
	}

	backend := vkInstance.Backend()

	physical, indices, err := core.SelectPhysicalDevice(backend, core.DeviceRequirements{
		Graphics:   true,
		Surface:    vkInstance.Surface(),
		Extensions: configuration.Device.Extensions,
	})
	if err != nil {
		panic(err)
	}

	device, err := core.NewDeviceContext(backend, physical, indices, configuration.Device.Extensions)
	if err != nil {
		panic(err)
	}
	defer device.Destroy()

	width := configuration.Present.ScreenWidth
	height := configuration.Present.ScreenHeight

	chain := core.NewSwapChain(backend)
	if err := chain.Bind(physical, device.Device(), vkInstance.Surface()); err != nil {
		panic(err)
	}
	if err := chain.Create(&width, &height, configuration.Present.VSync); err != nil {
		panic(err)
	}
	defer chain.Destroy()

	modules, err := newModuleSource()
	if err != nil {
		panic(err)
	}

	vkRenderer, err = renderer.NewVulkanRenderer(device, chain, modules, renderer.Configuration{
		FramesInFlight: configuration.Present.FrameSync.FramesInFlight,
		ClearColor:     [4]float32{0.005, 0.005, 0.02, 1.0},
		VertexShader:   "triangle.vert.spv",
		FragmentShader: "triangle.frag.spv",
	})
	if err != nil {
		panic(err)
	}
	defer vkRenderer.Destroy()

	frameSync, err := core.NewFrameSync(backend, device.Device(),
		device.Queue(core.CapabilityGraphics), device.Queue(core.CapabilityPresent),
		chain, configuration.Present.FrameSync)
	if err != nil {
		panic(err)
	}
	defer frameSync.Destroy()

	frameSync.OnRecreate(func() error {
		if err := device.WaitIdle(); err != nil {
			return err
		}
		w, h := sdlWindow.VulkanGetDrawableSize()
		width, height = uint32(w), uint32(h)
		if err := chain.Create(&width, &height, configuration.Present.VSync); err != nil {
			return err
		}
		return vkRenderer.Recreate()
	})

	timeService := core.NewTime(configuration.Time)
	defer timeService.Stop()

	ctx, cancel := context.WithCancel(context.Background())

	programSync := sync.WaitGroup{}

	/* Frame counter loop */
	programSync.Add(1)
	go func(ctx context.Context, wg *sync.WaitGroup) {
	CounterLoop:
		for {
			select {
			case <-ctx.Done():
				break CounterLoop
			default:
				frames := atomic.SwapInt64(&frameCount, 0)
				micros := atomic.SwapInt64(&frameMicros, 0)
				var avg int64
				if frames > 0 {
					avg = micros / frames
				}
				fmt.Printf("\r\033[2KFrame count: %d\tavg frame: %dus\tCGO calls: %d", frames*5, avg, runtime.NumCgoCall())
				time.Sleep(200 * time.Millisecond)
				// 200 ms * 5 = 1s, therefore we need to mutiply the count
			}
		}
		wg.Done()
	}(ctx, &programSync)

	/* Renderer loop */
	programSync.Add(1)
	go func(ctx context.Context, wg *sync.WaitGroup) {
	DrawLoop:
		for {
			select {
			case <-ctx.Done():
				log.Info("Draw loop exited")
				break DrawLoop
			case <-timeService.FpsTicker().C:
				start := hrtime.Now()
				frame, err := frameSync.BeginFrame()
				if err != nil {
					log.WithError(err).Error("Begin frame")
					cancel()
					continue DrawLoop
				}
				buffer, err := vkRenderer.RecordFrame(frame.Slot, frame.ImageIndex)
				if err != nil {
					log.WithError(err).Error("Record frame")
					cancel()
					continue DrawLoop
				}
				if err := frameSync.EndFrame(frame, buffer); err != nil {
					log.WithError(err).Error("End frame")
					cancel()
					continue DrawLoop
				}
				atomic.AddInt64(&frameCount, 1)
				atomic.AddInt64(&frameMicros, int64((hrtime.Now()-start)/time.Microsecond))
			}
		}
		wg.Done()
	}(ctx, &programSync)

	/* Event loop */
EventLoop:
	for {
		select {
		case <-ctx.Done():
			break EventLoop
		case <-timeService.EventTicker().C:
			var event sdl.Event
			for event = sdl.PollEvent(); event != nil; event = sdl.PollEvent() {
				switch et := event.(type) {
				case *sdl.KeyboardEvent:
					if et.Keysym.Sym == sdl.K_ESCAPE {
						cancel()
						continue EventLoop
					}
				case *sdl.QuitEvent:
					cancel()
					continue EventLoop
				}
			}
		}
	}

	programSync.Wait()

	if err := device.WaitIdle(); err != nil {
		log.WithError(err).Warn("Device idle wait on shutdown")
	}

	if *memProfile != "" {
		f, err := os.Create(*memProfile)
		if err != nil {
			panic(err)
		}
		if err := pprof.WriteHeapProfile(f); err != nil {
			panic(err)
		}
	}
}
