// Command rhiclear opens a window and clears it every frame, fading between two colors.
// It exercises the whole frame protocol: resizing, minimizing and teardown included.
package main

import (
	"flag"
	"log"
	"math"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/loov/hrtime"
	"github.com/veandco/go-sdl2/sdl"
	"golang.org/x/exp/slog"

	"github.com/vkngwrapper/rhi/driver/vkng"
	"github.com/vkngwrapper/rhi/gfx"
)

var (
	configPath = flag.String("config", "", "path to a YAML renderer config")
	verbose    = flag.Bool("v", false, "log frame drops and driver debug messages")
	fadeTo     = mgl32.Vec4{0.1, 0.2, 0.6, 1}
)

// FadePeriod is the time in seconds to fade from the configured clear color to fadeTo and back.
const FadePeriod = 4.0

type ClearApplication struct {
	window   *sdl.Window
	renderer *gfx.Renderer
	cfg      gfx.Config
	start    float64
}

func (app *ClearApplication) Run() error {
	defer app.cleanup()

	err := app.initWindow()
	if err != nil {
		return err
	}

	err = app.initRenderer()
	if err != nil {
		return err
	}

	return app.mainLoop()
}

func (app *ClearApplication) initWindow() error {
	if err := sdl.Init(sdl.INIT_VIDEO); err != nil {
		return err
	}

	window, err := sdl.CreateWindow(app.cfg.ApplicationName, sdl.WINDOWPOS_UNDEFINED, sdl.WINDOWPOS_UNDEFINED, 800, 600, sdl.WINDOW_SHOWN|sdl.WINDOW_VULKAN|sdl.WINDOW_RESIZABLE)
	if err != nil {
		return err
	}
	app.window = window
	return nil
}

func (app *ClearApplication) initRenderer() error {
	loader, err := vkng.NewSDLLoader()
	if err != nil {
		return err
	}

	app.renderer, err = gfx.NewRenderer(loader, vkng.NewWindow(app.window), app.cfg)
	if err != nil {
		return errors.Wrap(err, "create renderer")
	}
	app.start = hrtime.Now().Seconds()
	return nil
}

func (app *ClearApplication) clearColor() mgl32.Vec4 {
	elapsed := hrtime.Now().Seconds() - app.start
	t := float32(0.5 - 0.5*math.Cos(2*math.Pi*elapsed/FadePeriod))
	return app.cfg.ClearColor.Mul(1 - t).Add(fadeTo.Mul(t))
}

func (app *ClearApplication) mainLoop() error {
	rendering := true

appLoop:
	for true {
		for event := sdl.PollEvent(); event != nil; event = sdl.PollEvent() {
			switch e := event.(type) {
			case *sdl.QuitEvent:
				break appLoop
			case *sdl.WindowEvent:
				switch e.Event {
				case sdl.WINDOWEVENT_MINIMIZED:
					rendering = false
				case sdl.WINDOWEVENT_RESTORED:
					rendering = true
				case sdl.WINDOWEVENT_RESIZED:
					w, h := app.window.VulkanGetDrawableSize()
					if w > 0 && h > 0 {
						rendering = true
						app.renderer.Resize(int(w), int(h))
					} else {
						rendering = false
					}
				}
			}
		}
		if rendering {
			app.renderer.SetClearColor(app.clearColor())
			err := app.renderer.DrawFrame(nil)
			if err != nil {
				return err
			}
		}
	}

	return nil
}

func (app *ClearApplication) cleanup() {
	if app.renderer != nil {
		stats := app.renderer.Stats()
		if err := app.renderer.Shutdown(); err != nil {
			log.Printf("%+v\n", err)
		}
		log.Printf("presented %d frames, dropped %d, recreated the swapchain %d times", stats.Frames, stats.Dropped, stats.Recreations)
	}

	if app.window != nil {
		app.window.Destroy()
	}
	sdl.Quit()
}

func loadConfig() (gfx.Config, error) {
	cfg := gfx.DefaultConfig()
	if *configPath != "" {
		var err error
		cfg, err = gfx.LoadConfigFile(*configPath)
		if err != nil {
			return gfx.Config{}, err
		}
	}

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	cfg.Logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	return cfg, nil
}

func main() {
	flag.Parse()

	cfg, err := loadConfig()
	if err != nil {
		log.Fatalf("%+v\n", err)
	}

	app := &ClearApplication{cfg: cfg}
	err = app.Run()
	if err != nil {
		log.Fatalf("%+v\n", err)
	}
}
