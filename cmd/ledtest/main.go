package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dj-oyu/people-count-monitor/internal/indicator"
	"github.com/dj-oyu/people-count-monitor/internal/logger"
)

type options struct {
	driver string
	pin    string
	port   string
	pixels int
	baud   int
	on     time.Duration
	off    time.Duration
	hold   time.Duration
}

func main() {
	var (
		opts     options
		logLevel string
		logColor bool
	)

	flag.StringVar(&opts.driver, "driver", "gpio", "LED driver (gpio, strip, serial)")
	flag.StringVar(&opts.pin, "pin", "GPIO18", "GPIO pin for the single LED")
	flag.StringVar(&opts.port, "port", "", "SPI port for strip, serial device for serial")
	flag.IntVar(&opts.pixels, "pixels", 30, "Number of pixels on the strip")
	flag.IntVar(&opts.baud, "baud", 115200, "Serial baud rate")
	flag.DurationVar(&opts.on, "on", time.Second, "Blink on duration")
	flag.DurationVar(&opts.off, "off", time.Second, "Blink off duration")
	flag.DurationVar(&opts.hold, "hold", time.Second, "How long each strip colour is shown")
	flag.StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error, silent)")
	flag.BoolVar(&logColor, "log-color", true, "Enable colored log output")
	flag.Parse()

	level, err := logger.ParseLevel(logLevel)
	if err != nil {
		log.Fatalf("Invalid log level: %v", err)
	}
	logger.Init(level, os.Stderr, logColor)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("LEDTest", "Running %s test sequence, Ctrl+C to stop", opts.driver)
	if err := run(ctx, opts); err != nil {
		logger.Error("LEDTest", "%v", err)
		stop()
		os.Exit(1)
	}
	logger.Info("LEDTest", "LED test stopped")
}

func run(ctx context.Context, opts options) error {
	switch opts.driver {
	case "gpio":
		led, err := indicator.OpenGPIOLED(opts.pin)
		if err != nil {
			return err
		}
		defer led.Close()
		return indicator.Blink(ctx, led, opts.on, opts.off, nil, func(on bool) {
			if on {
				logger.Info("LEDTest", "LED on")
			} else {
				logger.Info("LEDTest", "LED off")
			}
		})

	case "strip", "serial":
		strip, err := openStrip(opts)
		if err != nil {
			return err
		}
		defer strip.Close()
		return indicator.CycleColors(ctx, strip, indicator.DefaultCycle, opts.hold, nil, func(c indicator.Color) {
			logger.Info("LEDTest", "Color %s", c)
		})

	default:
		return fmt.Errorf("unknown driver %q (want gpio, strip or serial)", opts.driver)
	}
}

type closingStrip interface {
	indicator.ColorSetter
	Close() error
}

func openStrip(opts options) (closingStrip, error) {
	if opts.driver == "serial" {
		port := opts.port
		if port == "" {
			port = "/dev/ttyUSB0"
		}
		return indicator.OpenSerialStrip(port, opts.baud)
	}
	return indicator.OpenStrip(opts.port, opts.pixels)
}
