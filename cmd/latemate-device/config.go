package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type appConfig struct {
	ffsOut          string
	ffsIn           string
	hidMouse        string
	hidKeyboard     string
	spiBus          string
	drdyPin         string
	cdcLogDev       string
	cdcLogBaud      int
	hardwareRev     int
	serialNumber    string
	panicFile       string
	logFormat       string
	logLevel        string
	metricsAddr     string
	logMetricsEvery time.Duration
}

func parseFlags() (*appConfig, bool) {
	cfg := &appConfig{}
	ffsOut := flag.String("ffs-out", "/dev/ffs-latemate/ep1", "FunctionFS bulk OUT endpoint device node (host-to-device)")
	ffsIn := flag.String("ffs-in", "/dev/ffs-latemate/ep2", "FunctionFS bulk IN endpoint device node (device-to-host)")
	hidMouse := flag.String("hid-mouse", "/dev/hidg0", "HID gadget device node for the mouse report descriptor")
	hidKeyboard := flag.String("hid-keyboard", "/dev/hidg1", "HID gadget device node for the keyboard report descriptor")
	spiBus := flag.String("spi-bus", "SPI0.0", "SPI bus name for the ADS1220 light sensor")
	drdyPin := flag.String("drdy-pin", "GPIO17", "GPIO pin name for the ADS1220 data-ready line")
	cdcLogDev := flag.String("cdc-log-dev", "", "CDC-ACM device node to mirror logs onto (empty disables)")
	cdcLogBaud := flag.Int("cdc-log-baud", 115200, "CDC-ACM log device baud rate")
	hardwareRev := flag.Int("hardware-rev", 1, "Hardware revision reported in Status")
	serialNumber := flag.String("serial-number", "", "Factory serial number reported in Status")
	panicFile := flag.String("panic-file", "/var/lib/latemate-device/panic.bin", "File a crash handler would persist panic bytes to across resets")
	logFormat := flag.String("log-format", "text", "Log format: text|json")
	logLevel := flag.String("log-level", "info", "Log level: debug|info|warn|error")
	metricsAddr := flag.String("metrics-addr", "", "Metrics HTTP listen address (e.g., :9101); empty disables")
	logMetricsEvery := flag.Duration("log-metrics-interval", 0, "If >0, periodically log metrics counters")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	setFlags := map[string]struct{}{}
	flag.Visit(func(f *flag.Flag) { setFlags[f.Name] = struct{}{} })

	cfg.ffsOut = *ffsOut
	cfg.ffsIn = *ffsIn
	cfg.hidMouse = *hidMouse
	cfg.hidKeyboard = *hidKeyboard
	cfg.spiBus = *spiBus
	cfg.drdyPin = *drdyPin
	cfg.cdcLogDev = *cdcLogDev
	cfg.cdcLogBaud = *cdcLogBaud
	cfg.hardwareRev = *hardwareRev
	cfg.serialNumber = *serialNumber
	cfg.panicFile = *panicFile
	cfg.logFormat = *logFormat
	cfg.logLevel = *logLevel
	cfg.metricsAddr = *metricsAddr
	cfg.logMetricsEvery = *logMetricsEvery

	if err := applyEnvOverrides(cfg, setFlags); err != nil {
		fmt.Printf("environment override error: %v\n", err)
		return nil, *showVersion
	}
	if err := cfg.validate(); err != nil {
		fmt.Printf("configuration error: %v\n", err)
		return nil, *showVersion
	}
	return cfg, *showVersion
}

// validate performs basic semantic validation of the parsed configuration.
// It does not attempt to open any device nodes.
func (c *appConfig) validate() error {
	if c == nil {
		return errors.New("nil config")
	}
	switch c.logFormat {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log-format: %s", c.logFormat)
	}
	switch c.logLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log-level: %s", c.logLevel)
	}
	if c.ffsOut == "" || c.ffsIn == "" {
		return errors.New("ffs-out and ffs-in must both be set")
	}
	if c.hidMouse == "" || c.hidKeyboard == "" {
		return errors.New("hid-mouse and hid-keyboard must both be set")
	}
	if c.cdcLogBaud <= 0 {
		return fmt.Errorf("cdc-log-baud must be > 0 (got %d)", c.cdcLogBaud)
	}
	if c.hardwareRev < 0 || c.hardwareRev > 255 {
		return fmt.Errorf("hardware-rev must fit a byte (got %d)", c.hardwareRev)
	}
	if c.logMetricsEvery < 0 {
		return errors.New("log-metrics-interval must be >= 0")
	}
	return nil
}

// applyEnvOverrides maps LATEMATE_DEVICE_* environment variables onto cfg
// unless the corresponding flag was explicitly set, mirroring the teacher's
// CAN_SERVER_* precedence rule (flag wins over env).
func applyEnvOverrides(c *appConfig, set map[string]struct{}) error {
	var firstErr error
	get := func(k string) (string, bool) { v, ok := os.LookupEnv(k); return strings.TrimSpace(v), ok }

	if _, ok := set["ffs-out"]; !ok {
		if v, ok := get("LATEMATE_DEVICE_FFS_OUT"); ok && v != "" {
			c.ffsOut = v
		}
	}
	if _, ok := set["ffs-in"]; !ok {
		if v, ok := get("LATEMATE_DEVICE_FFS_IN"); ok && v != "" {
			c.ffsIn = v
		}
	}
	if _, ok := set["hid-mouse"]; !ok {
		if v, ok := get("LATEMATE_DEVICE_HID_MOUSE"); ok && v != "" {
			c.hidMouse = v
		}
	}
	if _, ok := set["hid-keyboard"]; !ok {
		if v, ok := get("LATEMATE_DEVICE_HID_KEYBOARD"); ok && v != "" {
			c.hidKeyboard = v
		}
	}
	if _, ok := set["spi-bus"]; !ok {
		if v, ok := get("LATEMATE_DEVICE_SPI_BUS"); ok && v != "" {
			c.spiBus = v
		}
	}
	if _, ok := set["drdy-pin"]; !ok {
		if v, ok := get("LATEMATE_DEVICE_DRDY_PIN"); ok && v != "" {
			c.drdyPin = v
		}
	}
	if _, ok := set["cdc-log-dev"]; !ok {
		if v, ok := get("LATEMATE_DEVICE_CDC_LOG_DEV"); ok {
			c.cdcLogDev = v
		}
	}
	if _, ok := set["cdc-log-baud"]; !ok {
		if v, ok := get("LATEMATE_DEVICE_CDC_LOG_BAUD"); ok && v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				c.cdcLogBaud = n
			} else if err != nil && firstErr == nil {
				firstErr = fmt.Errorf("invalid LATEMATE_DEVICE_CDC_LOG_BAUD: %w", err)
			}
		}
	}
	if _, ok := set["hardware-rev"]; !ok {
		if v, ok := get("LATEMATE_DEVICE_HARDWARE_REV"); ok && v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				c.hardwareRev = n
			} else if firstErr == nil {
				firstErr = fmt.Errorf("invalid LATEMATE_DEVICE_HARDWARE_REV: %w", err)
			}
		}
	}
	if _, ok := set["serial-number"]; !ok {
		if v, ok := get("LATEMATE_DEVICE_SERIAL_NUMBER"); ok && v != "" {
			c.serialNumber = v
		}
	}
	if _, ok := set["panic-file"]; !ok {
		if v, ok := get("LATEMATE_DEVICE_PANIC_FILE"); ok && v != "" {
			c.panicFile = v
		}
	}
	if _, ok := set["log-format"]; !ok {
		if v, ok := get("LATEMATE_DEVICE_LOG_FORMAT"); ok && v != "" {
			c.logFormat = v
		}
	}
	if _, ok := set["log-level"]; !ok {
		if v, ok := get("LATEMATE_DEVICE_LOG_LEVEL"); ok && v != "" {
			c.logLevel = v
		}
	}
	if _, ok := set["metrics-addr"]; !ok {
		if v, ok := get("LATEMATE_DEVICE_METRICS"); ok {
			c.metricsAddr = v
		}
	}
	if _, ok := set["log-metrics-interval"]; !ok {
		if v, ok := get("LATEMATE_DEVICE_LOG_METRICS_INTERVAL"); ok && v != "" {
			if d, err := time.ParseDuration(v); err == nil && d >= 0 {
				c.logMetricsEvery = d
			} else if err != nil && firstErr == nil {
				firstErr = fmt.Errorf("invalid LATEMATE_DEVICE_LOG_METRICS_INTERVAL: %w", err)
			}
		}
	}
	return firstErr
}
