package main

import (
	"fmt"
	"os"

	"github.com/gentam/spinor"
	"github.com/gentam/spinor/simflash"
	"github.com/gentam/spinor/spihost"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/afero"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"periph.io/x/conn/v3/gpio"
)

// session is an initialized chip on real hardware or a simulated image.
type session struct {
	chip *spinor.Chip
	dev  *spihost.Device // nil when simulated
	log  *zap.Logger
	reg  *prometheus.Registry

	closers []func() error
}

func newLogger() *zap.Logger {
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	level := zapcore.InfoLevel
	if *verbose {
		level = zapcore.DebugLevel
	}
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encoderConfig), zapcore.Lock(os.Stderr), level)
	return zap.New(core)
}

// openSession opens the flash selected by the global flags and runs
// Chip.Init on it.
func openSession() (*session, error) {
	s := &session{log: newLogger(), reg: prometheus.NewRegistry()}
	chip := &spinor.Chip{
		ReadMode: parseReadMode(),
		Log:      s.log.Named("flash"),
		Metrics:  spinor.NewMetrics(s.reg),
	}

	if *simImage != "" {
		dev, err := simflash.New(afero.NewOsFs(), *simImage, simflash.Options{
			ID:   uint32(*simID),
			Size: *simSize,
			Log:  s.log.Named("sim"),
		})
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, dev.Close)
		chip.Host = dev
	} else {
		d, err := spihost.OpenFT2232H(spihost.Options{Board: *board, Log: s.log.Named("spi")})
		if err != nil {
			return nil, err
		}
		s.dev = d

		// Hold the FPGA in reset so it does not act as a SPI master.
		if err := d.ResetFPGA(gpio.Low); err != nil {
			s.Close()
			return nil, fmt.Errorf("reset FPGA: %w", err)
		}
		s.closers = append(s.closers, func() error { return d.ResetFPGA(gpio.High) })

		if err := d.Host.ReleasePowerDown(); err != nil {
			s.Close()
			return nil, fmt.Errorf("flash power up failed: %w", err)
		}
		s.closers = append(s.closers, d.Host.PowerDown)
		chip.Host = d.Host
	}

	s.chip = chip
	if err := chip.Init(); err != nil {
		s.Close()
		return nil, fmt.Errorf("init flash: %w", err)
	}
	return s, nil
}

// Close releases the chip in reverse order of acquisition and prints
// metrics when asked to.
func (s *session) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			s.log.Warn("close", zap.Error(err))
		}
	}
	s.closers = nil
	printMetrics(s.reg)
	s.log.Sync()
}

// mustOpen is openSession for commands: it exits on failure.
func mustOpen() *session {
	s, err := openSession()
	if err != nil {
		fatalf("%v", err)
	}
	return s
}

// fail closes s and exits.
func (s *session) fail(format string, a ...any) {
	s.Close()
	fatalf(format, a...)
}
