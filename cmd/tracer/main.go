// cmd/tracer/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/zeloscloud/zelos-extension-modbus/internal/engine"
	"github.com/zeloscloud/zelos-extension-modbus/internal/regmap"
	"github.com/zeloscloud/zelos-extension-modbus/internal/sim"
	"github.com/zeloscloud/zelos-extension-modbus/internal/sink"
	"github.com/zeloscloud/zelos-extension-modbus/internal/transport"
	"github.com/zeloscloud/zelos-extension-modbus/internal/transport/modbustcp"
)

// demoMap mirrors the register layout of the built-in power meter
// simulator, so -demo works without a map file.
const demoMap = `
device: power-meter
groups:
  - name: voltage
    registers:
      - { name: voltage_l1, address: 0, datatype: float32, unit: V }
      - { name: voltage_l2, address: 2, datatype: float32, unit: V }
      - { name: voltage_l3, address: 4, datatype: float32, unit: V }
  - name: current
    registers:
      - { name: current_l1, address: 6, datatype: float32, unit: A }
      - { name: current_l2, address: 8, datatype: float32, unit: A }
      - { name: current_l3, address: 10, datatype: float32, unit: A }
  - name: power
    registers:
      - { name: power_total, address: 12, datatype: float32, unit: kW }
      - { name: power_factor, address: 14, datatype: float32 }
      - { name: frequency, address: 16, datatype: float32, unit: Hz }
  - name: energy
    registers:
      - { name: energy_total, address: 18, datatype: uint32, unit: Wh }
      - { name: temperature, address: 20, datatype: int16, scale: 0.1, unit: degC }
  - name: status
    registers:
      - { name: relay_1, address: 0, kind: coil, datatype: bool }
      - { name: relay_2, address: 1, kind: coil, datatype: bool }
      - { name: alarm, address: 2, kind: coil, datatype: bool, writable: false }
      - { name: door_open, address: 0, kind: discrete_input, datatype: bool }
      - { name: fault, address: 1, kind: discrete_input, datatype: bool }
      - { name: grid_ok, address: 2, kind: discrete_input, datatype: bool }
  - name: identity
    registers:
      - { name: firmware, address: 0, kind: input, datatype: uint16 }
      - { name: serial, address: 1, kind: input, datatype: uint32 }
      - { name: uptime, address: 3, kind: input, datatype: uint32, unit: s }
  - name: setpoints
    registers:
      - { name: voltage_high, address: 100, datatype: uint16, unit: V }
      - { name: voltage_low, address: 101, datatype: uint16, unit: V }
      - { name: power_limit, address: 102, datatype: int32, unit: W }
      - { name: energy_reset, address: 104, datatype: uint32 }
  - name: calibration
    registers:
      - { name: cal_factor, address: 110, datatype: float32, byte_order: big_swap }
      - { name: offset_val, address: 112, datatype: float32, byte_order: big_swap }
`

func main() {
	var (
		mapPath   = flag.String("map", "", "register map yaml (empty = built-in demo map)")
		addr      = flag.String("addr", "127.0.0.1:502", "device address (host:port for tcp, serial path for rtu)")
		mode      = flag.String("mode", "tcp", "transport mode: tcp or rtu")
		unitID    = flag.Uint("unit", 1, "modbus unit / slave id")
		interval  = flag.Duration("interval", time.Second, "poll interval")
		reconnect = flag.Duration("reconnect", 3*time.Second, "delay between reconnect attempts")
		timeout   = flag.Duration("timeout", 5*time.Second, "per-request transport timeout")
		demo      = flag.Bool("demo", false, "poll the built-in power meter simulator instead of a real device")
		envFile   = flag.String("env", ".env", "env file for influx credentials (ignored if missing)")
		debug     = flag.Bool("debug", false, "debug logging")
	)
	flag.Parse()

	// Optional .env, real environment wins.
	_ = godotenv.Load(*envFile)

	log, err := buildLogger(*debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// --------------------
	// Register map
	// --------------------

	var m *regmap.Map
	if *mapPath != "" {
		m, err = regmap.Load(*mapPath)
	} else {
		m, err = regmap.Parse([]byte(demoMap))
	}
	if err != nil {
		log.Fatal("register map", zap.Error(err))
	}
	log.Info("register map loaded",
		zap.String("device", m.Device),
		zap.Int("registers", m.Len()),
	)

	// --------------------
	// Transport
	// --------------------

	var tr transport.Transport
	if *demo {
		tr = sim.New()
		log.Info("demo mode: using built-in power meter simulator")
	} else {
		tr, err = modbustcp.New(modbustcp.Config{
			Mode:    *mode,
			Address: *addr,
			UnitID:  uint8(*unitID),
			Timeout: *timeout,
		})
		if err != nil {
			log.Fatal("transport", zap.Error(err))
		}
		log.Info("transport configured",
			zap.String("mode", *mode),
			zap.String("addr", *addr),
			zap.Uint("unit", *unitID),
		)
	}

	// --------------------
	// Sinks (log always, influx when configured)
	// --------------------

	sinks := []sink.Sink{sink.NewLog(log)}
	if ic, ok := influxFromEnv(); ok {
		sinks = append(sinks, sink.NewInflux(ic, log))
		log.Info("influx sink enabled",
			zap.String("host", ic.Host),
			zap.String("bucket", ic.Bucket),
		)
	}
	out := sink.Multi(sinks)
	defer out.Close()

	// --------------------
	// Engine
	// --------------------

	eng, err := engine.New(m, tr, out, log, engine.Config{
		PollInterval:      *interval,
		ReconnectInterval: *reconnect,
	})
	if err != nil {
		log.Fatal("engine", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		s := <-sig
		log.Info("shutting down", zap.String("signal", s.String()))
		eng.Stop()
	}()

	if err := eng.Run(ctx); err != nil {
		log.Error("run", zap.Error(err))
	}

	st := eng.Status()
	log.Info("stopped",
		zap.Uint64("polls", st.PollCount),
		zap.Uint64("errors", st.ErrorCount),
	)
}

func buildLogger(debug bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "console"
	if debug {
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	return cfg.Build()
}

// influxFromEnv enables the influx sink only when all required
// variables are present.
func influxFromEnv() (sink.InfluxConfig, bool) {
	ic := sink.InfluxConfig{
		Host:        os.Getenv("INFLUX_HOST"),
		Token:       os.Getenv("INFLUX_TOKEN"),
		Org:         os.Getenv("INFLUX_ORG"),
		Bucket:      os.Getenv("INFLUX_BUCKET"),
		Measurement: os.Getenv("INFLUX_MEASUREMENT"),
	}
	if ic.Measurement == "" {
		ic.Measurement = "modbus"
	}
	for _, v := range []string{ic.Host, ic.Token, ic.Org, ic.Bucket} {
		if strings.TrimSpace(v) == "" {
			return sink.InfluxConfig{}, false
		}
	}
	return ic, true
}
