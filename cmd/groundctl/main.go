// Command groundctl is a minimal example program: it connects to an
// autopilot, prints state changes as they arrive, and exits cleanly on
// SIGINT/SIGTERM. Not part of the library's core contract (spec §6); kept
// thin.
//
// Grounded on this codebase's own cmd/ entry point shape.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/openskylab/groundlink/config"
	"github.com/openskylab/groundlink/mavbus"
	"github.com/openskylab/groundlink/transport"
	"github.com/openskylab/groundlink/vehicle"
)

const version = "0.1.0"

func main() {
	log.SetFlags(log.Ldate | log.Ltime | log.Lmicroseconds)

	fmt.Printf("groundctl v%s\n", version)

	configPath := "configs/config.yaml"
	if len(os.Args) > 1 {
		configPath = os.Args[1]
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("loading config from %s: %v", configPath, err)
	}
	log.Printf("configuration loaded from %s", configPath)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	v, err := vehicle.Connect(ctx, vehicle.Options{
		Options: transport.Options{
			URI:             cfg.Link.URI,
			SerialBaud:      cfg.Link.SerialBaud,
			SourceSystem:    cfg.Link.SourceSystem,
			SourceComponent: cfg.Link.SourceComponent,
		},
		ConnectTimeout:  cfg.Heartbeat.ConnectTimeout(),
		LivenessTimeout: cfg.Heartbeat.LivenessTimeout(),
		BaseStreamRate:  cfg.Streams.BaseRateHz,
	})
	if err != nil {
		log.Fatalf("connecting: %v", err)
	}
	defer v.Close()

	log.Printf("connected: target system %d component %d", v.Transport.TargetSystem(), v.Transport.TargetComponent())

	v.Heartbeat.OnDisconnect(func() {
		log.Printf("vehicle disconnected")
	})

	unsub := v.OnAnyAttribute(func(evt mavbus.AttributeEvent) {
		log.Printf("%s -> %v", evt.Name, evt.Value)
	})
	defer unsub()

	if err := v.Parameters.Initialize(); err != nil {
		log.Printf("warn: requesting parameters: %v", err)
	}

	<-ctx.Done()
	log.Printf("shutting down")
}
