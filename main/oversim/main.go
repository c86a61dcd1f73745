package main

import (
	"context"
	"flag"
	"github.com/jd3nn1s/overdrive"
	"github.com/jd3nn1s/overdrive/forwarder"
	"github.com/jd3nn1s/overdrive/sim"
	log "github.com/sirupsen/logrus"
	"os"
	"os/signal"
	"sync"
	"time"
)

var configFile = flag.String("config", "", "vehicle configuration file")
var forwarderConfig = flag.String("forwarder-config", "", "UDP forwarder configuration file, next to the binary")
var printEvents = flag.Bool("print-events", false, "print events to stdout")
var stopAtLine = flag.Bool("stop-at-line", false, "stop the vehicle on the start line and exit")
var speed = flag.Int("speed", 500, "speed in mm/s when not stopping at the line")

const simIdentifier = 0x0800efbe

func main() {
	log.SetLevel(log.InfoLevel)
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	cfg := overdrive.DefaultConfig()
	if *configFile != "" {
		var err error
		if cfg, err = overdrive.LoadConfigFile(*configFile); err != nil {
			log.Fatal("unable to load configuration: ", err)
		}
	}

	ready := make(chan struct{})
	var readyOnce sync.Once
	sinks := overdrive.MultiSink{overdrive.SinkFunc(func(e overdrive.Event) {
		if _, ok := e.(overdrive.CarReady); ok {
			readyOnce.Do(func() { close(ready) })
		}
	})}
	if *printEvents {
		sinks = append(sinks, printer{})
	}

	wg := sync.WaitGroup{}
	if *forwarderConfig != "" {
		fwder, err := forwarder.NewUDPForwarder(*forwarderConfig)
		if err != nil {
			log.Fatal("unable to load UDP forwarder: ", err)
		}
		sinks = append(sinks, fwder)
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = overdrive.Retry(ctx, fwder)
		}()
	}

	simVehicle := sim.New("sim-0", simIdentifier)
	simVehicle.ServiceIndex = cfg.ServiceIndexFor(cfg.Platform)
	v := overdrive.NewVehicle(simVehicle, simVehicle.Advertisement(), sinks, cfg)
	simVehicle.Attach(v)

	if err := v.Connect(); err != nil {
		log.Fatal("unable to connect: ", err)
	}
	select {
	case <-ready:
	case <-time.After(5 * time.Second):
		log.Fatal("vehicle did not become ready")
	case <-ctx.Done():
		return
	}

	if err := v.RequestBattery(); err != nil {
		log.WithField("err", err).Warn("unable to request battery level")
	}

	if *stopAtLine {
		m, err := v.StopAtLine(ctx)
		if err != nil {
			log.Fatal("unable to stop at line: ", err)
		}
		if err := m.Wait(ctx); err != nil {
			log.WithField("err", err).Error("stop at line did not complete")
		}
	} else {
		if err := v.SetSpeed(int16(*speed), 1000); err != nil {
			log.Fatal("unable to set speed: ", err)
		}
		<-ctx.Done()
		if err := v.Stop(); err != nil {
			log.WithField("err", err).Warn("unable to stop vehicle")
		}
	}

	if err := v.Disconnect(); err != nil {
		log.WithField("err", err).Warn("unable to disconnect")
	}
	simVehicle.Wait()
	cancel()
	wg.Wait()
}
