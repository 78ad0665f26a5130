// Copyright 2020 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Command stationd runs the smart bedding acquisition and session
// assembly engine: it wires the shared-bus producers, the metronome, the
// bounded session pipeline, the biomedical processor, persistence and
// the administrative HTTP surface, grounded on the teacher's
// cmd/bmxx80-style hardware bring-up (flag-selected bus, host.Init,
// deferred Close) generalised from one sensor to the station's full set.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"

	"github.com/GermanBionicSystems/smartbedstation/internal/api"
	"github.com/GermanBionicSystems/smartbedstation/internal/biomed"
	"github.com/GermanBionicSystems/smartbedstation/internal/bus"
	"github.com/GermanBionicSystems/smartbedstation/internal/config"
	"github.com/GermanBionicSystems/smartbedstation/internal/environment"
	"github.com/GermanBionicSystems/smartbedstation/internal/inertial"
	"github.com/GermanBionicSystems/smartbedstation/internal/logging"
	"github.com/GermanBionicSystems/smartbedstation/internal/metronome"
	"github.com/GermanBionicSystems/smartbedstation/internal/pressure"
	"github.com/GermanBionicSystems/smartbedstation/internal/session"
	"github.com/GermanBionicSystems/smartbedstation/internal/storage"
)

func mainImpl() error {
	i2cID := flag.String("i2c", "", "I²C bus shared by the pressure scanner and environment probe")
	spiID := flag.String("spi", "", "SPI port the inertial unit is attached to")
	csName := flag.String("cs", "", "GPIO pin name for the inertial unit's chip select")
	dataPin := flag.String("pressure-data", "", "GPIO pin name for the pressure matrix shift register data line")
	clkPin := flag.String("pressure-clk", "", "GPIO pin name for the pressure matrix shift register clock line")
	latchPin := flag.String("pressure-latch", "", "GPIO pin name for the pressure matrix shift register latch line")
	listen := flag.String("http", ":8080", "administrative HTTP surface listen address")
	flag.Parse()
	if flag.NArg() != 0 {
		return errors.New("unexpected argument, try -help")
	}

	cfg := config.Default()
	log := logging.New(cfg.DebugMode)

	if _, err := host.Init(); err != nil {
		return fmt.Errorf("stationd: host.Init: %w", err)
	}

	i2cBus, err := i2creg.Open(*i2cID)
	if err != nil {
		return fmt.Errorf("stationd: opening i2c bus: %w", err)
	}
	defer i2cBus.Close()
	arbiter := bus.New(i2cBus)

	spiPort, err := spireg.Open(*spiID)
	if err != nil {
		return fmt.Errorf("stationd: opening spi port: %w", err)
	}
	defer spiPort.Close()
	spiConn, err := spiPort.Connect(1*1000*1000, spi.Mode0, 8)
	if err != nil {
		return fmt.Errorf("stationd: configuring spi connection: %w", err)
	}

	cs := gpioreg.ByName(*csName)
	if cs == nil {
		return fmt.Errorf("stationd: unknown chip-select pin %q", *csName)
	}
	dataGPIO, clkGPIO, latchGPIO := gpioreg.ByName(*dataPin), gpioreg.ByName(*clkPin), gpioreg.ByName(*latchPin)
	if dataGPIO == nil || clkGPIO == nil || latchGPIO == nil {
		return errors.New("stationd: unknown pressure matrix shift-register pin")
	}

	pressureScanner, err := pressure.New(pressure.Pins{Data: dataGPIO, Clk: clkGPIO, Latch: latchGPIO}, arbiter, log, cfg.ScanDelay())
	if err != nil {
		return fmt.Errorf("stationd: initialising pressure scanner: %w", err)
	}
	inertialSampler, err := inertial.New(spiConn, cs, log, cfg.AccelerationPeriod())
	if err != nil {
		return fmt.Errorf("stationd: initialising inertial sampler: %w", err)
	}
	environmentSampler := environment.New(arbiter, log, cfg.EnvironmentPeriod())

	store, err := storage.Open(cfg.StoragePath, cfg.StorageEnabled, log)
	if err != nil {
		return fmt.Errorf("stationd: opening storage: %w", err)
	}

	pipeline := metronome.NewPipeline(log, func(reason string) {
		log.Statusf("alert", "%s", reason)
	})
	processor := biomed.New(log, nil, func(sess *session.Session) {
		if err := store.Save(sess); err != nil {
			log.Statusf("storage", "failed to save session: %v", err)
		}
	})

	clock := metronome.New(pressureScanner, inertialSampler, environmentSampler, pipeline.Submit)

	go pressureScanner.Run()
	go inertialSampler.Run()
	go environmentSampler.Run()
	go processor.Run(pipeline.Sessions())
	go clock.Run()

	apiServer := api.New(cfg.APICode, log, pressureScanner, inertialSampler, store)
	httpServer := &http.Server{Addr: *listen, Handler: apiServer.Handler()}
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Statusf("http", "ListenAndServe: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig

	log.Statusf("stationd", "shutting down")
	clock.Stop()
	pressureScanner.Stop()
	inertialSampler.Stop()
	environmentSampler.Stop()
	pipeline.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return httpServer.Shutdown(ctx)
}

func main() {
	if err := mainImpl(); err != nil {
		fmt.Fprintf(os.Stderr, "stationd: %s.\n", err)
		os.Exit(1)
	}
}
