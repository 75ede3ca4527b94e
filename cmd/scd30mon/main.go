// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// scd30mon continuously reads CO2, temperature and humidity from an
// SCD30 sensor, logs the readings, and optionally publishes them to an
// MQTT broker as JSON.
package main

import (
	"encoding/json"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/host/v3"

	"github.com/RequestForCoffee/scd30/scd30"
)

type reading struct {
	Time        time.Time `json:"time"`
	CO2         float32   `json:"co2_ppm"`
	Temperature float32   `json:"temperature_celsius"`
	Humidity    float32   `json:"humidity_percent"`
}

func main() {
	configPath := flag.String("config", "scd30mon.toml", "path to the TOML config file")
	flag.Parse()

	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	if _, err := host.Init(); err != nil {
		log.Fatal().Err(err).Msg("host init failed")
	}
	bus, err := i2creg.Open(cfg.Bus)
	if err != nil {
		log.Fatal().Err(err).Str("bus", cfg.Bus).Msg("opening i2c bus failed")
	}
	defer bus.Close()

	dev, err := scd30.New(bus, scd30.SensorAddress)
	if err != nil {
		log.Fatal().Err(err).Msg("creating driver failed")
	}

	// The sensor may need a couple of seconds to boot up after power-on
	// and does not respond on the bus during that time.
	log.Info().Msg("probing sensor")
	for attempt := 0; ; attempt++ {
		if _, err = dev.DataReady(); err == nil {
			break
		}
		if attempt+1 >= cfg.ProbeRetries {
			log.Fatal().Err(err).Msg("timed out waiting for the sensor")
		}
		time.Sleep(time.Second)
	}
	log.Info().Msg("link to sensor established")

	if version, err := dev.FirmwareVersion(); err == nil {
		log.Info().Stringer("version", version).Msg("sensor firmware")
	} else {
		log.Warn().Err(err).Msg("reading firmware version failed")
	}

	if err := dev.SetMeasurementInterval(cfg.Interval); err != nil {
		var confErr *scd30.ConfirmationError
		if errors.As(err, &confErr) {
			// The write reached the sensor; keep going with whatever
			// interval it settled on.
			log.Warn().Err(err).Msg("interval not confirmed")
		} else {
			log.Fatal().Err(err).Msg("setting measurement interval failed")
		}
	}
	if err := dev.SetAutoSelfCalibration(cfg.SelfCalibration); err != nil {
		log.Fatal().Err(err).Msg("setting self-calibration failed")
	}
	pressure := physic.Pressure(cfg.AmbientPressure) * 100 * physic.Pascal
	if err := dev.StartPeriodicMeasurement(pressure); err != nil {
		log.Fatal().Err(err).Msg("starting periodic measurement failed")
	}
	log.Info().
		Dur("interval", cfg.Interval).
		Int("ambient_pressure_mbar", cfg.AmbientPressure).
		Bool("self_calibration", cfg.SelfCalibration).
		Msg("periodic measurement started")

	var client paho.Client
	if cfg.MQTT.Broker != "" {
		opts := paho.NewClientOptions().
			AddBroker(cfg.MQTT.Broker).
			SetClientID(cfg.MQTT.ClientID).
			SetAutoReconnect(true)
		client = paho.NewClient(opts)
		token := client.Connect()
		token.Wait()
		if err := token.Error(); err != nil {
			log.Fatal().Err(err).Str("broker", cfg.MQTT.Broker).Msg("mqtt connect failed")
		}
		defer client.Disconnect(250)
		log.Info().Str("broker", cfg.MQTT.Broker).Str("topic", cfg.MQTT.Topic).Msg("publishing to mqtt")
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	poll := time.NewTicker(500 * time.Millisecond)
	defer poll.Stop()
	for {
		select {
		case <-sigCh:
			log.Info().Msg("stopping periodic measurement")
			if err := dev.StopPeriodicMeasurement(); err != nil {
				log.Error().Err(err).Msg("stopping periodic measurement failed")
			}
			return
		case <-poll.C:
			ready, err := dev.DataReady()
			if err != nil {
				log.Error().Err(err).Msg("data ready poll failed")
				continue
			}
			if !ready {
				continue
			}
			m, err := dev.ReadMeasurement()
			if err != nil {
				log.Error().Err(err).Msg("reading measurement failed")
				continue
			}
			log.Info().
				Float32("co2_ppm", m.CO2).
				Float32("temperature_celsius", m.Temperature).
				Float32("humidity_percent", m.Humidity).
				Msg("measurement")
			if client != nil {
				payload, err := json.Marshal(reading{
					Time:        time.Now().UTC(),
					CO2:         m.CO2,
					Temperature: m.Temperature,
					Humidity:    m.Humidity,
				})
				if err != nil {
					log.Error().Err(err).Msg("encoding reading failed")
					continue
				}
				token := client.Publish(cfg.MQTT.Topic, 0, false, payload)
				token.Wait()
				if err := token.Error(); err != nil {
					log.Error().Err(err).Msg("mqtt publish failed")
				}
			}
		}
	}
}
