// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// scd30mon config.toml key mapping to runtime settings.
type fileConfig struct {
	Bus                 string `toml:"bus"`
	IntervalSeconds     int    `toml:"measurement_interval_seconds"`
	AmbientPressureMbar int    `toml:"ambient_pressure_mbar"`
	SelfCalibration     bool   `toml:"auto_self_calibration"`
	ProbeRetries        int    `toml:"probe_retries"`
	MQTTBroker          string `toml:"mqtt_broker"`
	MQTTTopic           string `toml:"mqtt_topic"`
	MQTTClientID        string `toml:"mqtt_client_id"`
}

type mqttConfig struct {
	// Broker URL, e.g. tcp://localhost:1883. Publishing is disabled
	// when empty.
	Broker   string
	Topic    string
	ClientID string
}

type monitorConfig struct {
	// I2C bus name or number; empty selects the first available bus.
	Bus string
	// Periodic measurement interval.
	Interval time.Duration
	// Ambient pressure compensation in mBar; 0 disables it.
	AmbientPressure int
	// Continuous automatic self-calibration.
	SelfCalibration bool
	// Number of 1s probe attempts while the sensor boots.
	ProbeRetries int
	MQTT         mqttConfig
}

func defaultConfig() monitorConfig {
	return monitorConfig{
		// 2 seconds is the minimum supported interval.
		Interval:     2 * time.Second,
		ProbeRetries: 30,
		MQTT: mqttConfig{
			Topic:    "scd30/measurements",
			ClientID: "scd30mon",
		},
	}
}

// scd30mon loader for TOML config with default overlay.
func loadConfig(path string) (monitorConfig, error) {
	cfg := defaultConfig()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return monitorConfig{}, fmt.Errorf("load scd30mon config: %w", err)
	}

	if meta.IsDefined("bus") {
		cfg.Bus = strings.TrimSpace(raw.Bus)
	}
	if meta.IsDefined("measurement_interval_seconds") {
		cfg.Interval = time.Duration(raw.IntervalSeconds) * time.Second
	}
	if meta.IsDefined("ambient_pressure_mbar") {
		cfg.AmbientPressure = raw.AmbientPressureMbar
	}
	if meta.IsDefined("auto_self_calibration") {
		cfg.SelfCalibration = raw.SelfCalibration
	}
	if meta.IsDefined("probe_retries") {
		cfg.ProbeRetries = raw.ProbeRetries
	}
	if meta.IsDefined("mqtt_broker") {
		cfg.MQTT.Broker = strings.TrimSpace(raw.MQTTBroker)
	}
	if meta.IsDefined("mqtt_topic") {
		cfg.MQTT.Topic = strings.TrimSpace(raw.MQTTTopic)
	}
	if meta.IsDefined("mqtt_client_id") {
		cfg.MQTT.ClientID = strings.TrimSpace(raw.MQTTClientID)
	}

	if cfg.Interval < 2*time.Second || cfg.Interval > 1800*time.Second {
		return monitorConfig{}, fmt.Errorf(
			"load scd30mon config: measurement_interval_seconds must be within [2, 1800], got %d",
			int(cfg.Interval/time.Second),
		)
	}
	if p := cfg.AmbientPressure; p != 0 && (p < 700 || p > 1400) {
		return monitorConfig{}, fmt.Errorf(
			"load scd30mon config: ambient_pressure_mbar must be 0 or within [700, 1400], got %d", p,
		)
	}
	if cfg.ProbeRetries < 1 {
		return monitorConfig{}, fmt.Errorf(
			"load scd30mon config: probe_retries must be at least 1, got %d", cfg.ProbeRetries,
		)
	}
	if cfg.MQTT.Broker != "" && cfg.MQTT.Topic == "" {
		return monitorConfig{}, fmt.Errorf("load scd30mon config: mqtt_topic is required when mqtt_broker is set")
	}

	return cfg, nil
}
