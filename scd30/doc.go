// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// This package provides a driver for the Sensirion SCD30 CO2 sensor.
// The SCD30 measures CO2 concentration, temperature and relative
// humidity over an I²C bus at the fixed address 0x61.
//
// The sensor samples autonomously in periodic measurement mode at a
// configurable interval and buffers one reading at a time; poll
// DataReady and call ReadMeasurement to retrieve it, or use Sense /
// SenseContinuous for a higher level surface.
//
// Refer to the interface description for more information.
//
// https://sensirion.com/media/documents/D7CEEF4A/6165372F/Sensirion_CO2_Sensors_SCD30_Interface_Description.pdf
package scd30
