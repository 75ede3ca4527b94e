// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package scd30

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/physic"
)

// SensorAddress is the fixed I²C address of the SCD30.
const SensorAddress uint16 = 0x61

// Quiescence delay between the write and read phases of a transaction.
// The interface description calls for >3ms of turnaround time for most
// commands; it applies to every command, response or not.
const commandDelay = 5 * time.Millisecond

// PPM=Parts Per Million. Units of measure for CO2 concentration. The
// SCD30 reports fractional values.
type PPM float32

func (p PPM) String() string {
	return fmt.Sprintf("%.1f PPM", float32(p))
}

// FirmwareVersion is the sensor firmware revision, major in the high
// byte, minor in the low byte.
type FirmwareVersion uint16

func (v FirmwareVersion) String() string {
	return fmt.Sprintf("%d.%d", byte(v>>8), byte(v))
}

// State is the sensor lifecycle as far as this driver has observed it.
// The sensor persists the periodic measurement setting in non-volatile
// memory, so a freshly created Dev cannot know whether the sensor is
// measuring; it starts in StateUnknown.
type State int

const (
	StateUnknown State = iota
	// Periodic measurement stopped.
	StateIdle
	// Periodic measurement active.
	StateMeasuring
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateMeasuring:
		return "measuring"
	default:
		return "unknown"
	}
}

type cmd uint16

// Structure to simplify sending commands to the device.
type command struct {
	// The 16-bit command word.
	cmdWord cmd
	// The expected number of 16-bit response words. Each word arrives
	// with a trailing CRC byte, so the raw response is 3x this size.
	responseWords int
}

// The various implemented commands.

var cmdStartMeasurement = command{
	cmdWord: 0x0010,
}
var cmdStopMeasurement = command{
	cmdWord: 0x0104,
}
var cmdGetDataReady = command{
	cmdWord:       0x0202,
	responseWords: 1,
}
var cmdReadMeasurement = command{
	cmdWord:       0x0300,
	responseWords: 6,
}
var cmdSetMeasurementInterval = command{
	cmdWord:       0x4600,
	responseWords: 1,
}
var cmdGetMeasurementInterval = command{
	cmdWord:       0x4600,
	responseWords: 1,
}
var cmdSetAutoSelfCalibration = command{
	cmdWord: 0x5306,
}
var cmdSetTemperatureOffset = command{
	cmdWord: 0x5403,
}
var cmdGetTemperatureOffset = command{
	cmdWord:       0x5403,
	responseWords: 1,
}
var cmdGetAutoSelfCalibration = command{
	cmdWord:       0x5306,
	responseWords: 1,
}
var cmdGetFirmwareVersion = command{
	cmdWord:       0xd100,
	responseWords: 1,
}
var cmdSoftReset = command{
	cmdWord: 0xd304,
}

// Documented argument ranges.
const (
	minIntervalSeconds = 2
	maxIntervalSeconds = 1800

	minPressureMillibar = 700
	maxPressureMillibar = 1400
)

// Measurement is a single reading retrieved from the sensor's buffer.
// The values are the raw IEEE-754 single precision floats the sensor
// transmitted.
type Measurement struct {
	// CO2 concentration in parts per million.
	CO2 float32
	// Temperature in degrees Celsius.
	Temperature float32
	// Relative humidity in percent.
	Humidity float32
}

// The sensor reading in physic units. Returns CO2 PPM, Temperature, and
// Humidity.
type Env struct {
	physic.Env
	CO2 PPM
}

// Return the sensor readings in string format.
func (e *Env) String() string {
	return fmt.Sprintf("Temperature: %s Humidity: %s CO2: %s", e.Temperature.String(), e.Humidity.String(), e.CO2.String())
}

// Dev represents an SCD30 device.
type Dev struct {
	// The i2c bus device.
	d *i2c.Dev
	// channel to halt SenseContinuous
	chHalt chan bool
	// Serializes the full write-delay-read sequence of each command.
	// The sensor is half-duplex and stateful between the two phases, so
	// commands must never interleave.
	mu    sync.Mutex
	state State
}

// New creates an SCD30 driver using the supplied bus and address. The
// constant SensorAddress should be supplied as the value for addr. No
// bus I/O is performed; the sensor may need a couple of seconds after
// power-on before it responds, and probing/retrying is left to the
// caller.
func New(bus i2c.Bus, addr uint16) (*Dev, error) {
	d := &Dev{d: &i2c.Dev{Bus: bus, Addr: addr}, state: StateUnknown}
	return d, nil
}

// All commands to read or write to the sensor go through this function.
// The caller must hold d.mu.
func (d *Dev) sendCommand(c command, args []uint16) ([]uint16, error) {
	w := buildFrame(uint16(c.cmdWord), args)
	if err := d.d.Tx(w, nil); err != nil {
		return nil, fmt.Errorf("scd30 cmd 0x%04x: %w", c.cmdWord, err)
	}
	time.Sleep(commandDelay)
	if c.responseWords == 0 {
		return nil, nil
	}

	r := make([]byte, 3*c.responseWords)
	if err := d.d.Tx(nil, r); err != nil {
		return nil, fmt.Errorf("scd30 cmd 0x%04x: %w", c.cmdWord, err)
	}
	words, err := parseWords(r, c.responseWords)
	if err != nil {
		return nil, fmt.Errorf("scd30 cmd 0x%04x: %w", c.cmdWord, err)
	}
	return words, nil
}

// StartPeriodicMeasurement starts periodic measurement of CO2
// concentration, temperature and humidity at the configured interval.
// ambientPressure optionally compensates for barometric pressure; pass
// 0 to disable compensation, or a value in [700, 1400] mBar. The
// periodic measurement setting is stored in the sensor's non-volatile
// memory and persists across power cycles.
func (d *Dev) StartPeriodicMeasurement(ambientPressure physic.Pressure) error {
	mbar := int(ambientPressure / (100 * physic.Pascal))
	if mbar != 0 && (mbar < minPressureMillibar || mbar > maxPressureMillibar) {
		return &RangeError{Arg: "ambient pressure (mBar)", Value: mbar, Min: minPressureMillibar, Max: maxPressureMillibar, ZeroOK: true}
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, err := d.sendCommand(cmdStartMeasurement, []uint16{uint16(mbar)}); err != nil {
		return err
	}
	d.state = StateMeasuring
	return nil
}

// StopPeriodicMeasurement stops periodic measurement. Like starting, the
// stopped setting persists in the sensor's non-volatile memory.
func (d *Dev) StopPeriodicMeasurement() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stopMeasurement()
}

func (d *Dev) stopMeasurement() error {
	if _, err := d.sendCommand(cmdStopMeasurement, nil); err != nil {
		return err
	}
	d.state = StateIdle
	return nil
}

// DataReady reports whether a measurement is buffered and ready to be
// retrieved with ReadMeasurement.
func (d *Dev) DataReady() (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	words, err := d.sendCommand(cmdGetDataReady, nil)
	if err != nil {
		return false, err
	}
	switch words[0] {
	case 0:
		return false, nil
	case 1:
		return true, nil
	default:
		return false, &ProtocolError{Cmd: uint16(cmdGetDataReady.cmdWord), Value: words[0], What: "data ready flag not 0 or 1"}
	}
}

// ReadMeasurement retrieves the buffered CO2, temperature and humidity
// reading. Call it only after DataReady reported true; the sensor's
// behavior is otherwise undefined. On any decode failure no partial
// data is returned.
func (d *Dev) ReadMeasurement() (Measurement, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	words, err := d.sendCommand(cmdReadMeasurement, nil)
	if err != nil {
		return Measurement{}, err
	}
	return Measurement{
		CO2:         wordsToFloat(words[0], words[1]),
		Temperature: wordsToFloat(words[2], words[3]),
		Humidity:    wordsToFloat(words[4], words[5]),
	}, nil
}

// SetMeasurementInterval sets the interval used for periodic
// measurements. The interval must be a whole number of seconds within
// [2, 1800]. The setting is stored in non-volatile memory and persists
// after power-off.
//
// The sensor echoes the value it applied. If the echo differs from the
// requested interval, a *ConfirmationError is returned; the write did
// reach the sensor, so callers may re-read the setting to disambiguate.
func (d *Dev) SetMeasurementInterval(interval time.Duration) error {
	if interval%time.Second != 0 {
		return &ResolutionError{Arg: "measurement interval", Value: interval, Unit: time.Second}
	}
	secs := int(interval / time.Second)
	if secs < minIntervalSeconds || secs > maxIntervalSeconds {
		return &RangeError{Arg: "measurement interval (seconds)", Value: secs, Min: minIntervalSeconds, Max: maxIntervalSeconds}
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	words, err := d.sendCommand(cmdSetMeasurementInterval, []uint16{uint16(secs)})
	if err != nil {
		return err
	}
	if words[0] != uint16(secs) {
		return &ConfirmationError{Cmd: uint16(cmdSetMeasurementInterval.cmdWord), Requested: uint16(secs), Echoed: words[0]}
	}
	return nil
}

// MeasurementInterval reads the configured periodic measurement
// interval.
func (d *Dev) MeasurementInterval() (time.Duration, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	words, err := d.sendCommand(cmdGetMeasurementInterval, nil)
	if err != nil {
		return 0, err
	}
	if words[0] < minIntervalSeconds || words[0] > maxIntervalSeconds {
		return 0, &ProtocolError{Cmd: uint16(cmdGetMeasurementInterval.cmdWord), Value: words[0], What: "measurement interval outside [2, 1800] s"}
	}
	return time.Duration(words[0]) * time.Second, nil
}

// SetAutoSelfCalibration enables or disables continuous automatic
// self-calibration (ASC). ASC needs the sensor to run periodic
// measurement and to see fresh air regularly to converge; refer to the
// interface description.
func (d *Dev) SetAutoSelfCalibration(active bool) error {
	var flag uint16
	if active {
		flag = 1
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	_, err := d.sendCommand(cmdSetAutoSelfCalibration, []uint16{flag})
	return err
}

// AutoSelfCalibrationActive reports whether automatic self-calibration
// is enabled.
func (d *Dev) AutoSelfCalibrationActive() (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	words, err := d.sendCommand(cmdGetAutoSelfCalibration, nil)
	if err != nil {
		return false, err
	}
	switch words[0] {
	case 0:
		return false, nil
	case 1:
		return true, nil
	default:
		return false, &ProtocolError{Cmd: uint16(cmdGetAutoSelfCalibration.cmdWord), Value: words[0], What: "self calibration flag not 0 or 1"}
	}
}

// The sensor transmits temperature offsets in ticks of 1/100 degree
// Celsius.
const offsetTick = 10 * physic.MilliKelvin

// TemperatureOffset reads the currently active temperature offset. The
// offset compensates for reading bias caused by heat from nearby
// electrical components or the SCD30 itself. It is stored in
// non-volatile memory and persists across power cycles.
func (d *Dev) TemperatureOffset() (physic.Temperature, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	words, err := d.sendCommand(cmdGetTemperatureOffset, nil)
	if err != nil {
		return 0, err
	}
	return physic.Temperature(words[0]) * offsetTick, nil
}

// SetTemperatureOffset sets a new temperature offset, subtracted from
// subsequent temperature readings. The offset must be non-negative and
// at most 655.35°C in steps of 0.01°C. To derive the value for an
// installation, compare a stabilized reading against a reference
// thermometer away from the sensor:
//
//	offsetNew = (measured + offsetOld) - ambient
//
// Readings adjust to a new offset slowly and gradually.
func (d *Dev) SetTemperatureOffset(offset physic.Temperature) error {
	ticks := int(offset / offsetTick)
	if ticks < 0 || ticks > 0xffff {
		return &RangeError{Arg: "temperature offset (1/100 °C ticks)", Value: ticks, Min: 0, Max: 0xffff}
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	_, err := d.sendCommand(cmdSetTemperatureOffset, []uint16{uint16(ticks)})
	return err
}

// FirmwareVersion reads the firmware revision from the sensor.
func (d *Dev) FirmwareVersion() (FirmwareVersion, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	words, err := d.sendCommand(cmdGetFirmwareVersion, nil)
	if err != nil {
		return 0, err
	}
	return FirmwareVersion(words[0]), nil
}

// SoftReset forces a sensor restart without the need to power cycle.
// Whether periodic measurement resumes afterwards depends on the
// setting persisted in the sensor, so the driver returns to
// StateUnknown.
func (d *Dev) SoftReset() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, err := d.sendCommand(cmdSoftReset, nil); err != nil {
		return err
	}
	d.state = StateUnknown
	return nil
}

// State returns the sensor lifecycle state as observed through the
// commands issued by this driver.
func (d *Dev) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Sense returns a reading (Temperature, Humidity, and CO2 concentration
// in PPM) from the device. If periodic measurement is not known to be
// running it is started first. Sense blocks until the sensor buffers a
// reading, bounded by the configured measurement interval plus a small
// margin.
func (d *Dev) Sense(env *Env) error {
	env.Temperature = 0
	env.Humidity = 0
	env.Pressure = 0
	env.CO2 = 0

	if d.State() != StateMeasuring {
		if err := d.StartPeriodicMeasurement(0); err != nil {
			return err
		}
	}
	interval, err := d.MeasurementInterval()
	if err != nil {
		return err
	}
	deadline := time.Now().Add(interval + 2*time.Second)
	for {
		ready, err := d.DataReady()
		if err != nil {
			return err
		}
		if ready {
			break
		}
		if time.Now().After(deadline) {
			return errors.New("scd30: timeout waiting for data ready status")
		}
		time.Sleep(100 * time.Millisecond)
	}
	m, err := d.ReadMeasurement()
	if err != nil {
		return err
	}
	env.CO2 = PPM(m.CO2)
	env.Temperature = physic.ZeroCelsius + physic.Temperature(float64(m.Temperature)*float64(physic.Celsius))
	env.Humidity = physic.RelativeHumidity(float64(m.Humidity) * float64(physic.PercentRH))
	return nil
}

// SenseContinuous reads the sensor on the specified duration and writes
// readings to the returned channel. The SCD30 samples at its configured
// measurement interval; specifying a shorter period just polls until
// the next reading is buffered. To terminate, call Halt().
func (d *Dev) SenseContinuous(interval time.Duration) (<-chan Env, error) {
	d.mu.Lock()
	if d.chHalt != nil {
		d.mu.Unlock()
		return nil, errors.New("scd30: SenseContinuous() running already")
	}
	halt := make(chan bool)
	d.chHalt = halt
	d.mu.Unlock()

	channelSize := 16
	channel := make(chan Env, channelSize)

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		defer close(channel)

		for {
			select {
			case <-halt:
				return
			case <-ticker.C:
				e := Env{}
				err := d.Sense(&e)
				if err == nil && len(channel) < channelSize {
					channel <- e
				}
			}
		}
	}()
	return channel, nil
}

// Halt stops a SenseContinuous operation if one is in progress, and
// stops periodic measurement if this driver started it. Implements
// conn.Resource.
func (d *Dev) Halt() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.chHalt != nil {
		close(d.chHalt)
		d.chHalt = nil
	}
	if d.state != StateMeasuring {
		return nil
	}
	return d.stopMeasurement()
}

// Precision returns the sensor's resolution, or minimum value between
// steps the device can make. The SCD30 transmits single precision
// floats; the specified resolutions are 1 PPM for CO2, 0.01°C for
// temperature and 0.01%rH for humidity.
func (d *Dev) Precision(env *Env) {
	env.CO2 = 1
	env.Temperature = 10 * physic.MilliKelvin
	env.Pressure = 0
	env.Humidity = 10 * physic.MilliRH
}

func (d *Dev) String() string {
	return fmt.Sprintf("scd30: %s", d.d.String())
}
