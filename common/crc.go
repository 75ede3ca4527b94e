// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package common contains functions shared by Sensirion-style sensor
// protocols, such as the CRC8 checksum appended to every data word on
// the wire.
package common

// CRC8 calculates the 8-bit CRC of the byte slice parameter and returns
// the calculated value. Polynomial 0x31 (x^8+x^5+x^4+1), initial value
// 0xFF, MSB first. Sensors from TI and Sensirion use this CRC to guard
// individual data words.
func CRC8(bytes []byte) byte {
	var crc byte = 0xff
	for _, val := range bytes {
		crc ^= val
		for i := 0; i < 8; i++ {
			if (crc & 0x80) == 0 {
				crc <<= 1
			} else {
				crc = (byte)((crc << 1) ^ 0x31)
			}
		}
	}
	return crc
}

// CRC8Word returns the CRC8 of a single 16-bit word, processed in its
// big-endian wire order. Protocols that frame data as [MSB, LSB, CRC]
// triplets checksum exactly these two bytes.
func CRC8Word(w uint16) byte {
	return CRC8([]byte{byte(w >> 8), byte(w)})
}
