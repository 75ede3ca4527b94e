// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package scd30

import (
	"encoding/binary"
	"math"

	"github.com/RequestForCoffee/scd30/common"
)

// buildFrame assembles an outbound transaction: the two command bytes
// followed by [MSB, LSB, CRC] for each argument word. The command word
// itself carries no CRC, only argument words do.
func buildFrame(cmd uint16, args []uint16) []byte {
	b := make([]byte, 2, 2+3*len(args))
	binary.BigEndian.PutUint16(b, cmd)
	for _, arg := range args {
		var w [2]byte
		binary.BigEndian.PutUint16(w[:], arg)
		b = append(b, w[0], w[1], common.CRC8(w[:]))
	}
	return b
}

// parseWords decodes a response of n [MSB, LSB, CRC] triplets into n
// checksum-verified words. A response of the wrong length is rejected
// before any triplet is decoded, and a single bad CRC discards the
// whole response.
func parseWords(raw []byte, n int) ([]uint16, error) {
	if n == 0 {
		return nil, nil
	}
	if len(raw) != 3*n {
		return nil, &FrameError{Len: len(raw), Want: 3 * n}
	}
	words := make([]uint16, n)
	for i := range words {
		w := binary.BigEndian.Uint16(raw[3*i:])
		if crc := common.CRC8Word(w); raw[3*i+2] != crc {
			return nil, &ChecksumError{Index: i, Word: w, Got: raw[3*i+2], Want: crc}
		}
		words[i] = w
	}
	return words, nil
}

// wordsToFloat reinterprets two consecutive response words, hi first,
// as the big-endian bit pattern of an IEEE-754 single precision float.
func wordsToFloat(hi, lo uint16) float32 {
	return math.Float32frombits(uint32(hi)<<16 | uint32(lo))
}
