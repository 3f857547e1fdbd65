// Copyright 2025 Alexander Alten (novatechflow), NovaTechflow (novatechflow.com).
// This project is supported and financed by Scalytics, Inc. (www.scalytics.io).
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package protocol

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"
)

func TestFrameReadWrite(t *testing.T) {
	payload := []byte{0x01, 0x02, 0x03}
	var buf bytes.Buffer

	if err := WriteFrame(&buf, payload); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}

	frame, err := ReadFrame(&buf)
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}

	if frame.Length != int32(len(payload)) {
		t.Fatalf("unexpected frame length: %d", frame.Length)
	}
	if !bytes.Equal(frame.Payload, payload) {
		t.Fatalf("payload mismatch: %v vs %v", frame.Payload, payload)
	}
}

func TestReadFrameRejectsLengthAboveMaxFrameLength(t *testing.T) {
	var buf bytes.Buffer
	var lengthBuf [4]byte
	binary.BigEndian.PutUint32(lengthBuf[:], uint32(MaxFrameLength)+1)
	buf.Write(lengthBuf[:])

	_, err := ReadFrame(&buf)
	if !errors.Is(err, ErrMalformedFrame) {
		t.Fatalf("ReadFrame error = %v, want wrapping ErrMalformedFrame", err)
	}
}

func TestReadFrameRejectsNonPositiveLength(t *testing.T) {
	for _, length := range []int32{0, -1} {
		var buf bytes.Buffer
		var lengthBuf [4]byte
		binary.BigEndian.PutUint32(lengthBuf[:], uint32(length))
		buf.Write(lengthBuf[:])

		_, err := ReadFrame(&buf)
		if !errors.Is(err, ErrMalformedFrame) {
			t.Fatalf("length %d: ReadFrame error = %v, want wrapping ErrMalformedFrame", length, err)
		}
	}
}
