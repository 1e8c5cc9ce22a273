// Package image persists and restores a Machine's ROM and runtime
// state as a single opaque blob: a BLAKE3 checksum over a gob-encoded
// payload. The byte layout is this package's own choice; its only
// contract with pkg/vm is MachineState plus the already-exported
// ROM/SourceMap fields.
package image

import (
	"bytes"
	"encoding/gob"
	"fmt"

	"lukechampine.com/blake3"

	"wordcpu/pkg/isa"
	"wordcpu/pkg/vm"
)

const checksumSize = 32

// payload is the gob-encoded body the checksum wraps. ROM and
// SourceMap are snapshotted alongside the running state so a restored
// machine can keep executing and keep reporting the right source line
// on a runtime error.
type payload struct {
	ROM       []isa.Instruction
	SourceMap map[int]int
	State     vm.MachineState
}

// Save serializes m's loaded program and current state into a single
// checksummed blob.
func Save(m *vm.Machine) ([]byte, error) {
	p := payload{
		ROM:       m.ROM,
		SourceMap: m.SourceMap,
		State:     m.GetState(),
	}

	var body bytes.Buffer
	if err := gob.NewEncoder(&body).Encode(p); err != nil {
		return nil, fmt.Errorf("image: encode: %w", err)
	}

	sum := checksum(body.Bytes())
	out := make([]byte, 0, checksumSize+body.Len())
	out = append(out, sum...)
	out = append(out, body.Bytes()...)
	return out, nil
}

// Load verifies data's checksum and restores m's ROM, source map, and
// runtime state from it. m's previously loaded program is discarded;
// on a checksum mismatch or decode error m is left untouched.
func Load(data []byte, m *vm.Machine) error {
	if len(data) < checksumSize {
		return fmt.Errorf("image: truncated: got %d bytes, need at least %d", len(data), checksumSize)
	}
	wantSum, body := data[:checksumSize], data[checksumSize:]
	if gotSum := checksum(body); !bytes.Equal(wantSum, gotSum) {
		return fmt.Errorf("image: checksum mismatch: corrupted or foreign image")
	}

	var p payload
	if err := gob.NewDecoder(bytes.NewReader(body)).Decode(&p); err != nil {
		return fmt.Errorf("image: decode: %w", err)
	}

	m.ROM = p.ROM
	m.SourceMap = p.SourceMap
	m.SetState(p.State)
	return nil
}

func checksum(body []byte) []byte {
	h := blake3.New(checksumSize, nil)
	h.Write(body)
	return h.Sum(nil)
}
