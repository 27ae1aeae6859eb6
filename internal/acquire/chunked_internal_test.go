package acquire

import (
	"bytes"
	"math/rand"
	"os"
	"path/filepath"
	"testing"
)

func TestPartitionCoversEveryByte(t *testing.T) {
	cases := []struct {
		length, chunkSize int64
		want              int
	}{
		{1, 1024, 1},
		{1023, 1024, 1},
		{1024, 1024, 1},
		{1025, 1024, 2},
		{10*1024 + 37, 1024, 11},
	}

	for _, tc := range cases {
		chunks := partition(tc.length, tc.chunkSize)
		if len(chunks) != tc.want {
			t.Errorf("partition(%d, %d) produced %d chunks, want %d", tc.length, tc.chunkSize, len(chunks), tc.want)
			continue
		}

		var next int64
		for i, c := range chunks {
			if c.index != i {
				t.Errorf("chunk %d carries index %d", i, c.index)
			}
			if c.start != next {
				t.Errorf("chunk %d starts at %d, want %d", i, c.start, next)
			}
			next = c.end + 1
		}
		if next != tc.length {
			t.Errorf("partition(%d, %d) covers %d bytes", tc.length, tc.chunkSize, next)
		}
	}
}

func TestAssembleIsOrderIndependent(t *testing.T) {
	blob := make([]byte, 7*512+123)
	for i := range blob {
		blob[i] = byte(i * 17)
	}

	chunks := partition(int64(len(blob)), 512)
	payloads := make([]chunkPayload, len(chunks))
	for i, c := range chunks {
		payloads[i] = chunkPayload{index: c.index, data: blob[c.start : c.end+1]}
	}

	// Whatever completion order the workers produce, the output bytes
	// must always match the source.
	rng := rand.New(rand.NewSource(1))
	for run := 0; run < 20; run++ {
		shuffled := make([]chunkPayload, len(payloads))
		copy(shuffled, payloads)
		rng.Shuffle(len(shuffled), func(i, j int) {
			shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
		})

		dest := filepath.Join(t.TempDir(), "out.bin")
		if err := assemble(shuffled, dest); err != nil {
			t.Fatalf("run %d: assemble: %v", run, err)
		}

		got, err := os.ReadFile(dest)
		if err != nil {
			t.Fatalf("run %d: failed to read assembled file: %v", run, err)
		}
		if !bytes.Equal(got, blob) {
			t.Fatalf("run %d: assembled bytes differ from source", run)
		}
	}
}
