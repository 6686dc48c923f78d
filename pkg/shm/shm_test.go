package shm

import (
	"fmt"
	"os"
	"runtime"
	"sync/atomic"
	"testing"
)

var testNameCounter uint64

// testSegmentName returns a name unique to this process and call, so
// parallel test runs never collide in the shared memory namespace.
func testSegmentName(t *testing.T) string {
	t.Helper()
	n := atomic.AddUint64(&testNameCounter, 1)
	return fmt.Sprintf("/shmring-test-%d-%d", os.Getpid(), n)
}

func requireLinux(t *testing.T) {
	t.Helper()
	if runtime.GOOS != "linux" {
		t.Skipf("shared memory primitives are linux only, running on %s", runtime.GOOS)
	}
}

// alignedBuf returns a heap buffer for placing lock control blocks in
// in-process tests; the lock layer handles alignment itself.
func alignedBuf(n int) []byte {
	return make([]byte, n)
}
