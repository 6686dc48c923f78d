package shm

import (
	"context"
	"fmt"

	"github.com/heptiolabs/healthcheck"
)

// SegmentCheck returns a healthcheck probe verifying that the named shared
// memory object is still resolvable and carries a published ring header.
// Attach it to a healthcheck handler next to the process's other liveness
// checks:
//
//	health := healthcheck.NewHandler()
//	health.AddReadinessCheck("market-data-ring", shm.SegmentCheck("/market_data"))
func SegmentCheck(name string) healthcheck.Check {
	return func() error {
		seg, err := Open(context.Background(), name)
		if err != nil {
			return fmt.Errorf("segment %q not resolvable: %w", name, err)
		}
		defer seg.Close()
		if !Initialized(seg) {
			return fmt.Errorf("segment %q: %w", name, ErrNotInitialized)
		}
		return nil
	}
}
