package monitor

import (
	"context"
	"time"

	"github.com/itohio/goimp/pkg/ad5933"
	"github.com/itohio/goimp/pkg/calib"
	"github.com/itohio/goimp/pkg/measure"
)

// Sweeps runs sweep count times, interval apart, and sends each result on
// the returned channel. A count below 1 sweeps until ctx is done. The channel
// is closed when sweeping stops.
func Sweeps(ctx context.Context, dev measure.Sweeper, sweep ad5933.SweepConfig, table *calib.Table, interval time.Duration, count int, opts ...measure.Option) <-chan Spectrum {
	out := make(chan Spectrum, 1)

	go func() {
		defer close(out)

		for i := 0; count < 1 || i < count; i++ {
			if i > 0 && interval > 0 {
				select {
				case <-ctx.Done():
					return
				case <-time.After(interval):
				}
			}
			if ctx.Err() != nil {
				return
			}

			samples, err := measure.Collect(measure.Sweep(ctx, dev, sweep, table, opts...))
			s := Spectrum{Timestamp: time.Now(), Samples: samples, Err: err}

			select {
			case out <- s:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out
}
