package measure

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/itohio/goimp/pkg/ad5933"
	"github.com/itohio/goimp/pkg/calib"
	"github.com/itohio/goimp/pkg/impedance"
)

// SettlingPoint is the impedance measured with one settling time.
type SettlingPoint struct {
	Settling ad5933.SettlingConfig
	Sample   impedance.Sample
}

// SettlingScan measures the impedance at freq once for each of count settling
// times start, start+step, ... and restores the previous settling time when
// done. Settling times that need a multiplier are encoded with the smallest
// one that fits.
func SettlingScan(ctx context.Context, dev Sweeper, freq, start, step, count int, table *calib.Table, opts ...Option) (_ []SettlingPoint, err error) {
	if count < 1 || start < 0 || step < 0 {
		return nil, fmt.Errorf("%w: settling scan start=%d step=%d count=%d", ad5933.ErrInvalidRange, start, step, count)
	}
	if last := start + (count-1)*step; last > ad5933.MaxSettlingTime {
		return nil, fmt.Errorf("%w: settling time %d exceeds %d cycles", ad5933.ErrInvalidRange, last, ad5933.MaxSettlingTime)
	}
	o := newOptions(opts)

	prev := dev.Settling()
	defer func() {
		if rerr := dev.SetSettlingTime(prev.Cycles, prev.Multiplier); rerr != nil && err == nil {
			err = fmt.Errorf("restore settling time: %w", rerr)
		}
	}()

	sweep := ad5933.SweepConfig{StartFrequency: freq}
	out := make([]SettlingPoint, 0, count)
	for i := range count {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		cycles := start + i*step
		if err := dev.SetSettlingTime(cycles, ad5933.SettleX1); err != nil {
			return out, err
		}
		samples, err := Collect(Sweep(ctx, dev, sweep, table, opts...))
		if err != nil {
			return out, fmt.Errorf("settling %d cycles: %w", cycles, err)
		}
		sp := SettlingPoint{Settling: dev.Settling(), Sample: samples[0]}
		out = append(out, sp)
		o.logger.Debug("settling scan",
			slog.Int("cycles", cycles),
			slog.Float64("magnitude", sp.Sample.Magnitude),
			slog.Float64("phase", sp.Sample.Phase))
	}
	return out, nil
}
