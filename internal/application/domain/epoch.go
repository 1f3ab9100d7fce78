package domain

import "fmt"

// Epoch is a Celo epoch number. One epoch spans EpochDuration blocks.
type Epoch uint64

const (
	// MaxTransitions is the widest epoch range a single Plumo proof covers.
	MaxTransitions = 143
	// EpochDuration is the number of blocks per epoch.
	EpochDuration = 17280
	// MinEpoch is the first epoch with CIP-22 epoch snark data.
	MinEpoch Epoch = 393
)

// EpochOfBlock returns the epoch a block number belongs to.
func EpochOfBlock(number uint64) Epoch {
	return Epoch(number / EpochDuration)
}

// EpochWindow is the range of epochs covered by one proof. Both ends are sent to the
// prover; consecutive windows share their boundary epoch.
type EpochWindow struct {
	Start Epoch
	End   Epoch
}

func (w EpochWindow) String() string {
	return fmt.Sprintf("%d-%d", w.Start, w.End)
}

// Width is the number of epoch transitions in the window.
func (w EpochWindow) Width() uint64 {
	return uint64(w.End - w.Start)
}

// NumWindows is ceil((current - MinEpoch) / MaxTransitions), floored at one so that the
// final-window step always runs.
func NumWindows(current Epoch) int {
	if current <= MinEpoch {
		return 1
	}
	span := uint64(current - MinEpoch)
	n := (span + MaxTransitions - 1) / MaxTransitions
	return int(n)
}

// WindowsUpTo decomposes [MinEpoch, current] into contiguous windows of at most
// MaxTransitions epochs. The last window always ends at current.
func WindowsUpTo(current Epoch) ([]EpochWindow, error) {
	if current < MinEpoch {
		return nil, fmt.Errorf("epoch %d is before the first provable epoch %d: %w", current, MinEpoch, ErrEpochBeforeMin)
	}

	n := NumWindows(current)
	windows := make([]EpochWindow, 0, n)
	for i := 0; i < n-1; i++ {
		windows = append(windows, EpochWindow{
			Start: MinEpoch + Epoch(MaxTransitions*i),
			End:   MinEpoch + Epoch(MaxTransitions*(i+1)),
		})
	}
	windows = append(windows, EpochWindow{
		Start: MinEpoch + Epoch(MaxTransitions*(n-1)),
		End:   current,
	})
	return windows, nil
}
