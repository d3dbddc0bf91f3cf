package generator

import (
	. "ordergen/internal/common"
)

// Tee fans each event out to every emitter in order, stopping at the first
// error.
func Tee(emitters ...Emitter) Emitter {
	return func(e OrderEvent) error {
		for _, emit := range emitters {
			if err := emit(e); err != nil {
				return err
			}
		}
		return nil
	}
}

// Collect appends every event to dst. Intended for tests and small runs.
func Collect(dst *[]OrderEvent) Emitter {
	return func(e OrderEvent) error {
		*dst = append(*dst, e)
		return nil
	}
}
