// SPDX-License-Identifier: Apache-2.0
// Copyright Authors of Cilium

package tinymap

import (
	"errors"
	"fmt"
)

// ErrCapacityExceeded is returned when an insert into a fixed-capacity
// container is rejected because the container is already full. Match it
// with [errors.Is]; the wrapped error names the capacity.
var ErrCapacityExceeded = errors.New("capacity exceeded")

func capacityError(capacity int) error {
	return fmt.Errorf("%w: capacity %d", ErrCapacityExceeded, capacity)
}
