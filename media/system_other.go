//go:build !linux && !windows

package media

import (
	"fmt"
	"runtime"
)

func NewSystem() (System, error) {
	return nil, fmt.Errorf("%w (%s)", ErrUnsupported, runtime.GOOS)
}
