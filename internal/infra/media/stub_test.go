//go:build !libmpv && !beep

package media

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
)

func TestNew_DisabledDrivers(t *testing.T) {
	for _, driver := range []string{DriverMPV, DriverBeep} {
		_, err := New(Config{Driver: driver})
		assert.True(t, errors.Is(err, ErrDriverDisabled), driver)
	}
}
