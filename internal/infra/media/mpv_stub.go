//go:build !libmpv

package media

import "github.com/cockroachdb/errors"

func newMPV() (Element, error) {
	return nil, errors.Wrap(ErrDriverDisabled, "mpv: build with -tags libmpv")
}
