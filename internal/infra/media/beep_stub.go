//go:build !beep

package media

import (
	"net/http"

	"github.com/cockroachdb/errors"
)

func newBeep(_ *http.Client) (Element, error) {
	return nil, errors.Wrap(ErrDriverDisabled, "beep: build with -tags beep")
}
