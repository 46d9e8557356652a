package detectors

import "gopattern/internal"

func nopLogger() *internal.Logger {
	return internal.NopLogger()
}
