//go:build !linux && !darwin

package kwp

func openBreakControl(path string) (breakControl, error) {
	return nil, ErrBreakUnsupported
}
