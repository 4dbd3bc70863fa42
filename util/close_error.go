package util

import "io"

// DrainAndClose discards whatever is left of body so the connection can be
// reused, then closes it. Errors from either step go to the handlers.
func DrainAndClose(body io.ReadCloser, errorHandlers ...func(error)) {
	if body == nil {
		return
	}
	_, drainErr := io.Copy(io.Discard, body)
	closeErr := body.Close()
	for _, err := range []error{drainErr, closeErr} {
		if err == nil {
			continue
		}
		for _, f := range errorHandlers {
			f(err)
		}
	}
}
