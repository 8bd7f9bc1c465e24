package retry

import "time"

// Do runs fn up to attempts times, sleeping delay between attempts, and
// returns the last error.
func Do(attempts int, delay time.Duration, fn func() error) error {
	return DoIf(attempts, delay, func(error) bool { return true }, fn)
}

// DoIf retries only while shouldRetry returns true for the error. Used
// around units of work that can legitimately lose an optimistic
// concurrency race and just need to be re-run.
func DoIf(attempts int, delay time.Duration, shouldRetry func(error) bool, fn func() error) error {
	var err error
	for i := 0; i < attempts; i++ {
		if err = fn(); err == nil {
			return nil
		}
		if !shouldRetry(err) {
			return err
		}
		if i < attempts-1 {
			time.Sleep(delay)
		}
	}
	return err
}
