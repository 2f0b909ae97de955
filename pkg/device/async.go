package device

// RunReadAsync runs fn in a new goroutine and delivers its result on the
// returned channel, implementing the readRegisterAsync contract (§4.5) as
// a channel instead of a future.
func RunReadAsync(fn func() ReadResult) <-chan ReadResult {
	ch := make(chan ReadResult, 1)
	go func() {
		ch <- fn()
	}()
	return ch
}

// RunWriteAsync runs fn in a new goroutine and delivers its result on the
// returned channel.
func RunWriteAsync(fn func() WriteResult) <-chan WriteResult {
	ch := make(chan WriteResult, 1)
	go func() {
		ch <- fn()
	}()
	return ch
}
