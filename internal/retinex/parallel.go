package retinex

import "sync"

// forEachChannel runs fn once per channel on its own goroutine and waits.
// fn must only touch storage owned by its channel.
func forEachChannel(fn func(c int)) {
	var wg sync.WaitGroup
	for c := 0; c < 3; c++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fn(c)
		}()
	}
	wg.Wait()
}
