package hook

import "time"

const (
	testWait = time.Second
	testTick = 5 * time.Millisecond
)
