package iothread

// cleanupStack releases loop resources in reverse order of acquisition.
type cleanupStack struct {
	fns []func()
}

func (c *cleanupStack) push(fn func()) {
	c.fns = append(c.fns, fn)
}

// run pops and calls every function. It may be called more than once.
func (c *cleanupStack) run() {
	for len(c.fns) > 0 {
		fn := c.fns[len(c.fns)-1]
		c.fns = c.fns[:len(c.fns)-1]
		fn()
	}
}
