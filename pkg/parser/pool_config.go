package parser

import (
	"github.com/gnana997/cratesplit/pkg/util"
)

// getDefaultPoolSize returns the default parser pool size.
//
// It delegates to util.GetOptimalPoolSize() so the pool matches the
// scanner's concurrency limit; a smaller pool would leave scanner
// goroutines blocked in acquire().
func getDefaultPoolSize() int {
	return util.GetOptimalPoolSize()
}
