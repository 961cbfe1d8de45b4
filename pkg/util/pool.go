package util

import "runtime"

// GetOptimalPoolSize returns the worker count for CPU-bound parsing work.
//
// Formula: min(max(runtime.NumCPU() * 2, 4), 32)
//
// Tree-sitter parsing spends most of its time in cgo, so two workers per
// core keep the cores busy. The parser pool and the scanner's errgroup limit
// both use this value so scanners never wait on a parser.
func GetOptimalPoolSize() int {
	poolSize := runtime.NumCPU() * 2
	if poolSize < 4 {
		poolSize = 4
	}
	if poolSize > 32 {
		poolSize = 32
	}
	return poolSize
}

// GetOptimalPoolSizeWithOverride returns override when positive, otherwise
// GetOptimalPoolSize().
func GetOptimalPoolSizeWithOverride(override int) int {
	if override > 0 {
		return override
	}
	return GetOptimalPoolSize()
}
