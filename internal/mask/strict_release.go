//go:build !maskdebug

package mask

const strictHistory = false
