//go:build maskdebug

package mask

// strictHistory turns a malformed history into a panic.
const strictHistory = true
