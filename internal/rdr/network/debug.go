package network

import (
	"io"
	"log"
)

// DO NOT add Debugf, that's an anti-pattern. Each callsite needs to use
// opsf, diagf, or tracef.
var (
	opsLogger  = log.New(io.Discard, "[network] ", log.LstdFlags|log.Lmicroseconds)
	diagLogger = log.New(io.Discard, "[network] ", log.LstdFlags|log.Lmicroseconds)
)

// SetLogWriters installs the log streams used by this package.
func SetLogWriters(ops, diag io.Writer) {
	if ops != nil {
		opsLogger.SetOutput(ops)
	}
	if diag != nil {
		diagLogger.SetOutput(diag)
	}
}

func opsf(format string, args ...any)  { opsLogger.Printf(format, args...) }
func diagf(format string, args ...any) { diagLogger.Printf(format, args...) }
