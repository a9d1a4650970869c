package collector

import (
	"io"
	"log"
)

// DO NOT add Debugf, that's an anti-pattern. Each callsite needs to use
// opsf, diagf, or tracef.
var (
	opsLogger   = log.New(io.Discard, "[collector] ", log.LstdFlags|log.Lmicroseconds)
	diagLogger  = log.New(io.Discard, "[collector] ", log.LstdFlags|log.Lmicroseconds)
	traceLogger = log.New(io.Discard, "[collector] ", log.LstdFlags|log.Lmicroseconds)
)

// SetLogWriters installs the three log streams used by this package. A nil
// writer leaves the corresponding stream discarded.
func SetLogWriters(ops, diag, trace io.Writer) {
	if ops != nil {
		opsLogger.SetOutput(ops)
	}
	if diag != nil {
		diagLogger.SetOutput(diag)
	}
	if trace != nil {
		traceLogger.SetOutput(trace)
	}
}

func opsf(format string, args ...any)   { opsLogger.Printf(format, args...) }
func diagf(format string, args ...any)  { diagLogger.Printf(format, args...) }
func tracef(format string, args ...any) { traceLogger.Printf(format, args...) }
