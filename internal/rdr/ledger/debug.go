package ledger

import (
	"io"
	"log"
)

var opsLogger = log.New(io.Discard, "[ledger] ", log.LstdFlags|log.Lmicroseconds)

// SetLogWriter redirects this package's ops log.
func SetLogWriter(w io.Writer) {
	opsLogger.SetOutput(w)
}

func opsf(format string, args ...any) { opsLogger.Printf(format, args...) }
