package hdf5reader

import (
	"io"
	"log"
)

var debugLogger = log.New(io.Discard, "[hdf5reader] ", log.LstdFlags)

// SetDebugWriter redirects this package's debug output.
func SetDebugWriter(w io.Writer) {
	debugLogger.SetOutput(w)
}

func debugf(format string, args ...any) {
	debugLogger.Printf(format, args...)
}
