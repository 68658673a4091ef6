package logging

import (
	"log"
	"os"
)

// New creates a standard library logger prefixed with the component name.
func New(component string) *log.Logger {
	return log.New(os.Stdout, "["+component+"] ", log.LstdFlags|log.Lmicroseconds|log.LUTC)
}
