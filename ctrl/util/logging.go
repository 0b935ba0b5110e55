package util

import (
	"io"
	"log"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"
)

type nopCloser struct{}

func (nopCloser) Close() error {
	return nil
}

// SetupLogging configures the standard logger for one of the programs. With a non-empty logFile, output also
// goes to that file, rotated once it grows past 10 MB. The returned Closer releases the file.
func SetupLogging(program string, logFile string) io.Closer {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	log.SetPrefix(program + ": ")
	if logFile == "" {
		log.SetOutput(os.Stderr)
		return nopCloser{}
	}
	rotating := &lumberjack.Logger{
		Filename:   logFile,
		MaxSize:    10,
		MaxBackups: 3,
		MaxAge:     28,
	}
	log.SetOutput(io.MultiWriter(os.Stderr, rotating))
	return rotating
}
