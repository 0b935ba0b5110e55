package util

import (
	"net"
	"os"
	"strings"
	"time"
)

func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func HasArg(name string) bool {
	for _, a := range os.Args[1:] {
		if a == name {
			return true
		}
	}
	return false
}

// ArgValue returns the value given for a flag as either "--name value" or "--name=value", or def if absent.
func ArgValue(name string, def string) string {
	args := os.Args[1:]
	for i, a := range args {
		if a == name && i+1 < len(args) {
			return args[i+1]
		}
		if strings.HasPrefix(a, name+"=") {
			return strings.TrimPrefix(a, name+"=")
		}
	}
	return def
}

// WaitForListener polls address until something accepts TCP connections on it, up to attempts tries.
func WaitForListener(address string, attempts int, interval time.Duration) bool {
	for i := 0; i < attempts; i++ {
		conn, err := net.DialTimeout("tcp", address, interval)
		if err == nil {
			_ = conn.Close()
			return true
		}
		time.Sleep(interval)
	}
	return false
}
