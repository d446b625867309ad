package ipcproto

import "runtime"

// DefaultEndpoint returns the platform-appropriate local IPC address: a
// named pipe path on Windows, a Unix-domain socket path everywhere else
// (spec §4.7: "platform-native named pipe or Unix-domain analogue").
func DefaultEndpoint() string {
	if runtime.GOOS == "windows" {
		return `\\.\pipe\ultrasearch`
	}
	return "/tmp/ultrasearch.sock"
}
