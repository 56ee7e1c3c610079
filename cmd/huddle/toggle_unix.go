//go:build unix

package main

import (
	"os"
	"syscall"

	"github.com/dkeye/Huddle/internal/domain"
)

// SIGUSR1 toggles the microphone, SIGUSR2 the camera.
var toggleSignals = map[os.Signal]domain.MediaKind{
	syscall.SIGUSR1: domain.MediaAudio,
	syscall.SIGUSR2: domain.MediaVideo,
}
