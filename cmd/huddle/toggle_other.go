//go:build !unix

package main

import (
	"os"

	"github.com/dkeye/Huddle/internal/domain"
)

var toggleSignals = map[os.Signal]domain.MediaKind{}
