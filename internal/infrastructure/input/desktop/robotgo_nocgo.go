//go:build !cgo

package desktop

import (
	"errors"

	"deskrelay/internal/core/domain"
)

var errNoCgo = errors.New("robotgo injector requires cgo")

type RobotgoInjector struct{}

func NewRobotgoInjector() (*RobotgoInjector, error) {
	return nil, errNoCgo
}

func (RobotgoInjector) MoveTo(int, int) error { return errNoCgo }

func (RobotgoInjector) Click(domain.MouseButton) error { return errNoCgo }

func (RobotgoInjector) KeyTap(domain.KeyCode) error { return errNoCgo }

func (RobotgoInjector) TypeText(string) error { return errNoCgo }

func (RobotgoInjector) ScaleFactor() float64 { return 1 }
