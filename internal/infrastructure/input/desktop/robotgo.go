//go:build cgo

package desktop

import (
	"deskrelay/internal/core/domain"

	"github.com/go-vgo/robotgo"
)

// RobotgoInjector drives the local pointer and keyboard through robotgo.
type RobotgoInjector struct{}

func NewRobotgoInjector() (*RobotgoInjector, error) {
	return &RobotgoInjector{}, nil
}

func (RobotgoInjector) MoveTo(x, y int) error {
	robotgo.Move(x, y)
	return nil
}

func (RobotgoInjector) Click(button domain.MouseButton) error {
	robotgo.Click(string(button))
	return nil
}

func (RobotgoInjector) KeyTap(key domain.KeyCode) error {
	return robotgo.KeyTap(string(key))
}

func (RobotgoInjector) TypeText(text string) error {
	robotgo.TypeStr(text)
	return nil
}

// ScaleFactor reports the main display's logical-to-physical ratio.
func (RobotgoInjector) ScaleFactor() float64 {
	return robotgo.ScaleF()
}
