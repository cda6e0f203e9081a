//go:build windows

package windows

import "github.com/atomicstack/tuikit/internal/driver"

func init() {
	driver.Register(Name, "Windows console via tcell", New)
}
