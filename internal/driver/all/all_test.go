package all

import (
	"runtime"
	"testing"

	"github.com/atomicstack/tuikit/internal/driver"
)

func TestPlatformDriversRegistered(t *testing.T) {
	want := []string{"curses", "fake", "tea"}
	if runtime.GOOS == "windows" {
		want = append(want, "windows")
	} else {
		want = append(want, "ansi")
	}
	for _, name := range want {
		if _, err := driver.Default().Lookup(name); err != nil {
			t.Fatalf("expected %s registered: %v", name, err)
		}
	}
}
