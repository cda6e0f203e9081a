package ansi

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/atomicstack/tuikit/internal/driver"
)

func TestDecodeKeys(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want []driver.Event
	}{
		{"printable", "aZ", []driver.Event{driver.Rune('a'), driver.Rune('Z')}},
		{"space", " ", []driver.Event{driver.Rune(' ')}},
		{"enter", "\r", []driver.Event{driver.KeyEvent{Key: driver.KeyEnter}}},
		{"tab", "\t", []driver.Event{driver.KeyEvent{Key: driver.KeyTab}}},
		{"backspace", "\x7f", []driver.Event{driver.KeyEvent{Key: driver.KeyBackspace}}},
		{"ctrl letter", "\x11", []driver.Event{driver.Ctrl('q')}},
		{"utf8", "é", []driver.Event{driver.Rune('é')}},
		{"arrow", "\x1b[A", []driver.Event{driver.KeyEvent{Key: driver.KeyUp}}},
		{"ss3 arrow", "\x1bOD", []driver.Event{driver.KeyEvent{Key: driver.KeyLeft}}},
		{"backtab", "\x1b[Z", []driver.Event{driver.KeyEvent{Key: driver.KeyBacktab}}},
		{"delete", "\x1b[3~", []driver.Event{driver.KeyEvent{Key: driver.KeyDelete}}},
		{"f5", "\x1b[15~", []driver.Event{driver.KeyEvent{Key: driver.KeyF5}}},
		{"ctrl right", "\x1b[1;5C", []driver.Event{driver.KeyEvent{Key: driver.KeyRight, Mod: driver.ModCtrl}}},
		{"alt rune", "\x1bx", []driver.Event{driver.KeyEvent{Key: driver.KeyRune, Rune: 'x', Mod: driver.ModAlt}}},
		{"unknown csi dropped", "\x1b[99~a", []driver.Event{driver.Rune('a')}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, n := decode([]byte(tc.in), false)
			if n != len(tc.in) {
				t.Fatalf("expected %d bytes consumed, got %d", len(tc.in), n)
			}
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Fatalf("unexpected events (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDecodeKeepsIncompleteSequences(t *testing.T) {
	for _, in := range []string{"\x1b", "\x1b[", "\x1b[1;5", "\x1b[<0;10", "\xc3"} {
		got, n := decode([]byte("a"+in), false)
		if n != 1 || len(got) != 1 {
			t.Fatalf("%q: expected only the leading rune consumed, got %d bytes and %v", in, n, got)
		}
	}
}

func TestDecodeFlushReportsLoneEscape(t *testing.T) {
	got, n := decode([]byte("\x1b"), true)
	if n != 1 {
		t.Fatalf("expected ESC consumed, got %d", n)
	}
	if diff := cmp.Diff([]driver.Event{driver.KeyEvent{Key: driver.KeyEsc}}, got); diff != "" {
		t.Fatalf("unexpected events (-want +got):\n%s", diff)
	}

	got, n = decode([]byte("\x1b[1;"), true)
	if n != 4 || len(got) != 0 {
		t.Fatalf("expected partial sequence dropped, got %d bytes and %v", n, got)
	}
}

func TestDecodeSGRMouse(t *testing.T) {
	got, _ := decode([]byte("\x1b[<0;10;5M\x1b[<0;10;5m\x1b[<65;1;1M\x1b[<18;3;4M"), false)
	want := []driver.Event{
		driver.MouseEvent{X: 9, Y: 4, Button: driver.MouseLeft, Action: driver.MousePress},
		driver.MouseEvent{X: 9, Y: 4, Button: driver.MouseLeft, Action: driver.MouseRelease},
		driver.MouseEvent{X: 0, Y: 0, Button: driver.MouseWheelDown},
		driver.MouseEvent{X: 2, Y: 3, Button: driver.MouseRight, Mod: driver.ModCtrl},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("unexpected events (-want +got):\n%s", diff)
	}
}

func TestKeyStringsMatchBindings(t *testing.T) {
	got, _ := decode([]byte("\x11\x1b[Z\x1b[1;2A"), false)
	var names []string
	for _, ev := range got {
		names = append(names, ev.(driver.KeyEvent).String())
	}
	if diff := cmp.Diff([]string{"ctrl+q", "shift+tab", "shift+up"}, names); diff != "" {
		t.Fatalf("unexpected key names (-want +got):\n%s", diff)
	}
}
