// Package keys delivers global keyboard events, independent of window focus.
package keys

import (
	"fmt"
	"sync"

	hook "github.com/robotn/gohook"
	log "github.com/sirupsen/logrus"

	"takecam/video"
)

// Mode selects which keyboard events end a take.
type Mode string

const (
	// ModeAny accepts every keyboard event: press, hold and release.
	ModeAny Mode = "any"
	// ModePress accepts key presses only.
	ModePress Mode = "press"
)

func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeAny, ModePress:
		return Mode(s), nil
	case "":
		return ModeAny, nil
	}
	return "", fmt.Errorf("unknown key mode %q", s)
}

var kindNames = map[uint8]string{
	hook.KeyDown: "down",
	hook.KeyHold: "hold",
	hook.KeyUp:   "up",
}

// accept reports whether a raw hook event kind counts as a key event.
func (m Mode) accept(kind uint8) bool {
	if m == ModePress {
		return kind == hook.KeyDown
	}
	_, ok := kindNames[kind]
	return ok
}

// Hook is a video.KeySource backed by an OS level keyboard hook.
type Hook struct {
	c    chan video.KeyEvent
	once sync.Once
	done chan struct{}
}

// Start installs the hook. Only one Hook may be active per process.
func Start(mode Mode) *Hook {
	h := &Hook{
		c:    make(chan video.KeyEvent),
		done: make(chan struct{}),
	}
	evc := hook.Start()
	log.Infof("Keyboard hook installed (mode %v)", mode)
	go func() {
		defer close(h.c)
		for {
			select {
			case <-h.done:
				return
			case ev, ok := <-evc:
				if !ok {
					return
				}
				if !mode.accept(ev.Kind) {
					continue
				}
				ke := video.KeyEvent{
					Kind:    kindNames[ev.Kind],
					Keycode: ev.Keycode,
					When:    ev.When,
				}
				select {
				case h.c <- ke:
				case <-h.done:
					return
				default:
					// Nobody waiting; a key pressed between takes is not
					// carried over to the next one.
				}
			}
		}
	}()
	return h
}

func (h *Hook) Events() <-chan video.KeyEvent {
	return h.c
}

// Close removes the hook. Events closes once the forwarding goroutine exits.
func (h *Hook) Close() {
	h.once.Do(func() {
		close(h.done)
		hook.End()
		log.Infof("Keyboard hook removed")
	})
}
