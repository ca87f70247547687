// Package injector implements the focused-window [textsink.Sink]: transcribed
// text is delivered to whatever application currently has keyboard focus,
// either by placing it on the clipboard and pressing the paste combo, or by
// typing it directly through a virtual-keyboard tool.
//
// External tools do the actual work (wl-copy/wtype on Wayland, xdotool on
// X11, ydotool as the uinput fallback); they are invoked through the
// [CommandExecutor] seam so tests can record invocations instead of spawning
// processes.
package injector

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/sottovoce/sotto/pkg/textsink"
)

// Method selects how text reaches the focused window.
type Method string

const (
	// MethodClipboard copies the text and presses the paste combo. Fast and
	// robust for long dictations; briefly replaces the clipboard contents.
	MethodClipboard Method = "clipboard"

	// MethodDirect types the text key by key through a virtual keyboard.
	// Slower but leaves the clipboard untouched.
	MethodDirect Method = "direct"
)

// Backend selects the external tool family.
type Backend string

const (
	// BackendAuto picks wtype on Wayland and xdotool on X11 based on the
	// session environment.
	BackendAuto Backend = "auto"

	// BackendWtype forces wl-copy/wtype (Wayland).
	BackendWtype Backend = "wtype"

	// BackendXdotool forces xclip/xdotool (X11).
	BackendXdotool Backend = "xdotool"

	// BackendYdotool forces ydotool (uinput; works on both but needs the
	// ydotoold daemon).
	BackendYdotool Backend = "ydotool"
)

// CommandExecutor runs one external command to completion. The production
// implementation is [SystemExecutor]; tests substitute a recorder.
type CommandExecutor interface {
	// Run executes the command with no stdin.
	Run(name string, args ...string) error

	// RunInput executes the command with input written to its stdin. Used for
	// clipboard tools that only accept data on stdin.
	RunInput(input, name string, args ...string) error
}

// SystemExecutor runs commands via os/exec, discarding stdout and passing
// stderr through for tool diagnostics.
type SystemExecutor struct{}

// Run executes the command and waits for it.
func (SystemExecutor) Run(name string, args ...string) error {
	cmd := exec.Command(name, args...)
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("injector: %s: %w", name, err)
	}
	return nil
}

// RunInput executes the command feeding input on stdin.
func (SystemExecutor) RunInput(input, name string, args ...string) error {
	cmd := exec.Command(name, args...)
	cmd.Stdin = strings.NewReader(input)
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("injector: %s: %w", name, err)
	}
	return nil
}

// Injector is the focused-window sink. Create with [New]; not safe for
// concurrent use (the pipeline drives it from one goroutine).
type Injector struct {
	exec     CommandExecutor
	method   Method
	backend  Backend
	pasteKey string
}

// Option is a functional option for configuring an [Injector].
type Option func(*Injector)

// WithMethod selects the injection method. Default: [MethodClipboard].
func WithMethod(m Method) Option {
	return func(i *Injector) { i.method = m }
}

// WithBackend forces a tool backend. Default: [BackendAuto].
func WithBackend(b Backend) Option {
	return func(i *Injector) { i.backend = b }
}

// WithPasteKey overrides the combo pressed after a clipboard copy.
// Default: "ctrl+v".
func WithPasteKey(combo string) Option {
	return func(i *Injector) { i.pasteKey = combo }
}

// WithExecutor substitutes the command executor. Used by tests.
func WithExecutor(e CommandExecutor) Option {
	return func(i *Injector) { i.exec = e }
}

// New returns an Injector with the given options applied over the defaults
// (clipboard method, auto backend, ctrl+v paste key, system executor).
func New(opts ...Option) *Injector {
	i := &Injector{
		exec:     SystemExecutor{},
		method:   MethodClipboard,
		backend:  BackendAuto,
		pasteKey: "ctrl+v",
	}
	for _, o := range opts {
		o(i)
	}
	return i
}

// Handle delivers one piece of text to the focused window. The text is
// normalized first: trailing whitespace trimmed, then exactly one space
// appended so consecutive dictations concatenate naturally.
func (i *Injector) Handle(text string) error {
	normalized := strings.TrimRight(text, " \t\n\r") + " "
	switch i.method {
	case MethodDirect:
		return i.typeText(normalized)
	default:
		return i.pasteText(normalized)
	}
}

// HandleEvents delivers an ordered event sequence: text events follow the
// configured method, key combos are pressed in place.
func (i *Injector) HandleEvents(events []textsink.Event) error {
	for _, ev := range events {
		switch ev.Kind {
		case textsink.EventText:
			if err := i.Handle(ev.Text); err != nil {
				return err
			}
		case textsink.EventKeyCombo:
			if err := i.pressCombo(ev.Combo); err != nil {
				return err
			}
		}
	}
	return nil
}

// Finish returns nothing; injected text is not accumulated.
func (i *Injector) Finish() (string, bool) { return "", false }

// Name returns "injector".
func (i *Injector) Name() string { return "injector" }

// resolveBackend maps BackendAuto onto a concrete tool family using the
// session environment.
func (i *Injector) resolveBackend() Backend {
	if i.backend != BackendAuto {
		return i.backend
	}
	if os.Getenv("WAYLAND_DISPLAY") != "" {
		return BackendWtype
	}
	if os.Getenv("DISPLAY") != "" {
		return BackendXdotool
	}
	return BackendYdotool
}

// pasteText copies text to the clipboard and presses the paste combo.
func (i *Injector) pasteText(text string) error {
	switch i.resolveBackend() {
	case BackendXdotool:
		if err := i.exec.RunInput(text, "xclip", "-selection", "clipboard", "-in"); err != nil {
			return err
		}
		return i.pressCombo(i.pasteKey)
	case BackendYdotool:
		// ydotool has no clipboard; fall back to typing.
		return i.typeText(text)
	default:
		if err := i.exec.Run("wl-copy", "--", text); err != nil {
			return err
		}
		return i.pressCombo(i.pasteKey)
	}
}

// typeText types text through the virtual keyboard.
func (i *Injector) typeText(text string) error {
	switch i.resolveBackend() {
	case BackendXdotool:
		return i.exec.Run("xdotool", "type", "--clearmodifiers", "--", text)
	case BackendYdotool:
		return i.exec.Run("ydotool", "type", "--", text)
	default:
		return i.exec.Run("wtype", "--", text)
	}
}

// pressCombo presses a named key combination like "ctrl+BackSpace".
func (i *Injector) pressCombo(combo string) error {
	mods, key, err := splitCombo(combo)
	if err != nil {
		return err
	}
	switch i.resolveBackend() {
	case BackendXdotool:
		return i.exec.Run("xdotool", "key", "--clearmodifiers", combo)
	case BackendYdotool:
		return i.exec.Run("ydotool", "key", combo)
	default:
		args := make([]string, 0, len(mods)*4+2)
		for _, m := range mods {
			args = append(args, "-M", m)
		}
		args = append(args, "-k", key)
		// Release modifiers in reverse press order.
		for n := len(mods) - 1; n >= 0; n-- {
			args = append(args, "-m", mods[n])
		}
		return i.exec.Run("wtype", args...)
	}
}

// splitCombo separates "ctrl+shift+z" into its modifiers and final key.
func splitCombo(combo string) (mods []string, key string, err error) {
	parts := strings.Split(combo, "+")
	if len(parts) == 0 || parts[len(parts)-1] == "" {
		return nil, "", errors.New("injector: empty key combo")
	}
	for _, p := range parts {
		if p == "" {
			return nil, "", fmt.Errorf("injector: malformed key combo %q", combo)
		}
	}
	return parts[:len(parts)-1], parts[len(parts)-1], nil
}

// Compile-time assertion that Injector satisfies textsink.Sink.
var _ textsink.Sink = (*Injector)(nil)
