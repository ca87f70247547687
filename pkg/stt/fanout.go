package stt

import (
	"errors"
	"strings"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// FanOut runs several child transcribers on the same audio in parallel and
// returns the non-empty result with the highest confidence. Ties go to the
// child that finished first. Useful for running an English-only model
// alongside a multilingual one and keeping whichever is surer.
//
// FanOut itself implements [Transcriber], so the pipeline wires it exactly
// like a single backend — no dedicated fan-out plumbing in the orchestrator.
type FanOut struct {
	children []Transcriber
	name     string
}

// NewFanOut builds a FanOut over the given children. At least one child is
// required.
func NewFanOut(children []Transcriber) (*FanOut, error) {
	if len(children) == 0 {
		return nil, errors.New("stt: fan-out needs at least one transcriber")
	}
	names := make([]string, len(children))
	for i, c := range children {
		names[i] = c.ModelName()
	}
	cp := make([]Transcriber, len(children))
	copy(cp, children)
	return &FanOut{children: cp, name: strings.Join(names, "+")}, nil
}

// Transcribe sends the audio to every child concurrently and waits for all
// of them. The best result is the non-empty one with the highest confidence;
// on equal confidence the earlier completion wins. An error is returned only
// when no child produced non-empty text — the last child error if there was
// one.
func (f *FanOut) Transcribe(samples []int16) (Result, error) {
	type outcome struct {
		result Result
		order  uint64
		ok     bool
	}

	outcomes := make([]outcome, len(f.children))
	var done atomic.Uint64
	var mu sync.Mutex
	var lastErr error

	var g errgroup.Group
	for i, child := range f.children {
		g.Go(func() error {
			res, err := child.Transcribe(samples)
			order := done.Add(1)
			if err != nil {
				mu.Lock()
				lastErr = err
				mu.Unlock()
				return nil
			}
			outcomes[i] = outcome{result: res, order: order, ok: true}
			return nil
		})
	}
	// Children never return errors through the group; Wait is a pure barrier.
	_ = g.Wait()

	var best outcome
	var found bool
	for _, o := range outcomes {
		if !o.ok || o.result.Text == "" {
			continue
		}
		if !found ||
			o.result.Confidence > best.result.Confidence ||
			(o.result.Confidence == best.result.Confidence && o.order < best.order) {
			best = o
			found = true
		}
	}
	if !found {
		if lastErr != nil {
			return Result{}, lastErr
		}
		return Result{}, errors.New("stt: all transcribers returned empty text")
	}
	return best.result, nil
}

// ModelName returns the child names joined with "+".
func (f *FanOut) ModelName() string { return f.name }

// Ready reports true when any child is ready.
func (f *FanOut) Ready() bool {
	for _, c := range f.children {
		if c.Ready() {
			return true
		}
	}
	return false
}

// Compile-time assertion that FanOut satisfies Transcriber.
var _ Transcriber = (*FanOut)(nil)
