// SPDX-License-Identifier: AGPL-3.0-or-later

/*

DevSpec - DevSpec is a spec-first development assistant that maintains an auditable knowledge graph tying prose requirements to typed specification nodes to code.

Copyright (C) 2025  Bartek Kus

This program is free software licensed under the terms of the GNU AGPL v3 or later.

See https://www.gnu.org/licenses/ for license details.

*/

package syncer

import (
	"context"
	"time"

	"github.com/fsnotify/fsnotify"
)

// watchDebounce is how long Watch waits after the last filesystem event
// before flushing a batch of changed paths.
const watchDebounce = 200 * time.Millisecond

// Watch is an additive convenience layered on top of Incremental: it is
// not part of the synchronous contract in spec.md §5 ("no cancellation
// contract... no watchdog"). It batches fsnotify events into
// debounced slices of changed paths, suitable for feeding Incremental
// directly. The returned channel is closed when ctx is cancelled or the
// watcher cannot be created; a path that cannot be watched is skipped.
func Watch(ctx context.Context, pollPaths []string) <-chan []string {
	out := make(chan []string)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		close(out)
		return out
	}

	for _, p := range pollPaths {
		_ = watcher.Add(p) // best-effort: a path that does not exist yet is simply never watched
	}

	go func() {
		defer close(out)
		defer watcher.Close()

		var pending []string
		var timer *time.Timer

		flush := func() {
			if len(pending) == 0 {
				return
			}
			batch := pending
			pending = nil
			select {
			case out <- batch:
			case <-ctx.Done():
			}
		}

		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				pending = append(pending, event.Name)
				if timer == nil {
					timer = time.NewTimer(watchDebounce)
				} else {
					if !timer.Stop() {
						<-timer.C
					}
					timer.Reset(watchDebounce)
				}
			case <-timerC(timer):
				flush()
				timer = nil
			case _, ok := <-watcher.Errors:
				if !ok {
					return
				}
			}
		}
	}()

	return out
}

// timerC returns t.C, or nil if t is nil; receiving from a nil channel
// blocks forever, which is exactly what we want when no timer is pending.
func timerC(t *time.Timer) <-chan time.Time {
	if t == nil {
		return nil
	}
	return t.C
}
