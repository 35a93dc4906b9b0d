// Copyright 2025 UMH Systems GmbH
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package fanout broadcasts values to buffered subscriber channels. A subscriber whose buffer is
// full misses the value; publishers never block.
package fanout

import "sync"

// Fanout is safe for concurrent use. The zero value is not usable; use New.
type Fanout[T any] struct {
	buffer int

	mu     sync.Mutex
	subs   map[int]chan T
	nextID int
}

// New creates a fanout whose subscribers buffer up to buffer values.
func New[T any](buffer int) *Fanout[T] {
	if buffer < 0 {
		buffer = 0
	}

	return &Fanout[T]{
		buffer: buffer,
		subs:   make(map[int]chan T),
	}
}

// Subscribe returns a channel of future values and a function that cancels the subscription and
// closes the channel. The cancel function may be called more than once.
func (f *Fanout[T]) Subscribe() (<-chan T, func()) {
	f.mu.Lock()
	defer f.mu.Unlock()

	id := f.nextID
	f.nextID++
	ch := make(chan T, f.buffer)
	f.subs[id] = ch

	var once sync.Once

	return ch, func() {
		once.Do(func() {
			f.mu.Lock()
			defer f.mu.Unlock()
			delete(f.subs, id)
			close(ch)
		})
	}
}

// Publish hands v to every subscriber and returns the number of subscribers that missed it.
func (f *Fanout[T]) Publish(v T) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	dropped := 0
	for _, ch := range f.subs {
		select {
		case ch <- v:
		default:
			dropped++
		}
	}

	return dropped
}

// Len is the number of active subscribers.
func (f *Fanout[T]) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return len(f.subs)
}
