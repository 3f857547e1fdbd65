// Copyright 2025-2026 Alexander Alten (novatechflow), NovaTechflow (novatechflow.com).
// This project is supported and financed by Scalytics, Inc. (www.scalytics.io).
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

package codec

import "sync/atomic"

// DecodePredicate is queried by the codecs for every frame: should api_key
// K at version V be fully decoded, or passed through opaque?
type DecodePredicate interface {
	ShouldDecode(apiKey, apiVersion int16) bool
}

// PredicateFunc adapts a plain function to DecodePredicate.
type PredicateFunc func(apiKey, apiVersion int16) bool

func (f PredicateFunc) ShouldDecode(apiKey, apiVersion int16) bool { return f(apiKey, apiVersion) }

// Opaque never decodes anything; it is the default before any filter has
// subscribed to a hook. Its dynamic type is comparable, so callers can test
// a predicate with == Opaque.
var Opaque DecodePredicate = opaquePredicate{}

type opaquePredicate struct{}

func (opaquePredicate) ShouldDecode(int16, int16) bool { return false }

// ForAPIKeys builds a predicate that decodes exactly the listed api keys,
// at any version, matching "decode what any filter has subscribed to".
func ForAPIKeys(keys ...int16) DecodePredicate {
	set := make(map[int16]struct{}, len(keys))
	for _, k := range keys {
		set[k] = struct{}{}
	}
	return PredicateFunc(func(apiKey, _ int16) bool {
		_, ok := set[apiKey]
		return ok
	})
}

// Atomic holds a DecodePredicate behind an atomic pointer. The predicate
// starts opaque; the frontend stores an ApiVersions-only predicate before
// the first frame is read, and stores the chain's predicate once more after
// NetFilter.SelectServer fixes the filter list and the backend connects.
// It uses a plain atomic pointer swap instead of a mutex since writes never
// race with each other (only the frontend goroutine ever calls Store).
type Atomic struct {
	ptr atomic.Pointer[DecodePredicate]
}

// NewAtomic returns an Atomic predicate initialized to Opaque.
func NewAtomic() *Atomic {
	a := &Atomic{}
	var p DecodePredicate = Opaque
	a.ptr.Store(&p)
	return a
}

// ShouldDecode delegates to the currently installed predicate.
func (a *Atomic) ShouldDecode(apiKey, apiVersion int16) bool {
	return (*a.ptr.Load()).ShouldDecode(apiKey, apiVersion)
}

// Store installs a new predicate, replacing whatever was there before.
func (a *Atomic) Store(p DecodePredicate) {
	a.ptr.Store(&p)
}

// SASLAware wraps a delegate predicate, forcing decode of everything until
// authentication completes, after which it defers to the delegate. This
// models the spec's note that a SASL-aware decode predicate additionally
// forces decode until the authentication handshake completes; the data-
// plane core here has no SASL handshake of its own (that belongs to an
// outer authentication-offload layer), so MarkAuthenticated is driven by
// whatever component terminates authentication.
type SASLAware struct {
	delegate      *Atomic
	authenticated atomic.Bool
}

// NewSASLAware wraps delegate, initially requiring full decode.
func NewSASLAware(delegate *Atomic) *SASLAware {
	return &SASLAware{delegate: delegate}
}

// ShouldDecode forces true until MarkAuthenticated has been called.
func (s *SASLAware) ShouldDecode(apiKey, apiVersion int16) bool {
	if !s.authenticated.Load() {
		return true
	}
	return s.delegate.ShouldDecode(apiKey, apiVersion)
}

// MarkAuthenticated switches this predicate over to its delegate.
func (s *SASLAware) MarkAuthenticated() {
	s.authenticated.Store(true)
}
