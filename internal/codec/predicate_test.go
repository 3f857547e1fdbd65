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

import "testing"

func TestOpaqueNeverDecodes(t *testing.T) {
	if Opaque.ShouldDecode(3, 9) {
		t.Fatal("Opaque.ShouldDecode() = true, want false")
	}
}

func TestForAPIKeysDecodesOnlyListedKeys(t *testing.T) {
	p := ForAPIKeys(3, 19)
	if !p.ShouldDecode(3, 0) {
		t.Fatal("expected api key 3 to be decoded")
	}
	if !p.ShouldDecode(19, 7) {
		t.Fatal("expected api key 19 to be decoded")
	}
	if p.ShouldDecode(1, 0) {
		t.Fatal("expected api key 1 to stay opaque")
	}
}

func TestAtomicStartsOpaqueThenSwaps(t *testing.T) {
	a := NewAtomic()
	if a.ShouldDecode(3, 0) {
		t.Fatal("new Atomic should start opaque")
	}
	a.Store(ForAPIKeys(3))
	if !a.ShouldDecode(3, 0) {
		t.Fatal("after Store, api key 3 should decode")
	}
	if a.ShouldDecode(1, 0) {
		t.Fatal("after Store, unlisted api key should stay opaque")
	}
}

func TestSASLAwareForcesDecodeUntilAuthenticated(t *testing.T) {
	delegate := NewAtomic()
	delegate.Store(Opaque)
	s := NewSASLAware(delegate)

	if !s.ShouldDecode(3, 0) {
		t.Fatal("before MarkAuthenticated, SASLAware should force decode")
	}
	s.MarkAuthenticated()
	if s.ShouldDecode(3, 0) {
		t.Fatal("after MarkAuthenticated, SASLAware should defer to delegate (Opaque)")
	}
}
