// Copyright 2012 HHMI.  All rights reserved.
//
// Redistribution and use in source and binary forms, with or without
// modification, are permitted provided that the following conditions are
// met:
//
//     * Redistributions of source code must retain the above copyright
// notice, this list of conditions and the following disclaimer.
//     * Redistributions in binary form must reproduce the above
// copyright notice, this list of conditions and the following disclaimer
// in the documentation and/or other materials provided with the
// distribution.
//     * Neither the name of HHMI nor the names of its
// contributors may be used to endorse or promote products derived from
// this software without specific prior written permission.
//
// THIS SOFTWARE IS PROVIDED BY THE COPYRIGHT HOLDERS AND CONTRIBUTORS
// "AS IS" AND ANY EXPRESS OR IMPLIED WARRANTIES, INCLUDING, BUT NOT
// LIMITED TO, THE IMPLIED WARRANTIES OF MERCHANTABILITY AND FITNESS FOR
// A PARTICULAR PURPOSE ARE DISCLAIMED. IN NO EVENT SHALL THE COPYRIGHT
// OWNER OR CONTRIBUTORS BE LIABLE FOR ANY DIRECT, INDIRECT, INCIDENTAL,
// SPECIAL, EXEMPLARY, OR CONSEQUENTIAL DAMAGES (INCLUDING, BUT NOT
// LIMITED TO, PROCUREMENT OF SUBSTITUTE GOODS OR SERVICES; LOSS OF USE,
// DATA, OR PROFITS; OR BUSINESS INTERRUPTION) HOWEVER CAUSED AND ON ANY
// THEORY OF LIABILITY, WHETHER IN CONTRACT, STRICT LIABILITY, OR TORT
// (INCLUDING NEGLIGENCE OR OTHERWISE) ARISING IN ANY WAY OUT OF THE USE
// OF THIS SOFTWARE, EVEN IF ADVISED OF THE POSSIBILITY OF SUCH DAMAGE.
//
// Written as part of the FlyEM Project at Janelia Farm Research Center.

// Package adapter implements the queue/get correlation-key pairing a
// foreign-language embedding (e.g. a CGo/SWIG boundary handing fixed
// buffers to Python) would sit behind. It does not implement any such
// bridge itself — only the Go-side bookkeeping that makes a two-call
// "queue the values, then fetch them into caller-owned storage"
// protocol safe to call repeatedly from a single goroutine.
package adapter

import (
	"fmt"

	"github.com/janelia-flyem/raveler-utils/stack"
	"github.com/janelia-flyem/raveler-utils/stackerr"
)

// ValueQueue holds one pending batch of values keyed by a correlation
// key supplied at Start and re-checked at Get. It is the Go analogue
// of the original libstack.cpp ValueQueue<T> template.
type ValueQueue[T any] struct {
	values []T
	key    uint32
	armed  bool
}

// Start begins a new batch, discarding whatever a previous batch left
// behind. The returned pointer is where the caller should accumulate
// values before a matching Get.
func (q *ValueQueue[T]) Start(key uint32) *[]T {
	q.values = nil
	q.key = key
	q.armed = true
	return &q.values
}

// Size reports how many values are currently queued.
func (q *ValueQueue[T]) Size() int { return len(q.values) }

// Get consumes the queued batch, verifying it was started with key and
// holds exactly count values. A queue without a matching, still-armed
// Start fails with ErrPolicy, matching the original's "wrong key"/
// "wrong count" exceptions.
func (q *ValueQueue[T]) Get(count int, key uint32) ([]T, error) {
	if !q.armed {
		return nil, fmt.Errorf("adapter: get called without a matching queue call: %w", stackerr.ErrPolicy)
	}
	if q.key != key {
		return nil, fmt.Errorf("adapter: wrong key: %w", stackerr.ErrPolicy)
	}
	if len(q.values) != count {
		return nil, fmt.Errorf("adapter: wrong count: got %d queued, caller expected %d: %w",
			len(q.values), count, stackerr.ErrPolicy)
	}
	out := q.values
	q.values = nil
	q.key = 0
	q.armed = false
	return out, nil
}

// Adapter wraps a *stack.Stack with the queue/get pairs the original
// embedding façade exposed, grounded on SuperpixelGetter and
// BodyVolumeQueue in libstack.cpp. Each Queue* call must be
// immediately followed by its matching Get* call before another
// Queue* call of the same kind, per spec.md §5's pairing rule.
type Adapter struct {
	s *stack.Stack

	planes  ValueQueue[uint32]
	spids   ValueQueue[uint32]
	bodies  ValueQueue[uint32]
	volumes ValueQueue[uint64]
}

// New wraps s for queue/get access.
func New(s *stack.Stack) *Adapter {
	return &Adapter{s: s}
}

// QueueSuperpixelsInBody queues the planes and superpixel ids of every
// superpixel in body b, keyed by b, and returns the count a subsequent
// GetSuperpixelsInBody must match.
func (a *Adapter) QueueSuperpixelsInBody(b uint32) (int, error) {
	planes, spids, err := a.s.SuperpixelsInBody(b)
	if err != nil {
		return 0, err
	}
	*a.planes.Start(b) = planes
	*a.spids.Start(b) = spids
	return len(planes), nil
}

// GetSuperpixelsInBody retrieves a batch queued by QueueSuperpixelsInBody.
func (a *Adapter) GetSuperpixelsInBody(b uint32, count int) (planes, spids []uint32, err error) {
	planes, err = a.planes.Get(count, b)
	if err != nil {
		return nil, nil, err
	}
	spids, err = a.spids.Get(count, b)
	if err != nil {
		return nil, nil, err
	}
	return planes, spids, nil
}

// QueueAllBodyVolumes queues every live body id paired with its
// volume, keyed by the fixed correlation key 0 (the original used no
// per-call key for this queue), and returns the count a subsequent
// GetAllBodyVolumes must match.
func (a *Adapter) QueueAllBodyVolumes() (int, error) {
	bodyIDs := a.s.GetAllBodies()
	volumes := make([]uint64, len(bodyIDs))
	for i, b := range bodyIDs {
		v, err := a.s.GetBodyVolume(b)
		if err != nil {
			return 0, err
		}
		volumes[i] = v
	}
	*a.bodies.Start(0) = bodyIDs
	*a.volumes.Start(0) = volumes
	return len(bodyIDs), nil
}

// GetAllBodyVolumes retrieves a batch queued by QueueAllBodyVolumes.
func (a *Adapter) GetAllBodyVolumes(count int) (bodyIDs []uint32, volumes []uint64, err error) {
	bodyIDs, err = a.bodies.Get(count, 0)
	if err != nil {
		return nil, nil, err
	}
	volumes, err = a.volumes.Get(count, 0)
	if err != nil {
		return nil, nil, err
	}
	return bodyIDs, volumes, nil
}
