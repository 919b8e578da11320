// Copyright 2025 Poiesic Systems
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


package storage

import (
	"fmt"
	"math"
	"time"

	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/varint"
	"github.com/poiesic/minutes/core"
)

// CheckpointEntry is the stored value for one completed transcript.
type CheckpointEntry struct {
	ID      core.TranscriptID
	SavedAt time.Time
}

// CheckpointEntryMUS encodes CheckpointEntry values.
var CheckpointEntryMUS = checkpointEntryMUS{}

// EmbeddedChunkMUS encodes EmbeddedChunk values for the local vector index.
var EmbeddedChunkMUS = embeddedChunkMUS{}

type checkpointEntryMUS struct{}

func (checkpointEntryMUS) Marshal(v CheckpointEntry, bs []byte) (n int) {
	n = ord.String.Marshal(string(v.ID), bs)
	n += varint.Int64.Marshal(v.SavedAt.UnixMicro(), bs[n:])
	return
}

func (checkpointEntryMUS) Unmarshal(bs []byte) (v CheckpointEntry, n int, err error) {
	id, n, err := ord.String.Unmarshal(bs)
	if err != nil {
		return
	}
	micros, n1, err := varint.Int64.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v = CheckpointEntry{ID: core.TranscriptID(id), SavedAt: time.UnixMicro(micros).UTC()}
	return
}

func (checkpointEntryMUS) Size(v CheckpointEntry) (size int) {
	return ord.String.Size(string(v.ID)) + varint.Int64.Size(v.SavedAt.UnixMicro())
}

type embeddedChunkMUS struct{}

func (embeddedChunkMUS) Marshal(v core.EmbeddedChunk, bs []byte) (n int) {
	c := v.Chunk
	n = ord.String.Marshal(v.VectorID, bs)
	n += ord.String.Marshal(v.Namespace, bs[n:])
	n += ord.String.Marshal(v.Model, bs[n:])
	n += varint.Int.Marshal(v.Dimensions, bs[n:])
	n += ord.String.Marshal(v.ContentHash, bs[n:])
	n += marshalFloats(v.Values, bs[n:])
	n += ord.String.Marshal(string(c.TranscriptID), bs[n:])
	n += varint.Int.Marshal(c.ChunkIndex, bs[n:])
	n += varint.Int.Marshal(c.TotalChunks, bs[n:])
	n += ord.String.Marshal(c.Text, bs[n:])
	n += ord.String.Marshal(c.Speaker, bs[n:])
	n += marshalOptString(c.PrevSpeaker, bs[n:])
	n += marshalOptString(c.NextSpeaker, bs[n:])
	n += ord.String.Marshal(c.Title, bs[n:])
	n += varint.Int64.Marshal(c.Date.UnixMicro(), bs[n:])
	n += varint.Uint64.Marshal(math.Float64bits(c.Duration), bs[n:])
	n += varint.Int.Marshal(len(c.Participants), bs[n:])
	for _, p := range c.Participants {
		n += ord.String.Marshal(p.Name, bs[n:])
		n += ord.String.Marshal(p.Email, bs[n:])
		n += ord.String.Marshal(p.Role, bs[n:])
	}
	n += ord.String.Marshal(c.Summary, bs[n:])
	n += varint.Int.Marshal(len(c.Topics), bs[n:])
	for _, topic := range c.Topics {
		n += ord.String.Marshal(topic, bs[n:])
	}
	n += varint.Int64.Marshal(v.ProcessedAt.UnixMicro(), bs[n:])
	return
}

func (embeddedChunkMUS) Unmarshal(bs []byte) (v core.EmbeddedChunk, n int, err error) {
	r := reader{bs: bs}
	v.VectorID = r.readString()
	v.Namespace = r.readString()
	v.Model = r.readString()
	v.Dimensions = r.readInt()
	v.ContentHash = r.readString()
	v.Values = r.readFloats()

	c := &v.Chunk
	c.TranscriptID = core.TranscriptID(r.readString())
	c.ChunkIndex = r.readInt()
	c.TotalChunks = r.readInt()
	c.Text = r.readString()
	c.Speaker = r.readString()
	c.PrevSpeaker = r.readOptString()
	c.NextSpeaker = r.readOptString()
	c.Title = r.readString()
	c.Date = time.UnixMicro(r.readInt64()).UTC()
	c.Duration = math.Float64frombits(r.readUint64())

	count := r.readInt()
	if r.err == nil && (count < 0 || count > len(bs)) {
		r.err = fmt.Errorf("%w: participant count %d", ErrSerializationFailed, count)
	}
	if r.err == nil {
		c.Participants = make([]core.Participant, count)
		for i := range c.Participants {
			c.Participants[i] = core.Participant{Name: r.readString(), Email: r.readString(), Role: r.readString()}
		}
	}

	c.Summary = r.readString()
	count = r.readInt()
	if r.err == nil && (count < 0 || count > len(bs)-r.n) {
		r.err = fmt.Errorf("%w: topic count %d", ErrSerializationFailed, count)
	}
	if r.err == nil {
		c.Topics = make([]string, count)
		for i := range c.Topics {
			c.Topics[i] = r.readString()
		}
	}
	v.ProcessedAt = time.UnixMicro(r.readInt64()).UTC()

	return v, r.n, r.err
}

func (embeddedChunkMUS) Size(v core.EmbeddedChunk) (size int) {
	c := v.Chunk
	size = ord.String.Size(v.VectorID)
	size += ord.String.Size(v.Namespace)
	size += ord.String.Size(v.Model)
	size += varint.Int.Size(v.Dimensions)
	size += ord.String.Size(v.ContentHash)
	size += sizeFloats(v.Values)
	size += ord.String.Size(string(c.TranscriptID))
	size += varint.Int.Size(c.ChunkIndex)
	size += varint.Int.Size(c.TotalChunks)
	size += ord.String.Size(c.Text)
	size += ord.String.Size(c.Speaker)
	size += sizeOptString(c.PrevSpeaker)
	size += sizeOptString(c.NextSpeaker)
	size += ord.String.Size(c.Title)
	size += varint.Int64.Size(c.Date.UnixMicro())
	size += varint.Uint64.Size(math.Float64bits(c.Duration))
	size += varint.Int.Size(len(c.Participants))
	for _, p := range c.Participants {
		size += ord.String.Size(p.Name) + ord.String.Size(p.Email) + ord.String.Size(p.Role)
	}
	size += ord.String.Size(c.Summary)
	size += varint.Int.Size(len(c.Topics))
	for _, topic := range c.Topics {
		size += ord.String.Size(topic)
	}
	size += varint.Int64.Size(v.ProcessedAt.UnixMicro())
	return
}

func marshalFloats(vs []float32, bs []byte) (n int) {
	n = varint.Int.Marshal(len(vs), bs)
	for _, f := range vs {
		n += varint.Uint32.Marshal(math.Float32bits(f), bs[n:])
	}
	return
}

func sizeFloats(vs []float32) (size int) {
	size = varint.Int.Size(len(vs))
	for _, f := range vs {
		size += varint.Uint32.Size(math.Float32bits(f))
	}
	return
}

// Optional strings carry a one-byte presence flag.
func marshalOptString(s *string, bs []byte) (n int) {
	if s == nil {
		bs[0] = 0
		return 1
	}
	bs[0] = 1
	return 1 + ord.String.Marshal(*s, bs[1:])
}

func sizeOptString(s *string) int {
	if s == nil {
		return 1
	}
	return 1 + ord.String.Size(*s)
}

// reader decodes fields in sequence and keeps the first error.
type reader struct {
	bs  []byte
	n   int
	err error
}

func (r *reader) readString() string {
	if r.err != nil {
		return ""
	}
	v, n, err := ord.String.Unmarshal(r.bs[r.n:])
	r.advance(n, err)
	return v
}

func (r *reader) readOptString() *string {
	if r.err != nil {
		return nil
	}
	if r.n >= len(r.bs) {
		r.err = ErrTruncatedData
		return nil
	}
	flag := r.bs[r.n]
	r.n++
	switch flag {
	case 0:
		return nil
	case 1:
		s := r.readString()
		if r.err != nil {
			return nil
		}
		return &s
	default:
		r.err = fmt.Errorf("%w: bad presence flag %d", ErrSerializationFailed, flag)
		return nil
	}
}

func (r *reader) readInt() int {
	if r.err != nil {
		return 0
	}
	v, n, err := varint.Int.Unmarshal(r.bs[r.n:])
	r.advance(n, err)
	return v
}

func (r *reader) readInt64() int64 {
	if r.err != nil {
		return 0
	}
	v, n, err := varint.Int64.Unmarshal(r.bs[r.n:])
	r.advance(n, err)
	return v
}

func (r *reader) readUint64() uint64 {
	if r.err != nil {
		return 0
	}
	v, n, err := varint.Uint64.Unmarshal(r.bs[r.n:])
	r.advance(n, err)
	return v
}

func (r *reader) readFloats() []float32 {
	count := r.readInt()
	if r.err != nil {
		return nil
	}
	if count < 0 || count > len(r.bs)-r.n {
		r.err = fmt.Errorf("%w: vector length %d", ErrSerializationFailed, count)
		return nil
	}
	vs := make([]float32, count)
	for i := range vs {
		bits, n, err := varint.Uint32.Unmarshal(r.bs[r.n:])
		r.advance(n, err)
		if r.err != nil {
			return nil
		}
		vs[i] = math.Float32frombits(bits)
	}
	return vs
}

func (r *reader) advance(n int, err error) {
	r.n += n
	if err != nil {
		r.err = fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
}

// MarshalCheckpointEntry serializes a CheckpointEntry to bytes.
func MarshalCheckpointEntry(entry CheckpointEntry) []byte {
	buf := make([]byte, CheckpointEntryMUS.Size(entry))
	CheckpointEntryMUS.Marshal(entry, buf)
	return buf
}

// UnmarshalCheckpointEntry deserializes a CheckpointEntry from bytes.
func UnmarshalCheckpointEntry(data []byte) (CheckpointEntry, error) {
	entry, _, err := CheckpointEntryMUS.Unmarshal(data)
	if err != nil {
		return CheckpointEntry{}, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return entry, nil
}

// MarshalEmbeddedChunk serializes an EmbeddedChunk to bytes.
func MarshalEmbeddedChunk(ec *core.EmbeddedChunk) []byte {
	buf := make([]byte, EmbeddedChunkMUS.Size(*ec))
	EmbeddedChunkMUS.Marshal(*ec, buf)
	return buf
}

// UnmarshalEmbeddedChunk deserializes an EmbeddedChunk from bytes.
func UnmarshalEmbeddedChunk(data []byte) (*core.EmbeddedChunk, error) {
	ec, _, err := EmbeddedChunkMUS.Unmarshal(data)
	if err != nil {
		return nil, err
	}
	return &ec, nil
}
