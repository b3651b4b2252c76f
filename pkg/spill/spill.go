// Copyright 2021 Matrix Origin
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package spill serializes batches for disk, with optional block
// compression. The payload is the batch's own binary encoding behind a
// small header naming the codec and the raw size.
package spill

import (
	"os"

	"github.com/golang/snappy"
	"github.com/pierrec/lz4"

	"github.com/difyrrwrzd/cudf-sub003/pkg/common/moerr"
	"github.com/difyrrwrzd/cudf-sub003/pkg/common/mpool"
	"github.com/difyrrwrzd/cudf-sub003/pkg/container/batch"
	"github.com/difyrrwrzd/cudf-sub003/pkg/container/types"
	"github.com/difyrrwrzd/cudf-sub003/pkg/logutil"
)

type Codec uint8

const (
	None Codec = iota
	Snappy
	LZ4
)

func (c Codec) String() string {
	switch c {
	case None:
		return "none"
	case Snappy:
		return "snappy"
	case LZ4:
		return "lz4"
	default:
		return "unknown"
	}
}

const headerSize = 5 // codec byte + raw payload size

// Encode serializes the batch and compresses it with the chosen codec.
func Encode(bat *batch.Batch, codec Codec) ([]byte, error) {
	raw, err := bat.MarshalBinary()
	if err != nil {
		return nil, err
	}
	var payload []byte
	switch codec {
	case None:
		payload = raw
	case Snappy:
		payload = snappy.Encode(nil, raw)
	case LZ4:
		buf := make([]byte, lz4.CompressBlockBound(len(raw)))
		n, err := lz4.CompressBlock(raw, buf, nil)
		if err != nil {
			return nil, moerr.NewBadCompressNoCtx("lz4: %v", err)
		}
		if n == 0 || n >= len(raw) {
			// incompressible, store raw
			codec = None
			payload = raw
		} else {
			payload = buf[:n]
		}
	default:
		return nil, moerr.NewBadCompressNoCtx("unknown codec %d", codec)
	}
	out := make([]byte, headerSize+len(payload))
	out[0] = byte(codec)
	rawLen := uint32(len(raw))
	copy(out[1:headerSize], types.EncodeUint32(&rawLen))
	copy(out[headerSize:], payload)
	return out, nil
}

// Decode reverses Encode; vector buffers are charged to mp.
func Decode(data []byte, mp *mpool.MPool) (*batch.Batch, error) {
	if len(data) < headerSize {
		return nil, moerr.NewBadCompressNoCtx("payload of %d bytes is shorter than the header", len(data))
	}
	codec := Codec(data[0])
	rawLen := int(types.DecodeUint32(data[1:headerSize]))
	payload := data[headerSize:]

	var raw []byte
	switch codec {
	case None:
		raw = payload
	case Snappy:
		var err error
		raw, err = snappy.Decode(nil, payload)
		if err != nil {
			return nil, moerr.NewBadCompressNoCtx("snappy: %v", err)
		}
	case LZ4:
		raw = make([]byte, rawLen)
		n, err := lz4.UncompressBlock(payload, raw)
		if err != nil {
			return nil, moerr.NewBadCompressNoCtx("lz4: %v", err)
		}
		raw = raw[:n]
	default:
		return nil, moerr.NewBadCompressNoCtx("unknown codec %d", codec)
	}
	if len(raw) != rawLen {
		return nil, moerr.NewBadCompressNoCtx("raw size %d does not match header %d", len(raw), rawLen)
	}

	bat := new(batch.Batch)
	if err := bat.UnmarshalBinaryWithMpool(raw, mp); err != nil {
		return nil, err
	}
	return bat, nil
}

// WriteFile spills an encoded batch to path.
func WriteFile(path string, bat *batch.Batch, codec Codec) error {
	data, err := Encode(bat, codec)
	if err != nil {
		return err
	}
	logutil.Debugf("spill %d rows to %s (%s, %d bytes)", bat.RowCount(), path, codec, len(data))
	return os.WriteFile(path, data, 0644)
}

// ReadFile loads a batch spilled by WriteFile.
func ReadFile(path string, mp *mpool.MPool) (*batch.Batch, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Decode(data, mp)
}
