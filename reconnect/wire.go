package reconnect

import (
	"github.com/spacemeshos/go-scale"

	"github.com/spacemeshos/go-vreconnect/vtree"
)

// MessageType is the first byte of each message on the wire.
type MessageType byte

const (
	MessageTypeRequest MessageType = iota + 1
	MessageTypeResponse
)

// Request asks the teacher about the node at Path. Hash is the learner's
// hash of the node. A request for InvalidPath has no hash and tells the
// teacher that there will be no more requests.
type Request struct {
	Path vtree.Path
	Hash *vtree.Hash
}

func (*Request) Type() MessageType { return MessageTypeRequest }

// IsTerminator reports whether this is the last request of a session.
func (r *Request) IsTerminator() bool { return r.Path == vtree.InvalidPath }

// EncodeScale implements scale codec interface.
func (r *Request) EncodeScale(enc *scale.Encoder) (total int, err error) {
	{
		n, err := vtree.EncodePath(enc, r.Path)
		if err != nil {
			return total, err
		}
		total += n
	}
	{
		n, err := scale.EncodeBool(enc, r.Hash != nil)
		if err != nil {
			return total, err
		}
		total += n
	}
	if r.Hash != nil {
		n, err := scale.EncodeByteArray(enc, r.Hash[:])
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

// DecodeScale implements scale codec interface.
func (r *Request) DecodeScale(dec *scale.Decoder) (total int, err error) {
	{
		field, n, err := vtree.DecodePath(dec)
		if err != nil {
			return total, err
		}
		total += n
		r.Path = field
	}
	hasHash, n, err := scale.DecodeBool(dec)
	if err != nil {
		return total, err
	}
	total += n
	if hasHash {
		r.Hash = new(vtree.Hash)
		n, err := scale.DecodeByteArray(dec, r.Hash[:])
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

// LeafPayload is the content of a leaf that differs on the learner.
type LeafPayload struct {
	Key   []byte
	Value []byte
}

// Response tells the learner whether its copy of the node at Path is clean.
// The root response always carries the teacher's tree state. A response for
// a dirty leaf carries the leaf content.
type Response struct {
	Path    vtree.Path
	IsClean bool
	Root    *vtree.TreeState
	Leaf    *LeafPayload
}

func (*Response) Type() MessageType { return MessageTypeResponse }

// IsTerminator reports whether this is the last response of a session.
func (r *Response) IsTerminator() bool { return r.Path == vtree.InvalidPath }

// EncodeScale implements scale codec interface.
func (r *Response) EncodeScale(enc *scale.Encoder) (total int, err error) {
	{
		n, err := vtree.EncodePath(enc, r.Path)
		if err != nil {
			return total, err
		}
		total += n
	}
	{
		var flag uint8
		if r.IsClean {
			flag = 1
		}
		n, err := scale.EncodeCompact8(enc, flag)
		if err != nil {
			return total, err
		}
		total += n
	}
	{
		n, err := scale.EncodeBool(enc, r.Root != nil)
		if err != nil {
			return total, err
		}
		total += n
	}
	if r.Root != nil {
		n, err := r.Root.EncodeScale(enc)
		if err != nil {
			return total, err
		}
		total += n
	}
	{
		n, err := scale.EncodeBool(enc, r.Leaf != nil)
		if err != nil {
			return total, err
		}
		total += n
	}
	if r.Leaf != nil {
		n, err := scale.EncodeByteSliceWithLimit(enc, r.Leaf.Key, vtree.MaxKeySize)
		if err != nil {
			return total, err
		}
		total += n
		n, err = scale.EncodeByteSliceWithLimit(enc, r.Leaf.Value, vtree.MaxValueSize)
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

// DecodeScale implements scale codec interface.
func (r *Response) DecodeScale(dec *scale.Decoder) (total int, err error) {
	{
		field, n, err := vtree.DecodePath(dec)
		if err != nil {
			return total, err
		}
		total += n
		r.Path = field
	}
	{
		field, n, err := scale.DecodeCompact8(dec)
		if err != nil {
			return total, err
		}
		total += n
		r.IsClean = field != 0
	}
	{
		hasRoot, n, err := scale.DecodeBool(dec)
		if err != nil {
			return total, err
		}
		total += n
		if hasRoot {
			r.Root = new(vtree.TreeState)
			n, err := r.Root.DecodeScale(dec)
			if err != nil {
				return total, err
			}
			total += n
		}
	}
	{
		hasLeaf, n, err := scale.DecodeBool(dec)
		if err != nil {
			return total, err
		}
		total += n
		if hasLeaf {
			r.Leaf = new(LeafPayload)
			key, n, err := scale.DecodeByteSliceWithLimit(dec, vtree.MaxKeySize)
			if err != nil {
				return total, err
			}
			total += n
			value, n, err := scale.DecodeByteSliceWithLimit(dec, vtree.MaxValueSize)
			if err != nil {
				return total, err
			}
			total += n
			r.Leaf.Key = key
			r.Leaf.Value = value
		}
	}
	return total, nil
}
