package badger

import (
	"github.com/poiesic/minutes/core"
)

// Key prefixes for different data types
const (
	checkpointPrefix = "chkpt:"
	vectorPrefix     = "vec:"
)

// makeCheckpointKey generates the key marking a transcript as exported.
// Format: chkpt:<transcriptID>
func makeCheckpointKey(id core.TranscriptID) []byte {
	return []byte(checkpointPrefix + string(id))
}

// checkpointIDFromKey recovers the transcript id from a checkpoint key.
func checkpointIDFromKey(key []byte) core.TranscriptID {
	return core.TranscriptID(key[len(checkpointPrefix):])
}

// makeNamespacePrefix generates the prefix shared by all vectors in a namespace.
// Format: vec:<namespace>:
// The namespace is length-prefixed so "a" never matches vectors in "a:b".
func makeNamespacePrefix(namespace string) []byte {
	buf := make([]byte, 0, len(vectorPrefix)+4+len(namespace)+1)
	buf = append(buf, vectorPrefix...)
	buf = appendUvarint(buf, uint64(len(namespace)))
	buf = append(buf, namespace...)
	buf = append(buf, ':')
	return buf
}

// makeVectorKey generates the key for one vector.
// Format: vec:<len><namespace>:<vectorID>
func makeVectorKey(namespace, vectorID string) []byte {
	return append(makeNamespacePrefix(namespace), vectorID...)
}

func appendUvarint(buf []byte, v uint64) []byte {
	for v >= 0x80 {
		buf = append(buf, byte(v)|0x80)
		v >>= 7
	}
	return append(buf, byte(v))
}
