package storage

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/louisbranch/nightfall/internal/arena/event"
	apperrors "github.com/louisbranch/nightfall/internal/platform/errors"
)

// EventHash computes the content-addressed identity of an event: SHA-256
// over the canonical field encoding, truncated to 128 bits, hex encoded.
func EventHash(evt event.Event) (string, error) {
	if !evt.Type.IsValid() {
		return "", fmt.Errorf("event type is required")
	}
	var b strings.Builder
	b.WriteString(evt.SessionID)
	b.WriteByte(0)
	b.WriteString(strconv.FormatUint(evt.Seq, 10))
	b.WriteByte(0)
	b.WriteString(strconv.FormatInt(evt.Timestamp.UnixMilli(), 10))
	b.WriteByte(0)
	b.WriteString(string(evt.Type))
	b.WriteByte(0)
	b.WriteString(string(evt.Visibility))
	b.WriteByte(0)
	b.WriteString(evt.ActorID)
	b.WriteByte(0)
	b.Write(evt.PayloadJSON)

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:16]), nil
}

// VerifyChain checks a contiguous slice of events for gapless sequencing and
// an unbroken hash chain. firstPrevHash is the PrevHash expected on the first
// event (empty at sequence 1). Failures carry the integrity error codes that
// are fatal to a session.
func VerifyChain(events []event.Event, firstPrevHash string) error {
	prev := firstPrevHash
	for i, evt := range events {
		if i > 0 {
			switch {
			case evt.Seq <= events[i-1].Seq:
				return apperrors.WithMetadata(apperrors.CodeEventDuplicateSeq,
					"duplicate event sequence detected",
					map[string]string{"seq": strconv.FormatUint(evt.Seq, 10)})
			case evt.Seq != events[i-1].Seq+1:
				return apperrors.WithMetadata(apperrors.CodeEventSequenceGap,
					"event sequence gap detected",
					map[string]string{
						"expected": strconv.FormatUint(events[i-1].Seq+1, 10),
						"got":      strconv.FormatUint(evt.Seq, 10),
					})
			}
		}
		if evt.PrevHash != prev {
			return apperrors.WithMetadata(apperrors.CodeEventChainBroken,
				"hash chain break detected",
				map[string]string{
					"seq":      strconv.FormatUint(evt.Seq, 10),
					"expected": prev,
					"got":      evt.PrevHash,
				})
		}
		computed, err := EventHash(evt)
		if err != nil {
			return err
		}
		if computed != evt.Hash {
			return apperrors.WithMetadata(apperrors.CodeEventChainBroken,
				"event content does not match its hash",
				map[string]string{"seq": strconv.FormatUint(evt.Seq, 10)})
		}
		prev = evt.Hash
	}
	return nil
}
