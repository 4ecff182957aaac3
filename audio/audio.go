// Package audio assembles per-chunk MP3 artifacts into the document's final
// audio file, in narration order.
package audio

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"golang.org/x/sync/errgroup"

	"papervoice/observability"
	"papervoice/storage"
)

var pageSuffix = regexp.MustCompile(`-[0-9]+$`)

// FinalName maps a batch id to the document's final audio artifact:
// the trailing page component is dropped, so every batch of one document
// resolves to the same file.
func FinalName(batchID string) string {
	return pageSuffix.ReplaceAllString(batchID, "") + ".mp3"
}

// Concat joins MP3 segments back to back. Segments after the first have
// their ID3v2 tag stripped so decoders do not trip over metadata frames in
// the middle of the stream.
func Concat(segments [][]byte) []byte {
	var out []byte
	for i, seg := range segments {
		if i > 0 {
			seg = skipID3(seg)
		}
		out = append(out, seg...)
	}
	return out
}

// skipID3 drops a leading ID3v2 tag. The tag size is syncsafe: four bytes
// of seven bits each, not counting the ten-byte header or the optional
// ten-byte footer.
func skipID3(data []byte) []byte {
	if len(data) < 10 || string(data[:3]) != "ID3" {
		return data
	}
	size := int(data[6]&0x7f)<<21 | int(data[7]&0x7f)<<14 | int(data[8]&0x7f)<<7 | int(data[9]&0x7f)
	total := 10 + size
	if data[5]&0x10 != 0 {
		total += 10
	}
	if total > len(data) {
		return data
	}
	return data[total:]
}

// Assembler concatenates a batch's chunk audio onto the document's final
// file and removes the consumed chunks.
type Assembler struct {
	Store  storage.Store
	Logger observability.Logger
}

// Assemble fetches the named chunk artifacts concurrently, joins them in
// the given order, and appends the result to the document's final audio,
// creating it on the first batch. Chunk artifacts are deleted only after
// the final file is durably written, so a failed run can be replayed.
func (a *Assembler) Assemble(ctx context.Context, batchID string, chunkNames []string) (string, error) {
	logger := a.Logger
	if logger == nil {
		logger = observability.NopLogger{}
	}
	if len(chunkNames) == 0 {
		return "", errors.New("no chunk audio to assemble")
	}

	segments := make([][]byte, len(chunkNames))
	g, gctx := errgroup.WithContext(ctx)
	for i, name := range chunkNames {
		g.Go(func() error {
			data, err := a.Store.Read(gctx, name)
			if err != nil {
				return fmt.Errorf("read chunk %s: %w", name, err)
			}
			segments[i] = data
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return "", err
	}

	final := FinalName(batchID)
	existing, err := a.Store.Read(ctx, final)
	switch {
	case err == nil:
		segments = append([][]byte{existing}, segments...)
	case errors.Is(err, storage.ErrNotFound):
	default:
		return "", fmt.Errorf("read final audio %s: %w", final, err)
	}

	joined := Concat(segments)
	if err := a.Store.Write(ctx, final, joined, "audio/mpeg"); err != nil {
		return "", fmt.Errorf("write final audio %s: %w", final, err)
	}
	if err := a.Store.DeleteBatch(ctx, chunkNames); err != nil {
		return "", fmt.Errorf("delete chunk audio: %w", err)
	}
	logger.Info("final audio updated",
		observability.String("file", final),
		observability.Int("chunks", len(chunkNames)),
		observability.Int("bytes", len(joined)))
	return final, nil
}
