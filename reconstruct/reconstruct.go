// Package reconstruct parses classification scores and rebuilds the ordered
// narration text: label assignment, noise filtering, and paragraph merging.
package reconstruct

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Label is the semantic role the classifier assigned to a paragraph.
type Label string

const (
	LabelBody    Label = "body"
	LabelHeader  Label = "header"
	LabelCaption Label = "caption"
	LabelOther   Label = "other"
)

// Score column names in the classifier output table.
const (
	colID           = "id"
	colText         = "text"
	colOtherScore   = "label_other_score"
	colBodyScore    = "label_body_score"
	colCaptionScore = "label_caption_score"
	colHeaderScore  = "label_header_score"
)

var (
	// ErrNoRows reports a scored table with no usable rows. Producing empty
	// narration from it would silently corrupt the document's audio, so the
	// stage fails loudly instead.
	ErrNoRows = errors.New("reconstruct: no scored rows")
	// ErrNothingToNarrate reports that every paragraph was filtered out.
	ErrNothingToNarrate = errors.New("reconstruct: all paragraphs labeled other")
)

// sentenceEnd matches text already closed by a sentence-terminal character;
// a body paragraph ending this way does not absorb its successor.
var sentenceEnd = regexp.MustCompile(`[.。」）)”]$`)

// Result is the reconstructed narration for one batch. Running Parse twice
// on the same input yields identical Results.
type Result struct {
	// BatchID is <document>-<first page>, the grouping key for assembly.
	BatchID string
	// Order lists the surviving narration-unit ids in reading order.
	Order []string
	// Text maps each unit id to its (possibly merged) narration text.
	Text map[string]string
	// Labels maps every scored id (including filtered ones) to its label.
	Labels map[string]Label
}

// Parse reads a scored CSV and reconstructs narration order. The steps are
// strictly ordered: text sanitation, label assignment, lexicographic sort,
// noise filtering, then a single forward merge pass that builds a fresh
// output sequence rather than mutating the one it walks.
func Parse(r io.Reader) (Result, error) {
	text, labels, err := readRows(r)
	if err != nil {
		return Result{}, err
	}
	if len(text) == 0 {
		return Result{}, ErrNoRows
	}

	ids := make([]string, 0, len(text))
	for id := range text {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	// Drop noise paragraphs before merging; their text is never narrated.
	kept := ids[:0]
	for _, id := range ids {
		if labels[id] != LabelOther {
			kept = append(kept, id)
		}
	}
	if len(kept) == 0 {
		return Result{}, ErrNothingToNarrate
	}

	order := mergeAdjacent(kept, text, labels)

	batchID, err := batchIDOf(order[0])
	if err != nil {
		return Result{}, err
	}
	return Result{BatchID: batchID, Order: order, Text: text, Labels: labels}, nil
}

func readRows(r io.Reader) (map[string]string, map[string]Label, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	header, err := reader.Read()
	if err != nil {
		return nil, nil, fmt.Errorf("reconstruct: read header: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[strings.TrimSpace(name)] = i
	}
	for _, required := range []string{colID, colText, colOtherScore, colBodyScore, colCaptionScore, colHeaderScore} {
		if _, ok := col[required]; !ok {
			return nil, nil, fmt.Errorf("reconstruct: missing column %q", required)
		}
	}

	text := make(map[string]string)
	labels := make(map[string]Label)
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("reconstruct: read row: %w", err)
		}
		id := row[col[colID]]
		if id == "" {
			continue
		}
		scores, ok := parseScores(row, col)
		if !ok {
			// A single unscorable row degrades locally; it never aborts the
			// batch.
			continue
		}
		// '<' would open a tag downstream; strip it before any SSML exists.
		text[id] = strings.ReplaceAll(row[col[colText]], "<", "")
		labels[id] = assign(scores)
	}
	return text, labels, nil
}

type scores struct{ other, body, caption, header float64 }

func parseScores(row []string, col map[string]int) (scores, bool) {
	get := func(name string) (float64, bool) {
		i := col[name]
		if i >= len(row) {
			return 0, false
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(row[i]), 64)
		return v, err == nil
	}
	var s scores
	var ok bool
	if s.other, ok = get(colOtherScore); !ok {
		return scores{}, false
	}
	if s.body, ok = get(colBodyScore); !ok {
		return scores{}, false
	}
	if s.caption, ok = get(colCaptionScore); !ok {
		return scores{}, false
	}
	if s.header, ok = get(colHeaderScore); !ok {
		return scores{}, false
	}
	return s, true
}

// assign picks exactly one label. The tie-break order is fixed: when scores
// tie, the label earlier in other > header > caption > body wins.
func assign(s scores) Label {
	switch {
	case s.other >= s.header && s.other >= s.body && s.other >= s.caption:
		return LabelOther
	case s.header >= s.body && s.header >= s.caption:
		return LabelHeader
	case s.caption >= s.body:
		return LabelCaption
	default:
		return LabelBody
	}
}

// mergeAdjacent fuses paragraph runs in one forward pass. A paragraph merges
// into its predecessor when both are body and the predecessor lacks terminal
// punctuation, or when both are captions. The merged text moves under the
// current id and the predecessor leaves the sequence; headers never merge.
// The pass appends into a fresh slice, so the sequence being walked is never
// mutated.
func mergeAdjacent(ids []string, text map[string]string, labels map[string]Label) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if len(out) > 0 {
			prev := out[len(out)-1]
			bodyPair := labels[id] == LabelBody && labels[prev] == LabelBody
			captionPair := labels[id] == LabelCaption && labels[prev] == LabelCaption
			openBody := bodyPair && !sentenceEnd.MatchString(text[prev])
			if openBody || captionPair {
				text[id] = text[prev] + text[id]
				out[len(out)-1] = id
				continue
			}
		}
		out = append(out, id)
	}
	return out
}

// batchIDOf drops the trailing paragraph segment of a composite id, leaving
// <document>-<page>.
func batchIDOf(id string) (string, error) {
	i := strings.LastIndex(id, "-")
	if i <= 0 {
		return "", fmt.Errorf("reconstruct: malformed id %q", id)
	}
	return id[:i], nil
}
