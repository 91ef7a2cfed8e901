// Package pipeline wires a Reader, a csv.Parser, and a batch builder
// together behind a dedicated worker goroutine, and exposes the result as a
// consumer-visible sequence of Batch | Done | Cancelled | Error messages.
package pipeline

import "github.com/tabstream/tabstream/pkg/batch"

// Kind tags a Message's payload.
type Kind int

const (
	KindBatch Kind = iota
	KindDone
	KindCancelled
	KindError
)

// Message is one element of the consumer-visible sequence. Row and Columnar
// are mutually exclusive and only set when Kind == KindBatch, matching
// whichever builder the Pipeline was constructed with.
type Message struct {
	Kind     Kind
	Row      *batch.RowBatch
	Columnar *batch.ColumnarBatch
	Err      error
}
